package domain

import "time"

// ComputerPlayerID is the house identity used for matches against the computer.
const ComputerPlayerID int64 = -1

// Player is referenced by value; identity is owned by the auth collaborator.
type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ComputerPlayer returns the house opponent.
func ComputerPlayer() Player {
	return Player{ID: ComputerPlayerID, Name: "Computer"}
}

// IsHouse reports whether id belongs to the house rather than a real account.
func IsHouse(id int64) bool {
	return id < 0
}

// Account is a player row in the ledger database.
type Account struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
