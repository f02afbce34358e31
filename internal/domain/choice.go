package domain

import "strings"

// Choice is one of the three simultaneous moves.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// Choices lists every valid move.
var Choices = [3]Choice{Rock, Paper, Scissors}

// ParseChoice accepts the wire spelling of a move, case-insensitively.
// "stone" is an alias for rock.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "stone":
		return Rock, nil
	case "paper":
		return Paper, nil
	case "scissors":
		return Scissors, nil
	}
	return "", ErrInvalidChoice
}

func (c Choice) Valid() bool {
	return c == Rock || c == Paper || c == Scissors
}

// beats reports whether c defeats other.
func (c Choice) beats(other Choice) bool {
	switch c {
	case Rock:
		return other == Scissors
	case Paper:
		return other == Rock
	case Scissors:
		return other == Paper
	}
	return false
}

// Outcome is a round or match result relative to one player.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// Invert returns the same result seen from the other side.
func (o Outcome) Invert() Outcome {
	switch o {
	case Win:
		return Lose
	case Lose:
		return Win
	}
	return o
}

// Resolve returns a's outcome against b. It is a pure function of the two moves.
func Resolve(a, b Choice) Outcome {
	switch {
	case a == b:
		return Draw
	case a.beats(b):
		return Win
	default:
		return Lose
	}
}
