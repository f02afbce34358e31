package economy

import (
	"context"
	"sync"

	"rps_arena/internal/domain"
)

// Memory is an in-process Gateway. It backs tests and ECONOMY_BACKEND=memory.
type Memory struct {
	mu       sync.Mutex
	balances map[int64]int64
	escrows  map[string]map[int64]int64
	settled  map[string]bool
	ledger   []domain.Transaction

	seed int64
	seen map[int64]bool
}

type MemoryOption func(*Memory)

// WithSeedBalance credits amount to every player the first time it is seen.
func WithSeedBalance(amount int64) MemoryOption {
	return func(m *Memory) { m.seed = amount }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		balances: make(map[int64]int64),
		escrows:  make(map[string]map[int64]int64),
		settled:  make(map[string]bool),
		seen:     make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// touch applies the seed balance once per player. m.mu must be held.
func (m *Memory) touch(playerID int64) {
	if m.seen[playerID] {
		return
	}
	m.seen[playerID] = true
	if m.seed > 0 {
		m.balances[playerID] += m.seed
		m.record(playerID, domain.TxSeed, m.seed, "")
	}
}

// Deposit credits a player outside of any match.
func (m *Memory) Deposit(playerID, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[playerID] = true
	m.balances[playerID] += amount
	m.record(playerID, domain.TxSeed, amount, "")
}

// Balance returns the spendable balance.
func (m *Memory) Balance(playerID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(playerID)
	return m.balances[playerID]
}

// Held returns the amount escrowed by playerID in matchID and not yet settled.
func (m *Memory) Held(matchID string, playerID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrows[matchID][playerID]
}

// Transactions returns a copy of the ledger.
func (m *Memory) Transactions() []domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transaction(nil), m.ledger...)
}

// Statement lists a player's most recent ledger entries, newest first.
func (m *Memory) Statement(_ context.Context, playerID int64, limit int) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for i := len(m.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.ledger[i].PlayerID == playerID {
			tx := m.ledger[i]
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (m *Memory) Escrow(_ context.Context, matchID string, playerID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidBet
	}
	if domain.IsHouse(playerID) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settled[matchID] {
		return nil
	}
	held := m.escrows[matchID]
	if held == nil {
		held = make(map[int64]int64)
		m.escrows[matchID] = held
	}
	if _, ok := held[playerID]; ok {
		return nil
	}
	m.touch(playerID)
	if m.balances[playerID] < amount {
		return domain.ErrInsufficientFunds
	}
	m.balances[playerID] -= amount
	held[playerID] = amount
	m.record(playerID, domain.TxEscrow, -amount, matchID)
	return nil
}

func (m *Memory) Settle(_ context.Context, matchID string, winnerID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settled[matchID] {
		return nil
	}
	m.settled[matchID] = true

	held := m.escrows[matchID]
	delete(m.escrows, matchID)

	switch {
	case winnerID == NoWinner:
		for pid, amt := range held {
			m.balances[pid] += amt
			m.record(pid, domain.TxRefund, amt, matchID)
		}
	case domain.IsHouse(winnerID):
	default:
		m.balances[winnerID] += amount
		m.record(winnerID, domain.TxPayout, amount, matchID)
	}
	return nil
}

func (m *Memory) record(playerID int64, typ string, amount int64, matchID string) {
	tx := domain.Transaction{PlayerID: playerID, Type: typ, Amount: amount}
	if matchID != "" {
		tx.Meta = map[string]interface{}{"match_id": matchID}
	}
	m.ledger = append(m.ledger, tx)
}
