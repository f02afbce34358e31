package economy

import (
	"context"
	"errors"
	"testing"

	"rps_arena/internal/domain"
)

func TestMemorySettleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Deposit(1, 100)
	m.Deposit(2, 100)

	for _, pid := range []int64{1, 2} {
		if err := m.Escrow(ctx, "m1", pid, 50); err != nil {
			t.Fatalf("escrow %d: %v", pid, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := m.Settle(ctx, "m1", 1, 100); err != nil {
			t.Fatalf("settle: %v", err)
		}
	}

	if got := m.Balance(1); got != 150 {
		t.Fatalf("winner balance = %d; want 150", got)
	}
	if got := m.Balance(2); got != 50 {
		t.Fatalf("loser balance = %d; want 50", got)
	}
}

func TestMemoryEscrow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Deposit(1, 60)

	if err := m.Escrow(ctx, "m1", 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := m.Escrow(ctx, "m1", 1, 50); err != nil {
		t.Fatalf("repeated escrow = %v; want no-op", err)
	}
	if got := m.Held("m1", 1); got != 50 {
		t.Fatalf("held = %d; want 50", got)
	}
	if err := m.Escrow(ctx, "m2", 1, 50); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("escrow beyond balance = %v; want ErrInsufficientFunds", err)
	}
	if err := m.Escrow(ctx, "m3", domain.ComputerPlayerID, 50); err != nil {
		t.Fatalf("house escrow = %v; want no-op", err)
	}
	if err := m.Escrow(ctx, "m4", 1, 0); !errors.Is(err, domain.ErrInvalidBet) {
		t.Fatalf("zero escrow = %v; want ErrInvalidBet", err)
	}
}

func TestMemorySettleOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		winner   int64
		amount   int64
		balance1 int64
		balance2 int64
	}{
		{"refund", NoWinner, 0, 100, 100},
		{"payout", 2, 100, 50, 150},
		{"house keeps", domain.ComputerPlayerID, 100, 50, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m := NewMemory()
			m.Deposit(1, 100)
			m.Deposit(2, 100)
			_ = m.Escrow(ctx, "m", 1, 50)
			_ = m.Escrow(ctx, "m", 2, 50)

			if err := m.Settle(ctx, "m", tc.winner, tc.amount); err != nil {
				t.Fatal(err)
			}
			if m.Balance(1) != tc.balance1 || m.Balance(2) != tc.balance2 {
				t.Fatalf("balances = %d/%d; want %d/%d", m.Balance(1), m.Balance(2), tc.balance1, tc.balance2)
			}
			if m.Held("m", 1) != 0 {
				t.Fatalf("escrow still held after settlement")
			}
		})
	}
}

func TestMemorySeedBalance(t *testing.T) {
	m := NewMemory(WithSeedBalance(200))
	ctx := context.Background()

	if got := m.Balance(5); got != 200 {
		t.Fatalf("first balance = %d; want 200", got)
	}
	if err := m.Escrow(ctx, "m1", 5, 150); err != nil {
		t.Fatal(err)
	}
	if got := m.Balance(5); got != 50 {
		t.Fatalf("balance after escrow = %d; want 50, seed applied once", got)
	}

	m.Deposit(6, 10)
	if got := m.Balance(6); got != 10 {
		t.Fatalf("deposited player got seed too: %d", got)
	}
}

func TestMemoryStatement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Deposit(1, 100)
	m.Deposit(2, 100)
	_ = m.Escrow(ctx, "m1", 1, 30)
	_ = m.Escrow(ctx, "m1", 2, 30)
	_ = m.Settle(ctx, "m1", 2, 60)

	stmt, err := m.Statement(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmt) != 2 || stmt[0].Type != domain.TxEscrow || stmt[0].MatchID() != "m1" || stmt[1].Type != domain.TxSeed {
		t.Fatalf("statement for loser = %+v", stmt)
	}

	stmt, _ = m.Statement(ctx, 2, 1)
	if len(stmt) != 1 || stmt[0].Type != domain.TxPayout || stmt[0].Amount != 60 {
		t.Fatalf("latest entry for winner = %+v", stmt)
	}
}
