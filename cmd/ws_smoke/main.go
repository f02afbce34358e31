// ws_smoke plays one full public match between two players against a running
// server. It signs its own tokens, so JWT_SECRET must match the server's.
package main

import (
	"context"
	"flag"
	"os"
	"sync"
	"time"

	"rps_arena/internal/client"
	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/service"
	"rps_arena/internal/session"
)

type seat struct {
	player  domain.Player
	choice  domain.Choice
	conn    *client.Conn
	machine *session.Machine
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base url")
	bet := flag.Int64("bet", 50, "bet per player")
	idA := flag.Int64("a", 3001, "first player id")
	idB := flag.Int64("b", 3002, "second player id")
	flag.Parse()

	logger.Init("info", false)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	seats := []*seat{
		{player: domain.Player{ID: *idA, Name: "smokeA"}, choice: domain.Rock},
		{player: domain.Player{ID: *idB, Name: "smokeB"}, choice: domain.Scissors},
	}
	for _, s := range seats {
		token, err := service.GenerateJWT(s.player.ID, s.player.Name)
		if err != nil {
			logger.Fatal("sign token", "error", err)
		}
		bus := session.NewBus()
		s.conn, err = client.Dial(ctx, *baseURL, token, bus)
		if err != nil {
			logger.Fatal("dial", "player", s.player.ID, "error", err)
		}
		defer s.conn.Close()

		s.machine = session.NewMachine(s.player, s.conn, bus)
		s.machine.Attach()
		v, err := s.machine.Resume(ctx)
		if err != nil {
			logger.Fatal("resume", "player", s.player.ID, "error", err)
		}
		if v.Phase == domain.PhaseActive {
			logger.Fatal("player already in a match", "player", s.player.ID, "match_id", v.MatchID)
		}
	}

	for _, s := range seats {
		if err := s.machine.Enqueue(ctx, *bet); err != nil {
			logger.Fatal("enqueue", "player", s.player.ID, "error", err)
		}
	}

	var wg sync.WaitGroup
	results := make([]session.View, len(seats))
	for i, s := range seats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = play(ctx, s)
		}()
	}
	wg.Wait()

	for i, s := range seats {
		v := results[i]
		logger.Info("match finished",
			"player", s.player.ID,
			"match_id", v.MatchID,
			"phase", string(v.Phase),
			"outcome", string(v.Outcome),
			"reason", string(v.Reason),
			"score", []int{v.Wins, v.Losses},
			"payout", v.Payout,
		)
	}
}

// play submits the seat's fixed choice every round until the match ends.
func play(ctx context.Context, s *seat) session.View {
	for {
		v, err := s.machine.Await(ctx, func(v session.View) bool {
			return v.Reason != "" || (v.Phase == domain.PhaseActive && !v.MoveSent)
		})
		if err != nil {
			logger.Fatal("waiting for round", "player", s.player.ID, "error", err)
		}
		if v.Reason != "" {
			return v
		}
		if err := s.machine.SubmitMove(ctx, s.choice); err != nil {
			logger.Fatal("submit move", "player", s.player.ID, "round", v.Round, "error", err)
		}
	}
}
