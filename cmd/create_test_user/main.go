package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"rps_arena/internal/db"
	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
)

func main() {
	name := flag.String("name", "tester", "player name")
	balance := flag.Int64("balance", 1000, "opening balance")
	flag.Parse()

	logger.Init("info", false)

	// expects DATABASE_URL and JWT_SECRET env vars
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	repo := repository.NewPlayerRepository(pool)
	ctx := context.Background()

	a := &domain.Account{Name: *name, Balance: *balance}
	if err := repo.Create(ctx, a); err != nil {
		logger.Fatal("create player failed", "error", err)
	}

	// verify read
	stored, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		logger.Fatal("get by id failed", "error", err)
	}
	logger.Info("player created", "id", stored.ID, "name", stored.Name, "balance", stored.Balance)

	service.InitJWT(secret)
	token, err := service.GenerateJWT(stored.ID, stored.Name)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	fmt.Println(token)
}
