package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rps_arena/internal/db"
	"rps_arena/internal/logger"
)

func main() {
	apply := flag.Bool("apply", false, "apply migrations; without it they are only listed")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	logger.Init("info", false)

	files, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal("read migrations dir", "dir", *dir, "error", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	if !*apply {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	pool := db.Connect(dsn)
	defer pool.Close()

	ctx := context.Background()
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("apply migration", "file", name, "error", err)
		}
		logger.Info("migration applied", "file", name)
	}
}
