package main

import (
	"flag"
	"fmt"
	"os"

	"authgrid/api/internal/config"
	"authgrid/api/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := database.Migrate(cfg.Postgres.DSN, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
