package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"spacegrid/internal/database"
	"spacegrid/internal/seed"
	"spacegrid/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		spacesPath = flag.String("spaces", "configs/spaces.yaml", "path to spaces.yaml")
		dbPath     = flag.String("db", "./data/spacegrid.db", "path to sqlite db")
	)
	flag.Parse()

	spaces, err := seed.LoadSpacesFile(*spacesPath)
	if err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := seed.Apply(ctx, service.NewSpaceService(db, nil, &logger), spaces)
	if err != nil {
		return err
	}

	fmt.Printf("done: created=%d updated=%d\n", res.Created, res.Updated)
	return nil
}
