package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"spacegrid/internal/config"
	"spacegrid/internal/database"
	"spacegrid/internal/export"
	"spacegrid/internal/models"
	"spacegrid/internal/service"
	"spacegrid/internal/slots"
	"spacegrid/internal/ticks"
	"spacegrid/internal/timeutil"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		dateStr    = flag.String("date", "", "date to export, YYYY-MM-DD (default: today in the fallback zone)")
		slot       = flag.Int("slot", 0, "slot minutes: 15, 30 or 60 (default from config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	date, err := resolveDate(*dateStr, cfg.Engine.FallbackZone)
	if err != nil {
		return err
	}
	minutes := models.SlotMinutes(cfg.Engine.DefaultSlotMinutes)
	if *slot != 0 {
		minutes = models.SlotMinutes(*slot)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	schedule := service.NewScheduleService(db, nil, service.ScheduleOptions{
		Policy: slots.Policy{BookingOverridesBlackout: cfg.Engine.BookingOverridesBlackout},
		Ticks: ticks.Options{
			FallbackZone: cfg.Engine.FallbackZone,
			RangeStart:   cfg.Engine.DefaultRangeStart,
			RangeEnd:     cfg.Engine.DefaultRangeEnd,
		},
	}, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	grid, err := schedule.DayGrid(ctx, date, minutes, time.Time{})
	if err != nil {
		return err
	}

	path, err := export.SaveGrid(cfg.Exports.Path, grid)
	if err != nil {
		return err
	}
	logger.Info().Str("file_path", path).Msg("Excel file created")
	return nil
}

func resolveDate(raw, zone string) (timeutil.Date, error) {
	if raw != "" {
		return timeutil.ParseDate(raw)
	}
	loc, err := timeutil.LoadZone(zone)
	if err != nil {
		return timeutil.Date{}, err
	}
	return timeutil.DateOf(time.Now(), loc), nil
}
