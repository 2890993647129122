package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"InterviewNotifier/internal/app"
	"InterviewNotifier/internal/config"
	"InterviewNotifier/internal/logging"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "path to the scheduling CSV export")
		fromStore  = flag.Bool("from-store", false, "read rows back from the outcome store instead of a file")
		force      = flag.Bool("force", false, "resend rounds even when already processed")
		configPath = flag.String("config", "", "path to a YAML config file")
	)
	flag.Parse()

	// A bare positional path works too: interviewnotifier sheet.csv
	if *inputPath == "" && flag.NArg() > 0 {
		*inputPath = flag.Arg(0)
	}

	ctx := context.Background()
	cfg := config.Load(*configPath)
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, app.Options{
		InputPath:   *inputPath,
		FromStore:   *fromStore,
		ForceResend: *force,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "interviewnotifier: %v\n", err)
		os.Exit(1)
	}

	summary, err := application.Run(ctx)
	if err != nil {
		logger.Error("batch aborted", "error", err)
		os.Exit(1)
	}

	fmt.Printf("rows=%d units=%d sent=%d failed=%d queued=%d skipped=%d already_processed=%d mean_tat=%.0fs\n",
		summary.RowsSeen,
		summary.UnitsSeen,
		summary.Sent,
		summary.Failed,
		summary.Queued,
		summary.Skipped,
		summary.AlreadyProcessed,
		summary.MeanTATSeconds)
}
