// Command history maintains the local print job history database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/domain/shared"
	"github.com/cravings/printagent/internal/infrastructure/config"
	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/cravings/printagent/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dsn := fs.String("dsn", "", "History database (default: history.dsn from config)")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	fs.Usage = func() { printUsage(stdout) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Get command and arguments
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stdout)
		return 1
	}
	command := rest[0]

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Error("Failed to load configuration", zap.Error(err))
			return 1
		}
		*dsn = cfg.History.DSN
	}

	// Opening the database applies the schema, which is all migrate does.
	db, err := persistence.NewDatabase(persistence.DatabaseConfig{DSN: *dsn, LogLevel: "silent"}, log)
	if err != nil {
		log.Error("Failed to open history database", zap.String("dsn", *dsn), zap.Error(err))
		return 1
	}
	defer db.Close()
	repo := persistence.NewGormHistoryRepository(db.DB)
	ctx := context.Background()

	switch command {
	case "migrate":
		fmt.Fprintf(stdout, "History schema is up to date (%s)\n", *dsn)

	case "list":
		listFS := flag.NewFlagSet("list", flag.ContinueOnError)
		listFS.SetOutput(stderr)
		limit := listFS.Int("limit", 20, "Maximum number of jobs")
		kind := listFS.String("kind", "", "Only kot or bill")
		state := listFS.String("state", "", "Only completed, failed or timed_out")
		if err := listFS.Parse(rest[1:]); err != nil {
			return 1
		}
		if *kind != "" && !printing.DocumentKind(*kind).IsValid() {
			fmt.Fprintf(stderr, "Invalid kind: %s\n", *kind)
			return 1
		}
		if *state != "" && !printing.JobState(*state).IsTerminal() {
			fmt.Fprintf(stderr, "Invalid state: %s\n", *state)
			return 1
		}
		records, err := repo.Recent(ctx, printing.HistoryFilter{
			Kind:  printing.DocumentKind(*kind),
			State: printing.JobState(*state),
			Limit: *limit,
		})
		if err != nil {
			log.Error("Failed to list history", zap.Error(err))
			return 1
		}
		writeRecords(stdout, records)

	case "show":
		if len(rest) < 2 {
			fmt.Fprintln(stderr, "Job ID required. Usage: history show <id>")
			return 1
		}
		id, err := uuid.Parse(rest[1])
		if err != nil {
			fmt.Fprintf(stderr, "Invalid job ID: %s\n", rest[1])
			return 1
		}
		record, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				fmt.Fprintf(stderr, "Job %s not found\n", id)
			} else {
				log.Error("Failed to load job", zap.Error(err))
			}
			return 1
		}
		writeRecord(stdout, *record)

	case "prune":
		if len(rest) < 2 {
			fmt.Fprintln(stderr, "Age required. Usage: history prune <duration>")
			return 1
		}
		age, err := time.ParseDuration(rest[1])
		if err != nil || age <= 0 {
			fmt.Fprintf(stderr, "Invalid age: %s\n", rest[1])
			return 1
		}
		deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-age))
		if err != nil {
			log.Error("Failed to prune history", zap.Error(err))
			return 1
		}
		fmt.Fprintf(stdout, "Deleted %d job(s)\n", deleted)

	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stdout)
		return 1
	}
	return 0
}

func writeRecords(w io.Writer, records []printing.JobRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No jobs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTRATEGY\tSTATE\tDURATION\tFINISHED\tREASON")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Strategy, r.State,
			r.Duration.Round(time.Millisecond),
			r.FinishedAt.Local().Format(time.DateTime),
			r.FailureReason)
	}
	_ = tw.Flush()
}

func writeRecord(w io.Writer, r printing.JobRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "URL:\t%s\n", r.URL)
	fmt.Fprintf(tw, "Kind:\t%s\n", r.Kind)
	fmt.Fprintf(tw, "Strategy:\t%s\n", r.Strategy)
	fmt.Fprintf(tw, "State:\t%s\n", r.State)
	fmt.Fprintf(tw, "Succeeded:\t%s\n", strconv.FormatBool(r.Succeeded()))
	if r.FailureCode != "" {
		fmt.Fprintf(tw, "Failure:\t%s: %s\n", r.FailureCode, r.FailureReason)
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "Created:\t%s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Finished:\t%s\n", r.FinishedAt.Local().Format(time.DateTime))
	_ = tw.Flush()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Print Job History Tool

Usage:
  history [flags] <command> [arguments]

Commands:
  migrate               Create or update the history schema
  list [flags]          List recent jobs, newest first
      -limit n          Maximum number of jobs (default 20)
      -kind kot|bill    Only one document kind
      -state s          Only completed, failed or timed_out
  show <id>             Show one job
  prune <duration>      Delete jobs older than duration, e.g. 720h

Flags:
  -dsn string           History database (default: history.dsn from config)
  -log-level string     Log level: debug, info, warn, error (default: warn)

Environment Variables:
  PRINTAGENT_HISTORY_DSN, PRINTAGENT_PRINT_DATA_DIR

Examples:
  # Show the last failed bills
  history list -kind bill -state failed

  # Drop everything older than 30 days
  history prune 720h`)
}
