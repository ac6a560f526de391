// Command importer runs one import of a delimited product file into the
// configured store and prints the outcome as JSON.
//
//	importer [-file products.csv] [-flat]
//
// Settings come from the environment (see internal/config); flags override
// IMPORT_FILE_PATH and IMPORT_STRICT.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/catalogimport/internal/app"
	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "", "input file (overrides IMPORT_FILE_PATH)")
	flat := flag.Bool("flat", false, "treat column names as plain attribute codes")
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return exitUsage
	}
	if *flat {
		cfg.Import.Strict = false
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return exitFailed
	}
	defer a.Close()

	pcfg := a.PipelineConfig(*file)
	out, err := importFile(ctx, a, pcfg)
	if out != nil {
		printOutcome(out)
	}

	var ce *core.ConfigurationError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce):
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		return exitUsage
	case errors.Is(err, core.ErrRunCancelled):
		slog.Warn("import cancelled", "file", pcfg.FilePath)
		return exitCancelled
	default:
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		return exitFailed
	}
}

// importFile runs the pipeline in a single store session.
func importFile(ctx context.Context, a *app.App, cfg core.Config) (*core.ImportOutcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	session, err := a.Opener.Open(ctx)
	if err != nil {
		return nil, core.Fatal("open session", err)
	}
	defer session.Close(context.WithoutCancel(ctx))

	deps := core.SessionDependencies(session, a.Updater)
	deps.Progress = func(p core.Progress) {
		slog.Info("progress",
			"state", p.State,
			"records", p.Records,
			"percent", p.Percent,
		)
	}

	p, err := core.New(cfg, deps)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	exec := core.NewStepExecution()
	err = p.Run(ctx, exec)
	return p.Outcome(exec, time.Since(start), err), err
}

func printOutcome(out *core.ImportOutcome) {
	for _, w := range out.Warnings {
		slog.Warn("record skipped", "line", w.Line(), "message", w.Message)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("encode outcome", "error", err)
	}
}
