package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/unravel/internal/config"
	"github.com/ShayCichocki/unravel/internal/engine"
	"github.com/ShayCichocki/unravel/internal/oracle"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

var (
	solveObjective string
	solveMaxDepth  int
	solveNoArchive bool
	solveDebugLog  string
)

var solveCmd = &cobra.Command{
	Use:   "solve <problem>",
	Short: "Solve a problem with recursive decomposition",
	Long: `Solve a problem by recursive decomposition.

The engine asks the oracle for a program, executes it, and lets the
program recurse into sub-problems until a result is produced or the
recursion budget runs out.

A running solve can be stopped from another terminal by creating a stop
file in the session signal directory (printed at startup), or with Ctrl-C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSolve(strings.Join(args, " "))
	},
}

func init() {
	solveCmd.Flags().StringVarP(&solveObjective, "objective", "o", "", "What a solution must achieve")
	solveCmd.Flags().IntVar(&solveMaxDepth, "max-depth", 0, "Override the recursion depth limit")
	solveCmd.Flags().BoolVar(&solveNoArchive, "no-archive", false, "Skip archiving the session timeline")
	solveCmd.Flags().StringVar(&solveDebugLog, "debug-log", "", "Write engine debug output to this file")
}

// runSolve wires config, oracle, archive, and stop signals together and
// runs one solve session.
func runSolve(problemStatement string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if solveMaxDepth > 0 {
		cfg.Engine.MaxDepth = solveMaxDepth
	}

	apiKey, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return err
	}

	client, err := oracle.NewAnthropicClient(oracle.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("create oracle client: %w", err)
	}

	opts := []engine.Option{
		engine.WithUserInput(promptUser),
		engine.WithTraceSink(func(text string) {
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "  [reasoning] %s\n", text)
		}),
	}

	if solveDebugLog != "" {
		logger, lerr := engine.NewDebugLogger(solveDebugLog)
		if lerr != nil {
			return fmt.Errorf("open debug log: %w", lerr)
		}
		defer logger.Close()
		opts = append(opts, engine.WithLogger(logger))
	}

	var store *timeline.Store
	if cfg.Archive.Enabled && !solveNoArchive {
		dbPath := cfg.Archive.Path
		if dbPath == "" {
			dbPath = timeline.DefaultDBPath()
		}
		store, err = timeline.OpenStore(dbPath)
		if err != nil {
			color.Yellow("timeline archive unavailable: %v", err)
		} else {
			defer store.Close()
			opts = append(opts, engine.WithStore(store))
		}
	}

	solver := engine.New(cfg, client, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		color.Yellow("\ninterrupted, stopping...")
		cancel()
	}()

	signalDir := sessionSignalDir(solver.SessionID())
	if watcher, werr := engine.NewSignalWatcher(signalDir); werr == nil {
		defer watcher.Close()
		watcher.Watch(cancel)
		color.New(color.FgHiBlack).Printf("stop signal dir: %s\n", signalDir)
	}

	color.Cyan("solving: %s", problemStatement)

	result, err := solver.Solve(ctx, problemStatement, solveObjective)
	summary := engine.Summarize(solver.Timeline())
	if err != nil {
		color.Red("failed: %v", err)
		color.New(color.FgHiBlack).Printf("session %s: %s\n", solver.SessionID(), summary)
		return err
	}

	color.Green("result:")
	fmt.Println(result)
	color.New(color.FgHiBlack).Printf("session %s: %s\n", solver.SessionID(), summary)

	in, out := client.Tracker().Total()
	color.New(color.FgHiBlack).Printf("oracle: %d calls, %d in / %d out tokens\n", client.Tracker().Calls(), in, out)
	return nil
}

// promptUser reads one line from stdin in answer to a generated program's
// ask step.
func promptUser(prompt string) (string, error) {
	color.Magenta("? %s", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// sessionSignalDir returns the signal directory for a session.
func sessionSignalDir(sessionID string) string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "unravel", sessionID)
}
