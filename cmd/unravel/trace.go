package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/unravel/internal/config"
	"github.com/ShayCichocki/unravel/internal/timeline"
)

var (
	traceType string
	traceTurn int
	traceDB   string
)

var traceCmd = &cobra.Command{
	Use:   "trace [session-id]",
	Short: "Inspect archived solve sessions",
	Long: `Trace reads the session archive. Without arguments it lists archived
sessions; given a session id it prints that session's events in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runTraceList()
		}
		return runTraceSession(args[0])
	},
}

func init() {
	traceCmd.Flags().StringVar(&traceType, "type", "", "Only show events of this type")
	traceCmd.Flags().IntVar(&traceTurn, "turn", 0, "Only show events from this turn")
	traceCmd.Flags().StringVar(&traceDB, "db", "", "Path to the session archive database")
}

func openTraceStore() (*timeline.Store, error) {
	dbPath := traceDB
	if dbPath == "" {
		cfg, err := config.Load()
		if err == nil && cfg.Archive.Path != "" {
			dbPath = cfg.Archive.Path
		} else {
			dbPath = timeline.DefaultDBPath()
		}
	}
	return timeline.OpenStore(dbPath)
}

func runTraceList() error {
	store, err := openTraceStore()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No archived sessions.")
		return nil
	}

	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)
	for _, sess := range sessions {
		status := color.GreenString("completed")
		if sess.Error != "" {
			status = color.RedString("failed")
		} else if sess.FinishedAt == nil {
			status = color.YellowString("unfinished")
		}

		bold.Printf("%s", sess.ID)
		fmt.Printf("  %s  %d events\n", status, sess.EventCount)
		fmt.Printf("  %s\n", truncate(sess.Problem, 100))
		dim.Printf("  started %s", sess.StartedAt.Local().Format(time.RFC3339))
		if sess.FinishedAt != nil {
			dim.Printf(", took %s", sess.FinishedAt.Sub(sess.StartedAt).Round(time.Millisecond))
		}
		fmt.Println()
	}
	return nil
}

func runTraceSession(sessionID string) error {
	store, err := openTraceStore()
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	events, err := store.SessionEvents(sessionID, timeline.EventType(traceType), traceTurn)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No events match.")
		return nil
	}

	dim := color.New(color.FgHiBlack)
	for _, ev := range events {
		dim.Printf("%s ", ev.Timestamp.Local().Format("15:04:05.000"))
		fmt.Printf("%-20s turn=%d depth=%d", traceTypeColor(ev.Type), ev.Turn, ev.Depth)
		if wf := ev.Refs["workflow"]; wf != "" {
			dim.Printf(" wf=%.8s", wf)
		}
		fmt.Println()
		if len(ev.Payload) > 0 {
			payload, _ := json.Marshal(ev.Payload)
			fmt.Printf("    %s\n", truncate(string(payload), 200))
		}
	}
	return nil
}

func traceTypeColor(t timeline.EventType) string {
	switch t {
	case timeline.EventWorkflowComplete:
		return color.GreenString(string(t))
	case timeline.EventWorkflowError:
		return color.RedString(string(t))
	case timeline.EventRecursiveCall:
		return color.CyanString(string(t))
	default:
		return string(t)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
