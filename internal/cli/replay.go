package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/internal/ingest"
	"github.com/kiranshivaraju/noisegate/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const maxLineBytes = 1 << 20

type replayOptions struct {
	output  string
	top     int
	verbose bool
}

func newReplayCommand(v *viper.Viper) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay NDJSON events through the engine and print a report",
		Long: `Read one JSON event per line from a file (or stdin when the file is
omitted or "-"), run every event through a fresh engine and print the
text report.

Each line uses the same fields as POST /api/v1/events:
  {"occurred_at":"2024-02-17T01:00:00Z","kind":"alert","name":"HighErrorRate","severity":"critical","source":"api"}

Activity is measured against the newest event timestamp, not the wall clock.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args, v, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write the JSON report to this file")
	cmd.Flags().IntVar(&opts.top, "top", report.DefaultTopPatterns, "Number of top patterns to print")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every decision to stderr")
	bindEngineFlags(cmd.Flags(), v)
	return cmd
}

func runReplay(cmd *cobra.Command, args []string, v *viper.Viper, opts replayOptions) error {
	ec, err := loadEngineConfig(v)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	engineCfg, err := ec.Build(logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	clock := &replayClock{}
	engineCfg.Store.Now = clock.Now
	eng := engine.New(engineCfg)

	in, closeIn, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	stats, err := replay(cmd.Context(), in, eng, clock, logger)
	if err != nil {
		return err
	}
	if stats.unparseable > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d unparseable lines\n", stats.unparseable)
	}

	rep := report.Build(eng, report.Options{
		ActivityWindow:     ec.ActivityWindow,
		ActionableMinCount: ec.ActionableMinCount,
		TopPatterns:        opts.top,
		Now:                clock.Now,
	})
	if err := report.WriteText(cmd.OutOrStdout(), rep, opts.top); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if opts.output != "" {
		if err := writeJSONFile(opts.output, rep); err != nil {
			return err
		}
		logger.Info("json report written", "path", opts.output)
	}
	return nil
}

type replayStats struct {
	lines       int
	unparseable int
}

// replay feeds every NDJSON line from r into eng in order.
func replay(ctx context.Context, r io.Reader, eng *engine.Engine, clock *replayClock, logger *slog.Logger) (replayStats, error) {
	var stats replayStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.lines++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var p ingest.EventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			stats.unparseable++
			logger.Warn("skipping unparseable line", "line", stats.lines, "error", err)
			continue
		}

		ev := p.Event()
		if ev.ID == "" {
			ev.ID = fmt.Sprintf("line-%d", stats.lines)
		}
		d, err := eng.Process(ev)
		if err != nil {
			continue
		}
		// Only accepted events advance replay time.
		clock.Observe(ev.OccurredAt)
		logger.Debug("decision", "line", stats.lines, "outcome", d.Outcome.String(), "reason", d.Reason)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read events: %w", err)
	}
	return stats, nil
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open events file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeJSONFile(path string, rep report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json report: %w", err)
	}
	if err := report.WriteJSON(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// replayClock reports the newest event timestamp seen so far, so activity
// windows are relative to the replayed stream rather than the wall clock.
type replayClock struct {
	mu     sync.Mutex
	latest time.Time
}

func (c *replayClock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.latest) {
		c.latest = t
	}
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest.IsZero() {
		return time.Now().UTC()
	}
	return c.latest
}
