package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/noisegate/internal/loki"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// CursorStore remembers how far the poller has read each stream.
type CursorStore interface {
	GetLokiCursor(ctx context.Context, tenantID uuid.UUID, stream string) (time.Time, bool, error)
	SetLokiCursor(ctx context.Context, tenantID uuid.UUID, stream string, ts time.Time) error
}

// PollerConfig configures a Loki poller for one tenant and one query.
type PollerConfig struct {
	TenantID uuid.UUID
	Query    string
	Interval time.Duration
	Lookback time.Duration
	Limit    int
}

// Poller periodically queries Loki and dispatches new log lines.
type Poller struct {
	cfg        PollerConfig
	client     loki.Client
	cursors    CursorStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	// IDs of lines already dispatched whose timestamp equals seenAt.
	seenAt time.Time
	seen   map[string]struct{}
}

func NewPoller(cfg PollerConfig, client loki.Client, cursors CursorStore, dispatcher *Dispatcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:        cfg,
		client:     client,
		cursors:    cursors,
		dispatcher: dispatcher,
		logger:     logger.With("component", "loki_poller", "tenant_id", cfg.TenantID),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls once immediately and then on every interval until ctx is done.
// Poll errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	n, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("loki poll failed", "error", err)
		return
	}
	if n > 0 {
		p.logger.Debug("loki poll", "lines", n)
	}
}

// Poll reads lines from the stored cursor onwards, dispatches the ones not
// yet seen and moves the cursor to the newest line. The cursor bound is
// inclusive so lines sharing the newest timestamp are not lost when a poll
// is cut off by Limit; lines already dispatched at that timestamp are
// dropped by their deterministic ID. It returns the number of lines
// dispatched.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.now()
	start := end.Add(-p.cfg.Lookback)

	cursor, found, err := p.cursors.GetLokiCursor(ctx, p.cfg.TenantID, p.cfg.Query)
	if err != nil {
		p.logger.Warn("read loki cursor failed, using lookback", "error", err)
	} else if found && cursor.After(start) {
		start = cursor
	}
	if !start.Before(end) {
		return 0, nil
	}

	lines, err := p.client.QueryRange(ctx, loki.QueryRangeRequest{
		Query:     p.cfg.Query,
		Start:     start,
		End:       end,
		Limit:     p.cfg.Limit,
		Direction: "forward",
	})
	if err != nil {
		return 0, fmt.Errorf("query loki: %w", err)
	}
	if len(lines) == 0 {
		return 0, nil
	}

	events := make([]models.Event, 0, len(lines))
	newest := lines[0].Timestamp
	for _, line := range lines {
		if line.Timestamp.After(newest) {
			newest = line.Timestamp
		}
		ev := LogLineToEvent(line)
		if p.alreadySeen(ev) {
			continue
		}
		events = append(events, ev)
	}

	next := newest
	if len(events) == 0 && p.cfg.Limit > 0 && len(lines) >= p.cfg.Limit && !newest.After(start) {
		// A full page of already seen lines at one timestamp; step past it.
		p.logger.Warn("loki page holds only seen lines, skipping timestamp",
			"timestamp", newest, "limit", p.cfg.Limit)
		next = newest.Add(time.Nanosecond)
	}

	if len(events) > 0 {
		p.dispatcher.Dispatch(ctx, p.cfg.TenantID, events)
		p.markSeen(newest, events)
	}

	if err := p.cursors.SetLokiCursor(ctx, p.cfg.TenantID, p.cfg.Query, next); err != nil {
		return len(events), fmt.Errorf("store loki cursor: %w", err)
	}
	return len(events), nil
}

func (p *Poller) alreadySeen(ev models.Event) bool {
	if !ev.OccurredAt.Equal(p.seenAt) {
		return false
	}
	_, ok := p.seen[ev.ID]
	return ok
}

// markSeen records the dispatched events stamped at newest. Older
// timestamps are behind the cursor and need no tracking.
func (p *Poller) markSeen(newest time.Time, events []models.Event) {
	if !newest.Equal(p.seenAt) || p.seen == nil {
		p.seenAt = newest
		p.seen = make(map[string]struct{})
	}
	for _, ev := range events {
		if ev.OccurredAt.Equal(newest) {
			p.seen[ev.ID] = struct{}{}
		}
	}
}

// LogLineToEvent converts a Loki line into a log event. Missing or
// unrecognized levels become info. The ID is derived from the line so a
// re-read line keeps its ID.
func LogLineToEvent(line models.LogLine) models.Event {
	severity, err := models.ParseSeverity(line.Level)
	if err != nil {
		severity = models.SeverityInfo
	}

	source := firstNonEmpty(line.Labels, "service", "app", "job")
	id := uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(fmt.Sprintf("%d|%s|%s", line.Timestamp.UnixNano(), source, line.Message)))

	return models.Event{
		ID:         id.String(),
		OccurredAt: line.Timestamp,
		Kind:       models.KindLogLine,
		Severity:   severity,
		Source:     source,
		Message:    line.Message,
		Labels:     copyLabels(line.Labels),
	}
}
