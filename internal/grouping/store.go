// Package grouping owns the stateful half of deduplication: the mapping
// from signature to EventGroup and the suppression-window decision.
package grouping

import (
	"container/list"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const (
	DefaultSampleCap          = 3
	DefaultActivityWindow     = 30 * time.Minute
	DefaultActionableMinCount = 2
)

// LastSeenPolicy controls how LastSeen reacts to out-of-order events.
type LastSeenPolicy int

const (
	// LastSeenProcessed overwrites LastSeen with the most recently processed
	// member's timestamp, even if it is older than the current value.
	LastSeenProcessed LastSeenPolicy = iota
	// LastSeenLatest keeps the maximum of the current and incoming timestamps.
	LastSeenLatest
)

// ParseLastSeenPolicy accepts "processed" or "latest".
func ParseLastSeenPolicy(s string) (LastSeenPolicy, error) {
	switch s {
	case "", "processed":
		return LastSeenProcessed, nil
	case "latest":
		return LastSeenLatest, nil
	default:
		return 0, fmt.Errorf("unknown last-seen policy %q", s)
	}
}

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	SampleCap          int
	ActivityWindow     time.Duration
	ActionableMinCount int
	// MaxGroups bounds the number of live groups. When full, the least
	// recently processed group is evicted. Zero means unbounded.
	MaxGroups      int
	LastSeenPolicy LastSeenPolicy
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SampleCap <= 0 {
		o.SampleCap = DefaultSampleCap
	}
	if o.ActivityWindow <= 0 {
		o.ActivityWindow = DefaultActivityWindow
	}
	if o.ActionableMinCount <= 0 {
		o.ActionableMinCount = DefaultActionableMinCount
	}
	if o.MaxGroups < 0 {
		o.MaxGroups = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type entry struct {
	group   models.EventGroup
	sources map[string]struct{}
	elem    *list.Element
}

// Store maps signatures to groups. Safe for concurrent use; every
// operation holds a single mutex for its whole read-modify-write.
type Store struct {
	opts Options

	mu         sync.Mutex
	groups     map[string]*entry
	recency    *list.List // front is the most recently processed signature
	processed  int
	suppressed int
	evicted    int
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	return &Store{
		opts:    opts.withDefaults(),
		groups:  make(map[string]*entry),
		recency: list.New(),
	}
}

// Upsert folds e into the group for signature, creating it if needed.
// pattern is only used when a new group is created.
//
// The returned decision is emit for a new signature, suppress when the
// event lands within window of the group's LastSeen, and emit (rollover)
// once the window has elapsed.
func (s *Store) Upsert(signature, pattern string, e models.Event, window time.Duration) (models.Decision, error) {
	if signature == "" {
		return models.Decision{}, fmt.Errorf("%w: empty signature", models.ErrMalformedEvent)
	}
	if e.OccurredAt.IsZero() {
		return models.Decision{}, fmt.Errorf("%w: occurred_at is required", models.ErrMalformedEvent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++

	ent, ok := s.groups[signature]
	if !ok {
		s.evictIfFull()
		ent = s.create(signature, pattern, e)
		snap := snapshot(ent)
		return models.Decision{Outcome: models.OutcomeEmit, Reason: models.EmitNew, Group: &snap}, nil
	}

	elapsed := e.OccurredAt.Sub(ent.group.LastSeen)
	s.fold(ent, e)
	snap := snapshot(ent)

	if elapsed < window {
		s.suppressed++
		return models.Decision{Outcome: models.OutcomeSuppress, Group: &snap}, nil
	}
	return models.Decision{Outcome: models.OutcomeEmit, Reason: models.EmitRollover, Group: &snap}, nil
}

func (s *Store) create(signature, pattern string, e models.Event) *entry {
	ent := &entry{
		group: models.EventGroup{
			Signature: signature,
			Kind:      e.Kind,
			Pattern:   pattern,
			Severity:  e.Severity,
			Count:     1,
			FirstSeen: e.OccurredAt,
			LastSeen:  e.OccurredAt,
			Samples:   []models.Event{e},
		},
		sources: make(map[string]struct{}),
	}
	addSource(ent, e.Source)
	ent.elem = s.recency.PushFront(signature)
	s.groups[signature] = ent
	return ent
}

func (s *Store) fold(ent *entry, e models.Event) {
	g := &ent.group
	g.Count++
	g.Severity = models.MaxSeverity(g.Severity, e.Severity)
	if e.OccurredAt.Before(g.FirstSeen) {
		g.FirstSeen = e.OccurredAt
	}
	if s.opts.LastSeenPolicy == LastSeenProcessed || e.OccurredAt.After(g.LastSeen) {
		g.LastSeen = e.OccurredAt
	}
	addSource(ent, e.Source)
	if len(g.Samples) < s.opts.SampleCap {
		g.Samples = append(g.Samples, e)
	}
	s.recency.MoveToFront(ent.elem)
}

func (s *Store) evictIfFull() {
	if s.opts.MaxGroups == 0 || len(s.groups) < s.opts.MaxGroups {
		return
	}
	oldest := s.recency.Back()
	if oldest == nil {
		return
	}
	sig := s.recency.Remove(oldest).(string)
	delete(s.groups, sig)
	s.evicted++
}

func addSource(ent *entry, source string) {
	if source == "" {
		return
	}
	if _, seen := ent.sources[source]; seen {
		return
	}
	ent.sources[source] = struct{}{}
	ent.group.Sources = append(ent.group.Sources, source)
}

// Get returns a snapshot of the group for signature.
func (s *Store) Get(signature string) (models.EventGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.groups[signature]
	if !ok {
		return models.EventGroup{}, false
	}
	return snapshot(ent), true
}

// Len returns the number of live groups.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

// Active returns groups whose LastSeen is within activityWindow of now,
// ordered by count descending. A non-positive window uses the store default.
func (s *Store) Active(activityWindow time.Duration) []models.EventGroup {
	if activityWindow <= 0 {
		activityWindow = s.opts.ActivityWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(activityWindow)
}

func (s *Store) activeLocked(activityWindow time.Duration) []models.EventGroup {
	now := s.opts.Now()
	out := []models.EventGroup{}
	for _, ent := range s.groups {
		if now.Sub(ent.group.LastSeen) < activityWindow {
			out = append(out, snapshot(ent))
		}
	}
	sortByCount(out)
	return out
}

// Actionable returns groups with at least minCount members, ordered by
// count descending. A non-positive minCount uses the store default.
func (s *Store) Actionable(minCount int) []models.EventGroup {
	if minCount <= 0 {
		minCount = s.opts.ActionableMinCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actionableLocked(minCount)
}

func (s *Store) actionableLocked(minCount int) []models.EventGroup {
	out := []models.EventGroup{}
	for _, ent := range s.groups {
		if ent.group.Count >= minCount {
			out = append(out, snapshot(ent))
		}
	}
	sortByCount(out)
	return out
}

// All returns every live group ordered by count descending.
func (s *Store) All() []models.EventGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actionableLocked(1)
}

// Summary reports the store's counters. Noise and rejection tallies are
// owned by the engine and left zero here.
func (s *Store) Summary() models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.Summary{
		TotalEntries:       s.processed,
		TotalProcessed:     s.processed,
		UniqueSignatures:   len(s.groups),
		SuppressedCount:    s.suppressed,
		SuppressionRatePct: Percent(s.suppressed, s.processed),
		ActiveGroupCount:   len(s.activeLocked(s.opts.ActivityWindow)),
		ActionableCount:    len(s.actionableLocked(s.opts.ActionableMinCount)),
		EvictedCount:       s.evicted,
	}
}

// Percent returns part/total as a percentage rounded to one decimal.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func snapshot(ent *entry) models.EventGroup {
	g := ent.group
	g.Sources = append([]string{}, ent.group.Sources...)
	g.Samples = append([]models.Event{}, ent.group.Samples...)
	return g
}

func sortByCount(groups []models.EventGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		if !groups[i].LastSeen.Equal(groups[j].LastSeen) {
			return groups[i].LastSeen.After(groups[j].LastSeen)
		}
		return groups[i].Signature < groups[j].Signature
	})
}
