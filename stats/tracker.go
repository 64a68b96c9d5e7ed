package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RowanDark/subhawk/logging"
	"github.com/RowanDark/subhawk/resolver"
)

type Options struct {
	Logger   *logging.Logger
	Interval time.Duration
}

// Tracker accumulates scan counters: discovery per source, resolution
// outcomes, probes, and vulnerable findings. Safe for concurrent use by the
// worker pool.
type Tracker struct {
	mu         sync.RWMutex
	start      time.Time
	candidates int
	probes     int
	vulnerable int
	findings   int

	resolutions map[resolver.Status]int
	sources     map[string]int

	logger   *logging.Logger
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

type Snapshot struct {
	Candidates  int
	Findings    int
	Vulnerable  int
	Probes      int
	Resolutions map[resolver.Status]int
	Sources     map[string]int
	Duration    time.Duration
}

func NewTracker(opts Options) *Tracker {
	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Tracker{
		logger:      opts.Logger,
		interval:    interval,
		resolutions: make(map[resolver.Status]int),
		sources:     make(map[string]int),
		done:        make(chan struct{}),
	}
}

func (t *Tracker) Start(ctxDone <-chan struct{}) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.start = time.Now()
	t.mu.Unlock()

	if t.logger == nil {
		return
	}

	t.ticker = time.NewTicker(t.interval)
	go func() {
		for {
			select {
			case <-t.ticker.C:
				t.logSnapshot()
			case <-ctxDone:
				return
			case <-t.done:
				return
			}
		}
	}()
}

func (t *Tracker) Stop() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.stopOnce.Do(func() {
		close(t.done)
		if t.ticker != nil {
			t.ticker.Stop()
		}
	})
	return t.Snapshot()
}

// RecordSource notes how many candidates a discovery source contributed.
func (t *Tracker) RecordSource(source string, count int) {
	if t == nil {
		return
	}
	source = strings.TrimSpace(source)
	if source == "" || count <= 0 {
		return
	}
	t.mu.Lock()
	t.sources[source] += count
	t.mu.Unlock()
}

// RecordCandidates sets the deduplicated candidate total for the scan.
func (t *Tracker) RecordCandidates(n int) {
	if t == nil || n < 0 {
		return
	}
	t.mu.Lock()
	t.candidates = n
	t.mu.Unlock()
}

func (t *Tracker) RecordResolution(status resolver.Status) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.resolutions[status]++
	t.mu.Unlock()
}

func (t *Tracker) RecordProbe() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.probes++
	t.mu.Unlock()
}

func (t *Tracker) RecordFinding(vulnerable bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.findings++
	if vulnerable {
		t.vulnerable++
	}
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	resolutions := make(map[resolver.Status]int, len(t.resolutions))
	for status, count := range t.resolutions {
		resolutions[status] = count
	}
	sources := make(map[string]int, len(t.sources))
	for name, count := range t.sources {
		sources[name] = count
	}
	duration := time.Duration(0)
	if !t.start.IsZero() {
		duration = time.Since(t.start)
	}
	return Snapshot{
		Candidates:  t.candidates,
		Findings:    t.findings,
		Vulnerable:  t.vulnerable,
		Probes:      t.probes,
		Resolutions: resolutions,
		Sources:     sources,
		Duration:    duration,
	}
}

// ResolvedRate returns the share of processed candidates that carried a CNAME.
func (s Snapshot) ResolvedRate() float64 {
	if s.Findings == 0 {
		return 0
	}
	return (float64(s.Resolutions[resolver.StatusResolved]) / float64(s.Findings)) * 100
}

func (t *Tracker) logSnapshot() {
	if t == nil || t.logger == nil {
		return
	}
	snapshot := t.Snapshot()
	t.logger.Infof("Scan progress: %s", t.renderSnapshot(snapshot))
}

func (t *Tracker) renderSnapshot(s Snapshot) string {
	parts := []string{
		fmt.Sprintf("checked=%d/%d", s.Findings, s.Candidates),
		fmt.Sprintf("cname=%d", s.Resolutions[resolver.StatusResolved]),
		fmt.Sprintf("probed=%d", s.Probes),
		fmt.Sprintf("vulnerable=%d", s.Vulnerable),
		fmt.Sprintf("duration=%s", s.Duration.Truncate(time.Second)),
	}
	if len(s.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("sources=%s", FormatSourceBreakdown(s.Sources, 5)))
	}
	return strings.Join(parts, " | ")
}

// FormatSourceBreakdown converts a map of source counts into a human readable string.
func FormatSourceBreakdown(sources map[string]int, limit int) string {
	if limit <= 0 {
		limit = len(sources)
	}
	type item struct {
		name  string
		count int
	}
	entries := make([]item, 0, len(sources))
	for name, count := range sources {
		entries = append(entries, item{name: name, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].name < entries[j].name
		}
		return entries[i].count > entries[j].count
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	formatted := make([]string, 0, len(entries))
	for _, entry := range entries {
		formatted = append(formatted, fmt.Sprintf("%s=%d", entry.name, entry.count))
	}
	return strings.Join(formatted, ", ")
}
