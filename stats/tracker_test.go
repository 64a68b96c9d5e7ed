package stats

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/subhawk/logging"
	"github.com/RowanDark/subhawk/resolver"
)

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker(Options{})
	tracker.RecordSource("crt.sh", 3)
	tracker.RecordSource("wordlist", 2)
	tracker.RecordCandidates(4)
	tracker.RecordResolution(resolver.StatusResolved)
	tracker.RecordResolution(resolver.StatusNXDomain)
	tracker.RecordProbe()
	tracker.RecordFinding(true)
	tracker.RecordFinding(false)

	snapshot := tracker.Snapshot()
	if snapshot.Candidates != 4 || snapshot.Findings != 2 || snapshot.Vulnerable != 1 {
		t.Fatalf("unexpected snapshot values: %+v", snapshot)
	}
	if snapshot.Resolutions[resolver.StatusResolved] != 1 || snapshot.Resolutions[resolver.StatusNXDomain] != 1 {
		t.Fatalf("unexpected resolution counters: %+v", snapshot.Resolutions)
	}
	if snapshot.Probes != 1 {
		t.Fatalf("unexpected probe counter: %d", snapshot.Probes)
	}
	if snapshot.Sources["crt.sh"] != 3 || snapshot.Sources["wordlist"] != 2 {
		t.Fatalf("unexpected source counters: %+v", snapshot.Sources)
	}
	if snapshot.ResolvedRate() != 50 {
		t.Fatalf("unexpected resolved rate: %f", snapshot.ResolvedRate())
	}
}

func TestTrackerLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: logging.LevelInfo, Console: &buf, NoColor: true})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	tracker := NewTracker(Options{Logger: logger, Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx.Done())
	tracker.RecordCandidates(1)
	tracker.RecordResolution(resolver.StatusResolved)
	tracker.RecordFinding(false)
	time.Sleep(5 * time.Millisecond)
	cancel()
	snapshot := tracker.Stop()
	tracker.logSnapshot()

	if snapshot.Findings == 0 {
		t.Fatalf("expected snapshot to reflect findings")
	}
	if !strings.Contains(buf.String(), "Scan progress") {
		t.Fatalf("expected log output, got %s", buf.String())
	}
}

func TestFormatSourceBreakdown(t *testing.T) {
	breakdown := map[string]int{"b": 2, "a": 5, "c": 1}
	formatted := FormatSourceBreakdown(breakdown, 2)
	if !strings.Contains(formatted, "a=5") || !strings.Contains(formatted, "b=2") {
		t.Fatalf("unexpected breakdown: %s", formatted)
	}
}
