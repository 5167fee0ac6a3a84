package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/tokenlab/abm-engine/internal/jobs"
)

type fakeSource struct {
	infos map[string]jobs.Info
	calls map[string]int
}

func (f *fakeSource) Status(jobID string) (jobs.Info, error) {
	f.calls[jobID]++
	info, ok := f.infos[jobID]
	if !ok {
		return jobs.Info{}, &jobs.NotFoundError{JobID: jobID}
	}
	// Second poll onward, report completion.
	if f.calls[jobID] >= 2 {
		info.Status = jobs.Completed
	}
	return info, nil
}

func (f *fakeSource) Stats() jobs.Stats {
	return jobs.Stats{Total: len(f.infos)}
}

func TestStreamJobEmitsProgressThenDone(t *testing.T) {
	src := &fakeSource{
		infos: map[string]jobs.Info{"abm_x": {JobID: "abm_x", Status: jobs.Running}},
		calls: map[string]int{},
	}
	streamer := NewStreamer(src)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := streamer.StreamJob(ctx, "abm_x", 5*time.Millisecond)

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventDone {
			break
		}
	}

	if len(kinds) < 2 || kinds[0] != EventProgress || kinds[len(kinds)-1] != EventDone {
		t.Fatalf("expected progress...done sequence, got %v", kinds)
	}
}

func TestStreamJobUnknownEmitsError(t *testing.T) {
	src := &fakeSource{infos: map[string]jobs.Info{}, calls: map[string]int{}}
	streamer := NewStreamer(src)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events := streamer.StreamJob(ctx, "missing", 5*time.Millisecond)
	ev, ok := <-events
	if !ok || ev.Kind != EventError {
		t.Fatalf("expected error event, got %+v ok=%v", ev, ok)
	}
}

func TestStreamJobsStopsWhenAllTerminal(t *testing.T) {
	src := &fakeSource{
		infos: map[string]jobs.Info{
			"a": {JobID: "a", Status: jobs.Running},
			"b": {JobID: "b", Status: jobs.Running},
		},
		calls: map[string]int{},
	}
	streamer := NewStreamer(src)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events := streamer.StreamJobs(ctx, []string{"a", "b"}, 5*time.Millisecond)

	count := 0
	for range events {
		count++
	}
	if count == 0 {
		t.Fatalf("expected at least one batch_progress event")
	}
}

func TestStreamQueueStatsRunsUntilCancelled(t *testing.T) {
	src := &fakeSource{infos: map[string]jobs.Info{}, calls: map[string]int{}}
	streamer := NewStreamer(src)

	ctx, cancel := context.WithCancel(context.Background())
	events := streamer.StreamQueueStats(ctx, 5*time.Millisecond)

	<-events
	<-events
	cancel()

	for range events {
		// drain until closed
	}
}
