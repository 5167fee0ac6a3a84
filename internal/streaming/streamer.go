// Package streaming implements the polling/termination logic behind
// progress updates for one job, a batch of jobs, or the whole queue. The
// actual wire framing (SSE, WebSocket) is out of scope here: these types
// only decide what to emit and when to stop, as plain Go values a
// boundary layer can serialize however it likes.
package streaming

import (
	"context"
	"time"

	"github.com/tokenlab/abm-engine/internal/jobs"
)

// JobSource is the subset of *jobs.Queue the streamer depends on,
// explicitly injected rather than looked up by type.
type JobSource interface {
	Status(jobID string) (jobs.Info, error)
	Stats() jobs.Stats
}

// EventKind names the shape of one emitted event, matching the external
// JSON payload kinds.
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
	EventBatchProgress EventKind = "batch_progress"
	EventQueueStats    EventKind = "queue_stats"
)

// Event is one emitted progress update.
type Event struct {
	Kind  EventKind
	Job   *jobs.Info
	Jobs  []jobs.Info
	Stats *jobs.Stats
	Err   error
}

// Streamer produces the three progress-stream shapes the external
// interface exposes.
type Streamer struct {
	source JobSource
}

// NewStreamer builds a Streamer over source.
func NewStreamer(source JobSource) *Streamer {
	return &Streamer{source: source}
}

// StreamJob polls one job's status every pollInterval, emitting a
// "progress" event each tick and a terminal "done" event (or "error" if the
// job id is unknown) before stopping. The returned channel is closed when
// the stream ends, either because the job reached a terminal state or ctx
// was cancelled.
func (s *Streamer) StreamJob(ctx context.Context, jobID string, pollInterval time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			info, err := s.source.Status(jobID)
			if err != nil {
				select {
				case out <- Event{Kind: EventError, Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- Event{Kind: EventProgress, Job: &info}:
			case <-ctx.Done():
				return
			}

			if isTerminal(info.Status) {
				select {
				case out <- Event{Kind: EventDone, Job: &info, Err: info.Err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// StreamJobs polls a set of jobs every pollInterval, emitting one
// "batch_progress" event per tick containing every job still active (plus
// any that just terminated this tick), and stops once every job has
// terminated or ctx is cancelled.
func (s *Streamer) StreamJobs(ctx context.Context, jobIDs []string, pollInterval time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		active := make(map[string]struct{}, len(jobIDs))
		for _, id := range jobIDs {
			active[id] = struct{}{}
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for len(active) > 0 {
			batch := make([]jobs.Info, 0, len(active))
			for id := range active {
				info, err := s.source.Status(id)
				if err != nil {
					continue
				}
				batch = append(batch, info)
				if isTerminal(info.Status) {
					delete(active, id)
				}
			}

			select {
			case out <- Event{Kind: EventBatchProgress, Jobs: batch}:
			case <-ctx.Done():
				return
			}

			if len(active) == 0 {
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// StreamQueueStats emits a "queue_stats" event every pollInterval until ctx
// is cancelled. It never terminates on its own.
func (s *Streamer) StreamQueueStats(ctx context.Context, pollInterval time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			stats := s.source.Stats()
			select {
			case out <- Event{Kind: EventQueueStats, Stats: &stats}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func isTerminal(status jobs.Status) bool {
	return status == jobs.Completed || status == jobs.Failed || status == jobs.Cancelled
}
