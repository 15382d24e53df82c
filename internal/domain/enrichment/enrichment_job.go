package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

// job is the mutable state behind a types.EnrichmentJob snapshot.
type job struct {
	mu              sync.Mutex
	state           types.EnrichmentJob
	cancel          context.CancelFunc
	cancelRequested bool
	done            chan struct{}
}

func newJob(propertyID uuid.UUID, lat, lng float64, now time.Time) *job {
	return &job{
		state: types.EnrichmentJob{
			ID:          uuid.New(),
			PropertyID:  propertyID,
			Lat:         lat,
			Lng:         lng,
			Status:      types.JobQueued,
			SubmittedAt: now,
		},
		done: make(chan struct{}),
	}
}

func (j *job) snapshot() types.EnrichmentJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.state
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}
	return s
}

// start moves a queued job to running. It returns false if the job was
// already finished, e.g. cancelled while waiting.
func (j *job) start(cancel context.CancelFunc, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != types.JobQueued {
		return false
	}
	j.state.Status = types.JobRunning
	j.state.StartedAt = &now
	j.cancel = cancel
	return true
}

// finish records a terminal status once; later calls are ignored.
func (j *job) finish(status types.JobStatus, result *types.EnrichmentResult, errMsg string, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishLocked(status, result, errMsg, now)
}

// cancelQueued finishes the job as cancelled only if no worker has started it.
func (j *job) cancelQueued(errMsg string, now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != types.JobQueued {
		return false
	}
	return j.finishLocked(types.JobCancelled, nil, errMsg, now)
}

func (j *job) finishLocked(status types.JobStatus, result *types.EnrichmentResult, errMsg string, now time.Time) bool {
	if j.state.Status.Terminal() {
		return false
	}
	j.state.Status = status
	j.state.Result = result
	j.state.Error = errMsg
	j.state.FinishedAt = &now
	j.cancel = nil
	close(j.done)
	return true
}

func (j *job) supersede(by uuid.UUID, now time.Time) bool {
	j.mu.Lock()
	if j.state.Status != types.JobQueued {
		j.mu.Unlock()
		return false
	}
	j.state.SupersededBy = &by
	j.mu.Unlock()
	return j.finish(types.JobSuperseded, nil, "", now)
}

// requestCancel cancels a running job's context. Queued jobs are finished
// by the caller.
func (j *job) requestCancel() types.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status == types.JobRunning && j.cancel != nil {
		j.cancelRequested = true
		j.cancel()
	}
	return j.state.Status
}

func (j *job) wasCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}
