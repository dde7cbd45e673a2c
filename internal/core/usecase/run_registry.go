package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

type runEntry struct {
	run domain.Run
	seq uint64
}

// runLease identifies one begun run. A later run for the same id holds a
// different lease.
type runLease struct {
	resumeID string
	seq      uint64
}

// runRegistry holds at most one run per resume id and is the pollable
// working state of the pipeline. Terminal runs nobody polls are evicted
// once they are older than the retention window.
type runRegistry struct {
	mu        sync.Mutex
	runs      map[string]*runEntry
	seq       uint64
	retention time.Duration
}

func newRunRegistry(retention time.Duration) *runRegistry {
	return &runRegistry{runs: make(map[string]*runEntry), retention: retention}
}

func (r *runRegistry) begin(resumeID string, now time.Time) (domain.Run, runLease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpired(now)
	if current, ok := r.runs[resumeID]; ok && !current.run.Status.Terminal() {
		return domain.Run{}, runLease{}, domain.WrapError(
			domain.ErrAlreadyRunning,
			"start run",
			fmt.Errorf("resume=%s status=%s", resumeID, current.run.Status),
		)
	}

	r.seq++
	entry := &runEntry{
		run: domain.Run{
			ResumeID:  resumeID,
			Status:    domain.RunIdle,
			StartedAt: now,
		},
		seq: r.seq,
	}
	r.runs[resumeID] = entry
	return entry.run, runLease{resumeID: resumeID, seq: entry.seq}, nil
}

func (r *runRegistry) update(resumeID string, mutate func(run *domain.Run)) domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[resumeID]
	if !ok {
		return domain.Run{}
	}
	mutate(&entry.run)
	return entry.run
}

// observe returns the current snapshot and drops it once it is terminal.
func (r *runRegistry) observe(resumeID string) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[resumeID]
	if !ok {
		return domain.Run{}, false
	}
	snapshot := entry.run
	if snapshot.Status.Terminal() {
		delete(r.runs, resumeID)
	}
	return snapshot, true
}

// release drops a terminal run whose snapshot was handed to its caller.
// Entries begun under another lease are left alone.
func (r *runRegistry) release(lease runLease) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.runs[lease.resumeID]; ok && entry.seq == lease.seq && entry.run.Status.Terminal() {
		delete(r.runs, lease.resumeID)
	}
}

func (r *runRegistry) evictExpired(now time.Time) {
	for id, entry := range r.runs {
		finished := entry.run.FinishedAt
		if entry.run.Status.Terminal() && finished != nil && now.Sub(*finished) >= r.retention {
			delete(r.runs, id)
		}
	}
}
