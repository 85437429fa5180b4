package attemptmanager

import (
	"context"
	"log"
	"sync"
	"time"
)

// SaveStatus is the tri-state autosave indicator surfaced to the client
type SaveStatus string

const (
	SaveStatusSaved  SaveStatus = "saved"
	SaveStatusSaving SaveStatus = "saving"
	SaveStatusError  SaveStatus = "error"
)

// SaveFunc persists the latest in-memory snapshot. Implementations always
// send the full current state, so a failed cycle is fully repaired by the
// next one (last-write-wins; no merge logic).
type SaveFunc func(ctx context.Context) error

// Autosaver keeps the persisted attempt record eventually consistent with
// in-memory answers/flags without blocking interaction. Two triggers feed it:
// a debounce after each mutation and a fixed fallback interval. A write is
// skipped when the state fingerprint is unchanged since the last successful
// save. Save errors are not fatal: status flips to "error" and the next cycle
// retries with the latest state.
type Autosaver struct {
	debounce time.Duration
	interval time.Duration
	save     SaveFunc
	onStatus func(SaveStatus)

	mu        sync.Mutex
	status    SaveStatus
	pending   string // fingerprint of current in-memory state
	lastSaved string // fingerprint of last successful save
	dirty     bool
	suspended bool

	kick     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAutosaver creates an autosaver; Run must be called to drive it.
// onStatus may be nil.
func NewAutosaver(debounce, interval time.Duration, save SaveFunc, onStatus func(SaveStatus)) *Autosaver {
	if debounce <= 0 {
		debounce = DefaultAutosaveDebounce
	}
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		debounce: debounce,
		interval: interval,
		save:     save,
		onStatus: onStatus,
		status:   SaveStatusSaved,
		kick:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// MarkDirty records a state mutation. The fingerprint is any stable
// serialization of the persistable state; equal fingerprints are treated as
// "nothing new to save".
func (a *Autosaver) MarkDirty(fingerprint string) {
	a.mu.Lock()
	a.pending = fingerprint
	a.dirty = fingerprint != a.lastSaved
	changed := a.dirty
	a.mu.Unlock()

	if !changed {
		return
	}

	// Non-blocking: a pending kick already restarts the debounce window.
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run drives the debounce and interval cycles until the context is done or
// Stop is called.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	debounceTimer := time.NewTimer(a.debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()
	debounceArmed := false

	for {
		select {
		case <-a.kick:
			// Restart the quiet-period window on every mutation.
			if debounceArmed && !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(a.debounce)
			debounceArmed = true

		case <-debounceTimer.C:
			debounceArmed = false
			a.saveNow(ctx)

		case <-ticker.C:
			a.saveNow(ctx)

		case <-a.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// Flush performs an immediate save of any unsaved state
func (a *Autosaver) Flush(ctx context.Context) {
	a.saveNow(ctx)
}

// Suspend blocks save cycles while a submit is in flight. A debounce that
// fires during suspension is ignored rather than rescheduled; the submit's
// own write carries the state.
func (a *Autosaver) Suspend() {
	a.mu.Lock()
	a.suspended = true
	a.mu.Unlock()
}

// Resume re-enables saves after a failed submit left the attempt in progress
func (a *Autosaver) Resume() {
	a.mu.Lock()
	a.suspended = false
	a.mu.Unlock()
}

// Stop permanently disables the autosaver. Called when the attempt reaches a
// terminal state; no save may run afterwards.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	a.Suspend()
}

// Status returns the current save indicator
func (a *Autosaver) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Autosaver) stopped() bool {
	select {
	case <-a.stopCh:
		return true
	default:
		return false
	}
}

func (a *Autosaver) saveNow(ctx context.Context) {
	a.mu.Lock()
	if a.suspended || a.stopped() || !a.dirty {
		a.mu.Unlock()
		return
	}
	fingerprint := a.pending
	a.status = SaveStatusSaving
	a.mu.Unlock()
	a.notify(SaveStatusSaving)

	err := a.save(ctx)

	a.mu.Lock()
	status := SaveStatusSaved
	if err != nil {
		log.Printf("[Autosaver] save failed, will retry on next cycle: %v", err)
		status = SaveStatusError
	} else {
		a.lastSaved = fingerprint
		a.dirty = a.pending != fingerprint
	}
	a.status = status
	a.mu.Unlock()
	a.notify(status)
}

// notify is called outside the lock to avoid re-entrancy deadlocks
func (a *Autosaver) notify(status SaveStatus) {
	if a.onStatus != nil {
		a.onStatus(status)
	}
}
