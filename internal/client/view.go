package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"codeshare/internal/models"
)

// State is the view's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSaving
	StateExecuting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	case StateExecuting:
		return "executing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrBusy means a save or execution is already outstanding on
	// this view. At most one runs at a time; overlapping outputs
	// would be indistinguishable to the user.
	ErrBusy = errors.New("operation already in progress")
	// ErrViewClosed means the view was closed and accepts no work.
	ErrViewClosed = errors.New("view closed")
)

const (
	defaultPollInterval = 2 * time.Second
	pollRequestTimeout  = 10 * time.Second
)

// SessionAPI is the slice of the server contract a view needs.
type SessionAPI interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, update models.SessionUpdate) (*models.Session, error)
	Execute(ctx context.Context, id string, req models.ExecutionRequest) (models.ExecutionResult, error)
}

// ViewOptions tune a view. The zero value is usable.
type ViewOptions struct {
	PollInterval time.Duration
	Logf         func(format string, args ...interface{})
}

// View reconciles a local shadow of one session with the server.
//
// One invariant rules everything here: a poll refreshes the shadow
// session, its participants, and the remote code, but never the edit
// buffer. The buffer is seeded exactly once, from the first full
// fetch; after that only the user writes it, and only Save pushes it
// back. Unsaved edits therefore survive any number of refreshes and
// any remote save by another participant (which simply lands in the
// shadow until this user saves over it, last writer wins).
type View struct {
	api       SessionAPI
	sessionID string
	interval  time.Duration
	logf      func(format string, args ...interface{})

	mu           sync.Mutex
	state        State
	session      models.Session
	editBuffer   string
	lastResult   *models.ExecutionResult
	fatalErr     error
	pollInFlight bool

	done chan struct{}
}

// Snapshot is a consistent copy of the view's observable state.
type Snapshot struct {
	State      State
	Session    models.Session
	EditBuffer string
	LastResult *models.ExecutionResult
}

// Open fetches the session, seeds the edit buffer from it, and starts
// the poll loop. A missing session or rejected credential fails the
// open; no view is returned.
func Open(ctx context.Context, api SessionAPI, sessionID string, opts ViewOptions) (*View, error) {
	v := &View{
		api:       api,
		sessionID: sessionID,
		interval:  opts.PollInterval,
		logf:      opts.Logf,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
	if v.interval <= 0 {
		v.interval = defaultPollInterval
	}
	if v.logf == nil {
		v.logf = log.Printf
	}

	v.state = StateLoading
	session, err := api.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v.session = *session
	v.editBuffer = session.Code
	v.state = StateReady

	go v.pollLoop()
	return v, nil
}

func (v *View) pollLoop() {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
		}
		v.refresh()
	}
}

// refresh pulls the canonical session and overwrites the shadow. The
// tick is skipped outright while any fetch, save, or execution is
// outstanding, so stale responses can never be applied out of order.
// A failed tick is logged and swallowed; the next tick retries.
func (v *View) refresh() {
	v.mu.Lock()
	if v.state != StateReady || v.pollInFlight {
		v.mu.Unlock()
		return
	}
	v.pollInFlight = true
	v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pollRequestTimeout)
	session, err := v.api.GetSession(ctx, v.sessionID)
	cancel()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pollInFlight = false
	if v.state == StateClosed {
		// Completed after Close: discard on arrival.
		return
	}
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			v.failLocked(err)
			return
		}
		v.logf("session %s refresh failed: %v", v.sessionID, err)
		return
	}
	v.session = *session
}

// Buffer returns the user's in-flight edit buffer.
func (v *View) Buffer() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editBuffer
}

// SetBuffer replaces the edit buffer. Always possible, even while a
// poll, save, or execution is pending; typing must never block on
// I/O.
func (v *View) SetBuffer(code string) {
	v.mu.Lock()
	v.editBuffer = code
	v.mu.Unlock()
}

// Dirty reports whether the edit buffer has diverged from the stored
// session code.
func (v *View) Dirty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editBuffer != v.session.Code
}

// State returns the current lifecycle state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the error that closed the view, if any.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fatalErr
}

// Snapshot returns a consistent copy of the observable state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := Snapshot{
		State:      v.state,
		Session:    v.session,
		EditBuffer: v.editBuffer,
	}
	if v.lastResult != nil {
		result := *v.lastResult
		snap.LastResult = &result
	}
	return snap
}

// Save pushes the edit buffer to the store (last writer wins) and, on
// success, refreshes immediately so other viewers converge without
// waiting for the next tick. On failure the buffer is left intact and
// the error surfaces to the caller; saves are never auto-retried.
func (v *View) Save(ctx context.Context) error {
	v.mu.Lock()
	switch v.state {
	case StateClosed:
		err := v.fatalErr
		v.mu.Unlock()
		if err == nil {
			err = ErrViewClosed
		}
		return err
	case StateReady:
	default:
		v.mu.Unlock()
		return ErrBusy
	}
	v.state = StateSaving
	code := v.editBuffer
	v.mu.Unlock()

	_, err := v.api.UpdateSession(ctx, v.sessionID, models.SessionUpdate{Code: &code})

	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	v.state = StateReady
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			v.failLocked(err)
		}
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()

	v.refresh()
	return nil
}

// Execute runs the edit buffer (not the persisted code) with the
// session's language and optional stdin. At most one execution is
// outstanding per view; a second request is rejected with ErrBusy.
// Whatever comes back, success or a failed run, is stored as the
// view's last result.
func (v *View) Execute(ctx context.Context, input string) (*models.ExecutionResult, error) {
	v.mu.Lock()
	switch v.state {
	case StateClosed:
		err := v.fatalErr
		v.mu.Unlock()
		if err == nil {
			err = ErrViewClosed
		}
		return nil, err
	case StateReady:
	default:
		v.mu.Unlock()
		return nil, ErrBusy
	}
	v.state = StateExecuting
	req := models.ExecutionRequest{
		Code:     v.editBuffer,
		Language: v.session.Language,
		Input:    input,
	}
	v.mu.Unlock()

	result, err := v.api.Execute(ctx, v.sessionID, req)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return nil, ErrViewClosed
	}
	v.state = StateReady
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			v.failLocked(err)
		}
		return nil, err
	}
	v.lastResult = &result
	return &result, nil
}

// Close stops the poll loop. Idempotent. Anything still in flight is
// discarded when it completes.
func (v *View) Close() {
	v.mu.Lock()
	v.closeLocked()
	v.mu.Unlock()
}

func (v *View) failLocked(err error) {
	v.fatalErr = err
	v.closeLocked()
}

func (v *View) closeLocked() {
	if v.state == StateClosed {
		return
	}
	v.state = StateClosed
	close(v.done)
}
