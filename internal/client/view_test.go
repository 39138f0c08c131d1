package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeshare/internal/models"
)

// fakeAPI is an in-memory SessionAPI. Gates, when set, block the
// matching call until the test releases them.
type fakeAPI struct {
	mu          sync.Mutex
	session     models.Session
	getErr      error
	updateErr   error
	execErr     error
	execResult  models.ExecutionResult
	lastExec    models.ExecutionRequest
	getCalls    int
	updateCalls int
	execCalls   int
	getGate     chan struct{}
	updateGate  chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		session: models.Session{
			ID:        "sess-1",
			Title:     "pairing",
			Language:  models.LanguagePython,
			Code:      "print('v1')",
			UpdatedAt: time.Now().UTC(),
		},
		execResult: models.ExecutionResult{Success: true, Output: "ran\n"},
	}
}

func (f *fakeAPI) GetSession(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	f.getCalls++
	gate := f.getGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := f.session
	return &s, nil
}

func (f *fakeAPI) UpdateSession(ctx context.Context, id string, update models.SessionUpdate) (*models.Session, error) {
	f.mu.Lock()
	f.updateCalls++
	gate := f.updateGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if update.Code != nil {
		f.session.Code = *update.Code
	}
	f.session.UpdatedAt = time.Now().UTC()
	s := f.session
	return &s, nil
}

func (f *fakeAPI) Execute(ctx context.Context, id string, req models.ExecutionRequest) (models.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	f.lastExec = req
	if f.execErr != nil {
		return models.ExecutionResult{}, f.execErr
	}
	return f.execResult, nil
}

func (f *fakeAPI) setRemoteCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Code = code
	f.session.UpdatedAt = time.Now().UTC()
}

// openView opens a view with an interval long enough that the poll
// loop never fires on its own; tests drive refresh directly.
func openView(t *testing.T, api *fakeAPI) *View {
	t.Helper()
	v, err := Open(context.Background(), api, "sess-1", ViewOptions{
		PollInterval: time.Hour,
		Logf:         t.Logf,
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func TestOpenSeedsBuffer(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	assert.Equal(t, StateReady, v.State())
	assert.Equal(t, "print('v1')", v.Buffer())
	assert.False(t, v.Dirty())
}

func TestOpenFailsOnMissingSession(t *testing.T) {
	api := newFakeAPI()
	api.getErr = ErrNotFound
	_, err := Open(context.Background(), api, "sess-1", ViewOptions{PollInterval: time.Hour, Logf: t.Logf})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshNeverTouchesBuffer(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	v.SetBuffer("print('local edit')")
	api.setRemoteCode("print('remote save')")
	v.refresh()

	// The shadow converges; unsaved local edits survive.
	snap := v.Snapshot()
	assert.Equal(t, "print('remote save')", snap.Session.Code)
	assert.Equal(t, "print('local edit')", snap.EditBuffer)
	assert.True(t, v.Dirty())
}

func TestRefreshSkippedWhileInFlight(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	v.mu.Lock()
	v.pollInFlight = true
	v.mu.Unlock()

	before := api.getCalls
	v.refresh()
	assert.Equal(t, before, api.getCalls, "an overlapping tick must be skipped, not queued")

	v.mu.Lock()
	v.pollInFlight = false
	v.mu.Unlock()
}

func TestRefreshSkippedWhileSaving(t *testing.T) {
	api := newFakeAPI()
	api.updateGate = make(chan struct{})
	v := openView(t, api)

	saveErr := make(chan error, 1)
	go func() { saveErr <- v.Save(context.Background()) }()

	waitForState(t, v, StateSaving)
	before := api.getCalls
	v.refresh()
	assert.Equal(t, before, api.getCalls, "polling must pause while a save is outstanding")

	close(api.updateGate)
	require.NoError(t, <-saveErr)
}

func TestSaveSerialized(t *testing.T) {
	api := newFakeAPI()
	api.updateGate = make(chan struct{})
	v := openView(t, api)

	saveErr := make(chan error, 1)
	go func() { saveErr <- v.Save(context.Background()) }()
	waitForState(t, v, StateSaving)

	require.ErrorIs(t, v.Save(context.Background()), ErrBusy)
	_, err := v.Execute(context.Background(), "")
	require.ErrorIs(t, err, ErrBusy)

	close(api.updateGate)
	require.NoError(t, <-saveErr)
	assert.Equal(t, StateReady, v.State())
}

func TestSavePushesBufferAndRefreshes(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	v.SetBuffer("print('v2')")
	require.NoError(t, v.Save(context.Background()))

	api.mu.Lock()
	remote := api.session.Code
	api.mu.Unlock()
	assert.Equal(t, "print('v2')", remote)

	// The save refreshed immediately; the shadow matches and the view
	// is clean again.
	snap := v.Snapshot()
	assert.Equal(t, "print('v2')", snap.Session.Code)
	assert.False(t, v.Dirty())
	assert.Equal(t, StateReady, v.State())
}

func TestSaveFailureKeepsBuffer(t *testing.T) {
	api := newFakeAPI()
	api.updateErr = errors.New("boom")
	v := openView(t, api)

	v.SetBuffer("print('unsaved')")
	err := v.Save(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)

	assert.Equal(t, "print('unsaved')", v.Buffer(), "a failed save must not lose edits")
	assert.Equal(t, StateReady, v.State(), "a transient failure leaves the view usable")
	api.mu.Lock()
	calls := api.updateCalls
	api.mu.Unlock()
	assert.Equal(t, 1, calls, "saves are never auto-retried")
}

func TestFatalRefreshClosesView(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	api.mu.Lock()
	api.getErr = ErrNotFound
	api.mu.Unlock()
	v.refresh()

	assert.Equal(t, StateClosed, v.State())
	require.ErrorIs(t, v.Err(), ErrNotFound)

	// Later operations surface the fatal error, not ErrBusy.
	require.ErrorIs(t, v.Save(context.Background()), ErrNotFound)
	_, err := v.Execute(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransientRefreshFailureIsSwallowed(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	api.mu.Lock()
	api.getErr = errors.New("connection reset")
	api.mu.Unlock()
	v.refresh()
	assert.Equal(t, StateReady, v.State(), "a flaky poll must not kill the view")

	api.mu.Lock()
	api.getErr = nil
	api.session.Code = "print('recovered')"
	api.mu.Unlock()
	v.refresh()
	assert.Equal(t, "print('recovered')", v.Snapshot().Session.Code)
}

func TestCloseDiscardsInFlightPoll(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)
	api.mu.Lock()
	api.getGate = make(chan struct{})
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		v.refresh()
		close(done)
	}()
	waitFor(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.getCalls >= 2
	})

	v.Close()
	api.setRemoteCode("print('late arrival')")
	close(api.getGate)
	<-done

	snap := v.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, "print('v1')", snap.Session.Code, "a response arriving after close is discarded")
}

func TestExecuteRunsBuffer(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	v.SetBuffer("print('edited')")
	result, err := v.Execute(context.Background(), "stdin-data")
	require.NoError(t, err)
	assert.True(t, result.Success)

	api.mu.Lock()
	req := api.lastExec
	api.mu.Unlock()
	assert.Equal(t, "print('edited')", req.Code, "execution runs the buffer, not the stored code")
	assert.Equal(t, models.LanguagePython, req.Language)
	assert.Equal(t, "stdin-data", req.Input)

	snap := v.Snapshot()
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, "ran\n", snap.LastResult.Output)
}

func TestExecuteFailedRunKeepsView(t *testing.T) {
	api := newFakeAPI()
	api.execResult = models.ExecutionResult{Success: false, Error: "SyntaxError", ExitCode: 1}
	v := openView(t, api)

	result, err := v.Execute(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StateReady, v.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	v := openView(t, api)

	v.Close()
	v.Close()
	assert.Equal(t, StateClosed, v.State())
	require.ErrorIs(t, v.Save(context.Background()), ErrViewClosed)
	_, err := v.Execute(context.Background(), "")
	require.ErrorIs(t, err, ErrViewClosed)
	assert.NoError(t, v.Err(), "a deliberate close is not an error")
}

func TestPollLoopConverges(t *testing.T) {
	api := newFakeAPI()
	v, err := Open(context.Background(), api, "sess-1", ViewOptions{
		PollInterval: 10 * time.Millisecond,
		Logf:         t.Logf,
	})
	require.NoError(t, err)
	defer v.Close()

	api.setRemoteCode("print('converged')")
	waitFor(t, func() bool {
		return v.Snapshot().Session.Code == "print('converged')"
	})
}

func waitForState(t *testing.T, v *View, want State) {
	t.Helper()
	waitFor(t, func() bool { return v.State() == want })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
