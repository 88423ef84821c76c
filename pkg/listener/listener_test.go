package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumdesk/bundlectl/pkg/bundle"
	"github.com/atriumdesk/bundlectl/pkg/directory"
)

type fakeEvents struct {
	pending []directory.Event

	enrolls []string
	updates [][3]string // eventID, status, description
}

func (f *fakeEvents) EnrollEvent(_ context.Context, sourceTopic, _, _, _ string) (*directory.Event, error) {
	f.enrolls = append(f.enrolls, sourceTopic)
	if len(f.pending) == 0 {
		return nil, nil
	}
	event := f.pending[0]
	f.pending = f.pending[1:]
	return &event, nil
}

func (f *fakeEvents) UpdateEvent(_ context.Context, eventID, _, status, description string) error {
	f.updates = append(f.updates, [3]string{eventID, status, description})
	return nil
}

type creatorFunc func(ctx context.Context, bundleName string) (*bundle.Result, error)

func (f creatorFunc) CreatePackage(ctx context.Context, bundleName string) (*bundle.Result, error) {
	return f(ctx, bundleName)
}

func TestClaimOnceFinishesJob(t *testing.T) {
	events := &fakeEvents{pending: []directory.Event{{ID: "ev-1", DependsOn: "2026-q3"}}}

	var builtBundle string
	l := &Listener{
		Events:   events,
		Platform: "linux",
		Builder: creatorFunc(func(_ context.Context, name string) (*bundle.Result, error) {
			builtBundle = name
			return &bundle.Result{Filename: "atrium_2602141530_linux.zip"}, nil
		}),
	}

	require.NoError(t, l.claimOnce(context.Background()))

	assert.Equal(t, "2026-q3", builtBundle)
	assert.Equal(t, []string{"dependencies.start-create.linux"}, events.enrolls)
	require.Len(t, events.updates, 1)
	assert.Equal(t, "ev-1", events.updates[0][0])
	assert.Equal(t, "finished", events.updates[0][1])
	assert.Contains(t, events.updates[0][2], "created dependency package atrium_2602141530_linux.zip")
}

func TestClaimOnceReportsReuse(t *testing.T) {
	events := &fakeEvents{pending: []directory.Event{{ID: "ev-2", DependsOn: "2026-q3"}}}
	l := &Listener{
		Events:   events,
		Platform: "linux",
		Builder: creatorFunc(func(context.Context, string) (*bundle.Result, error) {
			return &bundle.Result{Filename: "atrium_2601010900_linux.zip", Reused: true}, nil
		}),
	}

	require.NoError(t, l.claimOnce(context.Background()))
	require.Len(t, events.updates, 1)
	assert.Contains(t, events.updates[0][2], "reused dependency package")
}

func TestClaimOnceReportsFailure(t *testing.T) {
	events := &fakeEvents{pending: []directory.Event{{ID: "ev-3", DependsOn: "broken"}}}
	fail := errors.New("version conflict")
	l := &Listener{
		Events:   events,
		Platform: "windows",
		Builder: creatorFunc(func(context.Context, string) (*bundle.Result, error) {
			return nil, fail
		}),
	}

	assert.ErrorIs(t, l.claimOnce(context.Background()), fail)
	require.Len(t, events.updates, 1)
	assert.Equal(t, "failed", events.updates[0][1])
	assert.Contains(t, events.updates[0][2], `bundle "broken" failed`)
}

func TestClaimOnceNothingPending(t *testing.T) {
	events := &fakeEvents{}
	l := &Listener{Events: events, Platform: "linux"}

	require.NoError(t, l.claimOnce(context.Background()))
	assert.Empty(t, events.updates)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := &fakeEvents{}
	l := &Listener{Events: events, Platform: "linux", PollInterval: time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on cancel")
	}
	assert.NotEmpty(t, events.enrolls)
}
