package lifecycle

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) step(name string, err error) Step {
	return Step{Name: name, Run: func(context.Context) error {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
		return err
	}}
}

func TestCoordinator_RunsStepsInOrder(t *testing.T) {
	rec := &recorder{}
	exitCode := -1
	c := NewCoordinator(zap.NewNop(), []Step{
		rec.step("database", nil),
		rec.step("http-server", nil),
		rec.step("telemetry", nil),
	}, WithExit(func(code int) {
		rec.calls = append(rec.calls, "exit")
		exitCode = code
	}))

	c.Terminate(context.Background())

	assert.Equal(t, []string{"database", "http-server", "telemetry", "exit"}, rec.calls)
	assert.Equal(t, 0, exitCode)
}

func TestCoordinator_ContinuesPastFailures(t *testing.T) {
	rec := &recorder{}
	exitCode := -1
	c := NewCoordinator(zap.NewNop(), []Step{
		rec.step("database", errors.New("already closed")),
		{Name: "http-server", Run: func(context.Context) error {
			rec.calls = append(rec.calls, "http-server")
			panic("listener gone")
		}},
		rec.step("telemetry", errors.New("exporter unreachable")),
	}, WithExit(func(code int) { exitCode = code }))

	err := c.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "database: already closed")
	assert.ErrorContains(t, err, "http-server: panic: listener gone")
	assert.ErrorContains(t, err, "telemetry: exporter unreachable")
	assert.Equal(t, []string{"database", "http-server", "telemetry"}, rec.calls)

	c.Terminate(context.Background())
	assert.Equal(t, 0, exitCode)
	// steps ran once
	assert.Len(t, rec.calls, 3)
}

func TestCoordinator_RunOnSignal(t *testing.T) {
	rec := &recorder{}
	exited := make(chan int, 1)
	c := NewCoordinator(zap.NewNop(), []Step{rec.step("database", nil)},
		WithExit(func(code int) { exited <- code }))

	go c.Run(context.Background())
	// Give Run time to register the handler before the signal is sent.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
		assert.Equal(t, []string{"database"}, rec.calls)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not react to SIGTERM")
	}
}

func TestCoordinator_RunOnContextDone(t *testing.T) {
	exited := make(chan int, 1)
	c := NewCoordinator(zap.NewNop(), nil, WithExit(func(code int) { exited <- code }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	assert.Equal(t, 0, <-exited)
}
