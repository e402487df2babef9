package cli

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/pingpongbot/pongbot/internal/runloop"
)

// fakeRunLoop is a minimal runloop.RunLoop stand-in for exercising the
// command's wiring without a real store/gateway.
type fakeRunLoop struct {
	startErr error
	started  chan struct{}

	stopErr   error
	stopCalls int
}

var _ runloop.RunLoop = (*fakeRunLoop)(nil)

func (f *fakeRunLoop) Start(ctx context.Context) error {
	if f.started != nil {
		close(f.started)
	}
	return f.startErr
}

func (f *fakeRunLoop) Stop(ctx context.Context) error {
	f.stopCalls++
	return f.stopErr
}

func TestRunCommand_Metadata(t *testing.T) {
	cmd := runCommand(&fakeRunLoop{})

	assert.Equal(t, "run", cmd.Name)
	assert.NotEmpty(t, cmd.Description)
	assert.NotEmpty(t, cmd.Usage)
	assert.NotNil(t, cmd.Action)
}

func TestRunCommand_PropagatesStartError(t *testing.T) {
	rl := &fakeRunLoop{startErr: errors.New("store unavailable")}
	cmd := runCommand(rl)

	app := &cli.Command{Commands: []*cli.Command{cmd}}

	err := app.Run(context.Background(), []string{"test", "run"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Zero(t, rl.stopCalls, "Stop must not be called when Start never succeeded")
}

func TestRunCommand_WaitsForSignalThenStops(t *testing.T) {
	started := make(chan struct{})
	rl := &fakeRunLoop{started: started}
	cmd := runCommand(rl)
	action := cmd.Action

	done := make(chan error, 1)
	go func() {
		done <- action(context.Background(), &cli.Command{})
	}()

	<-started

	// The action is now blocked reading from its internal signal channel;
	// deliver SIGTERM to this process to unblock it, same as a real
	// orchestrator would on shutdown.
	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(syscall.SIGTERM))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runCommand action did not return after signal delivery")
	}

	assert.Equal(t, 1, rl.stopCalls)
}
