package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifoverify/internal/afifo"
	"github.com/roach88/fifoverify/internal/config"
	"github.com/roach88/fifoverify/internal/dut"
)

func execute(t *testing.T, ctx context.Context, device DeviceFactory, args ...string) (string, string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCommand(device)
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), logs.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fifoverify", cmd.Use)
	assert.False(t, cmd.Flags().HasFlags())
	assert.Empty(t, cmd.Commands())
}

func TestRootCommand_DefaultSuitePasses(t *testing.T) {
	out, logs, err := execute(t, context.Background(), ReferenceFIFO)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))

	assert.Contains(t, out, "on afifo(depth=16)")
	assert.Contains(t, out, "PASS  concurrent_paced")
	assert.Contains(t, out, "3 scenarios: 3 passed, 0 failed")
	assert.NotContains(t, out, "first failure")

	assert.Contains(t, logs, "level=INFO")
	assert.Contains(t, logs, "scenario=fill_then_drain")
	assert.NotContains(t, logs, "level=DEBUG")
}

func TestRootCommand_FailingDevice(t *testing.T) {
	faulty := func(cfg config.Config) (dut.Device, error) {
		return afifo.New(cfg.Depth, afifo.WithFaults(afifo.Faults{CorruptWrite: 1}))
	}
	out, _, err := execute(t, context.Background(), faulty)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "1 of 3 scenarios failed")
	assert.Contains(t, out, "FAIL  concurrent_paced")
	assert.Contains(t, out, "first failure: concurrent_paced: MISMATCH: item 0")
}

func TestRootCommand_CommandErrors(t *testing.T) {
	t.Run("device", func(t *testing.T) {
		broken := func(config.Config) (dut.Device, error) { return afifo.New(1) }
		_, _, err := execute(t, context.Background(), broken)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.ErrorContains(t, err, "failed to build device")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := execute(t, ctx, ReferenceFIFO)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("arguments", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), ReferenceFIFO, "extra")
		assert.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))

	wrapped := WrapExitError(ExitFailure, "outer", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "outer: "+assert.AnError.Error(), wrapped.Error())
	assert.Equal(t, "inner", NewExitError(ExitFailure, "inner").Error())
}
