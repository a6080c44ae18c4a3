package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fifoverify/internal/afifo"
	"github.com/roach88/fifoverify/internal/config"
	"github.com/roach88/fifoverify/internal/dut"
	"github.com/roach88/fifoverify/internal/harness"
)

// DeviceFactory builds the device under test for a configuration.
type DeviceFactory func(cfg config.Config) (dut.Device, error)

// ReferenceFIFO builds the behavioral FIFO model.
func ReferenceFIFO(cfg config.Config) (dut.Device, error) {
	return afifo.New(cfg.Depth, afifo.WithSyncStages(cfg.SyncStages))
}

// NewRootCommand creates the fifoverify command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(ReferenceFIFO)
}

func newRootCommand(device DeviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "fifoverify",
		Short: "Verify a dual-clock FIFO against the built-in scenarios",
		Long: `Run the built-in scenario suite against the reference dual-clock FIFO
and print one verdict per scenario.

The write clock runs at 13ns and the read clock at 7ns. Every scenario
resets the FIFO, streams words through it under backpressure and checks
that they come out in order. The exit status is 0 when every scenario
passed, 1 when one failed and 2 when the run could not complete.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), device)
		},
	}
}

func runSuite(ctx context.Context, out, logOut io.Writer, device DeviceFactory) error {
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := config.Default()
	suite, err := harness.DefaultSuite()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	dev, err := device(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build device", err)
	}
	runner, err := harness.NewRunner(cfg, dev, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create runner", err)
	}

	report, err := runner.Run(ctx, suite)
	if err != nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}
	if err := report.WriteText(out); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if !report.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total))
	}
	return nil
}
