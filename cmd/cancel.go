package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCancelCmd creates the 'cancel' subcommand: flag a running job for
// cooperative cancellation. The job observes the flag at its next
// checkpoint and stops, keeping everything collected so far.
func newCancelCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if a.cfg.Redis.Addr == "" {
				return errors.New("cancellation requires redis.addr: in-process jobs are cancelled with an interrupt")
			}
			gate, closeGate, err := buildGate(a.cfg.Redis)
			if err != nil {
				return err
			}
			defer closeGate()

			jobID := args[0]
			if err := gate.Request(cmd.Context(), jobID); err != nil {
				return fmt.Errorf("request cancellation: %w", err)
			}
			a.logger.Info("cancellation requested", zap.String("job_id", jobID))
			return nil
		},
	}
}
