package cli

import (
	"fmt"
	"time"

	"github.com/cbodonnell/pyramid/pkg/client"
	"github.com/spf13/cobra"
)

// ReadyOptions holds flags for the ready command.
type ReadyOptions struct {
	*RootOptions
	Required int
	Wait     bool
	Tries    uint
	Interval time.Duration
}

func NewReadyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ready <room-id> <step>",
		Short: "Mark your role ready on a barrier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.api()
			roomID, step := args[0], args[1]
			if opts.Required > 0 {
				if _, err := api.SetRequiredReady(cmd.Context(), roomID, step, opts.Required); err != nil {
					return err
				}
			}
			status, err := api.MarkReady(cmd.Context(), roomID, step)
			if err != nil {
				return err
			}
			if opts.Wait && !status.AllReady {
				status, err = client.WaitForBarrier(cmd.Context(), api, roomID, step, opts.Tries, opts.Interval)
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d/%d ready\n", step, status.Ready, status.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Required, "required", 0, "set the required count (1 or 2) first")
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait for the partner")
	cmd.Flags().UintVar(&opts.Tries, "tries", 12, "polls while waiting")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 250*time.Millisecond, "poll interval while waiting")

	return cmd
}
