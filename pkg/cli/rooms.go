package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/spf13/cobra"
)

func NewCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a room and take the P1 seat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.api().CreateRoom(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s code %s role %s\n", resp.Snapshot.Room.ID, resp.Snapshot.Room.Code, resp.Me.Role)
			return nil
		},
	}
}

func NewJoinCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.api().JoinRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s code %s role %s\n", resp.Snapshot.Room.ID, resp.Snapshot.Room.Code, resp.Me.Role)
			return nil
		},
	}
}

func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <room-id>",
		Short: "Print the room snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.api().Snapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func NewAirCommand(opts *RootOptions) *cobra.Command {
	var add int
	cmd := &cobra.Command{
		Use:   "air <room-id>",
		Short: "Print the air left, or add to it with --add",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.api()
			var air int
			var err error
			if add != 0 {
				air, err = api.IncrementAir(cmd.Context(), args[0], add)
			} else {
				air, err = api.AirSeconds(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", air)
			return nil
		},
	}
	cmd.Flags().IntVar(&add, "add", 0, "seconds of air to add")
	return cmd
}

func NewStartCommand(opts *RootOptions) *cobra.Command {
	var initDoors bool
	cmd := &cobra.Command{
		Use:   "start <room-id>",
		Short: "Start the air clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.api()
			if initDoors {
				if err := api.InitRoomEntities(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			room, err := api.StartRoom(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s %s since %s\n", room.ID, room.Status, room.StartedAt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&initDoors, "init", true, "create missing doors first")
	return cmd
}

func NewVariantCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "variant <room-id> <puzzle>",
		Short: "Print the room's instance of a puzzle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.api().Variant(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func NewSolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "solve <room-id> <puzzle> <answer-json>",
		Short: "Submit an answer",
		Example: `  pyramid solve $ROOM cartouche '{"name":"KHUFU"}'
  pyramid solve $ROOM nilometer '{"cubits":14}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var answer json.RawMessage
			if err := json.Unmarshal([]byte(args[2]), &answer); err != nil {
				return fmt.Errorf("answer must be JSON: %w", err)
			}
			result, err := opts.api().SolvePuzzle(cmd.Context(), args[0], args[1], answer)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func NewLessonCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lesson <room-id> <puzzle>",
		Short: "Mark a puzzle's lesson as read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.api().MarkLessonRead(cmd.Context(), args[0], args[1])
		},
	}
}

func NewGrantCommand(opts *RootOptions) *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "grant <room-id> <artifact>",
		Short: "Add an artifact to the room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.api().GrantArtifact(cmd.Context(), args[0], args[1], qty)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s x%d\n", a.Key, a.Qty)
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity")
	return cmd
}

func NewOpenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <room-id> <door>",
		Short: "Open a door",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.api().OpenDoor(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d.Key, d.State)
			return nil
		},
	}
}

func NewFinalCommand(opts *RootOptions) *cobra.Command {
	var mode, item string
	cmd := &cobra.Command{
		Use:   "final <room-id>",
		Short: "Perform the final ritual",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.api().PerformFinal(cmd.Context(), args[0], types.EndingMode(mode), item)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(types.EndingModeCooperate), "cooperate or solo")
	cmd.Flags().StringVar(&item, "item", "", "artifact used for the solo ending")
	return cmd
}

func NewRunsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [limit]",
		Short: "List archived runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid limit %q", args[0])
				}
				limit = n
			}
			runs, err := opts.api().ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
}
