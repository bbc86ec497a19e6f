package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cbodonnell/pyramid/pkg/client"
	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/spf13/cobra"
)

func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room-id>",
		Short: "Follow the room until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := client.NewCache(client.NewCacheOptions{
				API:    opts.api(),
				RoomID: args[0],
				UserID: opts.Token,
			})
			out := cmd.OutOrStdout()
			last := ""
			cache.OnChange(func(s *types.Snapshot) {
				line := summarize(s)
				if line == last {
					return
				}
				last = line
				air, _ := cache.Air()
				if ending, ok := cache.Ending(); ok {
					line += " ending=" + string(ending)
				}
				fmt.Fprintf(out, "air=%d %s\n", air, line)
			})
			cache.Start(cmd.Context())
			return nil
		},
	}
}

// summarize renders the parts of a snapshot players care about.
func summarize(s *types.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s phase=%s", s.Room.Status, s.Room.Phase)
	writeList(&b, "open", s.Doors, func(d *types.Door) (string, bool) { return d.Key, d.State == types.DoorStateOpen })
	writeList(&b, "items", s.Artifacts, func(a *types.Artifact) (string, bool) {
		return fmt.Sprintf("%s:%d", a.Key, a.Qty), a.Qty > 0
	})
	writeList(&b, "solved", s.Progress, func(p *types.Progress) (string, bool) { return p.PuzzleKey, p.Solved })
	return b.String()
}

func writeList[T any](w io.Writer, label string, items []T, pick func(T) (string, bool)) {
	names := []string{}
	for _, item := range items {
		if name, ok := pick(item); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	fmt.Fprintf(w, " %s=[%s]", label, strings.Join(names, ","))
}
