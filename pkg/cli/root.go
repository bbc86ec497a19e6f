// Package cli implements the pyramid command line client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cbodonnell/pyramid/pkg/client"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server   string
	Token    string
	LogLevel string
}

func (o *RootOptions) api() *client.APIClient {
	return client.NewAPIClient(client.NewAPIClientOptions{BaseURL: o.Server, Token: o.Token})
}

// NewRootCommand creates the root command of the client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pyramid",
		Short: "Play a pyramid room from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLogLevel(opts.LogLevel)
			if err != nil {
				return err
			}
			log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, level))
			if opts.Token == "" {
				opts.Token = os.Getenv("PYRAMID_TOKEN")
			}
			if opts.Token == "" {
				return fmt.Errorf("a token is required: pass --token or set PYRAMID_TOKEN")
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:9090", "room API address")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAirCommand(opts))
	cmd.AddCommand(NewStartCommand(opts))
	cmd.AddCommand(NewVariantCommand(opts))
	cmd.AddCommand(NewSolveCommand(opts))
	cmd.AddCommand(NewLessonCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewReadyCommand(opts))
	cmd.AddCommand(NewFinalCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
