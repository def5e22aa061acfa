package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/victornm/kiosk/internal/config"
	"github.com/victornm/kiosk/internal/server"
	"github.com/victornm/kiosk/internal/telemetry"
)

type RootOptions struct {
	ConfigFile string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "kiosk",
		Short:         "Point-of-sale inventory and quiz kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default $CONFIG_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

// loadConfig reads the config file and installs the configured logger as the
// slog default.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (server.Config, error) {
	file := opts.ConfigFile
	if file == "" {
		file = os.Getenv("CONFIG_PATH")
	}

	c := server.DefaultConfig()
	if err := config.Load(file, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	l, err := telemetry.NewLogger(cmd.ErrOrStderr(), c.Log)
	if err != nil {
		return c, err
	}
	slog.SetDefault(l)

	return c, nil
}
