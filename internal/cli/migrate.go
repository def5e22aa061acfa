package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/kiosk/internal/server"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the inventory and sales tables",
		Long: `Create the inventory and sales tables for the configured inventory driver.
Existing tables are left untouched; the memory driver needs no migration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return server.Migrate(ctx, c)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")

	return cmd
}
