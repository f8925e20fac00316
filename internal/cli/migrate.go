package cli

import (
	"fmt"

	"github.com/Shivanand-hulikatti/eventreg/internal/config"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Config.Database.Driver == config.DriverMemory {
				return fmt.Errorf("the memory driver has no schema to migrate")
			}
			_, closeStore, err := openStore(cmd.Context(), opts.Config.Database, true, opts.Log)
			if err != nil {
				return err
			}
			closeStore()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
