package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run database maintenance",
}

func maintenanceCmd(use, short, done string, run func(cmd *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(cmd); err != nil {
				return MapError(fmt.Errorf("%s: %w", use, err))
			}
			fmt.Println(done)
			return nil
		},
	}
}

func init() {
	maintainCmd.AddCommand(
		maintenanceCmd("vacuum", "Rebuild the database file to reclaim space", "Vacuum complete.", func(cmd *cobra.Command) error {
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()
			return services.Workspace.Store.Vacuum(cmd.Context())
		}),
		maintenanceCmd("analyze", "Refresh query planner statistics", "Analyze complete.", func(cmd *cobra.Command) error {
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()
			return services.Workspace.Store.Analyze(cmd.Context())
		}),
		maintenanceCmd("checkpoint", "Fold the write-ahead log into the database", "Checkpoint complete.", func(cmd *cobra.Command) error {
			services, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = services.Close() }()
			return services.Workspace.Store.Checkpoint(cmd.Context())
		}),
	)
	RootCmd.AddCommand(maintainCmd)
}
