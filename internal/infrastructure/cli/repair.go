package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	repairDryRun bool
	repairJSON   bool
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Clear parent links that point at missing tasks",
	Long: `Scan the database for tasks whose parent no longer exists and clear
the dangling parent link. Use --dry-run to only report them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		result, err := services.Workspace.Store.RepairRelationships(cmd.Context(), repairDryRun)
		if err != nil {
			return MapError(fmt.Errorf("repair: %w", err))
		}

		if repairJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		switch {
		case len(result.Issues) == 0:
			fmt.Println("No orphaned tasks found.")
		case repairDryRun:
			fmt.Printf("Found %d orphaned task(s):\n", len(result.Issues))
		default:
			fmt.Printf("Repaired %d orphaned task(s):\n", result.Fixed)
		}
		for _, issue := range result.Issues {
			fmt.Printf("  %s\n", issue)
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "Report orphans without changing anything")
	repairCmd.Flags().BoolVar(&repairJSON, "json", false, "Output in JSON format")
	RootCmd.AddCommand(repairCmd)
}
