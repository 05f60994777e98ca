package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/waypoint/pkg/domain"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

var statsJSON bool

// Styles
var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(1).
			PaddingRight(1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)

	statusDone = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusWIP  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts and database size",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		m, err := services.Handler.StorageMetrics(cmd.Context())
		if err != nil {
			return MapError(fmt.Errorf("stats: %w", err))
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}
		fmt.Println(renderStats(services.Workspace.Store.Path(), m))
		return nil
	},
}

func statusStyle(s task.Status) lipgloss.Style {
	switch s {
	case task.StatusCompleted:
		return statusDone
	case task.StatusInProgress:
		return statusWIP
	case task.StatusBlocked:
		return statusErr
	}
	return lipgloss.NewStyle()
}

func renderStats(dbPath string, m domain.StorageMetrics) string {
	row := func(label string, value any) string {
		return labelStyle.Render(label) + fmt.Sprint(value)
	}

	lines := []string{
		headerStyle.Render("Waypoint"),
		row("Database", dbPath),
		"",
		row("Tasks", m.Tasks.Total),
	}
	for _, s := range task.AllStatuses() {
		count := m.Tasks.ByStatus[string(s)]
		lines = append(lines, row("  "+string(s), statusStyle(s).Render(fmt.Sprint(count))))
	}
	lines = append(lines,
		row("Notes", m.Tasks.NoteCount),
		row("Dependencies", m.Tasks.DependencyCount),
		"",
		row("Size", humanBytes(m.Storage.TotalSize)),
		row("Pages", fmt.Sprintf("%d x %s", m.Storage.PageCount, humanBytes(m.Storage.PageSize))),
		row("WAL", humanBytes(m.Storage.WALSize)),
	)
	return baseStyle.Render(strings.Join(lines, "\n"))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	RootCmd.AddCommand(statsCmd)
}
