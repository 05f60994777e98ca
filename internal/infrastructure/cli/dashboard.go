package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/waypoint/pkg/domain/task"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI over the task database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("WAYPOINT_SKIP_DASHBOARD_RUN") == "true" {
			return nil
		}
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		p := tea.NewProgram(loadDashboard(cmd.Context(), services))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard run failed: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

type dashboardModel struct {
	table   table.Model
	dbPath  string
	counts  map[task.Status]int
	total   int
	orphans []string
	err     error
}

func loadDashboard(ctx context.Context, services *wiring.AppServices) dashboardModel {
	store := services.Workspace.Store
	tasks, err := store.ListTasks(ctx)
	if err != nil {
		return dashboardModel{err: err}
	}
	report, err := store.RepairRelationships(ctx, true)
	if err != nil {
		return dashboardModel{err: err}
	}
	return newDashboardModel(store.Path(), tasks, report.Issues)
}

func newDashboardModel(dbPath string, tasks []task.Task, orphans []string) dashboardModel {
	columns := []table.Column{
		{Title: "Status", Width: 12},
		{Title: "Type", Width: 10},
		{Title: "Ver", Width: 4},
		{Title: "Path", Width: 36},
		{Title: "Name", Width: 30},
	}

	counts := make(map[task.Status]int)
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		counts[t.Status]++
		rows = append(rows, table.Row{
			string(t.Status),
			string(t.Type),
			fmt.Sprint(t.Metadata.Version),
			t.Path,
			t.Name,
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return dashboardModel{
		table:   t,
		dbPath:  dbPath,
		counts:  counts,
		total:   len(tasks),
		orphans: orphans,
	}
}

func (m dashboardModel) Init() tea.Cmd { return nil }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error loading dashboard: %v\nPress q to quit.", m.err)
	}

	header := headerStyle.Render(fmt.Sprintf("Waypoint  %s", m.dbPath))

	var summary []string
	for _, s := range task.AllStatuses() {
		summary = append(summary, statusStyle(s).Render(fmt.Sprintf("%s %d", s, m.counts[s])))
	}
	counts := fmt.Sprintf("%d tasks: %s", m.total, strings.Join(summary, "  "))

	health := statusDone.Render("Relationships: OK")
	if len(m.orphans) > 0 {
		var b strings.Builder
		b.WriteString(statusErr.Render(fmt.Sprintf("ORPHANED TASKS (%d), run 'waypoint repair':", len(m.orphans))))
		for _, o := range m.orphans {
			fmt.Fprintf(&b, "\n- %s", o)
		}
		health = b.String()
	}

	return baseStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			counts,
			"",
			m.table.View(),
			"",
			health,
			"",
			"[q] Quit  [Up/Down] Navigate",
		),
	) + "\n"
}
