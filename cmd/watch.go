package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fxq/internal/utils"
)

// requestSlack is added to the poll interval to bound each refresh
const requestSlack = 2 * time.Second

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the rate cache of a running server",
	Long: `Watch the rate cache of a running fxq server in a terminal UI.

Entries are shown from most to least recently used and refreshed every
--interval. When stdout is not a terminal a single static table is printed.

Examples:
  fxq watch                         # refresh every second
  fxq watch --interval 5s           # refresh every 5 seconds
  fxq watch | cat                   # print once`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Second, "Refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", watchInterval)
	}
	c := newClient()

	if !isTerminal() {
		return runStaticWatch(cmd, c)
	}

	model := newWatchModel(c, watchInterval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		// Fallback to static output if interactive mode fails
		return runStaticWatch(cmd, c)
	}
	return nil
}

func runStaticWatch(cmd *cobra.Command, src cacheSource) error {
	stats, err := src.CacheStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}
	entries, err := src.CacheEntries(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fxq rate cache: %d/%d entries, TTL %s\n\n", stats.Entries, stats.Capacity, formatTTL(stats.TTLMillis))
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cache is empty")
		return nil
	}
	fmt.Fprintln(out, renderEntriesTable(entries, time.Now()))
	return nil
}

func newWatchModel(src cacheSource, interval time.Duration) *watchModel {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Pair", Width: 10},
		{Title: "Rate", Width: 14},
		{Title: "Stored", Width: 18},
		{Title: "Expires", Width: 20},
		{Title: "State", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(darkGray).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(selectedFg).
		Background(selectedBg).
		Bold(false)
	t.SetStyles(s)

	return &watchModel{
		state:      stateLoading,
		source:     src,
		interval:   interval,
		keys:       NewKeyDispatcher(),
		tableModel: t,
		now:        time.Now,
	}
}

// Init implements tea.Model
func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(loadSnapshot(m.source, m.interval+requestSlack), tick(m.interval))
}

// Update implements tea.Model
func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		tableHeight := m.height - 10 // header, footer, padding
		if tableHeight < 3 {
			tableHeight = 3
		}
		m.tableModel.SetHeight(tableHeight)
		return m, nil

	case tea.KeyMsg:
		model, keyCmd := m.keys.Dispatch(m, msg)
		if keyCmd != nil || m.state != stateEntries {
			return model, keyCmd
		}
		// Unhandled keys move the table selection
		var cmd tea.Cmd
		m.tableModel, cmd = m.tableModel.Update(msg)
		return m, cmd

	case tickMsg:
		if m.paused {
			return m, tick(m.interval)
		}
		return m, tea.Batch(loadSnapshot(m.source, m.interval+requestSlack), tick(m.interval))

	case snapshotLoadedMsg:
		m.err = nil
		m.stats = msg.stats
		m.entries = msg.entries
		m.updatedAt = msg.at
		m.updateTableRows()
		if m.state != stateHelp {
			m.state = stateEntries
		} else {
			m.previousState = stateEntries
		}
		return m, nil

	case cacheFlushedMsg:
		m.setStatus(fmt.Sprintf("Flushed %d cache entries", msg.flushed))
		return m, loadSnapshot(m.source, m.interval+requestSlack)

	case errorMsg:
		m.err = msg.err
		if m.state != stateHelp {
			m.state = stateError
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m *watchModel) View() string {
	switch m.state {
	case stateLoading:
		if m.width == 0 {
			return "Loading..."
		}
		return m.renderLoading()
	case stateEntries:
		return m.renderEntries()
	case stateHelp:
		return m.renderHelp()
	case stateError:
		return m.renderError()
	default:
		return "Unknown state"
	}
}

// updateTableRows rebuilds the table from the latest snapshot
func (m *watchModel) updateTableRows() {
	now := m.now()
	var ttl time.Duration
	if m.stats != nil {
		ttl = time.Duration(m.stats.TTLMillis) * time.Millisecond
	}

	rows := make([]table.Row, 0, len(m.entries))
	for i, e := range m.entries {
		stored := now.Add(-time.Duration(e.AgeMillis) * time.Millisecond)
		state := "fresh"
		if e.Expired {
			state = "expired"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			e.Key,
			utils.FormatRate(e.ExchangeRate),
			utils.FormatAge(stored, now),
			utils.FormatExpiry(stored, ttl, now),
			state,
		})
	}
	m.tableModel.SetRows(rows)
	if m.tableModel.Cursor() >= len(rows) && len(rows) > 0 {
		m.tableModel.SetCursor(len(rows) - 1)
	}
}

func (m *watchModel) setStatus(msg string) {
	m.statusMessage = msg
	m.statusTimeout = m.now().Add(statusDuration)
}
