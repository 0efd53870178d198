// Package ui implements dump1090's signature "--interactive" terminal view:
// a live-updating table of tracked aircraft, refreshed on a timer and
// filtered by the display TTL it is given (spec.md §6's
// interactive_display_ttl); aircraft past the tracker's delete TTL are
// already absent from the snapshot.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ppup1090core/lib/tracker"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
var staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

// tickMsg drives the periodic refresh.
type tickMsg time.Time

// SnapshotFunc returns the currently tracked aircraft, freshest state.
type SnapshotFunc func() []tracker.AircraftSnapshot

// Model is the bubbletea model backing the interactive view.
type Model struct {
	snapshot    SnapshotFunc
	table       table.Model
	displayTTL  time.Duration
	refresh     time.Duration
}

// NewModel builds an interactive aircraft table model. displayTTL controls
// how long after its last received message an aircraft is still listed;
// older entries are left out of the table. Listed rows are not dimmed or
// otherwise styled by age.
func NewModel(snapshot SnapshotFunc, displayTTL, refresh time.Duration) Model {
	columns := []table.Column{
		{Title: "ICAO", Width: 6},
		{Title: "Callsign", Width: 9},
		{Title: "Squawk", Width: 6},
		{Title: "Altitude", Width: 8},
		{Title: "Speed", Width: 6},
		{Title: "Track", Width: 6},
		{Title: "Lat", Width: 10},
		{Title: "Lon", Width: 10},
		{Title: "Msgs", Width: 6},
		{Title: "Seen", Width: 6},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(false), table.WithHeight(20))
	return Model{snapshot: snapshot, table: t, displayTTL: displayTTL, refresh: refresh}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.table.SetRows(m.rows(time.Time(msg)))
		return m, tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return headerStyle.Render("Tracked Aircraft") + "\n" + m.table.View() + "\n(q to quit)\n"
}

func (m Model) rows(now time.Time) []table.Row {
	snapshots := m.snapshot()
	rows := make([]table.Row, 0, len(snapshots))
	for _, ac := range snapshots {
		age := now.Sub(ac.Seen)
		if age > m.displayTTL {
			continue
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%06X", ac.Icao),
			ac.Callsign,
			squawkCell(ac),
			altitudeCell(ac),
			fmt.Sprintf("%.0f", ac.Speed),
			fmt.Sprintf("%.0f", ac.Track),
			latLonCell(ac.Lat, ac.HasPosition),
			latLonCell(ac.Lon, ac.HasPosition),
			fmt.Sprintf("%d", ac.Messages),
			fmt.Sprintf("%ds", int(age.Seconds())),
		})
	}
	return rows
}

func squawkCell(ac tracker.AircraftSnapshot) string {
	if !ac.HasSquawk {
		return ""
	}
	return fmt.Sprintf("%04d", ac.Squawk)
}

func altitudeCell(ac tracker.AircraftSnapshot) string {
	if !ac.HasAltitude {
		if ac.OnGround {
			return "ground"
		}
		return ""
	}
	return fmt.Sprintf("%d", ac.Altitude)
}

func latLonCell(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.4f", v)
}

// Run starts the interactive program and blocks until the user quits.
func Run(snapshot SnapshotFunc, displayTTL, refresh time.Duration) error {
	p := tea.NewProgram(NewModel(snapshot, displayTTL, refresh))
	_, err := p.Run()
	return err
}
