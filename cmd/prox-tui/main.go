// Terminal proximity viewer: polls the live feed and renders a ranked
// distance table for a watched set of callsigns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/opensky-prox/pkg/config"
	"github.com/unklstewy/opensky-prox/pkg/distance"
	"github.com/unklstewy/opensky-prox/pkg/geo"
	"github.com/unklstewy/opensky-prox/pkg/opensky"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	latFlag    = flag.Float64("lat", 50.1109, "Observer latitude")
	lonFlag    = flag.Float64("lon", 8.6821, "Observer longitude")
	callsigns  = flag.String("callsigns", "", "Comma-separated callsigns to rank")
	interval   = flag.Duration("interval", 10*time.Second, "Refresh interval")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("246"))

	closestStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	footerStyle = lipgloss.NewStyle().
			Faint(true).
			MarginTop(1)
)

type model struct {
	feed        *opensky.Client
	loc         distance.UserLocation
	identifiers []string
	summary     distance.Summary
	updatedAt   time.Time
	err         error
	refreshing  bool
}

type tickMsg time.Time

type summaryMsg struct {
	summary distance.Summary
	err     error
}

func tick() tea.Cmd {
	return tea.Tick(*interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		positions, err := m.feed.Positions(ctx, m.identifiers, nil)
		if err != nil {
			return summaryMsg{err: err}
		}
		return summaryMsg{summary: distance.BuildDistanceResults(m.loc, positions, m.identifiers)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.refreshing {
				m.refreshing = true
				return m, m.refresh()
			}
		}

	case tickMsg:
		if m.refreshing {
			return m, tick()
		}
		m.refreshing = true
		return m, tea.Batch(m.refresh(), tick())

	case summaryMsg:
		m.refreshing = false
		m.err = msg.err
		if msg.err == nil {
			m.summary = msg.summary
			m.updatedAt = time.Now()
		}
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("✈  OpenSky Prox — %.4f, %.4f", m.loc.Lat, m.loc.Lon)))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("feed error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %10s %10s %10s  %s",
		"CALLSIGN", "DIST KM", "LAT", "LON", "LAST UPDATE")))
	b.WriteString("\n")

	if len(m.summary.Results) == 0 {
		b.WriteString("  no aircraft resolved yet\n")
	}
	for i, result := range m.summary.Results {
		line := fmt.Sprintf("%-10s %10.2f %10.4f %10.4f  %s",
			result.Callsign, result.DistanceKm, result.Lat, result.Lon, result.LastUpdate)
		if i == 0 {
			line = closestStyle.Render(line + "  ◀ closest")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.summary.Missing) > 0 {
		b.WriteString(missingStyle.Render("missing: " + strings.Join(m.summary.Missing, ", ")))
		b.WriteString("\n")
	}

	status := "refreshing..."
	if !m.refreshing && !m.updatedAt.IsZero() {
		status = "updated " + m.updatedAt.Format("15:04:05")
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("%s · r refresh · q quit", status)))
	b.WriteString("\n")

	return b.String()
}

func main() {
	flag.Parse()

	if !geo.ValidCoordinates(*latFlag, *lonFlag) {
		log.Fatalf("Invalid observer coordinates: %f, %f", *latFlag, *lonFlag)
	}

	identifiers := make([]string, 0)
	for _, callsign := range strings.Split(*callsigns, ",") {
		normalized := opensky.NormalizeCallsign(callsign)
		if normalized == "" {
			continue
		}
		if !opensky.IsValidCallsign(normalized) {
			log.Fatalf("Invalid callsign: %s", callsign)
		}
		identifiers = append(identifiers, normalized)
	}
	if len(identifiers) == 0 {
		log.Fatal("No callsigns given; use -callsigns AAA100,BBB200")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	settings := config.NewFeedSettings(cfg.Feed)

	m := model{
		feed:        opensky.NewClient(settings),
		loc:         distance.UserLocation{Lat: *latFlag, Lon: *lonFlag},
		identifiers: identifiers,
		refreshing:  true,
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
