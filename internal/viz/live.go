package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/metrics"
)

const (
	maxSpeed  = 64
	tickEvery = time.Second / 30
)

type TickMsg time.Time

// Live replays a finished trajectory row by row.
type Live struct {
	title      string
	traj       *dynamo.Trajectory
	mean       []float64
	dispersion []float64
	eta        float64
	playHead   int
	speed      int
	running    bool
}

func NewLive(title string, traj *dynamo.Trajectory, eta float64) Live {
	return Live{
		title:      title,
		traj:       traj,
		mean:       metrics.MeanSeries(traj),
		dispersion: metrics.DispersionSeries(traj),
		eta:        eta,
		speed:      1,
		running:    true,
	}
}

// RunLive starts the replay and blocks until the user quits.
func RunLive(title string, traj *dynamo.Trajectory, eta float64) error {
	_, err := tea.NewProgram(NewLive(title, traj, eta), tea.WithAltScreen()).Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Live) Init() tea.Cmd {
	return tick()
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.playHead = 0
			m.running = true
		case "+", "=":
			if m.speed < maxSpeed {
				m.speed *= 2
			}
		case "-":
			if m.speed > 1 {
				m.speed /= 2
			}
		case "]":
			m.advance(1)
		case "[":
			m.advance(-1)
		}
	case TickMsg:
		if m.running {
			m.advance(m.speed)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Live) advance(n int) {
	last := m.traj.Steps() - 1
	m.playHead += n
	if m.playHead > last {
		m.playHead = last
		m.running = false
	}
	if m.playHead < 0 {
		m.playHead = 0
	}
}

// Defaults counts banks at or below the default level up to the play head.
func (m Live) Defaults() int {
	count := 0
	for j := 0; j < m.traj.Particles(); j++ {
		for i := 0; i <= m.playHead; i++ {
			if m.traj.States[i][j] <= m.eta {
				count++
				break
			}
		}
	}
	return count
}

func (m Live) View() string {
	if m.traj.Steps() == 0 {
		return "no data\n"
	}

	shown := m.mean[:m.playHead+1]
	if len(shown) < 2 {
		shown = m.mean[:minInt(2, len(m.mean))]
	}
	chart := asciigraph.Plot(shown,
		asciigraph.Height(12),
		asciigraph.Width(60),
		asciigraph.Caption("cross-sectional mean"),
	)

	status := statusRunning.Render("RUNNING")
	if !m.running {
		status = statusPaused.Render("PAUSED")
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(status + "\n\n")
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.3f", float64(m.playHead)*m.traj.Dt)) + "\n")
	s.WriteString(labelStyle.Render("Step") + valueStyle.Render(fmt.Sprintf("%d/%d", m.playHead, m.traj.Steps()-1)) + "\n")
	s.WriteString(labelStyle.Render("Mean") + valueStyle.Render(fmt.Sprintf("%+.4f", m.mean[m.playHead])) + "\n")
	s.WriteString(labelStyle.Render("Dispersion") + valueStyle.Render(fmt.Sprintf("%.4f", m.dispersion[m.playHead])) + "\n")

	defaults := fmt.Sprintf("%d/%d", m.Defaults(), m.traj.Particles())
	if m.Defaults() > 0 {
		defaults = alertStyle.Render(defaults)
	} else {
		defaults = valueStyle.Render(defaults)
	}
	s.WriteString(labelStyle.Render("Defaults") + defaults + "\n")
	s.WriteString(labelStyle.Render("Speed") + valueStyle.Render(fmt.Sprintf("%dx", m.speed)) + "\n")
	s.WriteString(helpStyle.Render("SP:Pause R:Restart Q:Quit\n+/-:Speed [ ]:Step"))

	return lipgloss.JoinHorizontal(lipgloss.Top, graphStyle.Render(chart), statsStyle.Render(s.String()))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
