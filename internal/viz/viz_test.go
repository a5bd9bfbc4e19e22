package viz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/banksim/internal/dynamo"
)

func sampleTrajectory() *dynamo.Trajectory {
	return &dynamo.Trajectory{
		Dt: 0.25,
		States: []dynamo.State{
			{0, 0, 0},
			{0.2, -0.3, 0.1},
			{0.4, -0.8, 0.0},
			{0.1, -0.5, -0.2},
			{0.0, -0.2, -0.1},
		},
	}
}

func TestPlot(t *testing.T) {
	out := Plot(sampleTrajectory(), PlotOptions{Width: 40, Height: 8, Paths: 10, Caption: "banks"})
	if !strings.Contains(out, "banks") {
		t.Errorf("expected caption in plot:\n%s", out)
	}
	if Plot(&dynamo.Trajectory{}, DefaultPlotOptions()) != "" {
		t.Error("expected empty plot for empty trajectory")
	}
}

func TestHistogram(t *testing.T) {
	out := Histogram([]float64{0, 1, 1, 2, 5, 9}, 5, "defaults per run")
	if !strings.Contains(out, "defaults per run") {
		t.Errorf("expected caption in histogram:\n%s", out)
	}
	if Histogram(nil, 5, "x") != "" {
		t.Error("expected empty histogram for no values")
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"traj.png", "traj.svg"} {
		path := filepath.Join(dir, name)
		if err := Render(sampleTrajectory(), path, DefaultRenderOptions()); err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	if err := Render(sampleTrajectory(), filepath.Join(dir, "traj.txt"), DefaultRenderOptions()); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if err := Render(&dynamo.Trajectory{}, filepath.Join(dir, "empty.png"), DefaultRenderOptions()); err == nil {
		t.Error("expected error for empty trajectory")
	}
}

func TestLivePlayback(t *testing.T) {
	m := NewLive("mean_field", sampleTrajectory(), -0.7)

	next, _ := m.Update(TickMsg{})
	m = next.(Live)
	if m.playHead != 1 {
		t.Fatalf("playHead = %d, want 1", m.playHead)
	}
	if m.Defaults() != 0 {
		t.Errorf("no bank has defaulted by step 1, got %d", m.Defaults())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	m = next.(Live)
	next, _ = m.Update(TickMsg{})
	m = next.(Live)
	if m.playHead != 3 {
		t.Fatalf("playHead = %d, want 3 at double speed", m.playHead)
	}
	if m.Defaults() != 1 {
		t.Errorf("expected one default by step 3, got %d", m.Defaults())
	}

	for i := 0; i < 5; i++ {
		next, _ = m.Update(TickMsg{})
		m = next.(Live)
	}
	if m.playHead != 4 || m.running {
		t.Errorf("expected playback to stop at the last row, head=%d running=%v", m.playHead, m.running)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(Live)
	if m.playHead != 0 || !m.running {
		t.Errorf("restart should rewind to 0 and resume, head=%d running=%v", m.playHead, m.running)
	}

	if !strings.Contains(m.View(), "MEAN_FIELD") {
		t.Error("expected title in view")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected quit command")
	}
}
