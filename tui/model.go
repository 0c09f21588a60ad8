package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-motif/engine"
	"go-motif/midi"
	"go-motif/pattern"
	"go-motif/theme"
	"go-motif/widgets"
)

// Engine is the part of engine.Engine the monitor needs.
type Engine interface {
	Snapshot() engine.Snapshot
	Updates() <-chan struct{}
	StopAll()
	ResetMatcher()
	Lifecycle() *engine.Lifecycle
}

// Devices reports MIDI port changes. *midi.DeviceManager implements it.
type Devices interface {
	Events() <-chan midi.DeviceEvent
	Controllers() []string
}

// Lowest and highest notes shown on the key strip (C2..C7).
const (
	stripLo = 36
	stripHi = 96
)

const refreshRate = 250 * time.Millisecond

var keyHelp = []widgets.KeySection{{
	Title: "Keys",
	Keys: []widgets.KeyBinding{
		{Key: "a", Desc: "all notes off"},
		{Key: "r", Desc: "reset partial matches"},
		{Key: "?", Desc: "toggle this help"},
		{Key: "q", Desc: "quit"},
	},
}}

type Model struct {
	Engine    Engine
	DeviceMgr Devices
	Theme     *theme.Theme
	// Dropped reports actions lost because the action queue was full.
	Dropped func() uint64

	snap     engine.Snapshot
	devices  []string
	showHelp bool
	stopping bool
	quitting bool
}

type UpdateMsg struct{}

type TickMsg time.Time

type StoppedMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(eng Engine, deviceMgr Devices, th *theme.Theme) Model {
	m := Model{
		Engine:    eng,
		DeviceMgr: deviceMgr,
		Theme:     th,
		snap:      eng.Snapshot(),
	}
	if deviceMgr != nil {
		m.devices = deviceMgr.Controllers()
		sort.Strings(m.devices)
	}
	return m
}

func ListenForUpdates(eng Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.Updates()
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr Devices) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

// ListenForStop delivers StoppedMsg once the lifecycle reaches Stopped.
func ListenForStop(life *engine.Lifecycle) tea.Cmd {
	return func() tea.Msg {
		<-life.Done()
		return StoppedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		ListenForUpdates(m.Engine),
		ListenForStop(m.Engine.Lifecycle()),
		tick(),
	}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopping = true
			m.Engine.StopAll()
			m.Engine.Lifecycle().RequestStop()

		case "a":
			m.Engine.StopAll()

		case "r":
			m.Engine.ResetMatcher()

		case "?":
			m.showHelp = !m.showHelp
		}

	case UpdateMsg:
		m.snap = m.Engine.Snapshot()
		return m, ListenForUpdates(m.Engine)

	case TickMsg:
		m.snap = m.Engine.Snapshot()
		m.stopping = m.snap.State != engine.Running
		return m, tick()

	case StoppedMsg:
		m.quitting = true
		return m, tea.Quit

	case DeviceEventMsg:
		m.devices = m.DeviceMgr.Controllers()
		sort.Strings(m.devices)
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme
	snap := m.snap

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Background(th.BG())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(th.FG())
	liveStyle := lipgloss.NewStyle().Foreground(th.Cursor())
	candidateStyle := lipgloss.NewStyle().Foreground(th.Active())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	state := "LIVE"
	stateStyle := headerStyle.Foreground(th.Success())
	if m.stopping || snap.State != engine.Running {
		state = "STOPPING"
		stateStyle = headerStyle.Foreground(th.Warning())
	}
	devices := "no input"
	if len(m.devices) > 0 {
		devices = strings.Join(m.devices, ", ")
	}
	header := headerStyle.Render("go-motif") + "  " +
		stateStyle.Render(state) + "  " +
		headerStyle.Render(fmt.Sprintf("notes:%d  matches:%d", snap.Notes, snap.Matches))

	keys := widgets.RenderKeyStrip(snap.Held, stripLo, stripHi, widgets.KeyStyle{
		Held:       th.Symbols.KeyHeld,
		White:      th.Symbols.KeyWhite,
		Black:      th.Symbols.KeyBlack,
		HeldColor:  th.RGB(theme.RoleActive),
		WhiteColor: th.RGB(theme.RoleFG),
		BlackColor: th.RGB(theme.RoleMuted),
	})

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("in: " + devices))
	out.WriteString("\n\n")
	out.WriteString(keys)
	out.WriteString("\n\n")

	out.WriteString(fgStyle.Render("recent"))
	out.WriteString("  ")
	for i, ev := range snap.Recent {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(pattern.Token(ev.Note).String())
	}
	out.WriteString("\n\n")

	if len(snap.Live) == 0 {
		out.WriteString(dimStyle.Render("no partial matches"))
		out.WriteString("\n")
	}
	for _, b := range snap.Live {
		line := fmt.Sprintf("%c %s", th.Symbols.Live, pattern.FormatTokens(b.Prefix))
		out.WriteString(liveStyle.Render(line))
		if len(b.Patterns) > 0 {
			out.WriteString("  ")
			out.WriteString(candidateStyle.Render(strings.Join(b.Patterns, ", ")))
		}
		out.WriteString("\n")
	}
	// Older matches fade down the palette.
	for i := len(snap.Fired) - 1; i >= 0; i-- {
		f := snap.Fired[i]
		age := len(snap.Fired) - 1 - i
		style := lipgloss.NewStyle().Foreground(th.Color(theme.RoleSuccess - 0.05*float64(age)))
		line := fmt.Sprintf("%c %s  %s", th.Symbols.Fired, f.Action, f.At.Format("15:04:05.000"))
		out.WriteString(style.Render(line))
		out.WriteString("\n")
	}

	var actionsDropped uint64
	if m.Dropped != nil {
		actionsDropped = m.Dropped()
	}
	stats := fmt.Sprintf("periods:%d  dropped cmds:%d  dropped actions:%d  render failures:%d",
		snap.Periods, snap.DroppedCommands, actionsDropped, snap.RenderFailures)
	out.WriteString("\n")
	if snap.DroppedCommands > 0 || actionsDropped > 0 || snap.RenderFailures > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("%c %s", th.Symbols.Dropped, stats)))
	} else {
		out.WriteString(dimStyle.Render(stats))
	}
	out.WriteString("\n\n")

	// Help line
	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(keyHelp))
		out.WriteString("\n\nLegend\n")
		out.WriteString(m.legend())
	} else {
		out.WriteString(dimStyle.Render("a:all off  r:reset  ?:help  q:quit"))
	}

	return out.String()
}

func (m Model) legend() string {
	th := m.Theme
	items := []string{
		widgets.RenderLegendItem(th.RGB(theme.RoleActive), th.Symbols.KeyHeld, "held", "key is down"),
		widgets.RenderLegendItem(th.RGB(theme.RoleCursor), th.Symbols.Live, "live", "partial match and the patterns it can complete"),
		widgets.RenderLegendItem(th.RGB(theme.RoleSuccess), th.Symbols.Fired, "fired", "completed pattern"),
		widgets.RenderLegendItem(th.RGB(theme.RoleWarning), th.Symbols.Dropped, "dropped", "commands or actions lost to a full queue"),
	}
	return strings.Join(items, "\n")
}
