package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// finquest theme (CLI + TUI).
// Kept small: reusable styles and a few emojis.

const (
	IconCoin    = "🪙"
	IconSparkle = "✨"
	IconLock    = "🔒"
	IconUnlock  = "🔓"
	IconTrophy  = "🏆"
	IconBolt    = "⚡"
	IconInfo    = "ℹ️"
	IconWarn    = "⚠️"
	IconError   = "🧨"
	IconKey     = "🔑"
	IconChart   = "📈"
	IconClock   = "⏳"
)

type palette struct {
	primary, accent, good, warn, bad, muted, gold lipgloss.TerminalColor
}

var palettes = map[string]palette{
	"dark": {
		primary: lipgloss.Color("63"),  // blue
		accent:  lipgloss.Color("42"),  // green
		good:    lipgloss.Color("42"),
		warn:    lipgloss.Color("214"), // orange
		bad:     lipgloss.Color("196"), // red
		muted:   lipgloss.Color("244"), // gray
		gold:    lipgloss.Color("220"),
	},
	"light": {
		primary: lipgloss.Color("25"),
		accent:  lipgloss.Color("28"),
		good:    lipgloss.Color("28"),
		warn:    lipgloss.Color("130"),
		bad:     lipgloss.Color("124"),
		muted:   lipgloss.Color("240"),
		gold:    lipgloss.Color("136"),
	},
	"mono": {
		primary: lipgloss.NoColor{},
		accent:  lipgloss.NoColor{},
		good:    lipgloss.NoColor{},
		warn:    lipgloss.NoColor{},
		bad:     lipgloss.NoColor{},
		muted:   lipgloss.NoColor{},
		gold:    lipgloss.NoColor{},
	},
}

const DefaultTheme = "dark"

var (
	current = DefaultTheme
	colors  palette

	Title lipgloss.Style
	H2    lipgloss.Style
	Muted lipgloss.Style
	Key   lipgloss.Style
	Good  lipgloss.Style
	Warn  lipgloss.Style
	Bad   lipgloss.Style
	Gold  lipgloss.Style

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Toast      lipgloss.Style

	BadgeLevelUp string
)

func init() {
	_ = Apply(DefaultTheme)
}

// Themes lists the available theme names.
func Themes() []string {
	names := make([]string, 0, len(palettes))
	for n := range palettes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func Current() string { return current }

// Apply rebuilds every style from the named palette. Not safe to call while
// rendering.
func Apply(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultTheme
	}
	p, ok := palettes[name]
	if !ok {
		return fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(Themes(), ", "))
	}
	current, colors = name, p

	Title = lipgloss.NewStyle().Bold(true).Foreground(p.accent)
	H2 = lipgloss.NewStyle().Bold(true).Foreground(p.primary)
	Muted = lipgloss.NewStyle().Foreground(p.muted)
	Key = lipgloss.NewStyle().Bold(true).Foreground(p.primary)
	Good = lipgloss.NewStyle().Bold(true).Foreground(p.good)
	Warn = lipgloss.NewStyle().Bold(true).Foreground(p.warn)
	Bad = lipgloss.NewStyle().Bold(true).Foreground(p.bad)
	Gold = lipgloss.NewStyle().Bold(true).Foreground(p.gold)

	Panel = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.muted).Padding(0, 1)
	PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(p.primary)
	Toast = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.gold).Padding(0, 1)

	BadgeLevelUp = Gold.Render("LEVEL UP")
	return nil
}

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// LevelStyle colors text with a level's hex color. The mono theme ignores it.
func LevelStyle(hex string) lipgloss.Style {
	if current == "mono" || hex == "" {
		return lipgloss.NewStyle().Bold(true)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(hex))
}

// ProgressBar renders percent (0..100) as a fixed-width bar.
func ProgressBar(percent float64, width int) string {
	if width <= 3 {
		width = 3
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + Good.Render(strings.Repeat("#", filled)) + Muted.Render(strings.Repeat("-", width-filled)) + "]"
}

// AuthStateText colors an auth session state.
func AuthStateText(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "authenticated":
		return Good.Render("signed in")
	case "loading":
		return Warn.Render("loading")
	case "error":
		return Bad.Render("error")
	default:
		return Muted.Render("signed out")
	}
}
