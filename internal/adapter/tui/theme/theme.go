// Package theme holds the colors, styles and symbols shared by routerctl's
// views. Colors adapt to light and dark terminals; lipgloss drops them when
// NO_COLOR is set.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"a2a-router/internal/domain"
)

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder   = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBgAlt    = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	ColorFgDim    = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
	ColorTabBg    = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}
	ColorTabFg    = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9e9e9e"}
	ColorTabActBg = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorTabActFg = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1e1e1e"}
)

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Message role labels.
var (
	UserLabel   = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	RouterLabel = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	SystemLabel = lipgloss.NewStyle().Foreground(ColorMuted).Bold(true)
	ErrorLabel  = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	AgentLabel  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	Timestamp   = lipgloss.NewStyle().Foreground(ColorFgDim).Faint(true)
)

var (
	TabNormal = lipgloss.NewStyle().
			Foreground(ColorTabFg).
			Background(ColorTabBg).
			Padding(0, 2)

	TabActive = lipgloss.NewStyle().
			Foreground(ColorTabActFg).
			Background(ColorTabActBg).
			Bold(true).
			Padding(0, 2)

	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPrompt      = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	InputPlaceholder = lipgloss.NewStyle().Foreground(ColorFgDim)

	StatValue = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
)

// StateStyle colors a request state by the kind of work it stands for.
func StateStyle(s domain.RequestState) lipgloss.Style {
	switch s {
	case domain.StateAnalyzing, domain.StateDependencyCheck:
		return TextInfo
	case domain.StateSingleDispatch, domain.StateParallelDispatch, domain.StateSequentialDispatch:
		return TextWarning
	case domain.StateAggregating, domain.StateDirectHandle:
		return TextAccent
	case domain.StateResponded:
		return TextSuccess
	}
	return TextMuted
}

// MaxContentWidth caps the width of rendered message bodies.
const MaxContentWidth = 100

// MinTabWidth is the terminal width below which tab labels collapse.
const MinTabWidth = 60
