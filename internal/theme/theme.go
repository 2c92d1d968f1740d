// Package theme resolves the color palette for the interactive grid.
//
// The grid must remain readable on both light and dark terminal backgrounds,
// so every palette entry carries a light and a dark variant and is resolved
// to a concrete termenv color once at startup. The compositor needs concrete
// comparable colors for frame diffing, which is why the grid palette is
// termenv rather than lipgloss adaptive colors; the non-interactive CLI
// output keeps using lipgloss styles.
package theme

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"taskdeck/internal/screen"
)

// adaptive is a light/dark ANSI color pair, resolved against the detected
// background.
type adaptive struct {
	light string
	dark  string
}

func (a adaptive) resolve(p termenv.Profile, dark bool) termenv.Color {
	v := a.light
	if dark {
		v = a.dark
	}
	if v == "" {
		return nil
	}
	return p.Color(v)
}

// Theme is the resolved palette plus the ready-made cell styles the grid
// renderer stamps onto the back buffer.
type Theme struct {
	Profile termenv.Profile
	Dark    bool

	Header      screen.Style
	HeaderSort  screen.Style
	Row         screen.Style
	RowMuted    screen.Style
	Selected    screen.Style
	SelectedBar screen.Style
	MultiMark   screen.Style
	EditField   screen.Style
	EditError   screen.Style
	LaneHeader  screen.Style
	LanePicked  screen.Style
	StatusBar   screen.Style
	StatusError screen.Style
	FilterBar   screen.Style
	GroupHeader screen.Style
	HelpKey     screen.Style
	HelpText    screen.Style
	Overdue     screen.Style
	Priority1   screen.Style
	Done        screen.Style
}

// Detect builds the theme from the environment: color profile first, then
// background, then the palette resolution.
func Detect() *Theme {
	profile := detectProfile()
	dark := detectDarkBackground()
	lipgloss.SetColorProfile(profile)
	lipgloss.SetHasDarkBackground(dark)
	return build(profile, dark)
}

// ForTest returns a fixed truecolor dark theme so rendering tests are
// independent of the host terminal.
func ForTest() *Theme {
	return build(termenv.TrueColor, true)
}

func build(p termenv.Profile, dark bool) *Theme {
	var (
		muted       = adaptive{"240", "243"}
		chrome      = adaptive{"240", "245"}
		selectedBg  = adaptive{"#e9e9e9", "#262626"}
		selectedFg  = adaptive{"235", "255"}
		surfaceFg   = adaptive{"235", "252"}
		controlBg   = adaptive{"252", "236"}
		inputBg     = adaptive{"254", "234"}
		accent      = adaptive{"27", "62"}
		accentFg    = adaptive{"255", "235"}
		errorFg     = adaptive{"160", "196"}
		errorBg     = adaptive{"224", "52"}
		warnFg      = adaptive{"130", "214"}
		okFg        = adaptive{"28", "114"}
		laneBg      = adaptive{"253", "237"}
		laneFg      = adaptive{"235", "254"}
	)

	c := func(a adaptive) termenv.Color { return a.resolve(p, dark) }

	t := &Theme{Profile: p, Dark: dark}
	t.Header = screen.Style{FG: c(chrome), Bold: true, Underline: true}
	t.HeaderSort = screen.Style{FG: c(accent), Bold: true, Underline: true}
	t.Row = screen.Style{FG: c(surfaceFg)}
	t.RowMuted = screen.Style{FG: c(muted)}
	t.Selected = screen.Style{FG: c(selectedFg), BG: c(selectedBg), Bold: true}
	t.SelectedBar = screen.Style{FG: c(accent), BG: c(selectedBg), Bold: true}
	t.MultiMark = screen.Style{FG: c(warnFg), Bold: true}
	t.EditField = screen.Style{FG: c(surfaceFg), BG: c(inputBg), Underline: true}
	t.EditError = screen.Style{FG: c(errorFg), BG: c(errorBg), Bold: true}
	t.LaneHeader = screen.Style{FG: c(laneFg), BG: c(laneBg), Bold: true}
	t.LanePicked = screen.Style{FG: c(accentFg), BG: c(accent), Bold: true}
	t.StatusBar = screen.Style{FG: c(surfaceFg), BG: c(controlBg)}
	t.StatusError = screen.Style{FG: c(errorFg), BG: c(controlBg), Bold: true}
	t.FilterBar = screen.Style{FG: c(surfaceFg), BG: c(inputBg)}
	t.GroupHeader = screen.Style{FG: c(accent), Bold: true}
	t.HelpKey = screen.Style{FG: c(accent), Bold: true}
	t.HelpText = screen.Style{FG: c(muted)}
	t.Overdue = screen.Style{FG: c(errorFg), Bold: true}
	t.Priority1 = screen.Style{FG: c(warnFg), Bold: true}
	t.Done = screen.Style{FG: c(okFg)}
	return t
}

// detectProfile mirrors the non-interactive detector but ignores
// CLICOLOR, which can accidentally strip a full-screen UI of color.
// NO_COLOR is always honored.
func detectProfile() termenv.Profile {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return termenv.Ascii
	}

	profile := termenv.ColorProfile()

	// Trust the environment when it claims more than the probe reports;
	// some terminals under-report and end up with washed-out grays.
	termName := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(termName, "256color") {
		if profile == termenv.Ascii || profile == termenv.ANSI {
			profile = termenv.ANSI256
		}
	}
	return profile
}

// detectDarkBackground picks the palette variant.
//
// Priority:
// 1) TASKDECK_THEME=light|dark|auto
// 2) TASKDECK_DARKBG=true|false
// 3) COLORFGBG heuristic ("fg;bg", last segment is the background)
// 4) termenv's own probe
func detectDarkBackground() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TASKDECK_THEME"))) {
	case "light":
		return false
	case "dark":
		return true
	}

	if v := strings.TrimSpace(os.Getenv("TASKDECK_DARKBG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		bgStr := strings.TrimSpace(parts[len(parts)-1])
		if bg, err := strconv.Atoi(bgStr); err == nil {
			return bg < 7
		}
	}

	return termenv.HasDarkBackground()
}
