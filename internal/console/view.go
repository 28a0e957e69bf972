package console

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/winmacro/internal/engine"
)

const helpLine = "r record  p play  s stop  up/down select  l reload  q quit"

var (
	styleDefault  = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleDim      = tcell.StyleDefault.Dim(true)
	styleSelected = tcell.StyleDefault.Reverse(true)
	styleError    = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

func stateStyle(s engine.State) tcell.Style {
	switch s {
	case engine.StateRecording:
		return styleDefault.Foreground(tcell.ColorRed).Bold(true)
	case engine.StatePlaying:
		return styleDefault.Foreground(tcell.ColorGreen).Bold(true)
	case engine.StateFailed:
		return styleError
	}
	return styleDefault
}

// draw renders the panel and shows it.
func (c *Console) draw() {
	c.mu.Lock()
	st := c.status
	macros := c.macros
	selected := c.selected
	message := c.message
	c.mu.Unlock()

	s := c.screen
	s.Clear()
	width, height := s.Size()

	c.text(0, 0, width, styleTitle, "winmacro")

	x := c.text(0, 2, width, styleDefault, "State: ")
	x = c.text(x, 2, width, stateStyle(st.State), string(st.State))
	if st.Window != "" {
		c.text(x, 2, width, styleDefault, "   Window: "+st.Window)
	}

	line := fmt.Sprintf("Macro: %s   Events: %d   Elapsed: %s", orDash(st.Macro), st.Events, st.Elapsed.Round(100*time.Millisecond))
	if st.State == engine.StatePlaying || st.Loops != 0 || st.Loop != 0 {
		loops := "inf"
		if st.Loops > 0 {
			loops = fmt.Sprint(st.Loops)
		}
		line += fmt.Sprintf("   Loop: %d/%s", st.Loop+1, loops)
	}
	c.text(0, 3, width, styleDefault, line)

	if st.Error != "" {
		c.text(0, 4, width, styleError, "Error: "+st.Error)
	} else if st.Reason != "" {
		c.text(0, 4, width, styleDim, "Reason: "+st.Reason)
	}

	c.text(0, 6, width, styleTitle, fmt.Sprintf("Macros (%d)", len(macros)))
	row := 7
	for i, m := range macros {
		if row >= height-3 {
			break
		}
		style := styleDefault
		marker := "  "
		if i == selected {
			style = styleSelected
			marker = "> "
		}
		c.text(0, row, width, style, fmt.Sprintf("%s[%s] %s  %d events, %.1fs", marker, m.Category, m.Name, m.EventCount, m.Duration))
		row++
	}

	if message != "" {
		c.text(0, height-2, width, styleDefault, message)
	}
	c.text(0, height-1, width, styleDim, helpLine)
	s.Show()
}

// text draws str at x,y clipped to width and returns the next column.
func (c *Console) text(x, y, width int, style tcell.Style, str string) int {
	for _, r := range str {
		if x >= width {
			break
		}
		c.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
