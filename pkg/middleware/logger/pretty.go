package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var methodStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("15")).
	Background(lipgloss.Color("12")).
	Bold(true).
	Width(8).
	Align(lipgloss.Center)

// Pretty prints a colored one-line request summary, meant for a developer
// terminal next to the JSON access log.
type Pretty struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPretty writes to out, or stderr when out is nil.
func NewPretty(out io.Writer) *Pretty {
	if out == nil {
		out = os.Stderr
	}
	return &Pretty{out: out}
}

func (p *Pretty) Print(method, path string, status int, lat time.Duration) {
	line := Line(method, path, status, lat)
	p.mu.Lock()
	fmt.Fprintln(p.out, line)
	p.mu.Unlock()
}

// Line renders "METHOD path STATUS in LAT".
func Line(method, path string, status int, lat time.Duration) string {
	return fmt.Sprintf("%s %s %s in %s",
		methodStyle.Render(method),
		path,
		statusStyle(status).Render(fmt.Sprintf("%d", status)),
		lat.Round(time.Microsecond),
	)
}

func statusStyle(code int) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch {
	case code >= 500:
		return s.Foreground(lipgloss.Color("196"))
	case code >= 400:
		return s.Foreground(lipgloss.Color("208"))
	case code >= 300:
		return s.Foreground(lipgloss.Color("226"))
	case code >= 200:
		return s.Foreground(lipgloss.Color("46"))
	default:
		return s.Foreground(lipgloss.Color("15"))
	}
}
