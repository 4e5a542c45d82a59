package notify

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

//nolint:gochecknoglobals // fixed palette
var (
	badgeBase = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	badges    = map[Kind]lipgloss.Style{
		Success: badgeBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")),
		Error:   badgeBase.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")),
		Info:    badgeBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39")),
		Warning: badgeBase.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
	}
	dimStyle = lipgloss.NewStyle().Faint(true)
)

// Console writes notices as styled terminal lines.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to w, or stdout when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

// Notify prints the notice.
func (c *Console) Notify(n Notice) {
	if n.Empty() {
		return
	}
	style, ok := badges[n.Kind]
	if !ok {
		style = badges[Info]
	}
	line := style.Render(string(n.Kind)) + " " + n.Text
	if !n.Transient() {
		line += " " + dimStyle.Render("(persistent)")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

// NavigateAfter prints the page the panel would move to. A CLI has no page
// to replace, so the delay is reported instead of waited out.
func (c *Console) NavigateAfter(delay time.Duration, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", dimStyle.Render(fmt.Sprintf("-> after %s:", delay)), url)
}
