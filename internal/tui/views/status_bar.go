package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/status"
)

// StatusBar displays the profile, connectivity state and unread count.
type StatusBar struct {
	*tview.TextView
	profile string
	state   status.State
	unread  int
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, state: status.Disconnected}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connectivity badge.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// SetUnread updates the unread notification counter.
func (sb *StatusBar) SetUnread(n int) {
	sb.unread = n
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	badge := stateBadge(sb.state)
	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, badge, clock)
	if sb.unread > 0 {
		line += fmt.Sprintf(" | [orange]%d unread[-]", sb.unread)
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}

// stateBadge colors the connectivity state: live updates green, degraded
// polling yellow, everything else red.
func stateBadge(s status.State) string {
	switch s {
	case status.Connected:
		return "[green]CONNECTED[-]"
	case status.Polling:
		return "[yellow]POLLING[-]"
	case status.Connecting:
		return "[yellow]CONNECTING[-]"
	default:
		return "[red]OFFLINE[-]"
	}
}
