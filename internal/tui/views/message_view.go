package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
)

// MessageView displays the messages of a single conversation, oldest first.
type MessageView struct {
	*tview.TextView
	userID string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetUser records the session user id so own messages render as "You".
func (mv *MessageView) SetUser(id string) {
	mv.userID = id
}

// SetConversationTitle updates the view title.
func (mv *MessageView) SetConversationTitle(title string) {
	mv.SetTitle(fmt.Sprintf(" %s ", title))
}

// Update refreshes the message view.
func (mv *MessageView) Update(msgs []cache.Entity) {
	mv.Clear()

	for _, m := range msgs {
		sender, _ := m["sender_name"].(string)
		if sender == "" {
			sender, _ = m["sender_id"].(string)
		}
		if sid, _ := m["sender_id"].(string); mv.userID != "" && sid == mv.userID {
			sender = "You"
		}

		content, _ := m["content"].(string)
		created, _ := m["created_at"].(string)
		status, _ := m["status"].(string)

		suffix := ""
		switch status {
		case "queued", "sending":
			suffix = " [yellow](sending)[-]"
		case "failed":
			suffix = " [red](failed)[-]"
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			sanitizeForTerminal(sender), formatTimestamp(created), suffix, sanitizeForTerminal(content))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}
