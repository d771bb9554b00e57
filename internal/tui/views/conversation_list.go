package views

import (
	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
)

// ConversationList shows the session user's conversations.
type ConversationList struct {
	*tview.Table
	conversations []cache.Entity
	selectedFn    func() (int, int)
}

// NewConversationList creates a new conversation list.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	cl := &ConversationList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the list with new conversations.
func (cl *ConversationList) Update(conversations []cache.Entity) {
	cl.conversations = conversations
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Title").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Activity").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range conversations {
		row := i + 1
		title, _ := c["title"].(string)
		if title == "" {
			title = c.ID()
		}
		updated, _ := c["updated_at"].(string)
		if updated == "" {
			updated, _ = c["created_at"].(string)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(title)).SetMaxWidth(50).SetExpansion(2))
		cl.SetCell(row, 1, tview.NewTableCell(" "+formatTimestamp(updated)).SetMaxWidth(12))
	}
}

// Selected returns the id of the currently selected conversation.
func (cl *ConversationList) Selected() string {
	row, _ := cl.selectedFn()
	idx := row - 1
	if idx >= 0 && idx < len(cl.conversations) {
		return cl.conversations[idx].ID()
	}
	return ""
}
