package views

import (
	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
)

// NotificationList shows the session user's notifications, newest first.
type NotificationList struct {
	*tview.Table
	notifications []cache.Entity
	selectedFn    func() (int, int)
}

// NewNotificationList creates a new notification list.
func NewNotificationList() *NotificationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Notifications ")

	nl := &NotificationList{Table: table}
	nl.selectedFn = table.GetSelection
	return nl
}

// Update refreshes the list with new notifications.
func (nl *NotificationList) Update(notifications []cache.Entity) {
	nl.notifications = notifications
	nl.Clear()

	nl.SetCell(0, 0, tview.NewTableCell("  ").SetSelectable(false))
	nl.SetCell(0, 1, tview.NewTableCell(" Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	nl.SetCell(0, 2, tview.NewTableCell(" When").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, n := range notifications {
		row := i + 1
		message, _ := n["message"].(string)
		created, _ := n["created_at"].(string)
		read, _ := n["is_read"].(bool)

		marker := "  "
		if !read {
			marker = " [orange]*[-]"
		}
		nl.SetCell(row, 0, tview.NewTableCell(marker).SetMaxWidth(2))
		nl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(message)).SetMaxWidth(60).SetExpansion(2))
		nl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(created)).SetMaxWidth(12))
	}
}

// Selected returns the id of the currently selected notification.
func (nl *NotificationList) Selected() string {
	row, _ := nl.selectedFn()
	idx := row - 1
	if idx >= 0 && idx < len(nl.notifications) {
		return nl.notifications[idx].ID()
	}
	return ""
}
