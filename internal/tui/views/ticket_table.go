package views

import (
	"time"

	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
)

// TicketTable is the main ticket list view.
type TicketTable struct {
	*tview.Table
	tickets    []cache.Entity
	selectedFn func() (int, int)
}

// NewTicketTable creates a new ticket table.
func NewTicketTable() *TicketTable {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Tickets ")

	tt := &TicketTable{Table: table}
	tt.selectedFn = table.GetSelection
	return tt
}

// Update refreshes the table with a new ticket list.
func (tt *TicketTable) Update(tickets []cache.Entity) {
	tt.tickets = tickets
	tt.Clear()

	headers := []string{" Subject", " Status", " Priority", " Updated"}
	for col, h := range headers {
		tt.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	}

	for i, t := range tickets {
		row := i + 1
		subject, _ := t["subject"].(string)
		status, _ := t["status"].(string)
		priority, _ := t["priority"].(string)
		updated, _ := t["updated_at"].(string)
		if updated == "" {
			updated, _ = t["created_at"].(string)
		}

		tt.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(subject)).SetMaxWidth(50).SetExpansion(2))
		tt.SetCell(row, 1, tview.NewTableCell(" "+statusTag(status)).SetMaxWidth(14))
		tt.SetCell(row, 2, tview.NewTableCell(" "+priority).SetMaxWidth(10))
		tt.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(updated)).SetMaxWidth(12))
	}
}

// SelectedTicket returns the id of the currently selected ticket.
func (tt *TicketTable) SelectedTicket() string {
	row, _ := tt.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(tt.tickets) {
		return tt.tickets[idx].ID()
	}
	return ""
}

func statusTag(status string) string {
	switch status {
	case "open":
		return "[red]open[-]"
	case "in_progress":
		return "[yellow]in_progress[-]"
	case "resolved", "closed":
		return "[green]" + status + "[-]"
	default:
		return status
	}
}

// formatTimestamp renders an RFC 3339 timestamp compactly: clock time for
// today, date otherwise.
func formatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
