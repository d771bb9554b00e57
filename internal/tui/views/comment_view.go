package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
)

// CommentView displays a ticket's detail header and its comment thread.
type CommentView struct {
	*tview.TextView
}

// NewCommentView creates a new comment view.
func NewCommentView() *CommentView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Ticket ")

	return &CommentView{TextView: tv}
}

// Update renders the ticket header and its comments, oldest first.
func (cv *CommentView) Update(ticket cache.Entity, comments []cache.Entity) {
	cv.Clear()

	subject, _ := ticket["subject"].(string)
	status, _ := ticket["status"].(string)
	priority, _ := ticket["priority"].(string)
	description, _ := ticket["description"].(string)

	cv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(subject)))
	_, _ = fmt.Fprintf(cv, "[::b]%s[-:-:-]  %s / %s\n\n", sanitizeForTerminal(subject), statusTag(status), priority)
	if description != "" {
		_, _ = fmt.Fprintf(cv, "%s\n\n", sanitizeForTerminal(description))
	}
	_, _ = fmt.Fprint(cv, "[::d]--- comments ---[-:-:-]\n\n")

	for _, c := range comments {
		author, _ := c["author_name"].(string)
		if author == "" {
			author, _ = c["author_id"].(string)
		}
		content, _ := c["content"].(string)
		created, _ := c["created_at"].(string)

		_, _ = fmt.Fprintf(cv, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(author), formatTimestamp(created), sanitizeForTerminal(content))
	}

	cv.ScrollToEnd()
}
