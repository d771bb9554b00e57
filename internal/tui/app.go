package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/outbox"
	"github.com/dmelo/supportdesk/internal/tui/keys"
	"github.com/dmelo/supportdesk/internal/tui/model"
	"github.com/dmelo/supportdesk/internal/tui/ui"
	"github.com/dmelo/supportdesk/internal/tui/views"
)

// App is the dashboard shell: a page stack over the reconciled view model.
// All list rendering is driven by the view model's refresh signal, so a
// push on the real-time stream repaints only when something actually
// changed.
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	vm      *model.ViewModel
	sender  *outbox.Sender
	reg     *keys.Registry
	profile string

	statusBar     *views.StatusBar
	ticketTable   *views.TicketTable
	commentView   *views.CommentView
	ticketInput   *views.Composer
	notifList     *views.NotificationList
	convList      *views.ConversationList
	msgView       *views.MessageView
	chatInput     *views.Composer
	activeTicket  cache.Entity
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewApp creates the dashboard application.
func NewApp(vm *model.ViewModel, sender *outbox.Sender, profileName string) *App {
	ui.DefaultTheme().Apply()
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		vm:          vm,
		sender:      sender,
		reg:         keys.NewRegistry(),
		profile:     profileName,
		statusBar:   views.NewStatusBar(),
		ticketTable: views.NewTicketTable(),
		commentView: views.NewCommentView(),
		ticketInput: views.NewComposer(),
		notifList:   views.NewNotificationList(),
		convList:    views.NewConversationList(),
		msgView:     views.NewMessageView(),
		chatInput:   views.NewComposer(),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.reg.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.reg.AddGlobal("tickets", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "t:tickets", Visible: true,
		Handler: func() { a.switchTo("tickets", a.ticketTable) },
	})
	a.reg.AddGlobal("notifications", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:notifications", Visible: true,
		Handler: func() { a.switchTo("notifications", a.notifList) },
	})
	a.reg.AddGlobal("conversations", &keys.Action{
		Rune: 'c', Key: tcell.KeyRune,
		Description: "c:conversations", Visible: true,
		Handler: func() { a.switchTo("conversations", a.convList) },
	})
	a.reg.AddPage("notifications", "read", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:mark read", Visible: true,
		Handler: func() { a.markSelectedRead() },
	})
}

func (a *App) setupCallbacks() {
	a.ticketTable.SetSelectedFunc(func(row, col int) {
		if id := a.ticketTable.SelectedTicket(); id != "" {
			a.openTicket(id)
		}
	})

	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.Selected(); id != "" {
			a.openConversation(id)
		}
	})

	a.ticketInput.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.AddComment(a.ctx, text); err != nil {
				a.vm.Flash.Set("Comment failed: "+err.Error(), 5*time.Second)
			}
			a.redraw()
		}()
	})

	a.chatInput.SetOnSend(func(text string) {
		conversationID := a.vm.ActiveConversation()
		if conversationID == "" {
			return
		}
		go func() {
			if _, err := a.sender.Queue(conversationID, text); err != nil {
				a.vm.Flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			a.redraw()
		}()
	})
}

func (a *App) setupLayout() {
	ticketFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.commentView, 0, 1, false).
		AddItem(a.ticketInput, 1, 0, false)

	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.chatInput, 1, 0, false)

	a.pages.AddPage("tickets", a.ticketTable, true, true)
	a.pages.AddPage("ticket", ticketFlex, true, false)
	a.pages.AddPage("notifications", a.notifList, true, false)
	a.pages.AddPage("conversations", a.convList, true, false)
	a.pages.AddPage("chat", chatFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "ticket":
				a.vm.CloseTicket()
				a.switchTo("tickets", a.ticketTable)
				return nil
			case "chat":
				a.vm.CloseConversation()
				a.switchTo("conversations", a.convList)
				return nil
			case "notifications", "conversations":
				a.switchTo("tickets", a.ticketTable)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer on detail pages.
		if event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			switch currentPage {
			case "ticket":
				a.app.SetFocus(a.ticketInput.InputField)
				return nil
			case "chat":
				a.app.SetFocus(a.chatInput.InputField)
				return nil
			}
		}

		if a.reg.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.refreshPage(page)
}

func (a *App) openTicket(id string) {
	go func() {
		if err := a.vm.OpenTicket(a.ctx, id); err != nil {
			a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.redraw()
			return
		}
		for _, t := range a.vm.GetTickets() {
			if t.ID() == id {
				a.activeTicket = t
				break
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.commentView.Update(a.activeTicket, a.vm.GetComments())
			a.pages.SwitchToPage("ticket")
			a.app.SetFocus(a.commentView)
		})
	}()
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.vm.OpenConversation(a.ctx, id); err != nil {
			a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.redraw()
			return
		}
		title := id
		for _, c := range a.vm.GetConversations() {
			if c.ID() == id {
				if t, _ := c["title"].(string); t != "" {
					title = t
				}
				break
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetConversationTitle(title)
			a.msgView.Update(a.vm.GetMessages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) markSelectedRead() {
	id := a.notifList.Selected()
	if id == "" {
		return
	}
	go func() {
		if err := a.vm.MarkNotificationRead(a.ctx, id); err != nil {
			a.vm.Flash.Set("Mark read failed: "+err.Error(), 5*time.Second)
		}
		a.redraw()
	}()
}

// refreshPage repaints the widgets of the given page from the view model.
func (a *App) refreshPage(page string) {
	switch page {
	case "tickets":
		a.ticketTable.Update(a.vm.GetTickets())
	case "ticket":
		if id := a.vm.ActiveTicket(); id != "" {
			for _, t := range a.vm.GetTickets() {
				if t.ID() == id {
					a.activeTicket = t
					break
				}
			}
			a.commentView.Update(a.activeTicket, a.vm.GetComments())
		}
	case "notifications":
		a.notifList.Update(a.vm.GetNotifications())
	case "conversations":
		a.convList.Update(a.vm.GetConversations())
	case "chat":
		a.msgView.Update(a.vm.GetMessages())
	}
	a.statusBar.SetState(a.vm.GetConnState())
	a.statusBar.SetUnread(a.vm.UnreadCount())
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

func (a *App) redraw() {
	a.app.QueueUpdateDraw(func() {
		page, _ := a.pages.GetFrontPage()
		a.refreshPage(page)
	})
}

// Run starts the dashboard. Initial data loads in the background; from then
// on every repaint is driven by the view model's refresh signal.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadTickets(a.ctx)
		_ = a.vm.LoadNotifications(a.ctx)
		_ = a.vm.LoadConversations(a.ctx)
		a.redraw()
		a.watchRefresh()
	}()

	return a.app.Run()
}

// watchRefresh repaints on view model changes, with a slow ticker so the
// status bar clock and flash expiry stay current.
func (a *App) watchRefresh() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.redraw()
		case <-ticker.C:
			a.redraw()
		case <-a.ctx.Done():
			return
		}
	}
}

// SetUser records the session user for scoping and rendering.
func (a *App) SetUser(id string) {
	a.vm.SetUser(id)
	a.msgView.SetUser(id)
}

// Stop gracefully shuts down the dashboard.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
