package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmelo/supportdesk/internal/bus"
	"github.com/dmelo/supportdesk/internal/cache"
	"github.com/dmelo/supportdesk/internal/config"
	"github.com/dmelo/supportdesk/internal/lock"
	"github.com/dmelo/supportdesk/internal/logging"
	"github.com/dmelo/supportdesk/internal/notify"
	"github.com/dmelo/supportdesk/internal/outbox"
	"github.com/dmelo/supportdesk/internal/profile"
	"github.com/dmelo/supportdesk/internal/rest"
	"github.com/dmelo/supportdesk/internal/rt"
	"github.com/dmelo/supportdesk/internal/status"
	"github.com/dmelo/supportdesk/internal/store"
	intsync "github.com/dmelo/supportdesk/internal/sync"
	"github.com/dmelo/supportdesk/internal/tui"
	"github.com/dmelo/supportdesk/internal/tui/model"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	if err := run(*profileFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(profileFlag string) error {
	profileName := profile.Resolve(profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		return err
	}
	if err := profile.EnsureDir(profileName); err != nil {
		return err
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return err
	}

	logger, err := logging.New(profile.LogPath(profileName), profileName)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lk, err := lock.Acquire(profile.Dir(profileName))
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			return fmt.Errorf("profile %q is in use by pid %d", profileName, held.PID)
		}
		return err
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(profile.DBPath(profileName))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		return err
	}

	cookies, err := profile.LoadCookies(profileName)
	if err != nil {
		return err
	}
	api, err := rest.New(cfg.APIBase,
		rest.WithLogger(logger),
		rest.WithCookies(cookies),
		rest.WithAuthFailureHandler(func() {
			_ = profile.ClearCookies(profileName)
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	me, err := api.Me(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("not logged in (run: sdeskctl login): %w", err)
	}
	userID := me.ID()

	b := bus.New()
	machine := status.NewMachine(b)
	entities := cache.New(b)

	engine := intsync.NewEngine(entities, db, b, api, notify.NewDesktop(logger), logger)
	engine.SetUser(userID)
	engine.Start(context.Background())
	defer engine.Stop()

	sender := outbox.NewSender(db, entities, api, b, logger)
	sender.SetUser(userID)
	sender.Start(context.Background())
	defer sender.Stop()

	manager := rt.NewManager(rt.Options{
		URL:               cfg.SocketURL,
		ConnectTimeout:    cfg.ConnectTimeout(),
		PollInterval:      cfg.PollInterval(),
		ReconnectAttempts: cfg.ReconnectAttempts,
		HTTPClient:        api.WSClient(),
	}, b, machine, engine.PollNotifications, logger)
	manager.Start(context.Background(), userID)
	defer manager.Close()

	vm := model.NewViewModel(api, entities, b)

	// Paint last session's snapshot immediately; the REST loads that run
	// on startup replace it once they land.
	tickets, _ := db.ListTickets(0)
	notifications, _ := db.ListNotifications(userID, 0)
	conversations, _ := db.ListConversations(0)
	vm.Preload(tickets, notifications, conversations)

	vm.Start(context.Background())
	defer vm.Stop()

	app := tui.NewApp(vm, sender, profileName)
	app.SetUser(userID)

	err = app.Run()

	// Persist refreshed session cookies for the next start.
	if saveErr := profile.SaveCookies(profileName, api.Cookies()); saveErr != nil {
		logger.Warn("failed to persist session cookies")
	}
	return err
}
