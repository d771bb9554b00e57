package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmelo/supportdesk/internal/config"
	"github.com/dmelo/supportdesk/internal/profile"
	"github.com/dmelo/supportdesk/internal/rest"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	api, err := newClient(profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "login":
		cmdLogin(ctx, api, profileName)
	case "logout":
		cmdLogout(ctx, api, profileName)
	case "whoami":
		cmdWhoami(ctx, api, *jsonFlag)
	case "tickets":
		cmdTickets(ctx, api, *jsonFlag)
	case "notifications":
		if len(args) >= 3 && args[1] == "read" {
			cmdNotificationsRead(ctx, api, profileName, args[2])
		} else {
			cmdNotifications(ctx, api, *jsonFlag)
		}
	case "monitors":
		cmdMonitors(ctx, api, *jsonFlag)
	case "upload":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: sdeskctl upload <ticket-id> <file>")
			os.Exit(1)
		}
		cmdUpload(ctx, api, profileName, args[1], args[2])
	case "webhook":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: sdeskctl webhook <get|set <url>|test>")
			os.Exit(1)
		}
		cmdWebhook(ctx, api, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: sdeskctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login                   Log in and persist the session")
	fmt.Fprintln(os.Stderr, "  logout                  End the session")
	fmt.Fprintln(os.Stderr, "  whoami                  Show the session user")
	fmt.Fprintln(os.Stderr, "  tickets                 List tickets")
	fmt.Fprintln(os.Stderr, "  notifications           List notifications")
	fmt.Fprintln(os.Stderr, "  notifications read <id> Mark a notification read")
	fmt.Fprintln(os.Stderr, "  monitors                List uptime monitors")
	fmt.Fprintln(os.Stderr, "  upload <ticket> <file>  Attach a file to a ticket")
	fmt.Fprintln(os.Stderr, "  webhook get|set|test    Manage the notification webhook")
}

func newClient(profileName string) (*rest.Client, error) {
	if err := profile.EnsureDir(profileName); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	cookies, err := profile.LoadCookies(profileName)
	if err != nil {
		return nil, err
	}
	return rest.New(cfg.APIBase, rest.WithCookies(cookies))
}

// saveSession persists the client's cookies so the TUI and agent can reuse
// the session.
func saveSession(api *rest.Client, profileName string) {
	if err := profile.SaveCookies(profileName, api.Cookies()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist session: %v\n", err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdLogin(ctx context.Context, api *rest.Client, profileName string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		fail(err)
	}
	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		fail(err)
	}

	if err := api.Login(ctx, strings.TrimSpace(email), strings.TrimSpace(password)); err != nil {
		fail(err)
	}
	saveSession(api, profileName)

	me, err := api.Me(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Logged in as %s\n", me["email"])
}

func cmdLogout(ctx context.Context, api *rest.Client, profileName string) {
	if err := api.Logout(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := profile.ClearCookies(profileName); err != nil {
		fail(err)
	}
	fmt.Println("Logged out.")
}

func cmdWhoami(ctx context.Context, api *rest.Client, jsonOut bool) {
	me, err := api.Me(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(me)
		return
	}
	fmt.Printf("%s <%s> role=%s\n", me["name"], me["email"], me["role"])
}

func cmdTickets(ctx context.Context, api *rest.Client, jsonOut bool) {
	tickets, err := api.ListTickets(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(tickets)
		return
	}
	if len(tickets) == 0 {
		fmt.Println("No tickets.")
		return
	}
	for _, t := range tickets {
		fmt.Printf("%-36s %-12s %-8s %s\n", t.ID(), t["status"], t["priority"], t["subject"])
	}
}

func cmdNotifications(ctx context.Context, api *rest.Client, jsonOut bool) {
	notifications, err := api.ListNotifications(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(notifications)
		return
	}
	if len(notifications) == 0 {
		fmt.Println("No notifications.")
		return
	}
	for _, n := range notifications {
		marker := " "
		if read, _ := n["is_read"].(bool); !read {
			marker = "*"
		}
		fmt.Printf("%s %-36s %s\n", marker, n.ID(), n["message"])
	}
}

func cmdNotificationsRead(ctx context.Context, api *rest.Client, profileName, id string) {
	if err := api.MarkNotificationRead(ctx, id); err != nil {
		fail(err)
	}
	saveSession(api, profileName)
	fmt.Println("Marked read.")
}

func cmdMonitors(ctx context.Context, api *rest.Client, jsonOut bool) {
	monitors, err := api.ListMonitors(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(monitors)
		return
	}
	if len(monitors) == 0 {
		fmt.Println("No monitors.")
		return
	}
	for _, m := range monitors {
		fmt.Printf("%-36s %-10s %s\n", m.ID(), m["status"], m["url"])
	}
}

func cmdUpload(ctx context.Context, api *rest.Client, profileName, ticketID, path string) {
	f, err := os.Open(path)
	if err != nil {
		fail(err)
	}
	defer func() { _ = f.Close() }()

	attachment, err := api.UploadFile(ctx, filepath.Base(path), f, rest.AttachmentInput{TicketID: ticketID})
	if err != nil {
		fail(err)
	}
	saveSession(api, profileName)
	fmt.Printf("Uploaded: %s\n", attachment["file_url"])
}

func cmdWebhook(ctx context.Context, api *rest.Client, args []string) {
	switch args[0] {
	case "get":
		cfg, err := api.GetWebhookURL(ctx)
		if err != nil {
			fail(err)
		}
		if cfg.WebhookURL == "" {
			fmt.Println("No webhook configured.")
		} else {
			fmt.Println(cfg.WebhookURL)
		}
	case "set":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: sdeskctl webhook set <url>")
			os.Exit(1)
		}
		if err := api.SetWebhookURL(ctx, args[1]); err != nil {
			fail(err)
		}
		fmt.Println("Webhook updated.")
	case "test":
		if err := api.TestWebhook(ctx); err != nil {
			fail(err)
		}
		fmt.Println("Test event sent.")
	default:
		fmt.Fprintf(os.Stderr, "unknown webhook subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
