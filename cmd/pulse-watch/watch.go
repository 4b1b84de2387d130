// ABOUTME: The watch subcommand: connect, subscribe, and print the realtime stream
// ABOUTME: Optionally serves /metrics and /healthz while watching

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sgmarket/pulse-client/internal/channel"
	"github.com/sgmarket/pulse-client/internal/chat"
	"github.com/sgmarket/pulse-client/internal/config"
	"github.com/sgmarket/pulse-client/internal/notify"
	"github.com/sgmarket/pulse-client/internal/rest"
	"github.com/sgmarket/pulse-client/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications and chat messages to the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func runWatch() error {
	cfg, err := config.Load(defaultConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	token := tokenFlag
	if token == "" {
		token = os.Getenv("PULSE_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("no bearer token: pass --token or set PULSE_TOKEN")
	}

	sess := session.New(nil)
	sess.SetCredential(token, os.Getenv("PULSE_BUYER_ID"), os.Getenv("PULSE_SELLER_ID"))
	sess.SetRole(session.Role(roleFlag))

	id := sess.Identity()
	if sub := sess.Subject(); sub != "" && sub != id.BuyerID && sub != id.SellerID {
		logger.Warn("token subject does not match either identity id", "sub", sub)
	}

	api := rest.New(cfg.Gateway.RESTBaseURL, sess, logger)
	mgr := channel.NewManager(cfg.Channel, cfg.Gateway.PushURL, sess, logger)
	delivery := notify.New(cfg.Notify, mgr, api, sess, logger)
	list := chat.NewListBuilder(api, sess, logger)
	defer list.Close()
	syncer := chat.NewSynchronizer(api, sess, list, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics, logger)
	}

	stopNotify := delivery.OnNotification(printNotification)
	defer stopNotify()

	delivery.Start(notify.ModePush)
	defer delivery.Stop()

	mgr.Connect(ctx)
	defer mgr.Disconnect()

	if inbox := sess.Identity().ActiveID(); inbox != "" {
		unsub := mgr.Subscribe(channel.ChatInboxTopic(inbox), syncer.HandleFrame)
		defer unsub()
	}

	if convs, err := list.Load(ctx); err != nil {
		logger.Warn("initial conversation load failed", "error", err)
	} else {
		printConversations(convs)
	}

	fmt.Println("watching... Ctrl+C to quit")
	<-ctx.Done()
	fmt.Println("\nbye")
	return nil
}

// serveMetrics exposes /metrics and /healthz while the watcher runs.
func serveMetrics(cfg config.MetricsConfig, logger *slog.Logger) {
	r := mux.NewRouter()
	r.Handle(cfg.Path, promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	logger.Info("metrics endpoint up", "addr", cfg.Addr, "path", cfg.Path)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics endpoint failed", "error", err)
	}
}

// printNotification renders one canonical notification with its category color.
func printNotification(n notify.Notification) {
	stamp := n.OccurredAt.Format("15:04:05")

	var c *color.Color
	switch n.Category {
	case notify.CategorySuccess:
		c = color.New(color.FgGreen)
	case notify.CategoryError:
		c = color.New(color.FgRed)
	case notify.CategoryWarning:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}

	fresh := ""
	if n.Fresh {
		fresh = " *"
	}
	c.Printf("[%s] %-7s %s%s\n", stamp, string(n.Category), n.Title, fresh)
	if n.Body != "" {
		fmt.Printf("           %s\n", n.Body)
	}
}

// printConversations renders the conversation list snapshot.
func printConversations(convs []chat.Conversation) {
	if len(convs) == 0 {
		return
	}
	bold := color.New(color.Bold)
	bold.Printf("%d conversations\n", len(convs))
	for _, c := range convs {
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
		}
		fmt.Printf("  %s | %s: %s%s\n", c.ID, c.CounterpartyDisplayName, c.LastMessageSummary, unread)
	}
}
