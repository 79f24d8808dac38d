package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/revahq/reva-widget/api"
	"github.com/revahq/reva-widget/internal/profile"
	"github.com/revahq/reva-widget/internal/version"
	"github.com/revahq/reva-widget/metrics"
	"github.com/revahq/reva-widget/pagectx"
	"github.com/revahq/reva-widget/recovery"
	"github.com/revahq/reva-widget/store"
	"github.com/revahq/reva-widget/store/db/memory"
	"github.com/revahq/reva-widget/store/db/sqlite"
	"github.com/revahq/reva-widget/theme"
	"github.com/revahq/reva-widget/widget"
)

var rootCmd = &cobra.Command{
	Use:   "revawidget",
	Short: `Reva store-support chat widget runtime. Talks to your store's Reva backend from any host that can embed it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Try to load .env file from current directory (ignore error if file doesn't exist)
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			StoreID:      viper.GetString("store-id"),
			APIURL:       viper.GetString("api-url"),
			PrimaryColor: viper.GetString("primary-color"),
			Position:     viper.GetString("position"),
			Data:         viper.GetString("data"),
			Mode:         viper.GetString("mode"),
			MetricsAddr:  viper.GetString("metrics-addr"),
		}
		instanceProfile.FromEnv()
		instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			return
		}
		if mv := instanceProfile.MinVersion; mv != "" && !version.IsVersionGreaterOrEqualThan(instanceProfile.Version, mv) {
			slog.Warn("runtime is older than the embed snippet requires, please upgrade",
				"version", instanceProfile.Version, "min_version", mv)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		driver, err := sqlite.NewDB(instanceProfile.DSN)
		if err != nil {
			// Unavailable local storage degrades to an ephemeral identity,
			// it never stops the widget.
			slog.Warn("local storage unavailable, session will not survive restarts", "error", err)
			driver = memory.NewDB()
		}
		defer driver.Close()

		identity := store.New(driver, instanceProfile.StoreID)

		var exporter *metrics.Exporter
		if instanceProfile.MetricsAddr != "" {
			exporter = metrics.NewExporter(metrics.DefaultConfig())
		}

		client := api.NewClient(
			instanceProfile.APIURL,
			instanceProfile.StoreID,
			api.WithRetryBaseDelay(instanceProfile.RetryBaseDelay),
			api.WithMetrics(nilSafeMetrics(exporter)),
		)

		pageURL := viper.GetString("page-url")
		pageTitle := viper.GetString("page-title")
		controller := widget.New(client, identity, func() pagectx.PageContext {
			return pagectx.Extract(pageURL, pageTitle)
		}, nilSafeCounter(exporter))

		poller := recovery.New(recovery.Config{
			Client:       client,
			Identity:     identity,
			ChatOpen:     controller.IsOpen,
			OnShow:       printRecoveryOffer,
			OnHide:       func() {},
			InitialDelay: instanceProfile.RecoveryInitialDelay,
			Interval:     instanceProfile.RecoveryInterval,
			Counter:      nilSafePolls(exporter),
		})

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			cancel()
		}()

		printGreetings(instanceProfile)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
		if exporter != nil {
			g.Go(func() error {
				return serveMetrics(gctx, instanceProfile.MetricsAddr, exporter)
			})
		}
		g.Go(func() error {
			runChatLoop(gctx, controller, poller, client, identity)
			cancel()
			return nil
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("widget runtime stopped", "error", err)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.StringFull())
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("position", "right")

	rootCmd.PersistentFlags().String("store-id", "", "store id the widget is configured for")
	rootCmd.PersistentFlags().String("api-url", "", "base URL of the Reva backend API")
	rootCmd.PersistentFlags().String("primary-color", "", `widget primary color, e.g. "#4f46e5"`)
	rootCmd.PersistentFlags().String("position", "right", `widget launcher position, "left" or "right"`)
	rootCmd.PersistentFlags().String("data", "", "data directory for the local session database")
	rootCmd.PersistentFlags().String("mode", "dev", `mode, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to expose Prometheus metrics on (empty disables)")
	rootCmd.PersistentFlags().String("page-url", "", "URL of the page the widget is embedded on")
	rootCmd.PersistentFlags().String("page-title", "", "title of the page the widget is embedded on")

	for _, flag := range []string{"store-id", "api-url", "primary-color", "position", "data", "mode", "metrics-addr", "page-url", "page-title"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("reva")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(versionCmd)
}

func serveMetrics(ctx context.Context, addr string, exporter *metrics.Exporter) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runChatLoop drives the controller from stdin. Slash commands manage the
// session; everything else is sent as a chat message.
func runChatLoop(ctx context.Context, controller *widget.Controller, poller *recovery.Poller, client *api.Client, identity *store.Store) {
	controller.Open()
	defer controller.Close()

	controller.LoadHistory(ctx)
	for _, m := range controller.Snapshot().Messages {
		printMessage(m)
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return
		case "/new":
			controller.NewConversation(ctx)
			fmt.Println("Started a new conversation.")
		case "/retry":
			if controller.Retry(ctx) {
				printOutcome(controller)
			} else {
				fmt.Println("Nothing to retry.")
			}
		case "/conversations":
			listConversations(ctx, client, identity)
		case "/dismiss":
			poller.Dismiss(ctx)
			fmt.Println("Recovery offer dismissed.")
		case "/checkout":
			if u := poller.CheckoutURL(ctx); u != "" {
				poller.Dismiss(ctx)
				fmt.Printf("Open to complete your order: %s\n", u)
			} else {
				fmt.Println("No recovery offer right now.")
			}
		default:
			controller.SetInput(line)
			if controller.Submit(ctx) {
				printOutcome(controller)
			}
		}
		fmt.Print("> ")
	}
}

func printOutcome(controller *widget.Controller) {
	snap := controller.Snapshot()
	if snap.Err != nil {
		fmt.Printf("! %s\n", snap.Err.Message)
		if snap.Err.Retryable {
			fmt.Println("  (type /retry to try again)")
		}
		return
	}
	if len(snap.Messages) > 0 {
		printMessage(snap.Messages[len(snap.Messages)-1])
	}
}

func listConversations(ctx context.Context, client *api.Client, identity *store.Store) {
	convs, err := client.GetConversationsBySession(ctx, identity.SessionID(ctx))
	if err != nil {
		fmt.Printf("! %s\n", err)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No previous conversations for this session.")
		return
	}
	active := identity.ConversationID(ctx)
	for _, c := range convs {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %s (%d messages, updated %s)\n", marker, c.ID, len(c.Messages), c.UpdatedAt)
	}
}

func printMessage(m widget.Message) {
	switch m.Role {
	case widget.RoleAssistant:
		fmt.Printf("reva: %s\n", m.Content)
		for _, s := range m.Sources {
			if s.URL != nil {
				fmt.Printf("  [source] %s - %s\n", s.Title, *s.URL)
			}
		}
		for _, p := range m.Products {
			fmt.Printf("  [product] %s\n", p.Title)
		}
	default:
		fmt.Printf("you: %s\n", m.Content)
	}
}

func printRecoveryOffer(offer api.RecoveryOffer) {
	fmt.Println("\nYou left items in your cart!")
	for _, item := range offer.Items {
		fmt.Printf("  %dx %s\n", item.Quantity, item.Title)
	}
	fmt.Println("Type /checkout to finish your order or /dismiss to hide this.")
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Reva widget %s started\n", p.Version)
	if p.Disabled {
		fmt.Fprintln(os.Stderr, "No store id configured; chat is disabled until REVA_STORE_ID is set")
	}
	if p.IsDev() {
		fmt.Fprintf(os.Stderr, "Development mode, data directory: %s\n", p.Data)
	}

	vars := theme.Compute(p.PrimaryColor)
	fmt.Printf("Store: %s\n", p.StoreID)
	fmt.Printf("Backend: %s\n", p.APIURL)
	fmt.Printf("Theme: primary=%s foreground=%s hover=%s position=%s\n",
		vars.Primary, vars.Foreground, vars.Hover, p.Position)
	if p.MetricsAddr != "" {
		fmt.Printf("Metrics: http://%s/metrics\n", p.MetricsAddr)
	}
	fmt.Println()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
