package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/queuedesk-io/queuedesk/internal/api"
	"github.com/queuedesk-io/queuedesk/internal/config"
	"github.com/queuedesk-io/queuedesk/internal/database"
	"github.com/queuedesk-io/queuedesk/internal/email/inbound/connector"
	"github.com/queuedesk-io/queuedesk/internal/email/inbound/postmaster"
	"github.com/queuedesk-io/queuedesk/internal/notifications"
	"github.com/queuedesk-io/queuedesk/internal/repository"
	"github.com/queuedesk-io/queuedesk/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:     "queuedesk",
	Short:   "QueueDesk - email and web ticket intake",
	Long:    "QueueDesk accepts support tickets from a public web form and polled mailboxes,\nthreads replies onto existing tickets, and notifies submitters, queue contacts,\nand carbon-copied readers.",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and mailbox polling loop",
	RunE:  runServe,
}

var fetchMailCmd = &cobra.Command{
	Use:   "fetch-mail",
	Short: "Poll all configured mailboxes once and exit",
	RunE:  runFetchMail,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("QueueDesk %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", ".", "Directory containing config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchMailCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired components shared by serve and fetch-mail.
type app struct {
	cfg       *config.Config
	queues    repository.QueueStore
	tickets   repository.TicketStore
	fields    repository.CustomFieldStore
	intake    *service.TicketService
	processor *postmaster.TicketProcessor
	factory   connector.Factory
	logger    *log.Logger
	closeDB   func() error
}

func buildApp(ctx context.Context) (*app, error) {
	if err := config.Load(configPathFlag); err != nil {
		return nil, err
	}
	cfg := config.Get()
	logger := log.New(os.Stderr, "queuedesk ", log.LstdFlags)

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	// Production postgres/mysql schemas are provisioned externally; the
	// bundled DDL only bootstraps the sqlite profile.
	if cfg.Database.Driver == "sqlite3" {
		if err := repository.EnsureSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("schema setup failed: %w", err)
		}
	}

	queues := repository.NewQueueRepository(db)
	tickets := repository.NewTicketRepository(db)
	fields := repository.NewCustomFieldRepository(db)

	var provider notifications.EmailProvider
	if cfg.Email.Enabled {
		provider = notifications.NewSMTPProvider(&cfg.Email)
	} else {
		logger.Printf("outbound email disabled, notifications go to the in-memory outbox")
		provider = notifications.NewMemoryOutbox()
	}
	notifier := notifications.NewNotifier(provider, notifications.WithNotifierLogger(logger))

	intake := service.NewTicketService(queues, tickets, fields, notifier,
		service.WithTicketServiceLogger(logger))
	processor := postmaster.NewTicketProcessor(intake, tickets, queues,
		postmaster.WithTicketProcessorLogger(logger))

	return &app{
		cfg:       cfg,
		queues:    queues,
		tickets:   tickets,
		fields:    fields,
		intake:    intake,
		processor: processor,
		factory:   connector.DefaultFactory(),
		logger:    logger,
		closeDB:   db.Close,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.closeDB()

	engine := api.NewRouter(api.RouterConfig{
		Queues:        a.queues,
		Tickets:       a.tickets,
		Fields:        a.fields,
		Intake:        a.intake,
		Logger:        a.logger,
		EnableMetrics: a.cfg.Metrics.Enabled,
	})
	server := &http.Server{
		Addr:         a.cfg.Server.GetServerAddr(),
		Handler:      engine,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	scheduler := cron.New()
	if len(a.cfg.Mail.Accounts) > 0 {
		for _, acc := range a.cfg.Mail.Accounts {
			every := accountPollInterval(acc, a.cfg.Mail.PollInterval)
			_, err := scheduler.AddFunc(fmt.Sprintf("@every %s", every), func() {
				if err := a.pollAccount(ctx, acc); err != nil {
					a.logger.Printf("mailbox %s@%s poll failed: %v", acc.Username, acc.Host, err)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to schedule polling for %s@%s: %w", acc.Username, acc.Host, err)
			}
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := a.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runFetchMail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.closeDB()

	if len(a.cfg.Mail.Accounts) == 0 {
		a.logger.Printf("no mail accounts configured")
		return nil
	}
	return a.pollMailboxes(ctx)
}

func (a *app) pollMailboxes(ctx context.Context) error {
	var firstErr error
	for _, acc := range a.cfg.Mail.Accounts {
		if err := a.pollAccount(ctx, acc); err != nil {
			a.logger.Printf("mailbox %s@%s fetch failed: %v", acc.Username, acc.Host, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (a *app) pollAccount(ctx context.Context, acc config.MailAccount) error {
	account := connectorAccount(acc, a.cfg.Mail.PollInterval)
	fetcher, err := a.factory.FetcherFor(account)
	if err != nil {
		return err
	}
	return fetcher.Fetch(ctx, account, a.processor)
}

// connectorAccount maps a configured mailbox onto the connector's account,
// filling in the global interval when the account carries none.
func connectorAccount(acc config.MailAccount, fallback time.Duration) connector.Account {
	return connector.Account{
		QueueSlug:        acc.Queue,
		Type:             acc.Type,
		Host:             acc.Host,
		Port:             acc.Port,
		Username:         acc.Username,
		Password:         []byte(acc.Password),
		DeleteAfterFetch: acc.DeleteAfterFetch,
		PollInterval:     accountPollInterval(acc, fallback),
	}
}

// accountPollInterval picks the per-account cadence, falling back to the
// global mail.poll_interval and then to one minute.
func accountPollInterval(acc config.MailAccount, fallback time.Duration) time.Duration {
	if acc.PollInterval > 0 {
		return acc.PollInterval
	}
	if fallback > 0 {
		return fallback
	}
	return time.Minute
}
