package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/cache"
	"github.com/example/carebook/internal/config"
	"github.com/example/carebook/internal/events"
	httptransport "github.com/example/carebook/internal/http"
	"github.com/example/carebook/internal/logging"
	"github.com/example/carebook/internal/metrics"
	"github.com/example/carebook/internal/persistence/sqldb"
	"github.com/example/carebook/internal/seed"
	"github.com/example/carebook/internal/timecodec"
)

type options struct {
	envFile     string
	migrateOnly bool
	seedDemo    bool
	hashSecret  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "carebook:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("carebook", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.envFile, "env-file", "", "load environment variables from this .env file first")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply schema migrations and exit")
	flagSet.BoolVar(&opts.seedDemo, "seed-demo", false, "seed the demo activities when the catalog is empty")
	flagSet.StringVar(&opts.hashSecret, "hash-secret", "", "print the argon2id hash of a secret for CAREBOOK_ADMIN_SECRET_HASH and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.hashSecret != "" {
		hash, err := application.HashSecret(opts.hashSecret, application.DefaultArgon2idParams)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, hash)
		return err
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, stdout)
	slog.SetDefault(logger)

	codec, err := timecodec.Load(cfg.Timezone)
	if err != nil {
		return err
	}

	dbCfg := sqldb.DefaultConfig()
	dbCfg.Driver = cfg.DBDriver
	dbCfg.DSN = cfg.DBDSN
	dbCfg.MaxOpenConns = cfg.DBMaxOpenConns
	dbCfg.MaxIdleConns = cfg.DBMaxOpenConns
	dbCfg.BusyTimeout = cfg.DBBusyTimeout

	store, err := sqldb.Open(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if opts.migrateOnly {
		logger.Info("migrations applied", "driver", cfg.DBDriver)
		return nil
	}

	now := time.Now
	idGenerator := newID

	var publisher interface {
		application.EventPublisher
		Close() error
	} = events.Noop{}
	if cfg.NATSURL != "" {
		p, err := events.Connect(events.DefaultConfig(cfg.NATSURL), logger)
		if err != nil {
			return err
		}
		publisher = p
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Warn("failed to drain event publisher", "error", cerr)
		}
	}()

	var activityCache application.ActivityCache
	if cfg.RedisAddr != "" {
		c, err := cache.Connect(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, TTL: cfg.ActivityCacheTTL})
		if err != nil {
			return err
		}
		defer c.Close()
		activityCache = c
	}

	directory := application.NewDirectoryServiceWithLogger(store, store, idGenerator, now, logger,
		application.WithOrganizerHandles(cfg.OrganizerHandles...),
		application.WithAdminSecretHash(cfg.AdminSecretHash),
	)
	catalog := application.NewCatalogServiceWithLogger(store, activityCache, idGenerator, now, logger)
	ledger := application.NewLedgerServiceWithLogger(store, directory, idGenerator, now, logger,
		application.WithEventPublisher(publisher),
		application.WithBookingObserver(metrics.BookingObserver{}),
		application.WithTimeCodec(codec),
	)
	reporter := application.NewReporterService(store, logger)

	if err := seedCatalog(ctx, catalog, cfg.SeedFile, opts.seedDemo, codec, now, logger); err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		APIToken:     cfg.APIToken,
		Users:        directory,
		Health:       store,
		Directory:    httptransport.NewDirectoryHandler(directory, logger),
		Catalog:      httptransport.NewCatalogHandler(catalog, reporter, codec, logger),
		Bookings:     httptransport.NewBookingHandler(ledger, codec, logger),
		Logger:       logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("carebook API listening", "addr", server.Addr, "driver", cfg.DBDriver, "timezone", codec.Location().String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}

type activitySeeder interface {
	SeedActivities(ctx context.Context, inputs []application.ActivityInput) (int, error)
}

func seedCatalog(ctx context.Context, catalog activitySeeder, seedFile string, demo bool, codec *timecodec.Codec, now func() time.Time, logger *slog.Logger) error {
	var inputs []application.ActivityInput
	source := ""
	switch {
	case seedFile != "":
		loaded, err := seed.LoadFile(seedFile, codec)
		if err != nil {
			return err
		}
		inputs, source = loaded, seedFile
	case demo:
		inputs, source = seed.Demo(now()), "demo"
	default:
		return nil
	}

	created, err := catalog.SeedActivities(ctx, inputs)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	logger.Info("catalog seed processed", "source", source, "created", created)
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
