package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/bookmyseat/internal/booking"
	"github.com/iliyamo/bookmyseat/internal/booking/memstore"
	"github.com/iliyamo/bookmyseat/internal/config"
	"github.com/iliyamo/bookmyseat/internal/database"
	"github.com/iliyamo/bookmyseat/internal/handler"
	"github.com/iliyamo/bookmyseat/internal/middleware"
	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/queue"
	"github.com/iliyamo/bookmyseat/internal/reconciler"
	"github.com/iliyamo/bookmyseat/internal/repository"
	"github.com/iliyamo/bookmyseat/internal/router"
	"github.com/iliyamo/bookmyseat/internal/seats"
	"github.com/iliyamo/bookmyseat/internal/settings"
)

// tokenPurger is implemented by both refresh token stores.
type tokenPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	db       *sql.DB // nil for the memory driver
	store    booking.Store
	settings settings.Store
	users    handler.Users
	tokens   interface {
		handler.Tokens
		tokenPurger
	}
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Printf("store: using in-memory driver, data is lost on restart")
		users := repository.NewMemoryUsers()
		if pw := os.Getenv("ADMIN_PASSWORD"); pw != "" {
			if _, err := users.Create(ctx, "Library Desk", "admin@library.local", "ADMIN-001", pw, model.RoleAdmin, cfg.BcryptCost); err != nil {
				return backend{}, err
			}
		}
		return backend{
			store:    memstore.New(seats.Layout()...),
			settings: settings.NewMemoryStore(),
			users:    users,
			tokens:   repository.NewMemoryTokens(),
		}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return backend{}, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return backend{}, err
		}
	}
	return backend{
		db:       db,
		store:    repository.NewStore(db),
		settings: repository.NewSettingsRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
	}, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	if be.db != nil {
		defer be.db.Close()
	}

	provider := settings.NewProvider(be.settings)
	if err := provider.Reload(ctx); err != nil {
		log.Printf("settings: using defaults: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	var (
		bookingOpts = []booking.Option{booking.WithLocation(cfg.Location)}
		sweepOpts   = []reconciler.Option{
			reconciler.WithGrace(cfg.ReconcileApplyGrace),
			reconciler.WithLocker(reconciler.NewRedisLease(rdb, "", cfg.ReconcileLeaseTTL)),
		}
	)
	if pub := queue.NewPublisher(cfg.RabbitURL, cfg.BookingQueue); pub != nil {
		go func() {
			if err := pub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("rabbitmq: publisher stopped: %v", err)
			}
		}()
		bookingOpts = append(bookingOpts, booking.WithPublisher(pub))
		sweepOpts = append(sweepOpts, reconciler.WithPublisher(pub))
	}
	mgr := booking.NewManager(be.store, provider, bookingOpts...)
	rec := reconciler.New(be.store, provider, sweepOpts...)

	sched, err := reconciler.NewScheduler(nil, cfg.Location)
	if err != nil {
		log.Fatal(err)
	}
	jobs := []error{
		sched.ScheduleSweeps(rec, cfg.ReconcileInterval),
		sched.Every("settings-reload", cfg.SettingsReloadInterval, provider.Reload),
		sched.Every("token-purge", cfg.TokenPurgeInterval, func(ctx context.Context) error {
			n, err := be.tokens.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
			if n > 0 {
				log.Printf("auth: purged %d refresh tokens", n)
			}
			return err
		}),
	}
	if err := errors.Join(jobs...); err != nil {
		log.Fatal(err)
	}
	sched.Start()

	if cfg.LedgerConsumerEnabled && cfg.RabbitURL != "" {
		consumer := queue.NewLedgerConsumer(cfg.RabbitURL, cfg.BookingQueue, cfg.LedgerLogDir)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ledger-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	auth := handler.NewAuthHandler(handler.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, be.users, be.tokens)

	router.RegisterRoutes(e, &handler.HealthHandler{DB: be.db})
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewSeatHandler(mgr), middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterStudent(e, handler.NewBookingHandler(mgr, be.users, cfg.QRSize), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(mgr, provider, rec), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, store=%s, tz=%s)", addr, cfg.Env, cfg.StoreDriver, cfg.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler: shutdown: %v", err)
	}
}
