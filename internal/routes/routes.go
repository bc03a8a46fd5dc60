package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Amandasamuel/Toll-with-postgress/internal/config"
	"github.com/Amandasamuel/Toll-with-postgress/internal/identity"
	"github.com/Amandasamuel/Toll-with-postgress/internal/infra"
	"github.com/Amandasamuel/Toll-with-postgress/internal/ledger"
	"github.com/Amandasamuel/Toll-with-postgress/internal/middleware"
	"github.com/Amandasamuel/Toll-with-postgress/internal/money"
	"github.com/Amandasamuel/Toll-with-postgress/internal/notification"
	"github.com/Amandasamuel/Toll-with-postgress/internal/payments"
	"github.com/Amandasamuel/Toll-with-postgress/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache may
// be nil in development, in which case in-memory storage is used and the
// Redis-backed middlewares are skipped.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	ORM    *gorm.DB
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.DB == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	// Inside Audit, so recovered panics are logged with the status they rendered.
	app.Use(recover.New())

	RegisterHealthRoutes(app, d)

	storeOpts := ledger.Options{LockTimeout: d.Cfg.LockTimeout}
	var (
		store     ledger.Store
		identRepo identity.Repository
	)
	if d.DB != nil {
		orm := d.ORM
		if orm == nil {
			var err error
			if orm, err = infra.NewGormDB(d.DB, d.Cfg.LogLevel == "debug"); err != nil {
				return err
			}
		}
		store = ledger.NewPostgresStore(d.DB, storeOpts)
		identRepo = identity.NewGormRepository(orm)
	} else {
		mem := ledger.NewInMemory(storeOpts)
		store = mem
		identRepo = identity.NewMemoryRepository(mem)
		d.Logger.Warn("no database configured, using in-memory ledger")
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, d.Cfg.NotifyChannel)
	}

	// One resolver so every engine shares the card identity cache.
	resolver := ledger.NewResolver(d.Cfg.CardCacheTTL)
	walletSvc := wallet.NewService(store, resolver, d.Logger)
	paymentSvc, err := payments.NewService(store, resolver, notifier, d.Logger, payments.Options{
		ReferenceSalt: d.Cfg.ReferenceSalt,
		Formatter:     money.Formatter{Symbol: d.Cfg.CurrencySymbol, Exponent: d.Cfg.CurrencyExponent},
	})
	if err != nil {
		return err
	}
	identitySvc := identity.NewService(identRepo, d.Logger)

	api := app.Group("/api/v1", middleware.Timeout(d.Cfg.RequestTimeout))
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{
			TTL:      d.Cfg.IdempotencyTTL,
			Required: d.Cfg.IdempotencyRequired,
		}, d.Logger))
	}
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	throttle := middleware.TapThrottle(d.Cache, d.Cfg.TapRateLimit, d.Logger)
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc))
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), throttle)
	RegisterPaymentRoutes(api, payments.NewHandler(paymentSvc), throttle)

	return nil
}
