package router

import (
	authsvc "leadmarket-backend/internal/application/auth"
	claimsvc "leadmarket-backend/internal/application/claims"
	contractorsvc "leadmarket-backend/internal/application/contractors"
	leadsvc "leadmarket-backend/internal/application/leads"
	ledgersvc "leadmarket-backend/internal/application/ledger"
	"leadmarket-backend/internal/application/notifications"
	verifysvc "leadmarket-backend/internal/application/verification"
	"leadmarket-backend/internal/config"
	"leadmarket-backend/internal/infrastructure/database"
	authhandler "leadmarket-backend/internal/interfaces/handlers/auth"
	contractorhandler "leadmarket-backend/internal/interfaces/handlers/contractors"
	healthhandler "leadmarket-backend/internal/interfaces/handlers/health"
	leadhandler "leadmarket-backend/internal/interfaces/handlers/leads"
	verifyhandler "leadmarket-backend/internal/interfaces/handlers/verification"
	"leadmarket-backend/internal/middleware"
	"leadmarket-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	return database.Ping(g.db)
}

// Services are the application services behind the HTTP surface. The relay in cmd/api
// shares the same outbox.
type Services struct {
	Tx          *database.TxRunner
	Ledger      *ledgersvc.Service
	Claims      *claimsvc.Service
	Leads       *leadsvc.Service
	Contractors *contractorsvc.Service
	Verify      *verifysvc.Service
	Outbox      *notifications.Outbox
}

// NewServices wires every service onto one database and transaction policy.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	tx := database.NewTxRunner(db, cfg.TxPolicy())
	notifier := &notifications.Dispatcher{DB: db}
	ledger := &ledgersvc.Service{DB: db, Tx: tx}
	return &Services{
		Tx:     tx,
		Ledger: ledger,
		Claims: &claimsvc.Service{
			Tx:       tx,
			Ledger:   ledger,
			Notifier: notifier,
			Pricing:  claimsvc.Pricing{DefaultCost: cfg.ClaimCostDefault},
		},
		Leads:       &leadsvc.Service{DB: db, Tx: tx, Notifier: notifier},
		Contractors: &contractorsvc.Service{DB: db, Tx: tx, Notifier: notifier},
		Verify:      &verifysvc.Service{Tx: tx, Notifier: notifier, TTL: cfg.VerificationCodeTTL},
		Outbox:      &notifications.Outbox{DB: db},
	}
}

// CreateApp opens Postgres and Redis from cfg and builds the fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	rdb, err := middleware.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, err
	}
	return New(cfg, db, rdb), db, rdb, nil
}

// New builds the fiber app on already-open connections.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	svc := NewServices(cfg, db)

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		Outbox:         svc.Outbox,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	sessionCfg := middleware.SessionConfig{
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	ah := &authhandler.Handlers{
		UserFinder: &authsvc.GormUserFinder{DB: db},
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	lh := &leadhandler.Handlers{Claims: svc.Claims, Leads: svc.Leads}
	lg := app.Group("/api/v1/leads", middleware.RequireAuth())
	lg.Get("/:lead_id", middleware.AuthorizePermission(constants.ViewLead), lh.Get)
	lg.Post("/:lead_id/claim", middleware.AuthorizePermission(constants.ClaimLead), lh.Claim)
	lg.Post("/:lead_id/cancel", middleware.AuthorizePermission(constants.CancelLead), lh.Cancel)

	ch := &contractorhandler.Handlers{Service: svc.Contractors, Ledger: svc.Ledger, Rdb: rdb}
	cg := app.Group("/api/v1/contractors", middleware.RequireAuth())
	cg.Get("/me", middleware.AuthorizePermission(constants.ViewAccount), ch.Me)
	cg.Get("/me/ledger", middleware.AuthorizePermission(constants.ViewLedger), ch.Ledger)
	cg.Patch("/:contractor_id/approve", middleware.AuthorizePermission(constants.ReviewContractors), ch.Approve)
	cg.Patch("/:contractor_id/reject", middleware.AuthorizePermission(constants.ReviewContractors), ch.Reject)

	vh := &verifyhandler.Handlers{Service: svc.Verify}
	vg := app.Group("/api/v1/verification")
	vg.Post("/issue", vh.Issue)
	vg.Post("/consume", vh.Consume)

	return app
}
