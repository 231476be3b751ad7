package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/produccion-api/internal/application/auth"
	"github.com/jhoicas/produccion-api/internal/application/rolechange"
	"github.com/jhoicas/produccion-api/internal/application/usecase"
	"github.com/jhoicas/produccion-api/internal/domain/production"
	"github.com/jhoicas/produccion-api/internal/domain/repository"
	"github.com/jhoicas/produccion-api/internal/infrastructure/memory"
	"github.com/jhoicas/produccion-api/internal/infrastructure/postgres"
	"github.com/jhoicas/produccion-api/internal/infrastructure/redisbus"
	"github.com/jhoicas/produccion-api/internal/infrastructure/scheduler"
	"github.com/jhoicas/produccion-api/internal/infrastructure/sse"
	httpRouter "github.com/jhoicas/produccion-api/internal/interfaces/http"
	"github.com/jhoicas/produccion-api/pkg/config"
	"github.com/jhoicas/produccion-api/pkg/logger"
	"github.com/jhoicas/produccion-api/pkg/metrics"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.StorageDriver).
		Bool("redis", cfg.Redis.Enabled()).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	m := metrics.New()

	var (
		employeeRepo   repository.EmployeeRepository
		recordRepo     repository.RecordRepository
		roleChangeRepo repository.RoleChangeRepository
	)
	switch cfg.App.StorageDriver {
	case "memory":
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		employeeRepo = memory.NewEmployeeRepository()
		recordRepo = memory.NewRecordRepository()
		roleChangeRepo = memory.NewRoleChangeRepository()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		employeeRepo = postgres.NewEmployeeRepository(pool)
		recordRepo = postgres.NewRecordRepository(pool)
		roleChangeRepo = postgres.NewRoleChangeRepository(pool)
	}

	hub := sse.NewHub(log, m)

	// Sin Redis: temporizadores en proceso y entrega local. Con Redis: cola durable de cierres y
	// fanout de notificaciones entre instancias.
	var (
		sched    rolechange.Scheduler = scheduler.NewMemory()
		notifier rolechange.Notifier  = hub
	)
	if cfg.Redis.Enabled() {
		client, err := redisbus.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer client.Close()

		bus := redisbus.NewBus(client, cfg.Redis.KeyPrefix, hub, log, m)
		if err := bus.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("suscripción a eventos")
		}
		defer bus.Close()

		sched = scheduler.NewRedis(client, scheduler.RedisOptions{Prefix: cfg.Redis.KeyPrefix}, log)
		notifier = bus
	}

	tracker := rolechange.NewTracker(roleChangeRepo, sched, notifier, rolechange.Config{
		Grace:         cfg.RoleChange.Grace,
		Countdown:     cfg.RoleChange.Countdown,
		Retention:     cfg.RoleChange.Retention,
		SweepSchedule: cfg.RoleChange.SweepSchedule,
		PurgeSchedule: cfg.RoleChange.PurgeSchedule,
	}, log, m)
	if err := tracker.Start(); err != nil {
		log.Fatal().Err(err).Msg("iniciar seguimiento de cambios de rol")
	}
	defer tracker.Stop()

	go hub.Run(ctx, cfg.Events.Heartbeat)

	authUC := auth.NewAuthUseCase(employeeRepo, tracker, auth.JWTConfig{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.TTL(),
		Issuer: cfg.JWT.Issuer,
	}, log)
	employeeUC := usecase.NewEmployeeUseCase(employeeRepo, tracker, log)
	records := make([]*usecase.RecordUseCase, 0, len(production.Schemas()))
	for _, s := range production.Schemas() {
		records = append(records, usecase.NewRecordUseCase(s, recordRepo, employeeRepo, log, m))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(httpRouter.Metrics(m))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Producción API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "live_clients": hub.Count()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:             authUC,
		Sessions:           auth.NewSessionValidator(employeeRepo, cfg.JWT.Secret),
		EmployeeUC:         employeeUC,
		Records:            records,
		Hub:                hub,
		LoginRatePerMinute: cfg.HTTP.LoginRatePerMinute,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Cancelar primero cierra los streams SSE abiertos; si no, el apagado esperaría por ellos.
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
