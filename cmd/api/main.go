package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/comex-api/internal/application/catalog"
	appcontract "github.com/jhoicas/comex-api/internal/application/contract"
	appcosting "github.com/jhoicas/comex-api/internal/application/costing"
	appdelivery "github.com/jhoicas/comex-api/internal/application/delivery"
	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/lifecycle"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/application/reservation"
	"github.com/jhoicas/comex-api/internal/infrastructure/memory"
	"github.com/jhoicas/comex-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/comex-api/internal/interfaces/http"
	"github.com/jhoicas/comex-api/pkg/config"
	"github.com/jhoicas/comex-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Sin BD configurada la app corre con el store en memoria (modo dev).
	var txRunner ports.TxRunner
	if cfg.DB.InMemory() {
		log.Warn().Msg("sin base de datos configurada, usando store en memoria")
		txRunner = memory.NewStore()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		txRunner = postgres.NewTxRunner(pool)
	}

	clock := ports.SystemClock{}
	ledgerUC := ledger.NewUseCase(txRunner, clock, log)
	reservationUC := reservation.NewUseCase(txRunner, ledgerUC, clock)
	contractUC := appcontract.NewUseCase(txRunner, reservationUC, clock)
	lifecycleUC := lifecycle.NewUseCase(txRunner, reservationUC, clock)
	deliveryUC := appdelivery.NewUseCase(txRunner, ledgerUC, clock, log)
	costingUC := appcosting.NewUseCase(txRunner, ledgerUC, clock, log)
	catalogUC := catalog.NewUseCase(txRunner, clock)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Comex Pro API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CatalogUC:   catalogUC,
		LedgerUC:    ledgerUC,
		ContractUC:  contractUC,
		LifecycleUC: lifecycleUC,
		DeliveryUC:  deliveryUC,
		CostingUC:   costingUC,
	})

	// Worker de reintentos de entregas pendientes de conversión.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.Worker.Enabled {
		worker := appdelivery.NewWorker(txRunner, deliveryUC, cfg.Worker.Interval, cfg.Worker.BatchSize, log)
		go worker.Run(workerCtx)
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
