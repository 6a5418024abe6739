package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/comex-api/internal/application/catalog"
	appcontract "github.com/jhoicas/comex-api/internal/application/contract"
	appcosting "github.com/jhoicas/comex-api/internal/application/costing"
	appdelivery "github.com/jhoicas/comex-api/internal/application/delivery"
	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/lifecycle"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CatalogUC   *catalog.UseCase
	LedgerUC    *ledger.UseCase
	ContractUC  *appcontract.UseCase
	LifecycleUC *lifecycle.UseCase
	DeliveryUC  *appdelivery.UseCase
	CostingUC   *appcosting.UseCase
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Catálogo
	products := api.Group("/products")
	productHandler := NewProductHandler(deps.CatalogUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Get("/:id/stock", productHandler.GetStock)
	products.Get("/:id/movements", productHandler.ListMovements)

	// Ledger: ingresos manuales, conversiones y reconciliación
	ledgerGroup := api.Group("/ledger")
	ledgerHandler := NewLedgerHandler(deps.LedgerUC)
	ledgerGroup.Post("/arrivals", ledgerHandler.RegisterArrival)
	ledgerGroup.Post("/conversions", ledgerHandler.ConvertRegister)
	ledgerGroup.Post("/reconcile", ledgerHandler.Reconcile)

	// Contratos y su ciclo de vida
	contracts := api.Group("/contracts")
	contractHandler := NewContractHandler(deps.ContractUC, deps.LifecycleUC)
	contracts.Post("/", contractHandler.Create)
	contracts.Get("/", contractHandler.List)
	contracts.Get("/:id", contractHandler.GetByID)
	contracts.Post("/:id/payments", contractHandler.RegisterPayment)
	contracts.Post("/:id/close", contractHandler.Close)
	contracts.Post("/:id/cancel", contractHandler.Cancel)
	contracts.Post("/:id/recompute", contractHandler.Recompute)

	// Entregas
	deliveryHandler := NewDeliveryHandler(deps.DeliveryUC)
	contracts.Post("/:id/deliveries", deliveryHandler.Deliver)
	deliveries := api.Group("/deliveries")
	deliveries.Post("/:id/retry", deliveryHandler.Retry)
	deliveries.Delete("/:id", deliveryHandler.Cancel)

	// Costeo de importaciones
	costing := api.Group("/costing/sessions")
	costingHandler := NewCostingHandler(deps.CostingUC)
	costing.Post("/", costingHandler.CreateSession)
	costing.Get("/", costingHandler.ListSessions)
	costing.Get("/:id", costingHandler.GetSession)
	costing.Post("/:id/calculate", costingHandler.Calculate)
	costing.Post("/:id/finalize", costingHandler.Finalize)
}
