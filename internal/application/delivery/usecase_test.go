package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comex-api/internal/application/delivery"
	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/infrastructure/memory"
	"github.com/jhoicas/comex-api/pkg/logger"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newEngine(store *memory.Store) *delivery.UseCase {
	clock := fixedClock{t: baseTime.Add(time.Hour)}
	ledgerUC := ledger.NewUseCase(store, clock, logger.Nop())
	return delivery.NewUseCase(store, ledgerUC, clock, logger.Nop())
}

func seedBatch(t *testing.T, store *memory.Store, id, productID, register, qty, cost string, createdAt time.Time) {
	t.Helper()
	err := store.Run(context.Background(), func(r ports.Repos) error {
		b := &entity.Batch{
			ID: id, ProductID: productID, Register: register,
			Quantity: dec(qty), UnitCost: dec(cost),
			CreatedAt: createdAt, UpdatedAt: createdAt,
		}
		if err := r.Batches.Create(b); err != nil {
			return err
		}
		stock, err := r.Stock.GetForUpdate(productID, register)
		if err != nil {
			return err
		}
		stock.Quantity = stock.Quantity.Add(dec(qty))
		return r.Stock.Upsert(stock)
	})
	require.NoError(t, err)
}

// seedContract crea un contrato de alcance cerrado con un único ítem.
func seedContract(t *testing.T, store *memory.Store, contractID, itemID, productID, qty, price string) {
	t.Helper()
	err := store.Run(context.Background(), func(r ports.Repos) error {
		pid := productID
		total := dec(qty).Mul(dec(price))
		if err := r.Contracts.Create(&entity.Contract{
			ID: contractID, Number: "CT-" + contractID, Type: entity.ContractTypeClosed,
			TotalAmount: total, PaidAmount: decimal.Zero, ShippedAmount: decimal.Zero,
			TotalItemsCount: 1, Status: entity.ContractStatusActive,
			CreatedAt: baseTime, UpdatedAt: baseTime,
		}); err != nil {
			return err
		}
		return r.Items.Create(&entity.ContractItem{
			ID: itemID, ContractID: contractID, ProductID: &pid, Name: "mercancía",
			Quantity: dec(qty), DeliveredQty: decimal.Zero, UnitPrice: dec(price),
			Status: entity.ContractItemStatusPending, CreatedAt: baseTime, UpdatedAt: baseTime,
		})
	})
	require.NoError(t, err)
}

func getStock(t *testing.T, store *memory.Store, productID, register string) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	err := store.Run(context.Background(), func(r ports.Repos) error {
		s, err := r.Stock.Get(productID, register)
		if err != nil {
			return err
		}
		q = s.Quantity
		return nil
	})
	require.NoError(t, err)
	return q
}

func getContract(t *testing.T, store *memory.Store, id string) *entity.Contract {
	t.Helper()
	var c *entity.Contract
	err := store.Run(context.Background(), func(r ports.Repos) error {
		var err error
		c, err = r.Contracts.GetByID(id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func getItem(t *testing.T, store *memory.Store, id string) *entity.ContractItem {
	t.Helper()
	var it *entity.ContractItem
	err := store.Run(context.Background(), func(r ports.Repos) error {
		var err error
		it, err = r.Items.GetByID(id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, it)
	return it
}

func getDelivery(t *testing.T, store *memory.Store, id string) *entity.ContractDelivery {
	t.Helper()
	var d *entity.ContractDelivery
	err := store.Run(context.Background(), func(r ports.Repos) error {
		var err error
		d, err = r.Deliveries.GetByID(id)
		return err
	})
	require.NoError(t, err)
	return d
}

// Entrega con stock CLEARED suficiente: consume FIFO, registra las líneas
// exactas y actualiza ítem y contrato.
func TestDeliver_Completa(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "15", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterCleared, "10", "200", baseTime.Add(time.Minute))

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("15"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusCompleted, d.Status)
	require.Len(t, d.Lines, 2)
	assert.Equal(t, "b1", d.Lines[0].BatchID)
	assert.True(t, d.Lines[0].Quantity.Equal(dec("10")))
	assert.True(t, d.Lines[0].UnitCost.Equal(dec("100")))
	assert.Equal(t, "b2", d.Lines[1].BatchID)
	assert.True(t, d.Lines[1].Quantity.Equal(dec("5")))

	item := getItem(t, store, "i1")
	assert.True(t, item.DeliveredQty.Equal(dec("15")))
	assert.Equal(t, entity.ContractItemStatusDelivered, item.Status)

	c := getContract(t, store, "c1")
	assert.True(t, c.ShippedAmount.Equal(dec("150")))
	assert.Equal(t, int64(1), c.DeliveredItemsCount)
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("5")))
}

// Faltante en CLEARED cubierto por conversión desde BONDED en la misma entrega.
func TestDeliver_ConversionCubreFaltante(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "5", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "3", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterBonded, "10", "100", baseTime)

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("5"), "tester")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStatusCompleted, d.Status)

	// se convirtieron 2 desde BONDED y se consumieron las 5
	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).Equal(dec("8")))
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).IsZero())
}

// Faltante que la conversión no cubre: la entrega se difiere SIN consumir, pero
// lo que sí se alcanzó a convertir queda convertido.
func TestDeliver_DiferidaSinConsumo(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "3", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterBonded, "2", "100", baseTime)

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryStatusPendingConversion, d.Status)
	assert.True(t, d.MissingQuantity.Equal(dec("5")), "faltante %s", d.MissingQuantity)
	assert.Empty(t, d.Lines)

	// la conversión parcial persiste; nada se consumió
	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).IsZero())
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("5")))
	assert.True(t, getItem(t, store, "i1").DeliveredQty.IsZero())
	assert.True(t, getContract(t, store, "c1").ShippedAmount.IsZero())
}

// El reintento completa la entrega cuando ya hay stock, y es idempotente:
// reintentar una entrega COMPLETED no toca nada.
func TestRetryPendingDelivery(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "3", "100", baseTime)

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusPendingConversion, d.Status)

	// primer reintento: sigue sin stock, solo avanza el contador
	require.NoError(t, uc.RetryPendingDelivery(context.Background(), d.ID, "worker"))
	got := getDelivery(t, store, d.ID)
	assert.Equal(t, entity.DeliveryStatusPendingConversion, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastRetryAt)

	// llega mercancía a BONDED y el siguiente reintento completa
	seedBatch(t, store, "b2", "p1", entity.RegisterBonded, "20", "100", baseTime.Add(time.Minute))
	require.NoError(t, uc.RetryPendingDelivery(context.Background(), d.ID, "worker"))

	got = getDelivery(t, store, d.ID)
	assert.Equal(t, entity.DeliveryStatusCompleted, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.True(t, got.MissingQuantity.IsZero())
	assert.True(t, getItem(t, store, "i1").DeliveredQty.Equal(dec("10")))
	assert.True(t, getContract(t, store, "c1").ShippedAmount.Equal(dec("100")))

	// idempotencia: no re-consume ni re-suma totales
	require.NoError(t, uc.RetryPendingDelivery(context.Background(), d.ID, "worker"))
	got = getDelivery(t, store, d.ID)
	assert.Equal(t, 2, got.RetryCount, "una entrega completada no se reintenta")
	assert.True(t, getContract(t, store, "c1").ShippedAmount.Equal(dec("100")))
}

// Una entrega diferida jamás se completa contra un contrato terminal: el
// reintento se rechaza aunque ya haya stock disponible.
func TestRetryPendingDelivery_ContratoCancelado(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusPendingConversion, d.Status)

	// el contrato se cancela con la entrega aún diferida
	err = store.Run(context.Background(), func(r ports.Repos) error {
		c, _ := r.Contracts.GetForUpdate("c1")
		c.Status = entity.ContractStatusCancelled
		return r.Contracts.Update(c)
	})
	require.NoError(t, err)

	// llega mercancía: el reintento igual debe rechazarse
	seedBatch(t, store, "b1", "p1", entity.RegisterBonded, "20", "100", baseTime)
	err = uc.RetryPendingDelivery(context.Background(), d.ID, "worker")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)

	got := getDelivery(t, store, d.ID)
	assert.Equal(t, entity.DeliveryStatusPendingConversion, got.Status)
	assert.True(t, getItem(t, store, "i1").DeliveredQty.IsZero())
	assert.True(t, getContract(t, store, "c1").ShippedAmount.IsZero())
	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).Equal(dec("20")),
		"el rechazo no debe convertir ni consumir stock")
}

// Cancelar una entrega completada devuelve cada línea a su lote original y
// descuenta los totales.
func TestCancelDelivery_Completada(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusCompleted, d.Status)
	require.Equal(t, int64(1), getContract(t, store, "c1").DeliveredItemsCount)

	require.NoError(t, uc.CancelDelivery(context.Background(), d.ID, "tester"))

	assert.Nil(t, getDelivery(t, store, d.ID))
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("10")))

	item := getItem(t, store, "i1")
	assert.True(t, item.DeliveredQty.IsZero())
	assert.Equal(t, entity.ContractItemStatusPending, item.Status)

	c := getContract(t, store, "c1")
	assert.True(t, c.ShippedAmount.IsZero())
	assert.Equal(t, int64(0), c.DeliveredItemsCount)
}

// Cancelar una entrega pendiente solo borra el registro: nunca tocó stock.
func TestCancelDelivery_Pendiente(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusPendingConversion, d.Status)

	require.NoError(t, uc.CancelDelivery(context.Background(), d.ID, "tester"))
	assert.Nil(t, getDelivery(t, store, d.ID))
}

// Revertir una entrega de un contrato terminal se rechaza: desharía los
// totales con los que el contrato se cerró.
func TestCancelDelivery_ContratoTerminal(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)

	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusCompleted, d.Status)

	err = store.Run(context.Background(), func(r ports.Repos) error {
		c, _ := r.Contracts.GetForUpdate("c1")
		c.Status = entity.ContractStatusClosed
		return r.Contracts.Update(c)
	})
	require.NoError(t, err)

	err = uc.CancelDelivery(context.Background(), d.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)

	require.NotNil(t, getDelivery(t, store, d.ID))
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).IsZero())
	assert.True(t, getContract(t, store, "c1").ShippedAmount.Equal(dec("100")))
}

func TestDeliver_Validaciones(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "5", "10")
	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "100", "100", baseTime)

	// más de lo pendiente del ítem
	_, err := uc.Deliver(context.Background(), "c1", "i1", dec("6"), "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// cantidad no positiva
	_, err = uc.Deliver(context.Background(), "c1", "i1", decimal.Zero, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// contrato inexistente
	_, err = uc.Deliver(context.Background(), "nope", "i1", dec("1"), "tester")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// contrato terminal
	err = store.Run(context.Background(), func(r ports.Repos) error {
		c, _ := r.Contracts.GetForUpdate("c1")
		c.Status = entity.ContractStatusClosed
		return r.Contracts.Update(c)
	})
	require.NoError(t, err)
	_, err = uc.Deliver(context.Background(), "c1", "i1", dec("1"), "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)
}

// El worker completa en un ciclo las pendientes que ya tienen stock.
func TestWorker_Cycle(t *testing.T) {
	store := memory.NewStore()
	uc := newEngine(store)

	seedContract(t, store, "c1", "i1", "p1", "10", "10")
	d, err := uc.Deliver(context.Background(), "c1", "i1", dec("10"), "tester")
	require.NoError(t, err)
	require.Equal(t, entity.DeliveryStatusPendingConversion, d.Status)

	seedBatch(t, store, "b1", "p1", entity.RegisterBonded, "10", "100", baseTime)

	w := delivery.NewWorker(store, uc, time.Minute, 20, logger.Nop())
	w.Cycle(context.Background())

	got := getDelivery(t, store, d.ID)
	assert.Equal(t, entity.DeliveryStatusCompleted, got.Status)
}
