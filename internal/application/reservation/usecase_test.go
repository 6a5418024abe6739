package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comex-api/internal/application/contract"
	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/application/reservation"
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

type fixture struct {
	store       *memory.Store
	reservation *reservation.UseCase
	contract    *contract.UseCase
}

func newFixture() *fixture {
	store := memory.NewStore()
	clock := fixedClock{t: baseTime.Add(time.Hour)}
	ledgerUC := ledger.NewUseCase(store, clock, logger.Nop())
	resUC := reservation.NewUseCase(store, ledgerUC, clock)
	return &fixture{
		store:       store,
		reservation: resUC,
		contract:    contract.NewUseCase(store, resUC, clock),
	}
}

func (f *fixture) seedBatch(t *testing.T, id, productID, register, qty, cost string, createdAt time.Time) {
	t.Helper()
	err := f.store.Run(context.Background(), func(r ports.Repos) error {
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

func (f *fixture) stock(t *testing.T, productID, register string) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	err := f.store.Run(context.Background(), func(r ports.Repos) error {
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

func (f *fixture) batch(t *testing.T, id string) *entity.Batch {
	t.Helper()
	var b *entity.Batch
	err := f.store.Run(context.Background(), func(r ports.Repos) error {
		var err error
		b, err = r.Batches.GetByID(id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func strPtr(s string) *string { return &s }

// Crear un contrato reserva FIFO de CLEARED y deja una fila de reserva por
// cada lote tocado.
func TestCreate_ReservaAncladaPorLote(t *testing.T) {
	f := newFixture()
	f.seedBatch(t, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)
	f.seedBatch(t, "b2", "p1", entity.RegisterCleared, "10", "200", baseTime.Add(time.Minute))

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number:       "CT-001",
		Counterparty: "ACME",
		Type:         entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: strPtr("p1"), Name: "mercancía", Quantity: dec("15"), UnitPrice: dec("10")},
		},
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	assert.True(t, c.TotalAmount.Equal(dec("150")))
	assert.Equal(t, int64(1), c.TotalItemsCount)
	assert.Equal(t, entity.ContractStatusActive, c.Status)

	// el stock bajó y quedó una reserva por lote consumido
	assert.True(t, f.stock(t, "p1", entity.RegisterCleared).Equal(dec("5")))
	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		reservations, err := r.Reservations.ListByContract(c.ID)
		require.NoError(t, err)
		require.Len(t, reservations, 2)
		assert.Equal(t, "b1", reservations[0].BatchID)
		assert.True(t, reservations[0].Quantity.Equal(dec("10")))
		assert.Equal(t, "b2", reservations[1].BatchID)
		assert.True(t, reservations[1].Quantity.Equal(dec("5")))
		return nil
	})
	require.NoError(t, err)
}

// Ítems sin producto catalogado (mercancía futura) no reservan stock.
func TestCreate_ItemSinProductoNoReserva(t *testing.T) {
	f := newFixture()

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-002",
		Type:   entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: nil, Name: "mercancía futura", Quantity: dec("5"), UnitPrice: dec("20")},
		},
		CreatedBy: "tester",
	})
	require.NoError(t, err)

	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		reservations, err := r.Reservations.ListByContract(c.ID)
		require.NoError(t, err)
		assert.Empty(t, reservations)
		return nil
	})
	require.NoError(t, err)
}

// Sin stock suficiente, la reserva propaga el faltante exacto.
func TestCreate_StockInsuficiente(t *testing.T) {
	f := newFixture()
	f.seedBatch(t, "b1", "p1", entity.RegisterCleared, "3", "100", baseTime)

	_, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-003",
		Type:   entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: strPtr("p1"), Name: "mercancía", Quantity: dec("10"), UnitPrice: dec("10")},
		},
		CreatedBy: "tester",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var insErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &insErr)
	assert.True(t, insErr.Shortfall().Equal(dec("7")))
}

func TestCreate_Validaciones(t *testing.T) {
	f := newFixture()

	// alcance cerrado sin ítems
	_, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-004", Type: entity.ContractTypeClosed, CreatedBy: "tester",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// alcance abierto sin tope
	_, err = f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-005", Type: entity.ContractTypeOpen, CreatedBy: "tester",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// abierto con tope: válido sin ítems
	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-006", Type: entity.ContractTypeOpen,
		LimitAmount: dec("1000"), CreatedBy: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ContractStatusActive, c.Status)
}

// Cancelar devuelve cada reserva a su lote ORIGINAL, restaurando la capa de
// costo exacta, y deja contrato e ítems en CANCELLED.
func TestCancelContract_DevuelveCapasExactas(t *testing.T) {
	f := newFixture()
	f.seedBatch(t, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)
	f.seedBatch(t, "b2", "p1", entity.RegisterCleared, "10", "200", baseTime.Add(time.Minute))

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-007", Type: entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: strPtr("p1"), Name: "mercancía", Quantity: dec("15"), UnitPrice: dec("10")},
		},
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	require.True(t, f.batch(t, "b1").Archived, "b1 quedó drenado por la reserva")

	require.NoError(t, f.reservation.CancelContract(context.Background(), c.ID, "tester"))

	b1 := f.batch(t, "b1")
	assert.True(t, b1.Quantity.Equal(dec("10")))
	assert.False(t, b1.Archived)
	assert.True(t, b1.UnitCost.Equal(dec("100")), "la capa de costo original se restaura")
	assert.True(t, f.batch(t, "b2").Quantity.Equal(dec("10")))
	assert.True(t, f.stock(t, "p1", entity.RegisterCleared).Equal(dec("20")))

	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		got, err := r.Contracts.GetByID(c.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.ContractStatusCancelled, got.Status)

		items, err := r.Items.ListByContract(c.ID)
		require.NoError(t, err)
		for _, it := range items {
			assert.Equal(t, entity.ContractItemStatusCancelled, it.Status)
		}

		reservations, err := r.Reservations.ListByContract(c.ID)
		require.NoError(t, err)
		for _, res := range reservations {
			assert.NotNil(t, res.ReturnedAt, "toda reserva queda marcada como devuelta")
		}
		return nil
	})
	require.NoError(t, err)
}

// Cancelar dos veces es seguro: la segunda es un no-op y no duplica stock.
func TestCancelContract_Idempotente(t *testing.T) {
	f := newFixture()
	f.seedBatch(t, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-008", Type: entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: strPtr("p1"), Name: "mercancía", Quantity: dec("10"), UnitPrice: dec("10")},
		},
		CreatedBy: "tester",
	})
	require.NoError(t, err)

	require.NoError(t, f.reservation.CancelContract(context.Background(), c.ID, "tester"))
	require.NoError(t, f.reservation.CancelContract(context.Background(), c.ID, "tester"))

	assert.True(t, f.stock(t, "p1", entity.RegisterCleared).Equal(dec("10")), "sin doble devolución")
}

// Cancelar el contrato borra sus entregas diferidas (nunca tocaron stock y no
// deben quedar al alcance del reintento); las completadas permanecen como
// registro histórico.
func TestCancelContract_BorraEntregasDiferidas(t *testing.T) {
	f := newFixture()
	f.seedBatch(t, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-010", Type: entity.ContractTypeClosed,
		Items: []contract.ItemInput{
			{ProductID: strPtr("p1"), Name: "mercancía", Quantity: dec("10"), UnitPrice: dec("10")},
		},
		CreatedBy: "tester",
	})
	require.NoError(t, err)

	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		if err := r.Deliveries.Create(&entity.ContractDelivery{
			ID: "d-pend", ContractID: c.ID, ContractItemID: "i1",
			Quantity: dec("5"), MissingQuantity: dec("5"),
			Status: entity.DeliveryStatusPendingConversion, CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return r.Deliveries.Create(&entity.ContractDelivery{
			ID: "d-done", ContractID: c.ID, ContractItemID: "i1",
			Quantity: dec("5"), Status: entity.DeliveryStatusCompleted, CreatedAt: baseTime,
		})
	})
	require.NoError(t, err)

	require.NoError(t, f.reservation.CancelContract(context.Background(), c.ID, "tester"))

	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		pend, err := r.Deliveries.GetByID("d-pend")
		require.NoError(t, err)
		assert.Nil(t, pend, "la entrega diferida se borra con la cancelación")

		done, err := r.Deliveries.GetByID("d-done")
		require.NoError(t, err)
		assert.NotNil(t, done, "la entrega completada permanece")
		return nil
	})
	require.NoError(t, err)
}

// Un contrato cerrado no se cancela.
func TestCancelContract_CerradoNoSeCancela(t *testing.T) {
	f := newFixture()

	c, err := f.contract.Create(context.Background(), contract.CreateInput{
		Number: "CT-009", Type: entity.ContractTypeOpen,
		LimitAmount: dec("100"), CreatedBy: "tester",
	})
	require.NoError(t, err)

	err = f.store.Run(context.Background(), func(r ports.Repos) error {
		got, _ := r.Contracts.GetForUpdate(c.ID)
		got.Status = entity.ContractStatusClosed
		return r.Contracts.Update(got)
	})
	require.NoError(t, err)

	err = f.reservation.CancelContract(context.Background(), c.ID, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)
}
