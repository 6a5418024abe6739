package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func newLedger(store *memory.Store) *ledger.UseCase {
	return ledger.NewUseCase(store, fixedClock{t: baseTime.Add(time.Hour)}, logger.Nop())
}

// seedBatch crea un lote con su acumulado de stock consistente.
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

func seedProduct(t *testing.T, store *memory.Store, id, sku string) {
	t.Helper()
	err := store.Run(context.Background(), func(r ports.Repos) error {
		return r.Products.Create(&entity.Product{ID: id, SKU: sku, Name: sku, Cost: decimal.Zero})
	})
	require.NoError(t, err)
}

func getBatch(t *testing.T, store *memory.Store, id string) *entity.Batch {
	t.Helper()
	var b *entity.Batch
	err := store.Run(context.Background(), func(r ports.Repos) error {
		var err error
		b, err = r.Batches.GetByID(id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
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

// FIFO: drena los lotes más antiguos primero y devuelve el costo promedio
// ponderado de lo tomado.
func TestConsume_FIFOPromedioPonderado(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterCleared, "10", "200", baseTime.Add(time.Minute))

	// 15 unidades: 10 del lote viejo a 100 y 5 del nuevo a 200
	avg, taken, err := uc.Consume(context.Background(), "p1", entity.RegisterCleared, dec("15"), ledger.StrategyFIFO, "test", "tester")
	require.NoError(t, err)
	require.Len(t, taken, 2)

	assert.Equal(t, "b1", taken[0].BatchID)
	assert.True(t, taken[0].Quantity.Equal(dec("10")))
	assert.Equal(t, "b2", taken[1].BatchID)
	assert.True(t, taken[1].Quantity.Equal(dec("5")))

	// promedio = (10*100 + 5*200) / 15 = 2000/15
	expected := dec("2000").Div(dec("15"))
	assert.True(t, avg.Equal(expected), "promedio %s != %s", avg, expected)

	// el lote viejo queda en cero y archivado; el acumulado baja 15
	b1 := getBatch(t, store, "b1")
	assert.True(t, b1.Quantity.IsZero())
	assert.True(t, b1.Archived)
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("5")))
}

func TestConsume_LIFO(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "10", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterCleared, "10", "200", baseTime.Add(time.Minute))

	_, taken, err := uc.Consume(context.Background(), "p1", entity.RegisterCleared, dec("5"), ledger.StrategyLIFO, "test", "tester")
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, "b2", taken[0].BatchID, "LIFO toma el lote más reciente")
}

// Todo-o-nada: si el disponible no alcanza, falla y NINGÚN lote cambia.
func TestConsume_InsuficienteEsAtomico(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	seedBatch(t, store, "b1", "p1", entity.RegisterCleared, "3", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterCleared, "4", "150", baseTime.Add(time.Minute))

	_, _, err := uc.Consume(context.Background(), "p1", entity.RegisterCleared, dec("10"), ledger.StrategyFIFO, "test", "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var insErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, "p1", insErr.ProductID)
	assert.True(t, insErr.Shortfall().Equal(dec("3")))

	// sin mutación parcial
	assert.True(t, getBatch(t, store, "b1").Quantity.Equal(dec("3")))
	assert.True(t, getBatch(t, store, "b2").Quantity.Equal(dec("4")))
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("7")))
}

// Conversión completa: el origen baja q, el destino sube q y ambos acumulados
// igualan la suma de sus lotes.
func TestConvertRegister_BalanceCompleto(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	seedBatch(t, store, "b1", "p1", entity.RegisterBonded, "10", "100", baseTime)
	seedBatch(t, store, "b2", "p1", entity.RegisterBonded, "10", "120", baseTime.Add(time.Minute))

	moved, err := uc.ConvertRegister(context.Background(), "p1", entity.RegisterBonded, entity.RegisterCleared, dec("15"), "test", "tester")
	require.NoError(t, err)
	assert.True(t, moved.Equal(dec("15")))

	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).Equal(dec("5")))
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("15")))

	// los lotes destino preservan la capa de costo original
	err = store.Run(context.Background(), func(r ports.Repos) error {
		cleared, err := r.Batches.ListAvailableForUpdate("p1", entity.RegisterCleared, true)
		if err != nil {
			return err
		}
		require.Len(t, cleared, 2)
		assert.True(t, cleared[0].UnitCost.Equal(dec("100")))
		assert.True(t, cleared[0].Quantity.Equal(dec("10")))
		assert.True(t, cleared[1].UnitCost.Equal(dec("120")))
		assert.True(t, cleared[1].Quantity.Equal(dec("5")))

		sum := decimal.Zero
		for _, b := range cleared {
			sum = sum.Add(b.Quantity)
		}
		stock, _ := r.Stock.Get("p1", entity.RegisterCleared)
		assert.True(t, stock.Quantity.Equal(sum), "acumulado == suma de lotes")
		return nil
	})
	require.NoError(t, err)
}

// Conversión parcial: mueve lo disponible y devuelve lo movido (sin error).
func TestConvertRegister_ParcialPermitido(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	seedBatch(t, store, "b1", "p1", entity.RegisterBonded, "4", "100", baseTime)

	moved, err := uc.ConvertRegister(context.Background(), "p1", entity.RegisterBonded, entity.RegisterCleared, dec("10"), "test", "tester")
	require.NoError(t, err)
	assert.True(t, moved.Equal(dec("4")))
	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).IsZero())
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).Equal(dec("4")))
}

// Reconcile fija en cero los lotes negativos y registra el ajuste.
func TestReconcile_FijaNegativosEnCero(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	// deriva simulada: lote en -3 con acumulado coherente con los lotes sanos
	err := store.Run(context.Background(), func(r ports.Repos) error {
		if err := r.Batches.Create(&entity.Batch{
			ID: "b1", ProductID: "p1", Register: entity.RegisterCleared,
			Quantity: dec("-3"), UnitCost: dec("100"), CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return r.Stock.Upsert(&entity.Stock{ProductID: "p1", Register: entity.RegisterCleared, Quantity: dec("-3")})
	})
	require.NoError(t, err)

	fixed, err := uc.Reconcile(context.Background(), "mantenimiento")
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	b := getBatch(t, store, "b1")
	assert.True(t, b.Quantity.IsZero())
	assert.True(t, b.Archived)
	assert.True(t, getStock(t, store, "p1", entity.RegisterCleared).IsZero())

	// segundo pase: nada que corregir
	fixed, err = uc.Reconcile(context.Background(), "mantenimiento")
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}

// RegisterArrival siembra lote + acumulado y actualiza el costo de referencia
// del producto con promedio ponderado.
func TestRegisterArrival(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)
	seedProduct(t, store, "p1", "SKU-1")

	batch, err := uc.RegisterArrival(context.Background(), ledger.ArrivalInput{
		ProductID: "p1",
		Register:  entity.RegisterBonded,
		Quantity:  dec("10"),
		UnitCost:  dec("250"),
		Origin:    "proveedor-x",
		Reference: "DO-001",
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.True(t, getStock(t, store, "p1", entity.RegisterBonded).Equal(dec("10")))

	err = store.Run(context.Background(), func(r ports.Repos) error {
		p, err := r.Products.GetByID("p1")
		if err != nil {
			return err
		}
		// stock previo 0: el costo de referencia pasa a ser el del lote
		assert.True(t, p.Cost.Equal(dec("250")), "costo de referencia: %s", p.Cost)
		return nil
	})
	require.NoError(t, err)
}

func TestRegisterArrival_ProductoInexistente(t *testing.T) {
	store := memory.NewStore()
	uc := newLedger(store)

	_, err := uc.RegisterArrival(context.Background(), ledger.ArrivalInput{
		ProductID: "nope",
		Register:  entity.RegisterBonded,
		Quantity:  dec("1"),
		UnitCost:  dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
