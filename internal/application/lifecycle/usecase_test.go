package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/lifecycle"
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

func newUseCase(store *memory.Store) *lifecycle.UseCase {
	clock := fixedClock{t: baseTime}
	ledgerUC := ledger.NewUseCase(store, clock, logger.Nop())
	resUC := reservation.NewUseCase(store, ledgerUC, clock)
	return lifecycle.NewUseCase(store, resUC, clock)
}

// seedContract siembra un contrato de alcance cerrado con los totales dados.
func seedContract(t *testing.T, store *memory.Store, id string, total, paid, shipped string, itemsTotal, itemsDelivered int64) {
	t.Helper()
	err := store.Run(context.Background(), func(r ports.Repos) error {
		return r.Contracts.Create(&entity.Contract{
			ID: id, Number: "CT-" + id, Type: entity.ContractTypeClosed,
			TotalAmount: dec(total), PaidAmount: dec(paid), ShippedAmount: dec(shipped),
			TotalItemsCount: itemsTotal, DeliveredItemsCount: itemsDelivered,
			Status:    entity.ContractStatusActive,
			CreatedAt: baseTime, UpdatedAt: baseTime,
		})
	})
	require.NoError(t, err)
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

// Los pagos acumulan y el estado se rederiva en cada abono.
func TestRegisterPayment(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)
	seedContract(t, store, "c1", "100", "0", "0", 1, 0)

	require.NoError(t, uc.RegisterPayment(context.Background(), lifecycle.PaymentInput{
		ContractID: "c1", Amount: dec("40"), Method: "transferencia", CreatedBy: "tester",
	}))
	assert.Equal(t, entity.ContractStatusPartiallyPaid, getContract(t, store, "c1").Status)

	require.NoError(t, uc.RegisterPayment(context.Background(), lifecycle.PaymentInput{
		ContractID: "c1", Amount: dec("60"), Method: "transferencia", CreatedBy: "tester",
	}))
	c := getContract(t, store, "c1")
	assert.Equal(t, entity.ContractStatusPaid, c.Status)
	assert.True(t, c.PaidAmount.Equal(dec("100")))
}

// En alcance cerrado no se acepta sobrepago.
func TestRegisterPayment_SobrepagoRechazado(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)
	seedContract(t, store, "c1", "100", "90", "0", 1, 0)

	err := uc.RegisterPayment(context.Background(), lifecycle.PaymentInput{
		ContractID: "c1", Amount: dec("20"), CreatedBy: "tester",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// monto no positivo
	err = uc.RegisterPayment(context.Background(), lifecycle.PaymentInput{
		ContractID: "c1", Amount: decimal.Zero, CreatedBy: "tester",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegisterPayment_TerminalRechazado(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)
	seedContract(t, store, "c1", "100", "0", "0", 1, 0)
	err := store.Run(context.Background(), func(r ports.Repos) error {
		c, _ := r.Contracts.GetForUpdate("c1")
		c.Status = entity.ContractStatusCancelled
		return r.Contracts.Update(c)
	})
	require.NoError(t, err)

	err = uc.RegisterPayment(context.Background(), lifecycle.PaymentInput{
		ContractID: "c1", Amount: dec("10"), CreatedBy: "tester",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)
}

// Cerrar exige pagado, entregado y despachado completos.
func TestClose_Precondiciones(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)

	seedContract(t, store, "impago", "100", "50", "100", 1, 1)
	err := uc.Close(context.Background(), "impago")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)

	seedContract(t, store, "sinentregar", "100", "100", "100", 2, 1)
	err = uc.Close(context.Background(), "sinentregar")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)

	seedContract(t, store, "completo", "100", "100", "100", 1, 1)
	require.NoError(t, uc.Close(context.Background(), "completo"))
	assert.Equal(t, entity.ContractStatusClosed, getContract(t, store, "completo").Status)

	// sticky: cerrar dos veces falla
	err = uc.Close(context.Background(), "completo")
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)
}

// No se cierra un contrato cuyas entregas referencian lotes que siguen en
// custodia BONDED.
func TestClose_LotesEnBonded(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)
	seedContract(t, store, "c1", "100", "100", "100", 1, 1)

	err := store.Run(context.Background(), func(r ports.Repos) error {
		if err := r.Batches.Create(&entity.Batch{
			ID: "b1", ProductID: "p1", Register: entity.RegisterBonded,
			Quantity: dec("5"), UnitCost: dec("10"), CreatedAt: baseTime,
		}); err != nil {
			return err
		}
		return r.Deliveries.Create(&entity.ContractDelivery{
			ContractID: "c1", ContractItemID: "i1",
			Quantity: dec("5"), Status: entity.DeliveryStatusCompleted,
			Lines: []entity.DeliveryLine{
				{BatchID: "b1", Register: entity.RegisterBonded, Quantity: dec("5"), UnitCost: dec("10")},
			},
			CreatedAt: baseTime,
		})
	})
	require.NoError(t, err)

	err = uc.Close(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidContractState)
	assert.Contains(t, err.Error(), "b1")

	// el mismo lote ya nacionalizado permite cerrar
	err = store.Run(context.Background(), func(r ports.Repos) error {
		b, _ := r.Batches.GetForUpdate("b1")
		b.Register = entity.RegisterCleared
		return r.Batches.Update(b)
	})
	require.NoError(t, err)
	require.NoError(t, uc.Close(context.Background(), "c1"))
}

// Recompute rederiva y persiste; el tope de gasto en alcance abierto cierra
// automáticamente.
func TestRecompute_TopeDeGastoCierra(t *testing.T) {
	store := memory.NewStore()
	uc := newUseCase(store)

	err := store.Run(context.Background(), func(r ports.Repos) error {
		return r.Contracts.Create(&entity.Contract{
			ID: "c1", Number: "CT-c1", Type: entity.ContractTypeOpen,
			LimitAmount: dec("500"), ShippedAmount: dec("500"),
			Status:    entity.ContractStatusActive,
			CreatedAt: baseTime, UpdatedAt: baseTime,
		})
	})
	require.NoError(t, err)

	status, err := uc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, entity.ContractStatusClosed, status)
	assert.Equal(t, entity.ContractStatusClosed, getContract(t, store, "c1").Status)
}
