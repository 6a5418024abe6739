// Package ledger implementa el libro de lotes: consumo FIFO/LIFO,
// conversión entre registros de custodia y reconciliación de derivas.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/costing"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/pkg/logger"
)

// Estrategias de selección de lotes.
type Strategy string

const (
	StrategyFIFO Strategy = "FIFO" // más antiguo primero
	StrategyLIFO Strategy = "LIFO" // más reciente primero
)

// Consumption es una toma puntual de un lote: qué lote, cuánto y a qué costo.
type Consumption struct {
	BatchID  string
	Register string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// UseCase expone las operaciones del libro de lotes. Cada operación pública
// abre su propia transacción; las variantes ...InTx componen dentro de la
// transacción del llamador (motor de entregas, reservas, costeo).
type UseCase struct {
	txRunner ports.TxRunner
	clock    ports.Clock
	log      *logger.Logger
}

// NewUseCase construye el caso de uso del ledger.
func NewUseCase(txRunner ports.TxRunner, clock ports.Clock, log *logger.Logger) *UseCase {
	return &UseCase{txRunner: txRunner, clock: clock, log: log}
}

// Consume toma qty del (producto, registro) según la estrategia y devuelve el
// costo promedio ponderado de lo consumido junto con las tomas por lote.
// Es todo-o-nada: si el disponible total es menor a qty falla con
// InsufficientStockError y no muta ningún lote.
func (uc *UseCase) Consume(
	ctx context.Context,
	productID, register string,
	qty decimal.Decimal,
	strategy Strategy,
	reference, createdBy string,
) (decimal.Decimal, []Consumption, error) {
	var avgCost decimal.Decimal
	var taken []Consumption
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		avgCost, taken, err = uc.ConsumeInTx(r, productID, register, qty, strategy, reference, createdBy)
		return err
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return avgCost, taken, nil
}

// ConsumeInTx es Consume dentro de la transacción del llamador.
func (uc *UseCase) ConsumeInTx(
	r ports.Repos,
	productID, register string,
	qty decimal.Decimal,
	strategy Strategy,
	reference, createdBy string,
) (decimal.Decimal, []Consumption, error) {
	if !entity.ValidRegister(register) || !qty.GreaterThan(decimal.Zero) {
		return decimal.Zero, nil, domain.ErrInvalidInput
	}

	oldestFirst := strategy != StrategyLIFO
	batches, err := r.Batches.ListAvailableForUpdate(productID, register, oldestFirst)
	if err != nil {
		return decimal.Zero, nil, err
	}

	available := decimal.Zero
	for _, b := range batches {
		available = available.Add(b.Quantity)
	}
	// Verificación previa a cualquier mutación: todo-o-nada.
	if available.LessThan(qty) {
		return decimal.Zero, nil, &domain.InsufficientStockError{
			ProductID: productID,
			Register:  register,
			Requested: qty,
			Available: available,
		}
	}

	now := uc.clock.Now()
	txID := uuid.New().String()
	remaining := qty
	totalCost := decimal.Zero
	var taken []Consumption

	for _, b := range batches {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(b.Quantity, remaining)

		b.Quantity = b.Quantity.Sub(take)
		b.Archived = b.Quantity.IsZero()
		b.UpdatedAt = now
		if err := r.Batches.Update(b); err != nil {
			return decimal.Zero, nil, err
		}

		mov := &entity.BatchMovement{
			TransactionID: txID,
			BatchID:       b.ID,
			ProductID:     productID,
			Register:      register,
			Type:          entity.BatchMovementConsume,
			Quantity:      take.Neg(),
			UnitCost:      b.UnitCost,
			Reference:     reference,
			CreatedAt:     now,
			CreatedBy:     createdBy,
		}
		if err := r.Movements.Create(mov); err != nil {
			return decimal.Zero, nil, err
		}

		taken = append(taken, Consumption{
			BatchID:  b.ID,
			Register: register,
			Quantity: take,
			UnitCost: b.UnitCost,
		})
		totalCost = totalCost.Add(take.Mul(b.UnitCost))
		remaining = remaining.Sub(take)
	}

	if err := uc.adjustStock(r, productID, register, qty.Neg(), now); err != nil {
		return decimal.Zero, nil, err
	}

	return totalCost.Div(qty), taken, nil
}

// ConvertRegister consume qty de from vía FIFO y crea por cada toma un lote
// nuevo en to con el mismo costo unitario y procedencia, preservando la
// identidad de la capa de costo a través de la frontera de custodia.
// A diferencia de Consume, aquí el éxito parcial está permitido: si from
// tiene menos que qty se mueve lo disponible y se devuelve lo movido.
func (uc *UseCase) ConvertRegister(
	ctx context.Context,
	productID, from, to string,
	qty decimal.Decimal,
	reference, createdBy string,
) (decimal.Decimal, error) {
	var moved decimal.Decimal
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		moved, err = uc.ConvertRegisterInTx(r, productID, from, to, qty, reference, createdBy)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return moved, nil
}

// ConvertRegisterInTx es ConvertRegister dentro de la transacción del llamador.
func (uc *UseCase) ConvertRegisterInTx(
	r ports.Repos,
	productID, from, to string,
	qty decimal.Decimal,
	reference, createdBy string,
) (decimal.Decimal, error) {
	if !entity.ValidRegister(from) || !entity.ValidRegister(to) || from == to ||
		!qty.GreaterThan(decimal.Zero) {
		return decimal.Zero, domain.ErrInvalidInput
	}

	batches, err := r.Batches.ListAvailableForUpdate(productID, from, true)
	if err != nil {
		return decimal.Zero, err
	}

	now := uc.clock.Now()
	txID := uuid.New().String()
	remaining := qty
	moved := decimal.Zero

	for _, b := range batches {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(b.Quantity, remaining)

		b.Quantity = b.Quantity.Sub(take)
		b.Archived = b.Quantity.IsZero()
		b.UpdatedAt = now
		if err := r.Batches.Update(b); err != nil {
			return decimal.Zero, err
		}

		// Lote nuevo en destino con el mismo costo y procedencia.
		dest := &entity.Batch{
			ProductID: productID,
			Register:  to,
			Quantity:  take,
			UnitCost:  b.UnitCost,
			Origin:    b.Origin,
			Reference: b.Reference,
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: createdBy,
		}
		if err := r.Batches.Create(dest); err != nil {
			return decimal.Zero, err
		}

		// Par de movimientos con el mismo TransactionID.
		out := &entity.BatchMovement{
			TransactionID: txID,
			BatchID:       b.ID,
			ProductID:     productID,
			Register:      from,
			Type:          entity.BatchMovementConvertOut,
			Quantity:      take.Neg(),
			UnitCost:      b.UnitCost,
			Reference:     reference,
			CreatedAt:     now,
			CreatedBy:     createdBy,
		}
		if err := r.Movements.Create(out); err != nil {
			return decimal.Zero, err
		}
		in := &entity.BatchMovement{
			TransactionID: txID,
			BatchID:       dest.ID,
			ProductID:     productID,
			Register:      to,
			Type:          entity.BatchMovementConvertIn,
			Quantity:      take,
			UnitCost:      b.UnitCost,
			Reference:     reference,
			CreatedAt:     now,
			CreatedBy:     createdBy,
		}
		if err := r.Movements.Create(in); err != nil {
			return decimal.Zero, err
		}

		moved = moved.Add(take)
		remaining = remaining.Sub(take)
	}

	if moved.GreaterThan(decimal.Zero) {
		if err := uc.adjustStock(r, productID, from, moved.Neg(), now); err != nil {
			return decimal.Zero, err
		}
		if err := uc.adjustStock(r, productID, to, moved, now); err != nil {
			return decimal.Zero, err
		}
	}

	return moved, nil
}

// ArrivalInput describe el ingreso de un lote nuevo al ledger.
type ArrivalInput struct {
	ProductID string
	Register  string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Origin    string
	Reference string
	CreatedBy string
}

// RegisterArrival siembra un lote nuevo (importación costeada o entrada
// directa), actualiza el acumulado y el costo de referencia del producto.
func (uc *UseCase) RegisterArrival(ctx context.Context, in ArrivalInput) (*entity.Batch, error) {
	var created *entity.Batch
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		created, err = uc.RegisterArrivalInTx(r, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RegisterArrivalInTx es RegisterArrival dentro de la transacción del llamador.
func (uc *UseCase) RegisterArrivalInTx(r ports.Repos, in ArrivalInput) (*entity.Batch, error) {
	if !entity.ValidRegister(in.Register) || !in.Quantity.GreaterThan(decimal.Zero) ||
		in.UnitCost.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	product, err := r.Products.GetByID(in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	now := uc.clock.Now()
	batch := &entity.Batch{
		ProductID: in.ProductID,
		Register:  in.Register,
		Quantity:  in.Quantity,
		UnitCost:  in.UnitCost,
		Origin:    in.Origin,
		Reference: in.Reference,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: in.CreatedBy,
	}
	if err := r.Batches.Create(batch); err != nil {
		return nil, err
	}

	mov := &entity.BatchMovement{
		TransactionID: uuid.New().String(),
		BatchID:       batch.ID,
		ProductID:     in.ProductID,
		Register:      in.Register,
		Type:          entity.BatchMovementArrival,
		Quantity:      in.Quantity,
		UnitCost:      in.UnitCost,
		Reference:     in.Reference,
		CreatedAt:     now,
		CreatedBy:     in.CreatedBy,
	}
	if err := r.Movements.Create(mov); err != nil {
		return nil, err
	}

	if err := uc.adjustStock(r, in.ProductID, in.Register, in.Quantity, now); err != nil {
		return nil, err
	}

	// Costo de referencia del producto: promedio ponderado sobre el stock
	// total (ambos registros) previo al ingreso.
	current := decimal.Zero
	for _, reg := range []string{entity.RegisterBonded, entity.RegisterCleared} {
		s, err := r.Stock.Get(in.ProductID, reg)
		if err != nil {
			return nil, err
		}
		current = current.Add(s.Quantity)
	}
	current = current.Sub(in.Quantity) // el ajuste de arriba ya sumó el ingreso
	newCost := costing.WeightedReferenceCost(current, product.Cost, in.Quantity, in.UnitCost)
	if err := r.Products.UpdateCost(in.ProductID, newCost); err != nil {
		return nil, err
	}

	return batch, nil
}

// Reconcile busca lotes con cantidad negativa (deriva de algún bug no
// atómico), los fija en cero y registra un ajuste con el delta. Es una
// operación de mantenimiento, no parte del camino transaccional normal.
func (uc *UseCase) Reconcile(ctx context.Context, createdBy string) (int, error) {
	fixed := 0
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		negatives, err := r.Batches.ListNegative()
		if err != nil {
			return err
		}
		now := uc.clock.Now()
		for _, b := range negatives {
			delta := b.Quantity.Neg() // cuánto hay que sumar para llegar a cero

			uc.log.Warn().
				Str("batch_id", b.ID).
				Str("product_id", b.ProductID).
				Str("register", b.Register).
				Str("quantity", b.Quantity.String()).
				Msg("lote con cantidad negativa, fijando en cero")

			b.Quantity = decimal.Zero
			b.Archived = true
			b.UpdatedAt = now
			if err := r.Batches.Update(b); err != nil {
				return err
			}

			mov := &entity.BatchMovement{
				TransactionID: uuid.New().String(),
				BatchID:       b.ID,
				ProductID:     b.ProductID,
				Register:      b.Register,
				Type:          entity.BatchMovementAdjustment,
				Quantity:      delta,
				UnitCost:      b.UnitCost,
				Reference:     "reconciliación",
				CreatedAt:     now,
				CreatedBy:     createdBy,
			}
			if err := r.Movements.Create(mov); err != nil {
				return err
			}

			// El acumulado sigue a la suma de lotes.
			if err := uc.adjustStock(r, b.ProductID, b.Register, delta, now); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fixed, nil
}

// adjustStock suma delta (puede ser negativo) al acumulado (producto, registro).
func (uc *UseCase) adjustStock(r ports.Repos, productID, register string, delta decimal.Decimal, now time.Time) error {
	stock, err := r.Stock.GetForUpdate(productID, register)
	if err != nil {
		return err
	}
	stock.Quantity = stock.Quantity.Add(delta)
	stock.UpdatedAt = now
	return r.Stock.Upsert(stock)
}
