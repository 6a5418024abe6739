// Package delivery implementa el motor de entregas: cumplimiento de ítems de
// contrato desde el ledger, conversión de custodia ante faltantes y el estado
// diferido PENDING_CONVERSION con reintento.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	domaincontract "github.com/jhoicas/comex-api/internal/domain/contract"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/pkg/logger"
)

// UseCase entrega ítems de contrato consumiendo del registro CLEARED,
// convirtiendo desde BONDED cuando falta.
type UseCase struct {
	txRunner ports.TxRunner
	ledger   *ledger.UseCase
	clock    ports.Clock
	log      *logger.Logger
}

// NewUseCase construye el motor de entregas.
func NewUseCase(txRunner ports.TxRunner, ledgerUC *ledger.UseCase, clock ports.Clock, log *logger.Logger) *UseCase {
	return &UseCase{txRunner: txRunner, ledger: ledgerUC, clock: clock, log: log}
}

// Deliver intenta entregar qty del ítem. Si CLEARED no alcanza, convierte el
// faltante desde BONDED (parcial permitido) y reverifica. Si aun así falta,
// la entrega queda en PENDING_CONVERSION con el faltante registrado y SIN
// consumir stock: una entrega se completa entera o se difiere entera, nunca
// se consume parcial.
func (uc *UseCase) Deliver(ctx context.Context, contractID, itemID string, qty decimal.Decimal, createdBy string) (*entity.ContractDelivery, error) {
	var result *entity.ContractDelivery
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		contract, item, err := uc.loadForDelivery(r, contractID, itemID, qty)
		if err != nil {
			return err
		}

		now := uc.clock.Now()
		d := &entity.ContractDelivery{
			ContractID:     contractID,
			ContractItemID: itemID,
			Quantity:       qty,
			CreatedAt:      now,
			CreatedBy:      createdBy,
		}

		missing, err := uc.ensureCleared(r, *item.ProductID, qty, contractID, createdBy)
		if err != nil {
			return err
		}
		if missing.GreaterThan(decimal.Zero) {
			// Diferir: la conversión no cubrió el faltante.
			d.Status = entity.DeliveryStatusPendingConversion
			d.MissingQuantity = missing
			if err := r.Deliveries.Create(d); err != nil {
				return err
			}
			uc.log.Info().
				Str("delivery_id", d.ID).
				Str("item_id", itemID).
				Str("missing", missing.String()).
				Msg("entrega diferida a la espera de conversión")
			result = d
			return nil
		}

		if err := uc.consumeAndComplete(r, contract, item, d, now, createdBy); err != nil {
			return err
		}
		if err := r.Deliveries.Create(d); err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RetryPendingDelivery reintenta la conversión de una entrega diferida.
// El contador y la marca de reintento se actualizan en su propia transacción,
// antes del intento, para que sobrevivan a un intento fallido.
// Idempotente: una entrega ya COMPLETED nunca se reprocesa.
func (uc *UseCase) RetryPendingDelivery(ctx context.Context, deliveryID, retriedBy string) error {
	// Paso 1: bookkeeping del reintento (sobrevive al resultado del intento).
	skip := false
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		d, err := r.Deliveries.GetForUpdate(deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.ErrNotFound
		}
		if d.Status != entity.DeliveryStatusPendingConversion {
			skip = true // ya completada: no-op
			return nil
		}
		now := uc.clock.Now()
		d.RetryCount++
		d.LastRetryAt = &now
		return r.Deliveries.Update(d)
	})
	if err != nil || skip {
		return err
	}

	// Paso 2: el intento en sí, en su propia transacción.
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		d, err := r.Deliveries.GetForUpdate(deliveryID)
		if err != nil {
			return err
		}
		if d == nil || d.Status != entity.DeliveryStatusPendingConversion {
			return nil
		}

		contract, item, err := uc.loadForRetry(r, d)
		if err != nil {
			return err
		}

		missing, err := uc.ensureCleared(r, *item.ProductID, d.Quantity, d.ContractID, retriedBy)
		if err != nil {
			return err
		}
		now := uc.clock.Now()
		if missing.GreaterThan(decimal.Zero) {
			d.MissingQuantity = missing
			return r.Deliveries.Update(d)
		}

		if err := uc.consumeAndComplete(r, contract, item, d, now, retriedBy); err != nil {
			return err
		}
		d.MissingQuantity = decimal.Zero
		return r.Deliveries.Update(d)
	})
}

// CancelDelivery revierte una entrega. COMPLETED: devuelve cada línea a su
// lote y registro originales y descuenta los totales del ítem y del contrato.
// PENDING_CONVERSION: nunca tocó stock, solo se borra el registro.
// Un contrato terminal rechaza la reversa: desharía los totales con los que
// se cerró o canceló.
func (uc *UseCase) CancelDelivery(ctx context.Context, deliveryID, cancelledBy string) error {
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		d, err := r.Deliveries.GetForUpdate(deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.ErrNotFound
		}
		contract, err := r.Contracts.GetForUpdate(d.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrNotFound
		}
		if contract.Status == entity.ContractStatusClosed || contract.Status == entity.ContractStatusCancelled {
			return domain.ErrInvalidContractState
		}

		if d.Status == entity.DeliveryStatusPendingConversion {
			return r.Deliveries.Delete(d.ID)
		}

		now := uc.clock.Now()
		for _, line := range d.Lines {
			if err := uc.returnLine(r, d, line, now, cancelledBy); err != nil {
				return err
			}
		}

		item, err := r.Items.GetForUpdate(d.ContractItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		wasDelivered := item.Status == entity.ContractItemStatusDelivered
		item.DeliveredQty = item.DeliveredQty.Sub(d.Quantity)
		item.Status = itemStatusFor(item)
		item.UpdatedAt = now
		if err := r.Items.Update(item); err != nil {
			return err
		}
		if wasDelivered && item.Status != entity.ContractItemStatusDelivered {
			contract.DeliveredItemsCount--
		}

		contract.ShippedAmount = contract.ShippedAmount.Sub(d.Quantity.Mul(item.UnitPrice))
		contract.Status = domaincontract.DeriveStatus(contract)
		contract.UpdatedAt = now
		if err := r.Contracts.Update(contract); err != nil {
			return err
		}

		return r.Deliveries.Delete(d.ID)
	})
}

// loadForDelivery valida contrato, ítem y cantidad solicitada.
func (uc *UseCase) loadForDelivery(r ports.Repos, contractID, itemID string, qty decimal.Decimal) (*entity.Contract, *entity.ContractItem, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, nil, domain.ErrInvalidInput
	}
	contract, err := r.Contracts.GetForUpdate(contractID)
	if err != nil {
		return nil, nil, err
	}
	if contract == nil {
		return nil, nil, domain.ErrNotFound
	}
	if contract.Status == entity.ContractStatusClosed || contract.Status == entity.ContractStatusCancelled {
		return nil, nil, domain.ErrInvalidContractState
	}
	item, err := r.Items.GetForUpdate(itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil || item.ContractID != contractID {
		return nil, nil, domain.ErrNotFound
	}
	if item.ProductID == nil || *item.ProductID == "" {
		return nil, nil, domain.ErrProductNotFound
	}
	if qty.GreaterThan(item.Remaining()) {
		return nil, nil, domain.ErrInvalidInput
	}
	return contract, item, nil
}

// loadForRetry carga contrato e ítem de una entrega pendiente. Un contrato
// terminal rechaza el reintento: una entrega diferida nunca se completa
// contra un contrato cerrado o cancelado.
func (uc *UseCase) loadForRetry(r ports.Repos, d *entity.ContractDelivery) (*entity.Contract, *entity.ContractItem, error) {
	contract, err := r.Contracts.GetForUpdate(d.ContractID)
	if err != nil {
		return nil, nil, err
	}
	if contract == nil {
		return nil, nil, domain.ErrNotFound
	}
	if contract.Status == entity.ContractStatusClosed || contract.Status == entity.ContractStatusCancelled {
		return nil, nil, domain.ErrInvalidContractState
	}
	item, err := r.Items.GetForUpdate(d.ContractItemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil || item.ProductID == nil {
		return nil, nil, domain.ErrNotFound
	}
	return contract, item, nil
}

// ensureCleared garantiza disponibilidad en CLEARED para qty, convirtiendo el
// faltante desde BONDED si hace falta. Devuelve el faltante residual (cero si
// se puede consumir). Un fallo de la conversión se absorbe como faltante y no
// se propaga al llamador.
func (uc *UseCase) ensureCleared(r ports.Repos, productID string, qty decimal.Decimal, contractID, createdBy string) (decimal.Decimal, error) {
	stock, err := r.Stock.GetForUpdate(productID, entity.RegisterCleared)
	if err != nil {
		return decimal.Zero, err
	}
	available := stock.Quantity
	if available.GreaterThanOrEqual(qty) {
		return decimal.Zero, nil
	}

	shortfall := qty.Sub(available)
	moved, convErr := uc.ledger.ConvertRegisterInTx(
		r, productID, entity.RegisterBonded, entity.RegisterCleared,
		shortfall, "entrega contrato "+contractID, createdBy,
	)
	if convErr != nil && !errors.Is(convErr, domain.ErrInvalidInput) {
		// Transitorio: se difiere en vez de fallar la entrega.
		convErr = fmt.Errorf("%w: %v", domain.ErrConversionUnavailable, convErr)
		uc.log.Warn().Err(convErr).
			Str("product_id", productID).
			Str("shortfall", shortfall.String()).
			Msg("conversión de registro no disponible, entrega diferida")
		return shortfall, nil
	}
	if convErr != nil {
		return decimal.Zero, convErr
	}

	residual := shortfall.Sub(moved)
	if residual.GreaterThan(decimal.Zero) {
		return residual, nil
	}
	return decimal.Zero, nil
}

// consumeAndComplete consume FIFO de CLEARED, registra las líneas exactas
// (lote, cantidad, costo unitario) y actualiza ítem y contrato una sola vez.
func (uc *UseCase) consumeAndComplete(
	r ports.Repos,
	contract *entity.Contract,
	item *entity.ContractItem,
	d *entity.ContractDelivery,
	now time.Time,
	createdBy string,
) error {
	_, taken, err := uc.ledger.ConsumeInTx(
		r, *item.ProductID, entity.RegisterCleared, d.Quantity,
		ledger.StrategyFIFO, "entrega contrato "+d.ContractID, createdBy,
	)
	if err != nil {
		return err
	}

	d.Status = entity.DeliveryStatusCompleted
	d.Lines = make([]entity.DeliveryLine, 0, len(taken))
	for _, c := range taken {
		d.Lines = append(d.Lines, entity.DeliveryLine{
			BatchID:  c.BatchID,
			Register: c.Register,
			Quantity: c.Quantity,
			UnitCost: c.UnitCost,
		})
	}

	wasDelivered := item.Status == entity.ContractItemStatusDelivered
	item.DeliveredQty = item.DeliveredQty.Add(d.Quantity)
	item.Status = itemStatusFor(item)
	item.UpdatedAt = now
	if err := r.Items.Update(item); err != nil {
		return err
	}
	if !wasDelivered && item.Status == entity.ContractItemStatusDelivered {
		contract.DeliveredItemsCount++
	}

	contract.ShippedAmount = contract.ShippedAmount.Add(d.Quantity.Mul(item.UnitPrice))
	contract.Status = domaincontract.DeriveStatus(contract)
	contract.UpdatedAt = now
	return r.Contracts.Update(contract)
}

// returnLine devuelve una línea consumida a su lote y registro originales.
func (uc *UseCase) returnLine(r ports.Repos, d *entity.ContractDelivery, line entity.DeliveryLine, now time.Time, createdBy string) error {
	batch, err := r.Batches.GetForUpdate(line.BatchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return domain.ErrNotFound
	}

	batch.Quantity = batch.Quantity.Add(line.Quantity)
	batch.Archived = !batch.Quantity.GreaterThan(decimal.Zero)
	batch.UpdatedAt = now
	if err := r.Batches.Update(batch); err != nil {
		return err
	}

	mov := &entity.BatchMovement{
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Register:  line.Register,
		Type:      entity.BatchMovementReturn,
		Quantity:  line.Quantity,
		UnitCost:  line.UnitCost,
		Reference: "cancelación entrega " + d.ID,
		CreatedAt: now,
		CreatedBy: createdBy,
	}
	if err := r.Movements.Create(mov); err != nil {
		return err
	}

	stock, err := r.Stock.GetForUpdate(batch.ProductID, line.Register)
	if err != nil {
		return err
	}
	stock.Quantity = stock.Quantity.Add(line.Quantity)
	stock.UpdatedAt = now
	return r.Stock.Upsert(stock)
}

// itemStatusFor deriva el estado del ítem desde sus cantidades.
func itemStatusFor(item *entity.ContractItem) string {
	switch {
	case item.DeliveredQty.GreaterThanOrEqual(item.Quantity):
		return entity.ContractItemStatusDelivered
	case item.DeliveredQty.GreaterThan(decimal.Zero):
		return entity.ContractItemStatusPartial
	default:
		return entity.ContractItemStatusPending
	}
}
