// Package reservation implementa la reserva de stock anclada a lote para
// ítems de contrato y su reversa exacta en la cancelación.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// UseCase reserva y devuelve stock contra ítems de contrato.
type UseCase struct {
	txRunner ports.TxRunner
	ledger   *ledger.UseCase
	clock    ports.Clock
}

// NewUseCase construye el caso de uso de reservas.
func NewUseCase(txRunner ports.TxRunner, ledgerUC *ledger.UseCase, clock ports.Clock) *UseCase {
	return &UseCase{txRunner: txRunner, ledger: ledgerUC, clock: clock}
}

// ReserveItemInTx reserva el ítem consumiendo FIFO del registro CLEARED y
// registra de qué lote salió cada cantidad (una fila de reserva por lote
// tocado), para poder restaurar la capa exacta después.
// Ítems sin producto catalogado (mercancía futura) se saltan sin reservar.
// Si no hay stock suficiente propaga InsufficientStockError con el producto y
// el faltante.
func (uc *UseCase) ReserveItemInTx(r ports.Repos, item *entity.ContractItem, createdBy string) ([]*entity.ContractReservation, error) {
	if item.ProductID == nil || *item.ProductID == "" {
		return nil, nil
	}

	_, taken, err := uc.ledger.ConsumeInTx(
		r, *item.ProductID, entity.RegisterCleared, item.Quantity,
		ledger.StrategyFIFO, "reserva contrato "+item.ContractID, createdBy,
	)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	reservations := make([]*entity.ContractReservation, 0, len(taken))
	for _, c := range taken {
		res := &entity.ContractReservation{
			ContractItemID: item.ID,
			BatchID:        c.BatchID,
			Quantity:       c.Quantity,
			CreatedAt:      now,
		}
		if err := r.Reservations.Create(res); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

// CancelContract devuelve cada reserva no devuelta a su lote ORIGINAL (por
// id) y al acumulado, marca las reservas como devueltas, borra las entregas
// diferidas (nunca tocaron stock y no deben reintentarse contra un contrato
// cancelado) y deja contrato e ítems en CANCELLED.
//
// Idempotente: un contrato ya cancelado es un no-op (las reservas ya están
// devueltas). Un contrato cerrado no se puede cancelar.
func (uc *UseCase) CancelContract(ctx context.Context, contractID, cancelledBy string) error {
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		contract, err := r.Contracts.GetForUpdate(contractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrNotFound
		}
		switch contract.Status {
		case entity.ContractStatusCancelled:
			return nil // ya cancelado: repetir es seguro
		case entity.ContractStatusClosed:
			return domain.ErrInvalidContractState
		}

		now := uc.clock.Now()
		reservations, err := r.Reservations.ListByContract(contractID)
		if err != nil {
			return err
		}
		for _, res := range reservations {
			if err := uc.returnToBatch(r, res, now, cancelledBy); err != nil {
				if errors.Is(err, domain.ErrReservationReturned) {
					continue // no-op defensivo: no se propaga como fallo
				}
				return err
			}
			res.ReturnedAt = &now
			if err := r.Reservations.Update(res); err != nil {
				return err
			}
		}

		deliveries, err := r.Deliveries.ListByContract(contractID)
		if err != nil {
			return err
		}
		for _, d := range deliveries {
			if d.Status == entity.DeliveryStatusPendingConversion {
				if err := r.Deliveries.Delete(d.ID); err != nil {
					return err
				}
			}
		}

		items, err := r.Items.ListByContract(contractID)
		if err != nil {
			return err
		}
		for _, item := range items {
			item.Status = entity.ContractItemStatusCancelled
			item.UpdatedAt = now
			if err := r.Items.Update(item); err != nil {
				return err
			}
		}

		contract.Status = entity.ContractStatusCancelled
		contract.UpdatedAt = now
		return r.Contracts.Update(contract)
	})
}

// returnToBatch suma la cantidad reservada de vuelta al lote original y al
// acumulado de su (producto, registro). Una reserva ya devuelta responde
// ErrReservationReturned sin tocar nada.
func (uc *UseCase) returnToBatch(r ports.Repos, res *entity.ContractReservation, now time.Time, createdBy string) error {
	if res.ReturnedAt != nil {
		return domain.ErrReservationReturned
	}
	batch, err := r.Batches.GetForUpdate(res.BatchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return domain.ErrNotFound
	}

	batch.Quantity = batch.Quantity.Add(res.Quantity)
	batch.Archived = !batch.Quantity.GreaterThan(decimal.Zero)
	batch.UpdatedAt = now
	if err := r.Batches.Update(batch); err != nil {
		return err
	}

	mov := &entity.BatchMovement{
		TransactionID: uuid.New().String(),
		BatchID:       batch.ID,
		ProductID:     batch.ProductID,
		Register:      batch.Register,
		Type:          entity.BatchMovementReturn,
		Quantity:      res.Quantity,
		UnitCost:      batch.UnitCost,
		Reference:     "cancelación reserva " + res.ID,
		CreatedAt:     now,
		CreatedBy:     createdBy,
	}
	if err := r.Movements.Create(mov); err != nil {
		return err
	}

	stock, err := r.Stock.GetForUpdate(batch.ProductID, batch.Register)
	if err != nil {
		return err
	}
	stock.Quantity = stock.Quantity.Add(res.Quantity)
	stock.UpdatedAt = now
	return r.Stock.Upsert(stock)
}
