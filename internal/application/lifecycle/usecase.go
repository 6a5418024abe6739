// Package lifecycle implementa pagos, recálculo de estado y cierre/cancelación
// de contratos.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/application/reservation"
	"github.com/jhoicas/comex-api/internal/domain"
	domaincontract "github.com/jhoicas/comex-api/internal/domain/contract"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// UseCase opera el ciclo de vida del contrato.
type UseCase struct {
	txRunner    ports.TxRunner
	reservation *reservation.UseCase
	clock       ports.Clock
}

// NewUseCase construye el caso de uso.
func NewUseCase(txRunner ports.TxRunner, reservationUC *reservation.UseCase, clock ports.Clock) *UseCase {
	return &UseCase{txRunner: txRunner, reservation: reservationUC, clock: clock}
}

// PaymentInput datos de un abono.
type PaymentInput struct {
	ContractID string
	Amount     decimal.Decimal
	Method     string
	Notes      string
	CreatedBy  string
}

// RegisterPayment registra un abono, suma al monto pagado y rederiva el
// estado. En contratos de alcance cerrado no se acepta sobrepago.
func (uc *UseCase) RegisterPayment(ctx context.Context, in PaymentInput) error {
	if !in.Amount.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidInput
	}
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		c, err := r.Contracts.GetForUpdate(in.ContractID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		if c.Status == entity.ContractStatusClosed || c.Status == entity.ContractStatusCancelled {
			return domain.ErrInvalidContractState
		}
		if c.Type == entity.ContractTypeClosed && c.PaidAmount.Add(in.Amount).GreaterThan(c.TotalAmount) {
			return domain.ErrInvalidInput
		}

		now := uc.clock.Now()
		payment := &entity.ContractPayment{
			ContractID: in.ContractID,
			Amount:     in.Amount,
			Method:     in.Method,
			Notes:      in.Notes,
			PaidAt:     now,
			CreatedAt:  now,
			CreatedBy:  in.CreatedBy,
		}
		if err := r.Payments.Create(payment); err != nil {
			return err
		}

		c.PaidAmount = c.PaidAmount.Add(in.Amount)
		return uc.persistDerived(r, c, now)
	})
}

// Recompute rederiva el estado del contrato desde sus totales y lo persiste.
// Los terminales son sticky: la derivación no los toca.
func (uc *UseCase) Recompute(ctx context.Context, contractID string) (string, error) {
	var status string
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		c, err := r.Contracts.GetForUpdate(contractID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		now := uc.clock.Now()
		if err := uc.persistDerived(r, c, now); err != nil {
			return err
		}
		status = c.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// Close cierra el contrato. Precondiciones: pagado >= total, ítems entregados
// >= total de ítems, despachado >= total, y TODOS los lotes referenciados por
// las entregas del contrato deben estar hoy en el registro CLEARED (no se
// cierra con mercancía aún en custodia aduanera).
func (uc *UseCase) Close(ctx context.Context, contractID string) error {
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		c, err := r.Contracts.GetForUpdate(contractID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		if reason := domaincontract.CanClose(c); reason != domaincontract.CloseReasonOK {
			return fmt.Errorf("%w: %s", domain.ErrInvalidContractState, reason)
		}

		deliveries, err := r.Deliveries.ListByContract(contractID)
		if err != nil {
			return err
		}
		var batchIDs []string
		seen := map[string]bool{}
		for _, d := range deliveries {
			for _, line := range d.Lines {
				if !seen[line.BatchID] {
					seen[line.BatchID] = true
					batchIDs = append(batchIDs, line.BatchID)
				}
			}
		}
		batches, err := r.Batches.ListByIDs(batchIDs)
		if err != nil {
			return err
		}
		for _, b := range batches {
			if b.Register != entity.RegisterCleared {
				return fmt.Errorf("%w: el lote %s sigue en custodia %s", domain.ErrInvalidContractState, b.ID, b.Register)
			}
		}

		now := uc.clock.Now()
		c.Status = entity.ContractStatusClosed
		c.UpdatedAt = now
		return r.Contracts.Update(c)
	})
}

// Cancel cancela el contrato devolviendo todas las reservas a sus lotes
// originales (ver reservation.CancelContract).
func (uc *UseCase) Cancel(ctx context.Context, contractID, cancelledBy string) error {
	return uc.reservation.CancelContract(ctx, contractID, cancelledBy)
}

// persistDerived rederiva el estado y persiste el contrato.
func (uc *UseCase) persistDerived(r ports.Repos, c *entity.Contract, now time.Time) error {
	c.Status = domaincontract.DeriveStatus(c)
	c.UpdatedAt = now
	return r.Contracts.Update(c)
}
