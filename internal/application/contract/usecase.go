// Package contract implementa la creación de contratos con su reserva de
// stock en una sola transacción.
package contract

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/application/reservation"
	"github.com/jhoicas/comex-api/internal/domain"
	domaincontract "github.com/jhoicas/comex-api/internal/domain/contract"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// ItemInput es una línea del contrato a crear. ProductID nil = mercancía
// futura sin catalogar (no se reserva stock).
type ItemInput struct {
	ProductID *string
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput datos para crear un contrato.
type CreateInput struct {
	Number       string
	Counterparty string
	Type         string          // CLOSED_SCOPE u OPEN_SCOPE
	LimitAmount  decimal.Decimal // tope de gasto (OPEN_SCOPE)
	Items        []ItemInput
	CreatedBy    string
}

// UseCase crea contratos.
type UseCase struct {
	txRunner    ports.TxRunner
	reservation *reservation.UseCase
	clock       ports.Clock
}

// NewUseCase construye el caso de uso.
func NewUseCase(txRunner ports.TxRunner, reservationUC *reservation.UseCase, clock ports.Clock) *UseCase {
	return &UseCase{txRunner: txRunner, reservation: reservationUC, clock: clock}
}

// Create persiste el contrato con sus ítems y reserva el stock de los ítems
// catalogados. Todo corre en UNA transacción: si la reserva de un ítem falla
// por stock insuficiente, no queda ningún ítem anterior reservado.
func (uc *UseCase) Create(ctx context.Context, in CreateInput) (*entity.Contract, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var created *entity.Contract
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		now := uc.clock.Now()

		total := decimal.Zero
		for _, it := range in.Items {
			total = total.Add(it.Quantity.Mul(it.UnitPrice))
		}

		c := &entity.Contract{
			Number:          in.Number,
			Counterparty:    in.Counterparty,
			Type:            in.Type,
			LimitAmount:     in.LimitAmount,
			TotalAmount:     total,
			PaidAmount:      decimal.Zero,
			ShippedAmount:   decimal.Zero,
			TotalItemsCount: int64(len(in.Items)),
			Status:          entity.ContractStatusActive,
			CreatedAt:       now,
			UpdatedAt:       now,
			CreatedBy:       in.CreatedBy,
		}
		c.Status = domaincontract.DeriveStatus(c)
		if err := r.Contracts.Create(c); err != nil {
			return err
		}

		for _, it := range in.Items {
			item := &entity.ContractItem{
				ContractID:   c.ID,
				ProductID:    it.ProductID,
				Name:         it.Name,
				Quantity:     it.Quantity,
				DeliveredQty: decimal.Zero,
				UnitPrice:    it.UnitPrice,
				Status:       entity.ContractItemStatusPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := r.Items.Create(item); err != nil {
				return err
			}
			if _, err := uc.reservation.ReserveItemInTx(r, item, in.CreatedBy); err != nil {
				return err
			}
		}

		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get obtiene un contrato con sus ítems.
func (uc *UseCase) Get(ctx context.Context, id string) (*entity.Contract, []*entity.ContractItem, error) {
	var c *entity.Contract
	var items []*entity.ContractItem
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		c, err = r.Contracts.GetByID(id)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrNotFound
		}
		items, err = r.Items.ListByContract(id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return c, items, nil
}

// List lista contratos paginados.
func (uc *UseCase) List(ctx context.Context, limit, offset int) ([]*entity.Contract, error) {
	var list []*entity.Contract
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		list, err = r.Contracts.List(limit, offset)
		return err
	})
	return list, err
}

func validate(in CreateInput) error {
	if in.Type != entity.ContractTypeClosed && in.Type != entity.ContractTypeOpen {
		return domain.ErrInvalidInput
	}
	if in.Type == entity.ContractTypeClosed && len(in.Items) == 0 {
		return domain.ErrInvalidInput
	}
	if in.Type == entity.ContractTypeOpen && !in.LimitAmount.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidInput
	}
	for _, it := range in.Items {
		if !it.Quantity.GreaterThan(decimal.Zero) || it.UnitPrice.LessThan(decimal.Zero) {
			return domain.ErrInvalidInput
		}
	}
	return nil
}
