// Package catalog implementa el mantenimiento del catálogo de productos y las
// consultas de lectura sobre el ledger (stock y movimientos).
package catalog

import (
	"context"
	"time"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// UseCase opera el catálogo.
type UseCase struct {
	txRunner ports.TxRunner
	clock    ports.Clock
}

// NewUseCase construye el caso de uso de catálogo.
func NewUseCase(txRunner ports.TxRunner, clock ports.Clock) *UseCase {
	return &UseCase{txRunner: txRunner, clock: clock}
}

// CreateInput datos para crear un producto.
type CreateInput struct {
	SKU         string
	Name        string
	Description string
}

// CreateProduct registra un producto nuevo. El SKU debe ser único.
func (uc *UseCase) CreateProduct(ctx context.Context, in CreateInput) (*entity.Product, error) {
	if in.SKU == "" || in.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	var created *entity.Product
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		existing, err := r.Products.GetBySKU(in.SKU)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicate
		}
		now := uc.clock.Now()
		p := &entity.Product{
			SKU:         in.SKU,
			Name:        in.Name,
			Description: in.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.Products.Create(p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetProduct obtiene un producto por ID.
func (uc *UseCase) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	var p *entity.Product
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		p, err = r.Products.GetByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// ListProducts lista el catálogo paginado.
func (uc *UseCase) ListProducts(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	var list []*entity.Product
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		list, err = r.Products.List(limit, offset)
		return err
	})
	return list, err
}

// GetStock devuelve el acumulado del producto en ambos registros.
func (uc *UseCase) GetStock(ctx context.Context, productID string) (bonded, cleared *entity.Stock, err error) {
	err = uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		if bonded, err = r.Stock.Get(productID, entity.RegisterBonded); err != nil {
			return err
		}
		cleared, err = r.Stock.Get(productID, entity.RegisterCleared)
		return err
	})
	return bonded, cleared, err
}

// ListMovements lista la auditoría de movimientos del producto.
func (uc *UseCase) ListMovements(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.BatchMovement, error) {
	var list []*entity.BatchMovement
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		list, err = r.Movements.ListByProduct(productID, from, to, limit, offset)
		return err
	})
	return list, err
}
