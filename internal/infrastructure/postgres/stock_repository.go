package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
// El acumulado por (producto, registro) es una caché; la fuente de verdad son
// los lotes.
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el acumulado de un (producto, registro). Sin fila devuelve cero.
func (r *StockRepo) Get(productID, register string) (*entity.Stock, error) {
	query := `
		SELECT product_id, register, quantity, updated_at
		FROM stock WHERE product_id = $1 AND register = $2`
	return r.getOne(query, productID, register)
}

// GetForUpdate obtiene el acumulado bloqueando la fila (SELECT FOR UPDATE).
func (r *StockRepo) GetForUpdate(productID, register string) (*entity.Stock, error) {
	query := `
		SELECT product_id, register, quantity, updated_at
		FROM stock WHERE product_id = $1 AND register = $2
		FOR UPDATE`
	return r.getOne(query, productID, register)
}

func (r *StockRepo) getOne(query, productID, register string) (*entity.Stock, error) {
	var s entity.Stock
	err := r.q.QueryRow(context.Background(), query, productID, register).Scan(
		&s.ProductID, &s.Register, &s.Quantity, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Stock{ProductID: productID, Register: register, Quantity: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// Upsert inserta o actualiza el acumulado (por producto y registro).
func (r *StockRepo) Upsert(stock *entity.Stock) error {
	query := `
		INSERT INTO stock (product_id, register, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (product_id, register)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`
	_, err := r.q.Exec(context.Background(), query, stock.ProductID, stock.Register, stock.Quantity)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}
