package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.BatchMovementRepository = (*BatchMovementRepo)(nil)

const movementColumns = `id, transaction_id, batch_id, product_id, register, type, quantity, unit_cost, reference, created_at, created_by`

// BatchMovementRepo implementación sobre PostgreSQL (usable con pool o tx).
// Los movimientos son solo-inserción: la auditoría nunca se edita.
type BatchMovementRepo struct {
	q Querier
}

// NewBatchMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBatchMovementRepository(q Querier) *BatchMovementRepo {
	return &BatchMovementRepo{q: q}
}

// Create persiste un movimiento de lote.
func (r *BatchMovementRepo) Create(m *entity.BatchMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO batch_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	createdBy := (*string)(nil)
	if m.CreatedBy != "" {
		createdBy = &m.CreatedBy
	}
	txID := (*string)(nil)
	if m.TransactionID != "" {
		txID = &m.TransactionID
	}
	_, err := r.q.Exec(context.Background(), query,
		m.ID, txID, m.BatchID, m.ProductID, m.Register, m.Type,
		m.Quantity, m.UnitCost, m.Reference, m.CreatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create batch movement: %w", err)
	}
	return nil
}

// ListByProduct lista movimientos de un producto en un rango de fechas.
func (r *BatchMovementRepo) ListByProduct(productID string, from, to *time.Time, limit, offset int) ([]*entity.BatchMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM batch_movements WHERE product_id = $1`
	args := []any{productID}
	pos := 2
	if from != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)
	return r.list(query, args...)
}

// ListByBatch lista todos los movimientos de un lote, en orden cronológico.
func (r *BatchMovementRepo) ListByBatch(batchID string) ([]*entity.BatchMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM batch_movements WHERE batch_id = $1 ORDER BY created_at`
	return r.list(query, batchID)
}

func (r *BatchMovementRepo) list(query string, args ...any) ([]*entity.BatchMovement, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batch movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.BatchMovement
	for rows.Next() {
		var m entity.BatchMovement
		var txID, createdBy *string
		if err := rows.Scan(&m.ID, &txID, &m.BatchID, &m.ProductID, &m.Register, &m.Type,
			&m.Quantity, &m.UnitCost, &m.Reference, &m.CreatedAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scan batch movement: %w", err)
		}
		if txID != nil {
			m.TransactionID = *txID
		}
		if createdBy != nil {
			m.CreatedBy = *createdBy
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
