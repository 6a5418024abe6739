package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

const batchColumns = `id, product_id, register, quantity, unit_cost, origin, reference, archived, created_at, updated_at, created_by`

// BatchRepo implementación de BatchRepository sobre PostgreSQL (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create persiste un lote nuevo.
func (r *BatchRepo) Create(b *entity.Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	createdBy := (*string)(nil)
	if b.CreatedBy != "" {
		createdBy = &b.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		b.ID, b.ProductID, b.Register, b.Quantity, b.UnitCost,
		b.Origin, b.Reference, b.Archived, b.CreatedAt, b.UpdatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por ID. Devuelve nil, nil si no existe.
func (r *BatchRepo) GetByID(id string) (*entity.Batch, error) {
	return r.getOne(`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
}

// GetForUpdate obtiene un lote bloqueando la fila (SELECT FOR UPDATE).
func (r *BatchRepo) GetForUpdate(id string) (*entity.Batch, error) {
	return r.getOne(`SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id)
}

func (r *BatchRepo) getOne(query string, args ...any) (*entity.Batch, error) {
	row := r.q.QueryRow(context.Background(), query, args...)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListAvailableForUpdate lista los lotes con cantidad > 0 de un (producto,
// registro) ordenados por antigüedad y bloqueados para update. El orden de
// bloqueo es estable (created_at, id) para evitar deadlocks entre
// transacciones concurrentes sobre el mismo producto.
func (r *BatchRepo) ListAvailableForUpdate(productID, register string, oldestFirst bool) ([]*entity.Batch, error) {
	direction := "ASC"
	if !oldestFirst {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT `+batchColumns+`
		FROM batches
		WHERE product_id = $1 AND register = $2 AND NOT archived AND quantity > 0
		ORDER BY created_at %s, id %s
		FOR UPDATE`, direction, direction)
	return r.list(query, productID, register)
}

// ListByIDs obtiene los lotes con los IDs dados (sin bloquear).
func (r *BatchRepo) ListByIDs(ids []string) ([]*entity.Batch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ANY($1)`
	return r.list(query, ids)
}

// ListNegative lista lotes con cantidad negativa (insumo de la reconciliación).
func (r *BatchRepo) ListNegative() ([]*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE quantity < 0 FOR UPDATE`
	return r.list(query)
}

func (r *BatchRepo) list(query string, args ...any) ([]*entity.Batch, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var list []*entity.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// Update persiste cantidad, archivado y metadatos del lote.
func (r *BatchRepo) Update(b *entity.Batch) error {
	query := `
		UPDATE batches
		SET quantity = $2, unit_cost = $3, origin = $4, reference = $5, archived = $6, updated_at = $7
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		b.ID, b.Quantity, b.UnitCost, b.Origin, b.Reference, b.Archived, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

func scanBatch(row pgx.Row) (*entity.Batch, error) {
	var b entity.Batch
	var createdBy *string
	err := row.Scan(
		&b.ID, &b.ProductID, &b.Register, &b.Quantity, &b.UnitCost,
		&b.Origin, &b.Reference, &b.Archived, &b.CreatedAt, &b.UpdatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		b.CreatedBy = *createdBy
	}
	return &b, nil
}
