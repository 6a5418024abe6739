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

var _ repository.DeliveryRepository = (*DeliveryRepo)(nil)

const deliveryColumns = `id, contract_id, contract_item_id, quantity, status, missing_quantity, retry_count, last_retry_at, created_at, created_by`

// DeliveryRepo implementación de DeliveryRepository sobre PostgreSQL (usable con pool o tx).
// Las líneas consumidas viven en delivery_lines y se cargan con la entrega.
type DeliveryRepo struct {
	q Querier
}

// NewDeliveryRepository construye el adaptador de entregas. Pasar pool o tx (Querier).
func NewDeliveryRepository(q Querier) *DeliveryRepo {
	return &DeliveryRepo{q: q}
}

// Create persiste la entrega y sus líneas.
func (r *DeliveryRepo) Create(d *entity.ContractDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := `
		INSERT INTO contract_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	createdBy := (*string)(nil)
	if d.CreatedBy != "" {
		createdBy = &d.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		d.ID, d.ContractID, d.ContractItemID, d.Quantity, d.Status,
		d.MissingQuantity, d.RetryCount, d.LastRetryAt, d.CreatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return r.insertLines(d)
}

// GetByID obtiene una entrega con sus líneas. Devuelve nil, nil si no existe.
func (r *DeliveryRepo) GetByID(id string) (*entity.ContractDelivery, error) {
	return r.getOne(`SELECT `+deliveryColumns+` FROM contract_deliveries WHERE id = $1`, id)
}

// GetForUpdate obtiene la entrega bloqueando la fila.
func (r *DeliveryRepo) GetForUpdate(id string) (*entity.ContractDelivery, error) {
	return r.getOne(`SELECT `+deliveryColumns+` FROM contract_deliveries WHERE id = $1 FOR UPDATE`, id)
}

func (r *DeliveryRepo) getOne(query string, args ...any) (*entity.ContractDelivery, error) {
	row := r.q.QueryRow(context.Background(), query, args...)
	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	if err := r.loadLines(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Update persiste estado, faltante, reintentos y líneas de la entrega.
// Las líneas se reescriben completas (solo cambian al completarse).
func (r *DeliveryRepo) Update(d *entity.ContractDelivery) error {
	query := `
		UPDATE contract_deliveries
		SET status = $2, missing_quantity = $3, retry_count = $4, last_retry_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		d.ID, d.Status, d.MissingQuantity, d.RetryCount, d.LastRetryAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if _, err := r.q.Exec(context.Background(), `DELETE FROM delivery_lines WHERE delivery_id = $1`, d.ID); err != nil {
		return fmt.Errorf("clear delivery lines: %w", err)
	}
	return r.insertLines(d)
}

// Delete borra la entrega y sus líneas (cancelación).
func (r *DeliveryRepo) Delete(id string) error {
	if _, err := r.q.Exec(context.Background(), `DELETE FROM delivery_lines WHERE delivery_id = $1`, id); err != nil {
		return fmt.Errorf("delete delivery lines: %w", err)
	}
	if _, err := r.q.Exec(context.Background(), `DELETE FROM contract_deliveries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete delivery: %w", err)
	}
	return nil
}

// ListByContract lista las entregas de un contrato con sus líneas.
func (r *DeliveryRepo) ListByContract(contractID string) ([]*entity.ContractDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM contract_deliveries WHERE contract_id = $1 ORDER BY created_at, id`
	return r.list(query, contractID)
}

// ListPending lista hasta limit entregas en PENDING_CONVERSION, las menos
// recientemente reintentadas primero (NULLS FIRST cubre las nunca reintentadas).
func (r *DeliveryRepo) ListPending(limit int) ([]*entity.ContractDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM contract_deliveries
		WHERE status = $1
		ORDER BY last_retry_at ASC NULLS FIRST, created_at ASC
		LIMIT $2`
	return r.list(query, entity.DeliveryStatusPendingConversion, limit)
}

func (r *DeliveryRepo) list(query string, args ...any) ([]*entity.ContractDelivery, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContractDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, d := range list {
		if err := r.loadLines(d); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *DeliveryRepo) insertLines(d *entity.ContractDelivery) error {
	for _, line := range d.Lines {
		query := `
			INSERT INTO delivery_lines (id, delivery_id, batch_id, register, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6)`
		_, err := r.q.Exec(context.Background(), query,
			uuid.New().String(), d.ID, line.BatchID, line.Register, line.Quantity, line.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("insert delivery line: %w", err)
		}
	}
	return nil
}

func (r *DeliveryRepo) loadLines(d *entity.ContractDelivery) error {
	query := `
		SELECT batch_id, register, quantity, unit_cost
		FROM delivery_lines WHERE delivery_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, d.ID)
	if err != nil {
		return fmt.Errorf("load delivery lines: %w", err)
	}
	defer rows.Close()
	d.Lines = nil
	for rows.Next() {
		var line entity.DeliveryLine
		if err := rows.Scan(&line.BatchID, &line.Register, &line.Quantity, &line.UnitCost); err != nil {
			return fmt.Errorf("scan delivery line: %w", err)
		}
		d.Lines = append(d.Lines, line)
	}
	return rows.Err()
}

func scanDelivery(row pgx.Row) (*entity.ContractDelivery, error) {
	var d entity.ContractDelivery
	var createdBy *string
	err := row.Scan(
		&d.ID, &d.ContractID, &d.ContractItemID, &d.Quantity, &d.Status,
		&d.MissingQuantity, &d.RetryCount, &d.LastRetryAt, &d.CreatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		d.CreatedBy = *createdBy
	}
	return &d, nil
}
