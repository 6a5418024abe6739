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

var _ repository.ContractItemRepository = (*ContractItemRepo)(nil)

const itemColumns = `id, contract_id, product_id, name, quantity, delivered_qty, unit_price, status, created_at, updated_at`

// ContractItemRepo implementación de ContractItemRepository sobre PostgreSQL (usable con pool o tx).
type ContractItemRepo struct {
	q Querier
}

// NewContractItemRepository construye el adaptador de ítems. Pasar pool o tx (Querier).
func NewContractItemRepository(q Querier) *ContractItemRepo {
	return &ContractItemRepo{q: q}
}

// Create persiste un ítem de contrato. product_id NULL = mercancía futura.
func (r *ContractItemRepo) Create(i *entity.ContractItem) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	query := `
		INSERT INTO contract_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(context.Background(), query,
		i.ID, i.ContractID, i.ProductID, i.Name, i.Quantity,
		i.DeliveredQty, i.UnitPrice, i.Status, i.CreatedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create contract item: %w", err)
	}
	return nil
}

// GetByID obtiene un ítem por ID. Devuelve nil, nil si no existe.
func (r *ContractItemRepo) GetByID(id string) (*entity.ContractItem, error) {
	return r.getOne(`SELECT `+itemColumns+` FROM contract_items WHERE id = $1`, id)
}

// GetForUpdate obtiene el ítem bloqueando la fila.
func (r *ContractItemRepo) GetForUpdate(id string) (*entity.ContractItem, error) {
	return r.getOne(`SELECT `+itemColumns+` FROM contract_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *ContractItemRepo) getOne(query string, args ...any) (*entity.ContractItem, error) {
	row := r.q.QueryRow(context.Background(), query, args...)
	i, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract item: %w", err)
	}
	return i, nil
}

// ListByContract lista los ítems del contrato en orden de creación.
func (r *ContractItemRepo) ListByContract(contractID string) ([]*entity.ContractItem, error) {
	query := `SELECT ` + itemColumns + ` FROM contract_items WHERE contract_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(context.Background(), query, contractID)
	if err != nil {
		return nil, fmt.Errorf("list contract items: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContractItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract item: %w", err)
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

// Update persiste cantidad entregada y estado del ítem.
func (r *ContractItemRepo) Update(i *entity.ContractItem) error {
	query := `
		UPDATE contract_items
		SET name = $2, quantity = $3, delivered_qty = $4, unit_price = $5, status = $6, updated_at = $7
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		i.ID, i.Name, i.Quantity, i.DeliveredQty, i.UnitPrice, i.Status, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contract item: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row) (*entity.ContractItem, error) {
	var i entity.ContractItem
	err := row.Scan(
		&i.ID, &i.ContractID, &i.ProductID, &i.Name, &i.Quantity,
		&i.DeliveredQty, &i.UnitPrice, &i.Status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
