package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.ContractRepository = (*ContractRepo)(nil)

const contractColumns = `id, number, counterparty, type, limit_amount, total_amount, paid_amount, shipped_amount, total_items_count, delivered_items_count, status, created_at, updated_at, created_by`

// ContractRepo implementación de ContractRepository sobre PostgreSQL (usable con pool o tx).
type ContractRepo struct {
	q Querier
}

// NewContractRepository construye el adaptador de contratos. Pasar pool o tx (Querier).
func NewContractRepository(q Querier) *ContractRepo {
	return &ContractRepo{q: q}
}

// Create persiste un contrato. El número es único.
func (r *ContractRepo) Create(c *entity.Contract) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	createdBy := (*string)(nil)
	if c.CreatedBy != "" {
		createdBy = &c.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		c.ID, c.Number, c.Counterparty, c.Type, c.LimitAmount,
		c.TotalAmount, c.PaidAmount, c.ShippedAmount,
		c.TotalItemsCount, c.DeliveredItemsCount, c.Status,
		c.CreatedAt, c.UpdatedAt, createdBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

// GetByID obtiene un contrato por ID. Devuelve nil, nil si no existe.
func (r *ContractRepo) GetByID(id string) (*entity.Contract, error) {
	return r.getOne(`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

// GetForUpdate obtiene el contrato bloqueando la fila: los totales se mutan
// por pagos y entregas concurrentes.
func (r *ContractRepo) GetForUpdate(id string) (*entity.Contract, error) {
	return r.getOne(`SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (r *ContractRepo) getOne(query string, args ...any) (*entity.Contract, error) {
	row := r.q.QueryRow(context.Background(), query, args...)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// Update persiste totales y estado del contrato.
func (r *ContractRepo) Update(c *entity.Contract) error {
	query := `
		UPDATE contracts
		SET counterparty = $2, limit_amount = $3, total_amount = $4, paid_amount = $5,
			shipped_amount = $6, total_items_count = $7, delivered_items_count = $8,
			status = $9, updated_at = $10
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		c.ID, c.Counterparty, c.LimitAmount, c.TotalAmount, c.PaidAmount,
		c.ShippedAmount, c.TotalItemsCount, c.DeliveredItemsCount,
		c.Status, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return nil
}

// List lista contratos paginados, los más recientes primero.
func (r *ContractRepo) List(limit, offset int) ([]*entity.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(context.Background(), query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()
	var list []*entity.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanContract(row pgx.Row) (*entity.Contract, error) {
	var c entity.Contract
	var createdBy *string
	err := row.Scan(
		&c.ID, &c.Number, &c.Counterparty, &c.Type, &c.LimitAmount,
		&c.TotalAmount, &c.PaidAmount, &c.ShippedAmount,
		&c.TotalItemsCount, &c.DeliveredItemsCount, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		c.CreatedBy = *createdBy
	}
	return &c, nil
}
