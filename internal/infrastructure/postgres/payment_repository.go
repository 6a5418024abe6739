package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo implementación de PaymentRepository sobre PostgreSQL (usable con pool o tx).
type PaymentRepo struct {
	q Querier
}

// NewPaymentRepository construye el adaptador de abonos. Pasar pool o tx (Querier).
func NewPaymentRepository(q Querier) *PaymentRepo {
	return &PaymentRepo{q: q}
}

// Create persiste un abono de contrato.
func (r *PaymentRepo) Create(p *entity.ContractPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `
		INSERT INTO contract_payments (id, contract_id, amount, method, notes, paid_at, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	createdBy := (*string)(nil)
	if p.CreatedBy != "" {
		createdBy = &p.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		p.ID, p.ContractID, p.Amount, p.Method, p.Notes, p.PaidAt, p.CreatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListByContract lista los abonos del contrato en orden cronológico.
func (r *PaymentRepo) ListByContract(contractID string) ([]*entity.ContractPayment, error) {
	query := `
		SELECT id, contract_id, amount, method, notes, paid_at, created_at, created_by
		FROM contract_payments WHERE contract_id = $1 ORDER BY paid_at, id`
	rows, err := r.q.Query(context.Background(), query, contractID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContractPayment
	for rows.Next() {
		var p entity.ContractPayment
		var createdBy *string
		if err := rows.Scan(&p.ID, &p.ContractID, &p.Amount, &p.Method, &p.Notes, &p.PaidAt, &p.CreatedAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if createdBy != nil {
			p.CreatedBy = *createdBy
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
