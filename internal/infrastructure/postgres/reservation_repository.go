package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, contract_item_id, batch_id, quantity, returned_at, created_at`

// ReservationRepo implementación de ReservationRepository sobre PostgreSQL (usable con pool o tx).
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador de reservas. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

// Create persiste una reserva anclada a lote.
func (r *ReservationRepo) Create(res *entity.ContractReservation) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	query := `
		INSERT INTO contract_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		res.ID, res.ContractItemID, res.BatchID, res.Quantity, res.ReturnedAt, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// ListByItem lista las reservas de un ítem en orden de creación.
func (r *ReservationRepo) ListByItem(itemID string) ([]*entity.ContractReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM contract_reservations WHERE contract_item_id = $1 ORDER BY created_at, id`
	return r.list(query, itemID)
}

// ListByContract lista todas las reservas de los ítems del contrato.
func (r *ReservationRepo) ListByContract(contractID string) ([]*entity.ContractReservation, error) {
	query := `
		SELECT r.id, r.contract_item_id, r.batch_id, r.quantity, r.returned_at, r.created_at
		FROM contract_reservations r
		JOIN contract_items i ON i.id = r.contract_item_id
		WHERE i.contract_id = $1
		ORDER BY r.created_at, r.id`
	return r.list(query, contractID)
}

// Update persiste la marca de devolución de la reserva.
func (r *ReservationRepo) Update(res *entity.ContractReservation) error {
	query := `UPDATE contract_reservations SET returned_at = $2 WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, res.ID, res.ReturnedAt)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) list(query string, args ...any) ([]*entity.ContractReservation, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var list []*entity.ContractReservation
	for rows.Next() {
		var res entity.ContractReservation
		if err := rows.Scan(&res.ID, &res.ContractItemID, &res.BatchID, &res.Quantity, &res.ReturnedAt, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, &res)
	}
	return list, rows.Err()
}
