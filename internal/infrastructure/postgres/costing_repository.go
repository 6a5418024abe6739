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

var _ repository.CostingRepository = (*CostingRepo)(nil)

const sessionColumns = `id, reference, exchange_rate, tax_pct, logistics_pct, storage_pct, declaration_pct, certification_pct, misc_pct, contingency_pct, customs_total, loading_total, returns_total, finalized, finalized_at, created_at, created_by`

// CostingRepo implementación de CostingRepository sobre PostgreSQL (usable con pool o tx).
type CostingRepo struct {
	q Querier
}

// NewCostingRepository construye el adaptador de costeo. Pasar pool o tx (Querier).
func NewCostingRepository(q Querier) *CostingRepo {
	return &CostingRepo{q: q}
}

// CreateSession persiste una sesión de costeo.
func (r *CostingRepo) CreateSession(s *entity.CostingSession) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `
		INSERT INTO costing_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	createdBy := (*string)(nil)
	if s.CreatedBy != "" {
		createdBy = &s.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		s.ID, s.Reference, s.ExchangeRate,
		s.TaxPct, s.LogisticsPct, s.StoragePct, s.DeclarationPct,
		s.CertificationPct, s.MiscPct, s.ContingencyPct,
		s.CustomsTotal, s.LoadingTotal, s.ReturnsTotal,
		s.Finalized, s.FinalizedAt, s.CreatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create costing session: %w", err)
	}
	return nil
}

// GetSession obtiene una sesión por ID. Devuelve nil, nil si no existe.
func (r *CostingRepo) GetSession(id string) (*entity.CostingSession, error) {
	return r.getSession(`SELECT `+sessionColumns+` FROM costing_sessions WHERE id = $1`, id)
}

// GetSessionForUpdate obtiene la sesión bloqueando la fila: la finalización es
// de una sola vía y no admite carreras.
func (r *CostingRepo) GetSessionForUpdate(id string) (*entity.CostingSession, error) {
	return r.getSession(`SELECT `+sessionColumns+` FROM costing_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *CostingRepo) getSession(query string, args ...any) (*entity.CostingSession, error) {
	row := r.q.QueryRow(context.Background(), query, args...)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get costing session: %w", err)
	}
	return s, nil
}

// UpdateSession persiste los parámetros y la marca de finalización.
func (r *CostingRepo) UpdateSession(s *entity.CostingSession) error {
	query := `
		UPDATE costing_sessions
		SET reference = $2, exchange_rate = $3, tax_pct = $4, logistics_pct = $5,
			storage_pct = $6, declaration_pct = $7, certification_pct = $8,
			misc_pct = $9, contingency_pct = $10, customs_total = $11,
			loading_total = $12, returns_total = $13, finalized = $14, finalized_at = $15
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		s.ID, s.Reference, s.ExchangeRate,
		s.TaxPct, s.LogisticsPct, s.StoragePct, s.DeclarationPct,
		s.CertificationPct, s.MiscPct, s.ContingencyPct,
		s.CustomsTotal, s.LoadingTotal, s.ReturnsTotal,
		s.Finalized, s.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("update costing session: %w", err)
	}
	return nil
}

// ListSessions lista sesiones paginadas, las más recientes primero.
func (r *CostingRepo) ListSessions(limit, offset int) ([]*entity.CostingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM costing_sessions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(context.Background(), query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list costing sessions: %w", err)
	}
	defer rows.Close()
	var list []*entity.CostingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan costing session: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// CreateLine persiste una línea de la sesión.
func (r *CostingRepo) CreateLine(l *entity.CostingLine) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	query := `
		INSERT INTO costing_lines (id, session_id, product_id, description, quantity, source_price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		l.ID, l.SessionID, l.ProductID, l.Description, l.Quantity, l.SourcePrice,
	)
	if err != nil {
		return fmt.Errorf("create costing line: %w", err)
	}
	return nil
}

// ListLines lista las líneas de la sesión en orden de inserción.
func (r *CostingRepo) ListLines(sessionID string) ([]*entity.CostingLine, error) {
	query := `
		SELECT id, session_id, product_id, description, quantity, source_price
		FROM costing_lines WHERE session_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list costing lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.CostingLine
	for rows.Next() {
		var l entity.CostingLine
		if err := rows.Scan(&l.ID, &l.SessionID, &l.ProductID, &l.Description, &l.Quantity, &l.SourcePrice); err != nil {
			return nil, fmt.Errorf("scan costing line: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

const snapshotColumns = `id, session_id, line_id, product_id, quantity, local_price, tax_amount, logistics_amount, storage_amount, declaration_amount, certification_amount, misc_amount, contingency_amount, customs_share, loading_share, returns_share, total_cost, unit_cost, created_at`

// ReplaceSnapshots borra los snapshots previos de la sesión y persiste los
// nuevos. Cada recálculo reemplaza el desglose completo.
func (r *CostingRepo) ReplaceSnapshots(sessionID string, snaps []*entity.CostingItemSnapshot) error {
	if _, err := r.q.Exec(context.Background(), `DELETE FROM costing_snapshots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear costing snapshots: %w", err)
	}
	for _, s := range snaps {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		query := `
			INSERT INTO costing_snapshots (` + snapshotColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
		_, err := r.q.Exec(context.Background(), query,
			s.ID, s.SessionID, s.LineID, s.ProductID, s.Quantity, s.LocalPrice,
			s.TaxAmount, s.LogisticsAmount, s.StorageAmount, s.DeclarationAmount,
			s.CertificationAmount, s.MiscAmount, s.ContingencyAmount,
			s.CustomsShare, s.LoadingShare, s.ReturnsShare,
			s.TotalCost, s.UnitCost, s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert costing snapshot: %w", err)
		}
	}
	return nil
}

// ListSnapshots lista el desglose calculado de la sesión.
func (r *CostingRepo) ListSnapshots(sessionID string) ([]*entity.CostingItemSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM costing_snapshots WHERE session_id = $1 ORDER BY line_id`
	rows, err := r.q.Query(context.Background(), query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list costing snapshots: %w", err)
	}
	defer rows.Close()
	var list []*entity.CostingItemSnapshot
	for rows.Next() {
		var s entity.CostingItemSnapshot
		if err := rows.Scan(
			&s.ID, &s.SessionID, &s.LineID, &s.ProductID, &s.Quantity, &s.LocalPrice,
			&s.TaxAmount, &s.LogisticsAmount, &s.StorageAmount, &s.DeclarationAmount,
			&s.CertificationAmount, &s.MiscAmount, &s.ContingencyAmount,
			&s.CustomsShare, &s.LoadingShare, &s.ReturnsShare,
			&s.TotalCost, &s.UnitCost, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan costing snapshot: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

func scanSession(row pgx.Row) (*entity.CostingSession, error) {
	var s entity.CostingSession
	var createdBy *string
	err := row.Scan(
		&s.ID, &s.Reference, &s.ExchangeRate,
		&s.TaxPct, &s.LogisticsPct, &s.StoragePct, &s.DeclarationPct,
		&s.CertificationPct, &s.MiscPct, &s.ContingencyPct,
		&s.CustomsTotal, &s.LoadingTotal, &s.ReturnsTotal,
		&s.Finalized, &s.FinalizedAt, &s.CreatedAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		s.CreatedBy = *createdBy
	}
	return &s, nil
}
