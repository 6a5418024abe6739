package repository

import "github.com/jhoicas/comex-api/internal/domain/entity"

// CostingRepository define el puerto de persistencia para sesiones de costeo,
// sus líneas y los snapshots calculados.
type CostingRepository interface {
	CreateSession(s *entity.CostingSession) error
	GetSession(id string) (*entity.CostingSession, error)
	// GetSessionForUpdate bloquea la sesión; la finalización es de una sola vía.
	GetSessionForUpdate(id string) (*entity.CostingSession, error)
	UpdateSession(s *entity.CostingSession) error
	ListSessions(limit, offset int) ([]*entity.CostingSession, error)

	CreateLine(l *entity.CostingLine) error
	ListLines(sessionID string) ([]*entity.CostingLine, error)

	// ReplaceSnapshots borra los snapshots previos de la sesión y persiste los
	// nuevos (cada recálculo reemplaza el desglose completo).
	ReplaceSnapshots(sessionID string, snaps []*entity.CostingItemSnapshot) error
	ListSnapshots(sessionID string) ([]*entity.CostingItemSnapshot, error)
}
