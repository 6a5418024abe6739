package repository

import (
	"time"

	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// BatchMovementRepository define el puerto de persistencia para la auditoría
// de movimientos de lote.
type BatchMovementRepository interface {
	Create(m *entity.BatchMovement) error
	ListByProduct(productID string, from, to *time.Time, limit, offset int) ([]*entity.BatchMovement, error)
	ListByBatch(batchID string) ([]*entity.BatchMovement, error)
}
