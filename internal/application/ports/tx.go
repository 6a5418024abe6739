// Package ports define los puertos compartidos de la capa de aplicación.
package ports

import (
	"context"
	"time"

	"github.com/jhoicas/comex-api/internal/domain/repository"
)

// Repos agrupa los repositorios atados a una misma transacción.
type Repos struct {
	Products     repository.ProductRepository
	Batches      repository.BatchRepository
	Stock        repository.StockRepository
	Movements    repository.BatchMovementRepository
	Contracts    repository.ContractRepository
	Items        repository.ContractItemRepository
	Reservations repository.ReservationRepository
	Deliveries   repository.DeliveryRepository
	Payments     repository.PaymentRepository
	Costing      repository.CostingRepository
}

// TxRunner ejecuta fn dentro de una transacción de BD, pasando repositorios
// atados a esa tx. Si fn devuelve error se hace Rollback; si no, Commit.
// Toda mutación del ledger (reservar, entregar, cancelar, convertir,
// finalizar costeo) debe correr dentro de una sola transacción: la aplicación
// parcial es una violación de consistencia.
type TxRunner interface {
	Run(ctx context.Context, fn func(r Repos) error) error
}

// Clock abstrae la fuente de tiempo para poder fijarla en tests.
type Clock interface {
	Now() time.Time
}

// SystemClock es el reloj de producción (time.Now).
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
