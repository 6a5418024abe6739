package repository

import "github.com/jhoicas/comex-api/internal/domain/entity"

// BatchRepository define el puerto de persistencia para lotes.
// Las operaciones ...ForUpdate bloquean filas (SELECT FOR UPDATE) y solo
// tienen sentido dentro de una transacción.
type BatchRepository interface {
	Create(b *entity.Batch) error
	GetByID(id string) (*entity.Batch, error)
	GetForUpdate(id string) (*entity.Batch, error)
	// ListAvailableForUpdate devuelve los lotes con cantidad > 0 de un
	// (producto, registro), ordenados por fecha de creación (ascendente si
	// oldestFirst, descendente si no) y bloqueados para update.
	ListAvailableForUpdate(productID, register string, oldestFirst bool) ([]*entity.Batch, error)
	ListByIDs(ids []string) ([]*entity.Batch, error)
	// ListNegative lista lotes con cantidad negativa (deriva de algún bug no
	// atómico); insumo de la reconciliación.
	ListNegative() ([]*entity.Batch, error)
	Update(b *entity.Batch) error
}
