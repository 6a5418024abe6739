package repository

import "github.com/jhoicas/comex-api/internal/domain/entity"

// DeliveryRepository define el puerto de persistencia para entregas.
type DeliveryRepository interface {
	Create(d *entity.ContractDelivery) error
	GetByID(id string) (*entity.ContractDelivery, error)
	GetForUpdate(id string) (*entity.ContractDelivery, error)
	Update(d *entity.ContractDelivery) error
	Delete(id string) error
	ListByContract(contractID string) ([]*entity.ContractDelivery, error)
	// ListPending devuelve hasta limit entregas en PENDING_CONVERSION,
	// ordenadas por último reintento más antiguo primero (nunca reintentadas
	// de primeras).
	ListPending(limit int) ([]*entity.ContractDelivery, error)
}
