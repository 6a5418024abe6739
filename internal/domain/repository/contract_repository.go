package repository

import "github.com/jhoicas/comex-api/internal/domain/entity"

// ContractRepository define el puerto de persistencia para Contract.
type ContractRepository interface {
	Create(c *entity.Contract) error
	GetByID(id string) (*entity.Contract, error)
	// GetForUpdate bloquea la fila del contrato (los totales se mutan por
	// pagos y entregas concurrentes).
	GetForUpdate(id string) (*entity.Contract, error)
	Update(c *entity.Contract) error
	List(limit, offset int) ([]*entity.Contract, error)
}

// ContractItemRepository define el puerto de persistencia para ContractItem.
type ContractItemRepository interface {
	Create(i *entity.ContractItem) error
	GetByID(id string) (*entity.ContractItem, error)
	GetForUpdate(id string) (*entity.ContractItem, error)
	ListByContract(contractID string) ([]*entity.ContractItem, error)
	Update(i *entity.ContractItem) error
}

// ReservationRepository define el puerto de persistencia para las reservas
// ancladas a lote.
type ReservationRepository interface {
	Create(r *entity.ContractReservation) error
	ListByItem(itemID string) ([]*entity.ContractReservation, error)
	// ListByContract devuelve todas las reservas de los ítems del contrato.
	ListByContract(contractID string) ([]*entity.ContractReservation, error)
	Update(r *entity.ContractReservation) error
}

// PaymentRepository define el puerto de persistencia para abonos de contrato.
type PaymentRepository interface {
	Create(p *entity.ContractPayment) error
	ListByContract(contractID string) ([]*entity.ContractPayment, error)
}
