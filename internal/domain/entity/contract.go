package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de contrato.
const (
	ContractTypeClosed = "CLOSED_SCOPE" // alcance cerrado: monto total fijado por los ítems
	ContractTypeOpen   = "OPEN_SCOPE"   // alcance abierto: entregas hasta un tope de gasto
)

// Estados de contrato. CLOSED y CANCELLED son terminales (sticky):
// una vez alcanzados nunca se recalculan.
const (
	ContractStatusActive             = "ACTIVE"
	ContractStatusPartiallyPaid      = "PARTIALLY_PAID"
	ContractStatusPaid               = "PAID"
	ContractStatusPartiallyDelivered = "PARTIALLY_DELIVERED"
	ContractStatusDelivered          = "DELIVERED"
	ContractStatusClosed             = "CLOSED"
	ContractStatusCancelled          = "CANCELLED"
)

// Contract es el acuerdo con la contraparte. Los totales (pagado, despachado,
// ítems entregados) se mutan por pagos y entregas; el estado se deriva de
// ellos salvo los terminales.
type Contract struct {
	ID                  string
	Number              string
	Counterparty        string
	Type                string          // CLOSED_SCOPE u OPEN_SCOPE
	LimitAmount         decimal.Decimal // tope de gasto (solo OPEN_SCOPE)
	TotalAmount         decimal.Decimal
	PaidAmount          decimal.Decimal
	ShippedAmount       decimal.Decimal
	TotalItemsCount     int64
	DeliveredItemsCount int64
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CreatedBy           string
}

// Estados de ítem de contrato.
const (
	ContractItemStatusPending   = "PENDING"
	ContractItemStatusPartial   = "PARTIALLY_DELIVERED"
	ContractItemStatusDelivered = "DELIVERED"
	ContractItemStatusCancelled = "CANCELLED"
)

// ContractItem es una línea del contrato. ProductID es opcional: mercancía
// futura aún no catalogada se acepta sin reserva de stock.
type ContractItem struct {
	ID           string
	ContractID   string
	ProductID    *string // nil = producto futuro, sin reserva
	Name         string
	Quantity     decimal.Decimal
	DeliveredQty decimal.Decimal
	UnitPrice    decimal.Decimal
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining devuelve la cantidad pendiente por entregar del ítem.
func (i *ContractItem) Remaining() decimal.Decimal {
	return i.Quantity.Sub(i.DeliveredQty)
}

// ContractReservation ancla una cantidad reservada de un ítem a un lote
// específico. El anclaje por lote (y no una reserva agrupada) permite devolver
// las unidades exactamente a la capa de costo de la que salieron.
// ReturnedAt se marca a lo sumo una vez.
type ContractReservation struct {
	ID             string
	ContractItemID string
	BatchID        string
	Quantity       decimal.Decimal
	ReturnedAt     *time.Time
	CreatedAt      time.Time
}

// ContractPayment es un abono registrado contra el contrato.
type ContractPayment struct {
	ID         string
	ContractID string
	Amount     decimal.Decimal
	Method     string
	Notes      string
	PaidAt     time.Time
	CreatedAt  time.Time
	CreatedBy  string
}
