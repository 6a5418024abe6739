package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de entrega. Única transición permitida:
// PENDING_CONVERSION -> COMPLETED (vía reintento).
const (
	DeliveryStatusCompleted         = "COMPLETED"
	DeliveryStatusPendingConversion = "PENDING_CONVERSION"
)

// DeliveryLine registra qué lote se consumió, cuánto y a qué costo unitario,
// para poder revertir la entrega al lote y registro originales.
type DeliveryLine struct {
	BatchID  string
	Register string
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// ContractDelivery es un evento de entrega sobre un ítem de contrato.
// En estado PENDING_CONVERSION no se consumió stock: MissingQuantity guarda el
// faltante y el reintento periódico vuelve a intentar la conversión.
type ContractDelivery struct {
	ID              string
	ContractID      string
	ContractItemID  string
	Quantity        decimal.Decimal
	Status          string
	Lines           []DeliveryLine  // vacío mientras esté pendiente
	MissingQuantity decimal.Decimal // faltante en CLEARED al momento de diferir
	RetryCount      int
	LastRetryAt     *time.Time
	CreatedAt       time.Time
	CreatedBy       string
}
