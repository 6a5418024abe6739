package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractItemRequest una línea del contrato a crear. product_id vacío =
// mercancía futura sin catalogar (no reserva stock).
type ContractItemRequest struct {
	ProductID *string         `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateContractRequest body para POST /api/contracts.
type CreateContractRequest struct {
	Number       string                `json:"number"`
	Counterparty string                `json:"counterparty"`
	Type         string                `json:"type"` // CLOSED_SCOPE u OPEN_SCOPE
	LimitAmount  decimal.Decimal       `json:"limit_amount,omitempty"`
	Items        []ContractItemRequest `json:"items"`
}

// ContractResponse representación de un contrato con sus totales.
type ContractResponse struct {
	ID                  string          `json:"id"`
	Number              string          `json:"number"`
	Counterparty        string          `json:"counterparty,omitempty"`
	Type                string          `json:"type"`
	LimitAmount         decimal.Decimal `json:"limit_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	PaidAmount          decimal.Decimal `json:"paid_amount"`
	ShippedAmount       decimal.Decimal `json:"shipped_amount"`
	TotalItemsCount     int64           `json:"total_items_count"`
	DeliveredItemsCount int64           `json:"delivered_items_count"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
}

// RegisterPaymentRequest body para POST /api/contracts/:id/payments.
type RegisterPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method,omitempty"`
	Notes  string          `json:"notes,omitempty"`
}

// DeliverRequest body para POST /api/contracts/:id/deliveries.
type DeliverRequest struct {
	ItemID   string          `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DeliveryResponse representación de una entrega.
type DeliveryResponse struct {
	ID              string          `json:"id"`
	ContractID      string          `json:"contract_id"`
	ContractItemID  string          `json:"contract_item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Status          string          `json:"status"`
	MissingQuantity decimal.Decimal `json:"missing_quantity"`
	RetryCount      int             `json:"retry_count"`
	LastRetryAt     *time.Time      `json:"last_retry_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
