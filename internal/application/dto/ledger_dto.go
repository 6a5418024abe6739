package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterArrivalRequest body para POST /api/ledger/arrivals: ingreso manual
// de un lote (entradas que no pasan por una sesión de costeo).
type RegisterArrivalRequest struct {
	ProductID string          `json:"product_id"`
	Register  string          `json:"register"` // BONDED o CLEARED
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Origin    string          `json:"origin,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

// ConvertRegisterRequest body para POST /api/ledger/conversions.
type ConvertRegisterRequest struct {
	ProductID string          `json:"product_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"reference,omitempty"`
}

// BatchResponse representación de un lote.
type BatchResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Register  string          `json:"register"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Origin    string          `json:"origin,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Archived  bool            `json:"archived"`
	CreatedAt time.Time       `json:"created_at"`
}

// StockResponse acumulado de un producto en un registro.
type StockResponse struct {
	ProductID string          `json:"product_id"`
	Register  string          `json:"register"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MovementResponse un movimiento de auditoría de lote.
type MovementResponse struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	BatchID       string          `json:"batch_id"`
	Register      string          `json:"register"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Reference     string          `json:"reference,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
