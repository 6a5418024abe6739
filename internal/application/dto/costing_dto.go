package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostingLineRequest una línea de la importación a costear.
type CostingLineRequest struct {
	ProductID   string          `json:"product_id"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourcePrice decimal.Decimal `json:"source_price"` // precio total en moneda origen
}

// CreateCostingSessionRequest body para POST /api/costing/sessions.
// Los porcentajes son fracciones (0.19 = 19%); los totales absolutos están en
// moneda local y se prorratean entre las líneas por cantidad.
type CreateCostingSessionRequest struct {
	Reference    string          `json:"reference"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`

	TaxPct           decimal.Decimal `json:"tax_pct,omitempty"`
	LogisticsPct     decimal.Decimal `json:"logistics_pct,omitempty"`
	StoragePct       decimal.Decimal `json:"storage_pct,omitempty"`
	DeclarationPct   decimal.Decimal `json:"declaration_pct,omitempty"`
	CertificationPct decimal.Decimal `json:"certification_pct,omitempty"`
	MiscPct          decimal.Decimal `json:"misc_pct,omitempty"`
	ContingencyPct   decimal.Decimal `json:"contingency_pct,omitempty"`

	CustomsTotal decimal.Decimal `json:"customs_total,omitempty"`
	LoadingTotal decimal.Decimal `json:"loading_total,omitempty"`
	ReturnsTotal decimal.Decimal `json:"returns_total,omitempty"`

	Lines []CostingLineRequest `json:"lines"`
}

// CostingSnapshotResponse desglose calculado de una línea.
type CostingSnapshotResponse struct {
	LineID     string          `json:"line_id"`
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	LocalPrice decimal.Decimal `json:"local_price"`

	TaxAmount           decimal.Decimal `json:"tax_amount"`
	LogisticsAmount     decimal.Decimal `json:"logistics_amount"`
	StorageAmount       decimal.Decimal `json:"storage_amount"`
	DeclarationAmount   decimal.Decimal `json:"declaration_amount"`
	CertificationAmount decimal.Decimal `json:"certification_amount"`
	MiscAmount          decimal.Decimal `json:"misc_amount"`
	ContingencyAmount   decimal.Decimal `json:"contingency_amount"`

	CustomsShare decimal.Decimal `json:"customs_share"`
	LoadingShare decimal.Decimal `json:"loading_share"`
	ReturnsShare decimal.Decimal `json:"returns_share"`

	TotalCost decimal.Decimal `json:"total_cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// CostingSessionResponse representación de una sesión de costeo.
type CostingSessionResponse struct {
	ID           string          `json:"id"`
	Reference    string          `json:"reference"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Finalized    bool            `json:"finalized"`
	FinalizedAt  *time.Time      `json:"finalized_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
