package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostingSession es un intento de costeo de una importación que llega:
// tasa de cambio, recargos porcentuales sobre el precio convertido y totales
// absolutos que se prorratean entre las líneas por cantidad.
// Finalized es de una sola vía: una sesión finalizada no se recalcula.
type CostingSession struct {
	ID        string
	Reference string // DO / embarque / factura del proveedor

	ExchangeRate decimal.Decimal // moneda origen -> moneda local

	// Recargos porcentuales (fracción, ej. 0.19) aplicados línea a línea.
	TaxPct           decimal.Decimal
	LogisticsPct     decimal.Decimal
	StoragePct       decimal.Decimal
	DeclarationPct   decimal.Decimal
	CertificationPct decimal.Decimal
	MiscPct          decimal.Decimal
	ContingencyPct   decimal.Decimal

	// Totales absolutos en moneda local, distribuidos proporcionalmente.
	CustomsTotal   decimal.Decimal
	LoadingTotal   decimal.Decimal
	ReturnsTotal   decimal.Decimal // provisión de devoluciones

	Finalized   bool
	FinalizedAt *time.Time
	CreatedAt   time.Time
	CreatedBy   string
}

// CostingLine es una línea de la importación a costear: producto, cantidad y
// precio en moneda origen.
type CostingLine struct {
	ID          string
	SessionID   string
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	SourcePrice decimal.Decimal // precio total de la línea en moneda origen
}

// CostingItemSnapshot es el desglose calculado por línea: precio convertido,
// cada recargo porcentual, cada cuota absoluta asignada, costo total y costo
// unitario. Pertenece a una sesión y se reemplaza en cada recálculo.
type CostingItemSnapshot struct {
	ID        string
	SessionID string
	LineID    string
	ProductID string
	Quantity  decimal.Decimal

	LocalPrice decimal.Decimal // SourcePrice * ExchangeRate

	TaxAmount           decimal.Decimal
	LogisticsAmount     decimal.Decimal
	StorageAmount       decimal.Decimal
	DeclarationAmount   decimal.Decimal
	CertificationAmount decimal.Decimal
	MiscAmount          decimal.Decimal
	ContingencyAmount   decimal.Decimal

	CustomsShare decimal.Decimal
	LoadingShare decimal.Decimal
	ReturnsShare decimal.Decimal

	TotalCost decimal.Decimal
	UnitCost  decimal.Decimal

	CreatedAt time.Time
}
