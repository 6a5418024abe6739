// Package costing implementa el cálculo puro de costos de importación
// (landed cost): conversión de moneda, recargos porcentuales por línea y
// prorrateo de totales absolutos con corrección de residuo de redondeo.
package costing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// Precisión monetaria fija (moneda local).
const moneyPlaces = 2

// Tolerancia del validador de sumas exactas.
var sumTolerance = decimal.NewFromFloat(0.01)

// Calculate computa el desglose de costos por línea de una sesión.
// Es una función pura: no muta la sesión ni las líneas, no toca persistencia
// ni el reloj; now sella los snapshots y lo aporta el llamador.
//
// Algoritmo:
//  1. Precio local = precio origen * tasa de cambio.
//  2. Cada recargo porcentual se aplica directo al precio local de la línea.
//  3. Cada total absoluto se prorratea por cantidad: total * (qty / Σqty),
//     redondeado a 2 decimales.
//  4. El residuo de redondeo (total - Σ cuotas) se asigna completo a la
//     ÚLTIMA línea, de forma determinista, para que la suma cierre exacta.
//  5. TotalCost = precio local + Σ recargos + Σ cuotas; UnitCost = TotalCost / qty.
func Calculate(session *entity.CostingSession, lines []*entity.CostingLine, now time.Time) []*entity.CostingItemSnapshot {
	if len(lines) == 0 {
		return nil
	}

	totalQty := decimal.Zero
	for _, l := range lines {
		totalQty = totalQty.Add(l.Quantity)
	}

	customs := allocate(session.CustomsTotal, lines, totalQty)
	loading := allocate(session.LoadingTotal, lines, totalQty)
	returns := allocate(session.ReturnsTotal, lines, totalQty)

	snapshots := make([]*entity.CostingItemSnapshot, 0, len(lines))
	for i, l := range lines {
		localPrice := l.SourcePrice.Mul(session.ExchangeRate).Round(moneyPlaces)

		s := &entity.CostingItemSnapshot{
			SessionID:  session.ID,
			LineID:     l.ID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			LocalPrice: localPrice,

			TaxAmount:           pctOf(localPrice, session.TaxPct),
			LogisticsAmount:     pctOf(localPrice, session.LogisticsPct),
			StorageAmount:       pctOf(localPrice, session.StoragePct),
			DeclarationAmount:   pctOf(localPrice, session.DeclarationPct),
			CertificationAmount: pctOf(localPrice, session.CertificationPct),
			MiscAmount:          pctOf(localPrice, session.MiscPct),
			ContingencyAmount:   pctOf(localPrice, session.ContingencyPct),

			CustomsShare: customs[i],
			LoadingShare: loading[i],
			ReturnsShare: returns[i],

			CreatedAt: now,
		}

		total := localPrice.
			Add(s.TaxAmount).Add(s.LogisticsAmount).Add(s.StorageAmount).
			Add(s.DeclarationAmount).Add(s.CertificationAmount).
			Add(s.MiscAmount).Add(s.ContingencyAmount).
			Add(s.CustomsShare).Add(s.LoadingShare).Add(s.ReturnsShare)
		s.TotalCost = total.Round(moneyPlaces)
		if l.Quantity.GreaterThan(decimal.Zero) {
			s.UnitCost = s.TotalCost.Div(l.Quantity).Round(moneyPlaces)
		}

		snapshots = append(snapshots, s)
	}
	return snapshots
}

// allocate prorratea un total absoluto entre las líneas por cantidad y asigna
// el residuo de redondeo a la última línea para que Σ cuotas == total exacto.
func allocate(total decimal.Decimal, lines []*entity.CostingLine, totalQty decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	if total.IsZero() || !totalQty.GreaterThan(decimal.Zero) {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}

	allocated := decimal.Zero
	for i, l := range lines {
		share := total.Mul(l.Quantity).Div(totalQty).Round(moneyPlaces)
		shares[i] = share
		allocated = allocated.Add(share)
	}

	// Corrección de invariante: el residuo va completo a la última línea.
	residual := total.Sub(allocated)
	if !residual.IsZero() {
		last := len(shares) - 1
		shares[last] = shares[last].Add(residual)
	}
	return shares
}

func pctOf(base, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	return base.Mul(pct).Round(moneyPlaces)
}

// FieldMismatch describe un campo absoluto cuya suma asignada no coincide con
// el total configurado.
type FieldMismatch struct {
	Field      string
	Configured decimal.Decimal
	Allocated  decimal.Decimal
}

// ValidateAllocation re-suma cada campo absoluto asignado sobre todas las
// líneas y confirma igualdad con el total configurado dentro de la tolerancia.
// Devuelve ok=false con el detalle de los campos desviados; el llamador decide
// cómo reportarlo (el cálculo sigue siendo válido como resultado).
func ValidateAllocation(session *entity.CostingSession, snapshots []*entity.CostingItemSnapshot) (bool, []FieldMismatch) {
	sumCustoms, sumLoading, sumReturns := decimal.Zero, decimal.Zero, decimal.Zero
	for _, s := range snapshots {
		sumCustoms = sumCustoms.Add(s.CustomsShare)
		sumLoading = sumLoading.Add(s.LoadingShare)
		sumReturns = sumReturns.Add(s.ReturnsShare)
	}

	var mismatches []FieldMismatch
	check := func(field string, configured, allocated decimal.Decimal) {
		if configured.Sub(allocated).Abs().GreaterThan(sumTolerance) {
			mismatches = append(mismatches, FieldMismatch{Field: field, Configured: configured, Allocated: allocated})
		}
	}
	check("customs", session.CustomsTotal, sumCustoms)
	check("loading", session.LoadingTotal, sumLoading)
	check("returns", session.ReturnsTotal, sumReturns)

	return len(mismatches) == 0, mismatches
}
