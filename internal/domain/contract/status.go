// Package contract contiene las reglas puras del ciclo de vida del contrato.
package contract

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// DeriveStatus deriva el estado del contrato desde sus totales. Es una función
// pura: el estado almacenado es solo una caché y se rederiva en cada mutación.
//
// Los terminales CLOSED y CANCELLED son sticky: nunca se recalculan.
// Para contratos de alcance abierto, alcanzar el tope de gasto con el monto
// despachado cierra el contrato automáticamente.
//
// Prioridad: pagado y entregado completo -> DELIVERED; pagado completo -> PAID;
// pago parcial -> PARTIALLY_PAID; entrega parcial -> PARTIALLY_DELIVERED;
// si no -> ACTIVE.
func DeriveStatus(c *entity.Contract) string {
	if c.Status == entity.ContractStatusClosed || c.Status == entity.ContractStatusCancelled {
		return c.Status
	}

	if c.Type == entity.ContractTypeOpen &&
		c.LimitAmount.GreaterThan(decimal.Zero) &&
		c.ShippedAmount.GreaterThanOrEqual(c.LimitAmount) {
		return entity.ContractStatusClosed
	}

	fullyPaid := c.TotalAmount.GreaterThan(decimal.Zero) && c.PaidAmount.GreaterThanOrEqual(c.TotalAmount)
	fullyDelivered := c.TotalItemsCount > 0 && c.DeliveredItemsCount >= c.TotalItemsCount

	switch {
	case fullyPaid && fullyDelivered:
		return entity.ContractStatusDelivered
	case fullyPaid:
		return entity.ContractStatusPaid
	case c.PaidAmount.GreaterThan(decimal.Zero):
		return entity.ContractStatusPartiallyPaid
	case c.DeliveredItemsCount > 0:
		return entity.ContractStatusPartiallyDelivered
	default:
		return entity.ContractStatusActive
	}
}

// CloseReason explica por qué no se puede cerrar un contrato.
type CloseReason string

const (
	CloseReasonOK             CloseReason = ""
	CloseReasonUnpaid         CloseReason = "monto pagado menor al total"
	CloseReasonUndelivered    CloseReason = "ítems entregados menores al total"
	CloseReasonUnderShipped   CloseReason = "monto despachado menor al total"
	CloseReasonAlreadyClosed  CloseReason = "el contrato ya está cerrado o cancelado"
)

// CanClose valida las precondiciones de cierre sobre los totales del
// contrato. La verificación de custodia de los lotes entregados (todo en
// CLEARED) la hace el caso de uso, que tiene acceso al ledger.
func CanClose(c *entity.Contract) CloseReason {
	if c.Status == entity.ContractStatusClosed || c.Status == entity.ContractStatusCancelled {
		return CloseReasonAlreadyClosed
	}
	if c.PaidAmount.LessThan(c.TotalAmount) {
		return CloseReasonUnpaid
	}
	if c.DeliveredItemsCount < c.TotalItemsCount {
		return CloseReasonUndelivered
	}
	if c.ShippedAmount.LessThan(c.TotalAmount) {
		return CloseReasonUnderShipped
	}
	return CloseReasonOK
}
