package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrProductNotFound       = errors.New("producto no encontrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrDuplicate             = errors.New("recurso duplicado")
	ErrInsufficientStock     = errors.New("stock insuficiente")
	ErrInvalidContractState  = errors.New("operación no permitida en el estado actual del contrato")
	ErrReservationReturned   = errors.New("la reserva ya fue devuelta")
	ErrConversionUnavailable = errors.New("conversión de registro no disponible")
	ErrCostingFinalized      = errors.New("la sesión de costeo ya fue finalizada")
)

// InsufficientStockError detalla un faltante de stock: producto, registro,
// cantidad pedida y disponible. errors.Is(err, ErrInsufficientStock) == true.
type InsufficientStockError struct {
	ProductID string
	Register  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: producto %s registro %s (pedido %s, disponible %s)",
		e.ProductID, e.Register, e.Requested.String(), e.Available.String())
}

// Is permite comparar contra el sentinel ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Shortfall devuelve la cantidad faltante (pedido - disponible).
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}
