package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento sobre lotes.
const (
	BatchMovementArrival    = "ARRIVAL"     // ingreso de lote nuevo (importación costeada)
	BatchMovementConsume    = "CONSUME"     // salida por reserva o entrega
	BatchMovementReturn     = "RETURN"      // devolución al lote original
	BatchMovementConvertOut = "CONVERT_OUT" // salida del registro origen en una conversión
	BatchMovementConvertIn  = "CONVERT_IN"  // entrada al registro destino en una conversión
	BatchMovementAdjustment = "ADJUSTMENT"  // corrección de cantidad (reconciliación)
)

// BatchMovement es el registro de auditoría de cada mutación de lote.
// Las conversiones emiten un par CONVERT_OUT/CONVERT_IN con el mismo TransactionID.
type BatchMovement struct {
	ID            string
	TransactionID string
	BatchID       string
	ProductID     string
	Register      string
	Type          string
	Quantity      decimal.Decimal // positivo entradas, negativo salidas
	UnitCost      decimal.Decimal
	Reference     string // contrato, entrega, sesión de costeo
	CreatedAt     time.Time
	CreatedBy     string
}
