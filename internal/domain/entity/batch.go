package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Registros de custodia aduanera de la mercancía.
const (
	RegisterBonded  = "BONDED"  // en depósito aduanero, sin nacionalizar
	RegisterCleared = "CLEARED" // nacionalizada, lista para entrega
)

// ValidRegister indica si el valor corresponde a un registro conocido.
func ValidRegister(r string) bool {
	return r == RegisterBonded || r == RegisterCleared
}

// Batch es un lote: cantidad de un producto adquirida a un costo unitario,
// rastreada de forma independiente para costeo FIFO. Quantity nunca se
// persiste negativa; al llegar a cero el lote se archiva, no se borra.
type Batch struct {
	ID        string
	ProductID string
	Register  string          // BONDED o CLEARED
	Quantity  decimal.Decimal // cantidad restante (>= 0)
	UnitCost  decimal.Decimal
	Origin    string // procedencia libre: proveedor, país, etc.
	Reference string // documento de origen: sesión de costeo, DO, factura proveedor
	Archived  bool   // true cuando Quantity llegó a cero
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

// Stock es el acumulado por (producto, registro). Es una caché para chequeos
// O(1) de disponibilidad; la fuente de verdad son los lotes: siempre debe
// cumplirse Stock.Quantity == Σ Batch.Quantity del mismo (producto, registro).
type Stock struct {
	ProductID string
	Register  string
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}
