package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto importable del catálogo.
// Cost es el costo unitario de referencia (última importación costeada);
// el costo real de cada lote vive en Batch.UnitCost.
type Product struct {
	ID          string
	SKU         string // código único
	Name        string
	Description string
	Cost        decimal.Decimal // costo de referencia, actualizado al sembrar lotes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
