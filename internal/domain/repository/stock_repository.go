package repository

import "github.com/jhoicas/comex-api/internal/domain/entity"

// StockRepository define el puerto para el acumulado por (producto, registro).
// Es una caché de disponibilidad; la fuente de verdad son los lotes.
type StockRepository interface {
	Get(productID, register string) (*entity.Stock, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE).
	GetForUpdate(productID, register string) (*entity.Stock, error)
	Upsert(stock *entity.Stock) error
}
