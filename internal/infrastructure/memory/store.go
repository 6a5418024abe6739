// Package memory implementa todos los puertos de persistencia sobre mapas en
// memoria protegidos por mutex. Se usa en modo desarrollo (sin BD configurada)
// y como fixture de los tests de casos de uso.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain/entity"
)

// Store guarda todos los agregados en memoria. Las lecturas devuelven copias
// y las escrituras reemplazan el valor completo, igual que haría la BD.
type Store struct {
	mu sync.Mutex

	products     map[string]entity.Product
	batches      map[string]entity.Batch
	batchSeq     map[string]int64 // orden de inserción, desempate del orden por fecha
	stock        map[string]entity.Stock // clave productID|register
	movements    []entity.BatchMovement
	contracts    map[string]entity.Contract
	items        map[string]entity.ContractItem
	reservations map[string]entity.ContractReservation
	deliveries   map[string]entity.ContractDelivery
	payments     map[string]entity.ContractPayment

	costingSessions  map[string]entity.CostingSession
	costingLines     map[string]entity.CostingLine
	costingSnapshots map[string][]entity.CostingItemSnapshot // por sesión

	nextSeq int64
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{
		products:         map[string]entity.Product{},
		batches:          map[string]entity.Batch{},
		batchSeq:         map[string]int64{},
		stock:            map[string]entity.Stock{},
		contracts:        map[string]entity.Contract{},
		items:            map[string]entity.ContractItem{},
		reservations:     map[string]entity.ContractReservation{},
		deliveries:       map[string]entity.ContractDelivery{},
		payments:         map[string]entity.ContractPayment{},
		costingSessions:  map[string]entity.CostingSession{},
		costingLines:     map[string]entity.CostingLine{},
		costingSnapshots: map[string][]entity.CostingItemSnapshot{},
	}
}

var _ ports.TxRunner = (*Store)(nil)

// Run serializa la "transacción" con el mutex del store y ejecuta fn con
// repositorios sobre este store. No hay rollback: los casos de uso validan
// antes de mutar (todo-o-nada a nivel de lógica), que es lo que ejercitan los
// tests. En producción el runner de PostgreSQL sí hace Rollback.
func (s *Store) Run(_ context.Context, fn func(r ports.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.repos())
}

// repos arma los adaptadores sobre este store. Asumen el mutex ya tomado:
// todo acceso pasa por Run.
func (s *Store) repos() ports.Repos {
	return ports.Repos{
		Products:     &productRepo{s},
		Batches:      &batchRepo{s},
		Stock:        &stockRepo{s},
		Movements:    &movementRepo{s},
		Contracts:    &contractRepo{s},
		Items:        &itemRepo{s},
		Reservations: &reservationRepo{s},
		Deliveries:   &deliveryRepo{s},
		Payments:     &paymentRepo{s},
		Costing:      &costingRepo{s},
	}
}

func (s *Store) stockKey(productID, register string) string {
	return productID + "|" + register
}
