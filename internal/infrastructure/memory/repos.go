package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/domain"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/internal/domain/repository"
)

// ── Productos ────────────────────────────────────────────────────────────────

type productRepo struct{ s *Store }

var _ repository.ProductRepository = (*productRepo)(nil)

func (r *productRepo) Create(p *entity.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	for _, existing := range r.s.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicate
		}
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *productRepo) GetByID(id string) (*entity.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (r *productRepo) GetBySKU(sku string) (*entity.Product, error) {
	for _, p := range r.s.products {
		if p.SKU == sku {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *productRepo) Update(p *entity.Product) error {
	if _, ok := r.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *productRepo) UpdateCost(productID string, cost decimal.Decimal) error {
	p, ok := r.s.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Cost = cost
	p.UpdatedAt = time.Now()
	r.s.products[productID] = p
	return nil
}

func (r *productRepo) List(limit, offset int) ([]*entity.Product, error) {
	all := make([]*entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		cp := p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return paginate(all, limit, offset), nil
}

// ── Lotes ────────────────────────────────────────────────────────────────────

type batchRepo struct{ s *Store }

var _ repository.BatchRepository = (*batchRepo)(nil)

func (r *batchRepo) Create(b *entity.Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	r.s.nextSeq++
	r.s.batchSeq[b.ID] = r.s.nextSeq
	r.s.batches[b.ID] = *b
	return nil
}

func (r *batchRepo) GetByID(id string) (*entity.Batch, error) {
	b, ok := r.s.batches[id]
	if !ok {
		return nil, nil
	}
	cp := b
	return &cp, nil
}

func (r *batchRepo) GetForUpdate(id string) (*entity.Batch, error) {
	return r.GetByID(id) // el mutex del store ya serializa
}

func (r *batchRepo) ListAvailableForUpdate(productID, register string, oldestFirst bool) ([]*entity.Batch, error) {
	var list []*entity.Batch
	for _, b := range r.s.batches {
		if b.ProductID == productID && b.Register == register && b.Quantity.GreaterThan(decimal.Zero) {
			cp := b
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ti, tj := list[i].CreatedAt, list[j].CreatedAt
		if ti.Equal(tj) {
			// desempate estable por orden de inserción
			less := r.s.batchSeq[list[i].ID] < r.s.batchSeq[list[j].ID]
			if oldestFirst {
				return less
			}
			return !less
		}
		if oldestFirst {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})
	return list, nil
}

func (r *batchRepo) ListByIDs(ids []string) ([]*entity.Batch, error) {
	var list []*entity.Batch
	for _, id := range ids {
		if b, ok := r.s.batches[id]; ok {
			cp := b
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *batchRepo) ListNegative() ([]*entity.Batch, error) {
	var list []*entity.Batch
	for _, b := range r.s.batches {
		if b.Quantity.LessThan(decimal.Zero) {
			cp := b
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return r.s.batchSeq[list[i].ID] < r.s.batchSeq[list[j].ID] })
	return list, nil
}

func (r *batchRepo) Update(b *entity.Batch) error {
	if _, ok := r.s.batches[b.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.batches[b.ID] = *b
	return nil
}

// ── Stock acumulado ──────────────────────────────────────────────────────────

type stockRepo struct{ s *Store }

var _ repository.StockRepository = (*stockRepo)(nil)

func (r *stockRepo) Get(productID, register string) (*entity.Stock, error) {
	st, ok := r.s.stock[r.s.stockKey(productID, register)]
	if !ok {
		return &entity.Stock{ProductID: productID, Register: register, Quantity: decimal.Zero}, nil
	}
	cp := st
	return &cp, nil
}

func (r *stockRepo) GetForUpdate(productID, register string) (*entity.Stock, error) {
	return r.Get(productID, register)
}

func (r *stockRepo) Upsert(stock *entity.Stock) error {
	r.s.stock[r.s.stockKey(stock.ProductID, stock.Register)] = *stock
	return nil
}

// ── Movimientos de lote ──────────────────────────────────────────────────────

type movementRepo struct{ s *Store }

var _ repository.BatchMovementRepository = (*movementRepo)(nil)

func (r *movementRepo) Create(m *entity.BatchMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *movementRepo) ListByProduct(productID string, from, to *time.Time, limit, offset int) ([]*entity.BatchMovement, error) {
	var list []*entity.BatchMovement
	for i := range r.s.movements {
		m := r.s.movements[i]
		if m.ProductID != productID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		cp := m
		list = append(list, &cp)
	}
	return paginate(list, limit, offset), nil
}

func (r *movementRepo) ListByBatch(batchID string) ([]*entity.BatchMovement, error) {
	var list []*entity.BatchMovement
	for i := range r.s.movements {
		if r.s.movements[i].BatchID == batchID {
			cp := r.s.movements[i]
			list = append(list, &cp)
		}
	}
	return list, nil
}

// ── Contratos ────────────────────────────────────────────────────────────────

type contractRepo struct{ s *Store }

var _ repository.ContractRepository = (*contractRepo)(nil)

func (r *contractRepo) Create(c *entity.Contract) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.s.contracts[c.ID] = *c
	return nil
}

func (r *contractRepo) GetByID(id string) (*entity.Contract, error) {
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (r *contractRepo) GetForUpdate(id string) (*entity.Contract, error) {
	return r.GetByID(id)
}

func (r *contractRepo) Update(c *entity.Contract) error {
	if _, ok := r.s.contracts[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.contracts[c.ID] = *c
	return nil
}

func (r *contractRepo) List(limit, offset int) ([]*entity.Contract, error) {
	all := make([]*entity.Contract, 0, len(r.s.contracts))
	for _, c := range r.s.contracts {
		cp := c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

type itemRepo struct{ s *Store }

var _ repository.ContractItemRepository = (*itemRepo)(nil)

func (r *itemRepo) Create(i *entity.ContractItem) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	r.s.items[i.ID] = *i
	return nil
}

func (r *itemRepo) GetByID(id string) (*entity.ContractItem, error) {
	it, ok := r.s.items[id]
	if !ok {
		return nil, nil
	}
	cp := it
	return &cp, nil
}

func (r *itemRepo) GetForUpdate(id string) (*entity.ContractItem, error) {
	return r.GetByID(id)
}

func (r *itemRepo) ListByContract(contractID string) ([]*entity.ContractItem, error) {
	var list []*entity.ContractItem
	for _, it := range r.s.items {
		if it.ContractID == contractID {
			cp := it
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *itemRepo) Update(i *entity.ContractItem) error {
	if _, ok := r.s.items[i.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.items[i.ID] = *i
	return nil
}

type reservationRepo struct{ s *Store }

var _ repository.ReservationRepository = (*reservationRepo)(nil)

func (r *reservationRepo) Create(res *entity.ContractReservation) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	r.s.reservations[res.ID] = *res
	return nil
}

func (r *reservationRepo) ListByItem(itemID string) ([]*entity.ContractReservation, error) {
	var list []*entity.ContractReservation
	for _, res := range r.s.reservations {
		if res.ContractItemID == itemID {
			cp := res
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *reservationRepo) ListByContract(contractID string) ([]*entity.ContractReservation, error) {
	var list []*entity.ContractReservation
	for _, res := range r.s.reservations {
		it, ok := r.s.items[res.ContractItemID]
		if ok && it.ContractID == contractID {
			cp := res
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *reservationRepo) Update(res *entity.ContractReservation) error {
	if _, ok := r.s.reservations[res.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.reservations[res.ID] = *res
	return nil
}

type paymentRepo struct{ s *Store }

var _ repository.PaymentRepository = (*paymentRepo)(nil)

func (r *paymentRepo) Create(p *entity.ContractPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r *paymentRepo) ListByContract(contractID string) ([]*entity.ContractPayment, error) {
	var list []*entity.ContractPayment
	for _, p := range r.s.payments {
		if p.ContractID == contractID {
			cp := p
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

// ── Entregas ─────────────────────────────────────────────────────────────────

type deliveryRepo struct{ s *Store }

var _ repository.DeliveryRepository = (*deliveryRepo)(nil)

func (r *deliveryRepo) Create(d *entity.ContractDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	r.s.deliveries[d.ID] = cloneDelivery(d)
	return nil
}

func (r *deliveryRepo) GetByID(id string) (*entity.ContractDelivery, error) {
	d, ok := r.s.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := cloneDelivery(&d)
	return &cp, nil
}

func (r *deliveryRepo) GetForUpdate(id string) (*entity.ContractDelivery, error) {
	return r.GetByID(id)
}

func (r *deliveryRepo) Update(d *entity.ContractDelivery) error {
	if _, ok := r.s.deliveries[d.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.deliveries[d.ID] = cloneDelivery(d)
	return nil
}

func (r *deliveryRepo) Delete(id string) error {
	if _, ok := r.s.deliveries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.deliveries, id)
	return nil
}

func (r *deliveryRepo) ListByContract(contractID string) ([]*entity.ContractDelivery, error) {
	var list []*entity.ContractDelivery
	for _, d := range r.s.deliveries {
		if d.ContractID == contractID {
			cp := cloneDelivery(&d)
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *deliveryRepo) ListPending(limit int) ([]*entity.ContractDelivery, error) {
	var list []*entity.ContractDelivery
	for _, d := range r.s.deliveries {
		if d.Status == entity.DeliveryStatusPendingConversion {
			cp := cloneDelivery(&d)
			list = append(list, &cp)
		}
	}
	// Nunca reintentadas primero; luego reintento más antiguo primero.
	sort.Slice(list, func(i, j int) bool {
		li, lj := list[i].LastRetryAt, list[j].LastRetryAt
		switch {
		case li == nil && lj == nil:
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		case li == nil:
			return true
		case lj == nil:
			return false
		default:
			return li.Before(*lj)
		}
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// cloneDelivery copia la entrega incluido el slice de líneas.
func cloneDelivery(d *entity.ContractDelivery) entity.ContractDelivery {
	cp := *d
	cp.Lines = append([]entity.DeliveryLine(nil), d.Lines...)
	return cp
}

// ── Costeo ───────────────────────────────────────────────────────────────────

type costingRepo struct{ s *Store }

var _ repository.CostingRepository = (*costingRepo)(nil)

func (r *costingRepo) CreateSession(sess *entity.CostingSession) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	r.s.costingSessions[sess.ID] = *sess
	return nil
}

func (r *costingRepo) GetSession(id string) (*entity.CostingSession, error) {
	sess, ok := r.s.costingSessions[id]
	if !ok {
		return nil, nil
	}
	cp := sess
	return &cp, nil
}

func (r *costingRepo) GetSessionForUpdate(id string) (*entity.CostingSession, error) {
	return r.GetSession(id)
}

func (r *costingRepo) UpdateSession(sess *entity.CostingSession) error {
	if _, ok := r.s.costingSessions[sess.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.costingSessions[sess.ID] = *sess
	return nil
}

func (r *costingRepo) ListSessions(limit, offset int) ([]*entity.CostingSession, error) {
	all := make([]*entity.CostingSession, 0, len(r.s.costingSessions))
	for _, sess := range r.s.costingSessions {
		cp := sess
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

func (r *costingRepo) CreateLine(l *entity.CostingLine) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	r.s.nextSeq++
	r.s.batchSeq[l.ID] = r.s.nextSeq // reutiliza la secuencia para orden estable
	r.s.costingLines[l.ID] = *l
	return nil
}

func (r *costingRepo) ListLines(sessionID string) ([]*entity.CostingLine, error) {
	var list []*entity.CostingLine
	for _, l := range r.s.costingLines {
		if l.SessionID == sessionID {
			cp := l
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return r.s.batchSeq[list[i].ID] < r.s.batchSeq[list[j].ID] })
	return list, nil
}

func (r *costingRepo) ReplaceSnapshots(sessionID string, snaps []*entity.CostingItemSnapshot) error {
	stored := make([]entity.CostingItemSnapshot, 0, len(snaps))
	for _, sn := range snaps {
		cp := *sn
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		stored = append(stored, cp)
	}
	r.s.costingSnapshots[sessionID] = stored
	return nil
}

func (r *costingRepo) ListSnapshots(sessionID string) ([]*entity.CostingItemSnapshot, error) {
	stored := r.s.costingSnapshots[sessionID]
	list := make([]*entity.CostingItemSnapshot, 0, len(stored))
	for i := range stored {
		cp := stored[i]
		list = append(list, &cp)
	}
	return list, nil
}

// paginate aplica limit/offset sobre una lista ya ordenada.
func paginate[T any](list []*T, limit, offset int) []*T {
	if offset >= len(list) {
		return []*T{}
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
