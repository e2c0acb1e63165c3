// Package memstore is a transactional in-memory orders.Store. Transactions
// are serialized and run against a private copy of the data that replaces the
// committed copy only when the callback succeeds.
package memstore

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"sort"
	"sync"
)

type data struct {
	customers map[int64]orders.Customer
	vehicles  map[int64]orders.Vehicle
	providers map[int64]string
	services  map[int64]orders.Service
	parts     map[int64]orders.Part
	orders    map[int64]orders.Order
	svcLines  map[int64][]orders.ServiceLine
	partLines map[int64][]orders.PartLine
	invoices  map[int64]orders.Invoice // by order id
	purchases map[int64]orders.Purchase
	seq       map[string]int64
}

func newData() *data {
	return &data{
		customers: map[int64]orders.Customer{},
		vehicles:  map[int64]orders.Vehicle{},
		providers: map[int64]string{},
		services:  map[int64]orders.Service{},
		parts:     map[int64]orders.Part{},
		orders:    map[int64]orders.Order{},
		svcLines:  map[int64][]orders.ServiceLine{},
		partLines: map[int64][]orders.PartLine{},
		invoices:  map[int64]orders.Invoice{},
		purchases: map[int64]orders.Purchase{},
		seq:       map[string]int64{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlices[V any](m map[int64][]V) map[int64][]V {
	out := make(map[int64][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (d *data) clone() *data {
	return &data{
		customers: copyMap(d.customers),
		vehicles:  copyMap(d.vehicles),
		providers: copyMap(d.providers),
		services:  copyMap(d.services),
		parts:     copyMap(d.parts),
		orders:    copyMap(d.orders),
		svcLines:  copySlices(d.svcLines),
		partLines: copySlices(d.partLines),
		invoices:  copyMap(d.invoices),
		purchases: copyMap(d.purchases),
		seq:       copyMap(d.seq),
	}
}

func (d *data) next(name string) int64 {
	d.seq[name]++
	return d.seq[name]
}

type Store struct {
	mu sync.Mutex
	d  *data
}

var _ orders.Store = (*Store)(nil)

func New() *Store { return &Store{d: newData()} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.d.clone()
	if err := fn(ctx, &tx{d: work}); err != nil {
		return err // work is dropped: rollback
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d = work
	return nil
}

// ---- seeding and inspection, outside of transactions ----

func (s *Store) AddCustomer(c orders.Customer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.d.next("customers")
	s.d.customers[c.ID] = c
	return c.ID
}

func (s *Store) AddVehicle(v orders.Vehicle) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.d.next("vehicles")
	s.d.vehicles[v.ID] = v
	return v.ID
}

func (s *Store) AddProvider(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.d.next("providers")
	s.d.providers[id] = name
	return id
}

func (s *Store) AddService(svc orders.Service) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = s.d.next("services")
	s.d.services[svc.ID] = svc
	return svc.ID
}

func (s *Store) AddPart(p orders.Part) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.d.next("parts")
	s.d.parts[p.ID] = p
	return p.ID
}

// SetServicePrice changes the live catalog price.
func (s *Store) SetServicePrice(id int64, svc orders.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = id
	s.d.services[id] = svc
}

func (s *Store) Part(id int64) (orders.Part, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.parts[id]
	return p, ok
}

// Counts reports committed orders, order lines, invoices and purchases.
func (s *Store) Counts() (ordersN, linesN, invoicesN, purchasesN int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ls := range s.d.svcLines {
		linesN += len(ls)
	}
	for _, ls := range s.d.partLines {
		linesN += len(ls)
	}
	return len(s.d.orders), linesN, len(s.d.invoices), len(s.d.purchases)
}

// TotalStock sums the stock of every part.
func (s *Store) TotalStock() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.d.parts {
		n += p.Stock
	}
	return n
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
