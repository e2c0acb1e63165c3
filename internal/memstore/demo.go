package memstore

import (
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// NewDemo returns a store seeded with a small workshop catalog for local runs.
func NewDemo() *Store {
	s := New()
	c := s.AddCustomer(orders.Customer{Name: "Cliente Demo", Phone: "555-0100", Email: "demo@taller.test"})
	s.AddVehicle(orders.Vehicle{CustomerID: c, Plate: "ABC-123", Brand: "Toyota", Model: "Corolla"})
	s.AddProvider("Repuestos Demo")

	s.AddService(orders.Service{Name: "Cambio de aceite", Price: decimal.NewFromInt(50), DurationMinutes: 45})
	s.AddService(orders.Service{Name: "Alineacion y balanceo", Price: decimal.NewFromInt(80), DurationMinutes: 60})

	s.AddPart(orders.Part{
		Code: "FIL-001", Name: "Filtro de aceite",
		BuyPrice: decimal.NewFromInt(6), SellPrice: decimal.NewFromInt(10), Stock: 100, MinStock: 10,
	})
	s.AddPart(orders.Part{
		Code: "PAS-002", Name: "Pastillas de freno",
		BuyPrice: decimal.NewFromInt(25), SellPrice: decimal.NewFromInt(40), Stock: 8, MinStock: 5,
	})
	return s
}
