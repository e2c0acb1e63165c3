package httpx

import (
	"github.com/ariefcatur/go-workshop-orders/internal/alerts"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"net/http"
)

type AdjustStockReq struct {
	Delta *int `json:"cantidad"`
	Force bool `json:"forzar"`
}

type purchaseLineReq struct {
	PartID   int64           `json:"id_repuesto"`
	Qty      int             `json:"cantidad"`
	UnitCost decimal.Decimal `json:"precio_unitario"`
}

type PurchaseReq struct {
	ProviderID int64             `json:"id_proveedor"`
	Notes      string            `json:"notas"`
	Lines      []purchaseLineReq `json:"repuestos"`
}

func (h *Handlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	var req AdjustStockReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.Delta == nil {
		badRequest(w, r, "cantidad is required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	p, err := h.Ledger.AdjustStock(ctx, id, *req.Delta, req.Force)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	ps, err := h.Ledger.LowStock(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []orders.Part{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handlers) receivePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	in := orders.ReceivePurchaseInput{ProviderID: req.ProviderID, Notes: req.Notes}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, orders.PurchaseLineInput{PartID: l.PartID, Qty: l.Qty, UnitCost: l.UnitCost})
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	p, err := h.Ledger.ReceivePurchase(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) removePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	p, err := h.Ledger.RemovePurchase(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) stockAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	list, err := alerts.List(ctx, h.Alerts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
