package httpx

import (
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"net/http"
)

type InvoiceOrderReq struct {
	PaymentMethod *string `json:"metodo_pago"`
}

type CreateInvoiceReq struct {
	OrderID       int64            `json:"id_orden"`
	Amount        *decimal.Decimal `json:"monto"`
	PaymentState  string           `json:"estado_pago"`
	PaymentMethod *string          `json:"metodo_pago"`
}

func (h *Handlers) invoiceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id_orden")
	if !ok {
		badRequest(w, r, "invalid id_orden")
		return
	}
	var req InvoiceOrderReq
	if err := decode(r, &req, true); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := h.Invoices.InvoiceOrder(ctx, id, req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheState(ctx, res.Order.ID, res.Order.State)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.OrderID <= 0 || req.Amount == nil {
		badRequest(w, r, "id_orden and monto are required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := h.Invoices.CreateInvoice(ctx, orders.CreateInvoiceInput{
		OrderID:       req.OrderID,
		Amount:        *req.Amount,
		PaymentState:  req.PaymentState,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheState(ctx, res.Order.ID, res.Order.State)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) invoiceByOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id_orden")
	if !ok {
		badRequest(w, r, "invalid id_orden")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := h.Invoices.InvoiceByOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	var req InvoiceOrderReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := h.Invoices.RecordPayment(ctx, id, req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheState(ctx, res.Order.ID, res.Order.State)
	writeJSON(w, http.StatusOK, res)
}
