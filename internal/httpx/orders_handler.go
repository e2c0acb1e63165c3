package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/ariefcatur/go-workshop-orders/internal/redisx"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

type lineReq struct {
	ServiceID int64 `json:"id_servicio"`
	PartID    int64 `json:"id_repuesto"`
	Qty       int   `json:"cantidad"`
}

type CreateOrderReq struct {
	CustomerID int64     `json:"id_cliente"`
	VehicleID  int64     `json:"id_vehiculo"`
	EmployeeID *int64    `json:"id_empleado"`
	Notes      string    `json:"notas"`
	Services   []lineReq `json:"servicios"`
	Parts      []lineReq `json:"repuestos"`
}

func (req CreateOrderReq) input() orders.CreateOrderInput {
	in := orders.CreateOrderInput{
		CustomerID: req.CustomerID,
		VehicleID:  req.VehicleID,
		EmployeeID: req.EmployeeID,
		Notes:      req.Notes,
	}
	for _, l := range req.Services {
		in.Services = append(in.Services, orders.LineInput{ID: l.ServiceID, Qty: l.Qty})
	}
	for _, l := range req.Parts {
		in.Parts = append(in.Parts, orders.LineInput{ID: l.PartID, Qty: l.Qty})
	}
	return in
}

type UpdateNotesReq struct {
	Notes *string `json:"notas"`
}

type UpdateStateReq struct {
	State string `json:"estado"`
}

// StateView is the cached body of GET /ordenes/{id}/estado.
type StateView struct {
	OrderID int64        `json:"id_orden"`
	State   orders.State `json:"estado"`
}

func (h *Handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	// Replay of a remembered Idempotency-Key returns the existing order.
	idem := r.Header.Get("Idempotency-Key")
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, idem)
	if idem != "" && h.Cache != nil {
		if s, ok, err := h.Cache.Get(ctx, idemKey); err == nil && ok {
			if id, err := strconv.ParseInt(s, 10, 64); err == nil {
				if o, err := h.Builder.GetOrder(ctx, id); err == nil {
					writeJSON(w, http.StatusOK, o)
					return
				}
			}
		}
	}

	o, err := h.Builder.CreateOrder(ctx, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if idem != "" && h.Cache != nil {
		if err := h.Cache.Set(ctx, idemKey, strconv.FormatInt(o.ID, 10), redisx.TTLIdempotency); err != nil {
			h.logger().Warn("remember idempotency key", zap.Error(err))
		}
	}
	h.cacheState(ctx, o.ID, o.State)
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handlers) listOrders(w http.ResponseWriter, r *http.Request) {
	var f orders.OrderFilter
	if raw := r.URL.Query().Get("estado"); raw != "" {
		st, ok := orders.ParseState(raw)
		if !ok {
			st = orders.State(raw)
		}
		f.State = st
	}
	if raw := r.URL.Query().Get("id_empleado"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, r, "invalid id_empleado")
			return
		}
		f.EmployeeID = &id
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	list, err := h.Builder.ListOrders(ctx, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	o, err := h.Builder.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.Builder.DeleteOrder(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.Del(ctx, fmt.Sprintf(redisx.KeyOrderState, id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) updateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	var req UpdateNotesReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.Notes == nil {
		badRequest(w, r, "notas is required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	o, err := h.Builder.UpdateNotes(ctx, id, *req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) updateState(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	var req UpdateStateReq
	if err := decode(r, &req, false); err != nil {
		badRequest(w, r, "invalid json")
		return
	}
	if req.State == "" {
		badRequest(w, r, "estado is required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	o, err := h.States.UpdateState(ctx, id, req.State)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheState(ctx, o.ID, o.State)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, r, "invalid id")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	// 1) cache
	key := fmt.Sprintf(redisx.KeyOrderState, id)
	if h.Cache != nil {
		if s, ok, err := h.Cache.Get(ctx, key); err == nil && ok {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	// 2) store
	o, err := h.Builder.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheState(ctx, o.ID, o.State)
	writeJSON(w, http.StatusOK, StateView{OrderID: o.ID, State: o.State})
}

func (h *Handlers) cacheState(ctx context.Context, id int64, st orders.State) {
	if h.Cache == nil {
		return
	}
	b, err := json.Marshal(StateView{OrderID: id, State: st})
	if err != nil {
		return
	}
	if err := h.Cache.Set(ctx, fmt.Sprintf(redisx.KeyOrderState, id), string(b), redisx.TTLStateCache); err != nil {
		h.logger().Warn("cache order state", zap.Int64("order_id", id), zap.Error(err))
	}
}
