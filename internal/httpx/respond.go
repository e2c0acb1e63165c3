package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"io"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func statusOf(k orders.Kind) int {
	switch k {
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindInvalid, orders.KindInsufficientStock, orders.KindInvalidTransition, orders.KindNotYetCompleted:
		return http.StatusBadRequest
	case orders.KindAlreadyInvoiced:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := orders.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("route", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Error:     kind.String(),
		Message:   orders.MessageOf(err),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     orders.KindInvalid.String(),
		Message:   msg,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// decode reads a JSON body. An empty body is accepted when optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
