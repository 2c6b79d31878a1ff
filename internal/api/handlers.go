package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/api/middleware"
	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/domain/product"
	"github.com/idkosilov/furniture/internal/handlers"
	"github.com/idkosilov/furniture/internal/messagebus"
	"github.com/idkosilov/furniture/internal/unitofwork"
	"github.com/idkosilov/furniture/internal/views"
)

type Handlers struct {
	bus    *messagebus.MessageBus
	newUoW func() unitofwork.UnitOfWork
	views  views.Store
	logger *zap.Logger
}

func NewHandlers(bus *messagebus.MessageBus, newUoW func() unitofwork.UnitOfWork, store views.Store, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		bus:    bus,
		newUoW: newUoW,
		views:  store,
		logger: logger,
	}
}

type addBatchRequest struct {
	Ref string  `json:"ref"`
	SKU string  `json:"sku"`
	Qty int     `json:"qty"`
	ETA *string `json:"eta"`
}

type changeQuantityRequest struct {
	Qty int `json:"qty"`
}

type orderLineRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (req orderLineRequest) validate() error {
	if req.OrderID == "" || req.SKU == "" {
		return errors.New("orderid and sku are required")
	}
	if req.Qty <= 0 {
		return errors.New("qty must be positive")
	}
	return nil
}

// Batch Handlers

func (h *Handlers) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req addBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Ref == "" || req.SKU == "" {
		respondError(w, "ref and sku are required", http.StatusBadRequest)
		return
	}
	if req.Qty < 0 {
		respondError(w, "qty must not be negative", http.StatusBadRequest)
		return
	}
	eta, err := parseETA(req.ETA)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := events.BatchCreated{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty, ETA: eta}
	if _, err := h.bus.Handle(r.Context(), event, h.newUoW()); err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"ref": req.Ref})
}

func (h *Handlers) ChangeBatchQuantity(w http.ResponseWriter, r *http.Request) {
	ref := extractPathParam(r.URL.Path, "/batches/")
	if ref == "" {
		respondError(w, "batch reference is required", http.StatusBadRequest)
		return
	}

	var req changeQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Qty < 0 {
		respondError(w, "qty must not be negative", http.StatusBadRequest)
		return
	}

	event := events.BatchQuantityChanged{Ref: ref, Qty: req.Qty}
	if _, err := h.bus.Handle(r.Context(), event, h.newUoW()); err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"ref": ref, "qty": req.Qty})
}

// Allocation Handlers

func (h *Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	var req orderLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := events.AllocationRequired{OrderRef: req.OrderID, SKU: req.SKU, Qty: req.Qty}
	results, err := h.bus.Handle(r.Context(), event, h.newUoW())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.logger.Info("allocation requested",
		zap.String("caller", middleware.GetSubject(r.Context())),
		zap.String("order", req.OrderID),
	)
	respondJSON(w, http.StatusCreated, map[string]any{"batchref": firstString(results)})
}

func (h *Handlers) Deallocate(w http.ResponseWriter, r *http.Request) {
	var req orderLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := events.DeallocationRequired{OrderRef: req.OrderID, SKU: req.SKU, Qty: req.Qty}
	if _, err := h.bus.Handle(r.Context(), event, h.newUoW()); err != nil {
		h.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Deallocated"})
}

func (h *Handlers) GetAllocations(w http.ResponseWriter, r *http.Request) {
	orderRef := extractPathParam(r.URL.Path, "/allocations/")
	if orderRef == "" {
		respondError(w, "order reference is required", http.StatusBadRequest)
		return
	}

	rows, err := h.views.Allocations(r.Context(), orderRef)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if len(rows) == 0 {
		respondError(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func (h *Handlers) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, handlers.ErrInvalidSKU), errors.Is(err, product.ErrOutOfStock):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, product.ErrBatchNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("request failed", zap.Error(err))
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

func parseETA(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	eta, err := time.Parse(time.DateOnly, *raw)
	if err != nil {
		return nil, errors.New("eta must be a date in YYYY-MM-DD form")
	}
	return &eta, nil
}

func firstString(results []any) string {
	for _, r := range results {
		if s, ok := r.(string); ok {
			return s
		}
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
