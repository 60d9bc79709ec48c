package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
	"github.com/feirasmart/marketplace/internal/service/order"
)

type orderHandler struct {
	svc    *order.Service
	logger *log.Entry
}

// createOrderRequest повторяет исторический wire-формат клиентов ярмарки.
type createOrderRequest struct {
	VendorID string             `json:"feirante_id"`
	MarketID string             `json:"feira_id"`
	Items    []orderItemRequest `json:"itens"`
	Note     string             `json:"observacoes"`
}

type orderItemRequest struct {
	ProductID string          `json:"produto_id"`
	Name      string          `json:"nome_produto"`
	Qty       int32           `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"preco"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"cliente_id"`
	VendorID   string              `json:"feirante_id"`
	MarketID   string              `json:"feira_id"`
	Status     string              `json:"status"`
	Total      decimal.Decimal     `json:"total"`
	Note       string              `json:"observacoes,omitempty"`
	Items      []orderItemResponse `json:"itens"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"produto_id"`
	Name      string          `json:"nome_produto"`
	Qty       int32           `json:"quantidade"`
	UnitPrice decimal.Decimal `json:"preco"`
}

func (h *orderHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	items := make([]order.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.ItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}

	created, err := h.svc.CreateOrder(r.Context(), actor, order.CreateOrderInput{
		VendorID: req.VendorID,
		MarketID: req.MarketID,
		Items:    items,
		Note:     req.Note,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *orderHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *orderHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	got, err := h.svc.GetOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(got))
}

func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), actor, chi.URLParam(r, "orderID"), status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func (h *orderHandler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("internal error")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}

	return orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		VendorID:   o.VendorID,
		MarketID:   o.MarketID,
		Status:     string(o.Status),
		Total:      o.Total,
		Note:       o.Note,
		Items:      items,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}
