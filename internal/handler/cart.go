package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
)

// GetCart returns the cart with a totals preview. The optional method query
// parameter previews totals for a payment method other than the selected one.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	var method order.PaymentMethod
	if raw := r.URL.Query().Get("method"); raw != "" {
		m, err := order.ParsePaymentMethod(raw)
		if err != nil {
			writeError(w, r, &checkout.ValidationError{Fields: map[string]string{"method": "is invalid"}})
			return
		}
		method = m
	}

	v, err := h.sessions.Cart(r.Context(), sessionID(r), method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, &checkout.ValidationError{Fields: map[string]string{"product_id": "is required"}})
		return
	}

	v, err := h.sessions.AddToCart(r.Context(), sessionID(r), req.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}

// SetCartItemQuantity replaces a line quantity; zero or less removes it and
// values above the line bound are clamped.
func (h *Handler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, &checkout.ValidationError{Fields: map[string]string{"quantity": "is required"}})
		return
	}

	v, err := h.sessions.SetCartQuantity(r.Context(), sessionID(r), pathParam(r, "lineID"), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.RemoveFromCart(r.Context(), sessionID(r), pathParam(r, "lineID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.ClearCart(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}
