package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/session"
)

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.Checkout(r.Context(), sessionID(r))
	h.respondCheckout(w, r, v, err)
}

func (h *Handler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var info order.ShippingInfo
	if err := decodeJSON(w, r, &info, false); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.sessions.SubmitShipping(r.Context(), sessionID(r), info)
	h.respondCheckout(w, r, v, err)
}

func (h *Handler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.sessions.SelectPayment(r.Context(), sessionID(r), req.Method)
	h.respondCheckout(w, r, v, err)
}

// Pay charges the frozen total and returns the confirmed order. Declines
// and reverted payments answer 402 and leave the checkout retriable.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	o, err := h.sessions.Pay(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/order/"+o.ID)
	writeJSON(w, http.StatusCreated, h.toOrderResponse(o))
}

func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.CancelCheckout(r.Context(), sessionID(r))
	h.respondCheckout(w, r, v, err)
}

func (h *Handler) RestartCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.RestartCheckout(r.Context(), sessionID(r))
	h.respondCheckout(w, r, v, err)
}

func (h *Handler) respondCheckout(w http.ResponseWriter, r *http.Request, v session.CheckoutView, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckoutResponse(v))
}
