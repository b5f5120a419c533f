package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/checkout"
)

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sessions.Wishlist(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlistResponse(entries))
}

// AddWishlistItem saves a product. Saving it again is a no-op reported with
// added=false and status 200; a new entry yields 201.
func (h *Handler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req wishlistItemRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, &checkout.ValidationError{Fields: map[string]string{"product_id": "is required"}})
		return
	}

	entries, added, err := h.sessions.AddToWishlist(r.Context(), sessionID(r), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := h.toWishlistResponse(entries)
	resp.Added = &added
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (h *Handler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sessions.RemoveFromWishlist(r.Context(), sessionID(r), pathParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWishlistResponse(entries))
}

// MoveWishlistItem adds a saved product to the cart. The optional body
// carries quantity and, for custom-priced products, dimensions and media.
func (h *Handler) MoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.sessions.MoveWishlistToCart(r.Context(), sessionID(r), pathParam(r, "productID"), req.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(v))
}

func (h *Handler) ClearWishlist(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearWishlist(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
