package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// ListProducts returns the active catalog. Draft products are hidden;
// sold-out products are listed with in_stock=false.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		if p.Status != product.StatusActive {
			continue
		}
		out = append(out, h.toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.Status != product.StatusActive {
		writeError(w, r, product.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

// QuoteProduct prices a product for the given dimensions and media. Inputs
// that cannot be priced still yield 200 with the flat price and an error
// message, so forms can render a placeholder while the shopper types.
func (h *Handler) QuoteProduct(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.sessions.Quote(r.Context(), pathParam(r, "id"),
		string(req.Width), string(req.Height), req.Media)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(q))
}
