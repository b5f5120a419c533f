// Package handler serves the storefront JSON API on a chi router.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler translates HTTP requests into session service calls. Every
// session-scoped route expects the session middleware to have run.
type Handler struct {
	products     product.Repository
	sessions     *session.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	sessions *session.Service,
) *Handler {
	return &Handler{
		products:     products,
		sessions:     sessions,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts the API under /api. pay wraps only the payment endpoint,
// typically with a stricter rate limit.
func (h *Handler) Routes(r chi.Router, pay ...func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/product", h.ListProducts)
		r.Get("/product/{id}", h.GetProduct)
		r.Post("/product/{id}/quote", h.QuoteProduct)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Put("/cart/items/{lineID}", h.SetCartItemQuantity)
		r.Delete("/cart/items/{lineID}", h.RemoveCartItem)

		r.Get("/wishlist", h.GetWishlist)
		r.Delete("/wishlist", h.ClearWishlist)
		r.Post("/wishlist/items", h.AddWishlistItem)
		r.Delete("/wishlist/items/{productID}", h.RemoveWishlistItem)
		r.Post("/wishlist/items/{productID}/move", h.MoveWishlistItem)

		r.Get("/checkout", h.GetCheckout)
		r.Post("/checkout/shipping", h.SubmitShipping)
		r.Post("/checkout/payment-method", h.SelectPaymentMethod)
		r.With(pay...).Post("/checkout/pay", h.Pay)
		r.Post("/checkout/cancel", h.CancelCheckout)
		r.Post("/checkout/restart", h.RestartCheckout)

		r.Get("/order", h.ListOrders)
		r.Get("/order/{id}", h.GetOrder)
	})
}
