package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// badRequestError reports a malformed request body or parameter.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &badRequestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func sessionID(r *http.Request) string {
	return httpmiddleware.SessionFromContext(r.Context())
}

func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// writeError maps domain errors onto HTTP responses. Unknown errors are
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, errorResponse) {
	respond := func(status int, msg string) (int, errorResponse) {
		return status, errorResponse{Code: status, Message: msg}
	}

	var (
		badReq    *badRequestError
		invalid   *checkout.ValidationError
		config    *order.ConfigurationError
		payment   *checkout.PaymentFailure
		dims      *pricing.InvalidDimensionsError
		selection *pricing.MissingSelectionError
		option    *pricing.UnknownOptionError
		policy    *pricing.InvalidPolicyError
	)
	switch {
	case errors.As(err, &badReq):
		return respond(http.StatusBadRequest, badReq.msg)
	case errors.Is(err, session.ErrMissingSession):
		return respond(http.StatusBadRequest, err.Error())

	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: "validation failed",
			Fields:  invalid.Fields,
		}
	case errors.As(err, &dims):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: dims.Error(),
			Fields:  map[string]string{dims.Field: dims.Reason},
		}
	case errors.As(err, &selection):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: selection.Error(),
			Fields:  map[string]string{selection.Field: "is required"},
		}
	case errors.As(err, &option):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: option.Error(),
			Fields:  map[string]string{"media": "is not offered"},
		}
	case errors.Is(err, session.ErrOutOfStock),
		errors.Is(err, session.ErrUnavailable),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, cart.ErrMissingProduct),
		errors.Is(err, order.ErrUnknownMethod):
		return respond(http.StatusUnprocessableEntity, err.Error())

	case errors.As(err, &payment):
		return respond(http.StatusPaymentRequired, payment.Reason)

	case errors.As(err, &config):
		return respond(http.StatusConflict, config.Error())
	case errors.Is(err, checkout.ErrPaymentInFlight),
		errors.Is(err, checkout.ErrIllegalTransition),
		errors.Is(err, checkout.ErrTerminal):
		return respond(http.StatusConflict, err.Error())

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, session.ErrLineNotFound),
		errors.Is(err, session.ErrNotInWishlist):
		return respond(http.StatusNotFound, err.Error())

	case errors.As(err, &policy):
		return respond(http.StatusInternalServerError, "product is misconfigured")
	default:
		return respond(http.StatusInternalServerError, "internal error")
	}
}
