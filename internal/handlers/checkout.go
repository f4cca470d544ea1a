package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/northcart/commerce/internal/checkout"
	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/platform/auth"
	"github.com/northcart/commerce/internal/platform/httpx"
	"github.com/northcart/commerce/internal/repositories"
)

// CheckoutService drives the step flow for one request.
type CheckoutService interface {
	Start(ctx context.Context, state *checkout.State) (checkout.Navigation, error)
	Process(ctx context.Context, state *checkout.State) (checkout.Navigation, error)
	Advance(ctx context.Context, state *checkout.State) (checkout.Navigation, error)
	Complete(ctx context.Context, state *checkout.State) (checkout.Navigation, error)
}

type cartFinder interface {
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	FindByCustomer(ctx context.Context, customerID string) (domain.Cart, error)
}

type customerFinder interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
}

// CheckoutDeps wires the checkout HTTP surface.
type CheckoutDeps struct {
	Checkout  CheckoutService
	Carts     cartFinder
	Customers customerFinder

	// PlacementLimit caps completion attempts per customer per window. Zero
	// disables the limiter.
	PlacementLimit  int
	PlacementWindow time.Duration
	Clock           func() time.Time
}

// CheckoutHandlers exposes the checkout flow over HTTP.
type CheckoutHandlers struct {
	checkout  CheckoutService
	carts     cartFinder
	customers customerFinder
	limiter   rateLimiter
}

// NewCheckoutHandlers validates dependencies and constructs the handlers.
func NewCheckoutHandlers(deps CheckoutDeps) (*CheckoutHandlers, error) {
	if deps.Checkout == nil {
		return nil, errors.New("checkout handlers: checkout service is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("checkout handlers: cart finder is required")
	}
	return &CheckoutHandlers{
		checkout:  deps.Checkout,
		carts:     deps.Carts,
		customers: deps.Customers,
		limiter:   newSimpleRateLimiter(deps.PlacementLimit, deps.PlacementWindow, deps.Clock),
	}, nil
}

// Register mounts the checkout routes.
func (h *CheckoutHandlers) Register(r chi.Router) {
	r.Post("/start", h.Start)
	r.Post("/process", h.Process)
	r.Post("/advance", h.Advance)
	r.Post("/complete", h.Complete)
}

type routePayload struct {
	Area       string `json:"area,omitempty"`
	Controller string `json:"controller"`
	Action     string `json:"action"`
}

func (p *routePayload) toDomain() domain.Route {
	if p == nil {
		return domain.Route{}
	}
	return domain.Route{Area: p.Area, Controller: p.Controller, Action: p.Action}
}

type checkoutRequest struct {
	CartID    string            `json:"cartId,omitempty"`
	Route     *routePayload     `json:"route,omitempty"`
	Referrer  *routePayload     `json:"referrer,omitempty"`
	Form      map[string]string `json:"form,omitempty"`
	Selection map[string]any    `json:"selection,omitempty"`
}

type fieldErrorPayload struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type navigationResponse struct {
	Kind     string              `json:"kind"`
	Route    *routePayload       `json:"route,omitempty"`
	URL      string              `json:"url,omitempty"`
	OrderID  string              `json:"orderId,omitempty"`
	View     string              `json:"view,omitempty"`
	Errors   []fieldErrorPayload `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Start begins or resumes a checkout session.
func (h *CheckoutHandlers) Start(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.checkout.Start)
}

// Process submits the current step's form and selection data.
func (h *CheckoutHandlers) Process(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.checkout.Process)
}

// Advance moves past the current step without submitting data.
func (h *CheckoutHandlers) Advance(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.checkout.Advance)
}

// Complete confirms the order and triggers placement.
func (h *CheckoutHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		key := ""
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			key = identity.UID
		}
		if !h.limiter.Allow(key) {
			httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many placement attempts, slow down", http.StatusTooManyRequests))
			return
		}
	}
	h.run(w, r, h.checkout.Complete)
}

func (h *CheckoutHandlers) run(w http.ResponseWriter, r *http.Request, op func(context.Context, *checkout.State) (checkout.Navigation, error)) {
	ctx := r.Context()

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(ctx, w, "the request body must be valid JSON")
		return
	}

	state, err := h.buildState(ctx, req)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	nav, err := op(ctx, state)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNavigationResponse(nav))
}

// buildState resolves the customer and cart for the request. A missing cart
// is not an error: the orchestrator answers with a redirect to the cart page.
func (h *CheckoutHandlers) buildState(ctx context.Context, req checkoutRequest) (*checkout.State, error) {
	state := &checkout.State{
		Route:     req.Route.toDomain(),
		Form:      req.Form,
		Selection: req.Selection,
	}
	if req.Referrer != nil {
		referrer := req.Referrer.toDomain()
		state.Referrer = &referrer
	}

	customerID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		customerID = identity.UID
		customer, err := h.lookupCustomer(ctx, identity)
		if err != nil {
			return nil, err
		}
		state.Customer = customer
	}

	cart, found, err := h.lookupCart(ctx, req.CartID, customerID)
	if err != nil {
		return nil, err
	}
	if found {
		state.Cart = &cart
	}
	return state, nil
}

func (h *CheckoutHandlers) lookupCustomer(ctx context.Context, identity *auth.Identity) (*domain.Customer, error) {
	if h.customers == nil {
		return &domain.Customer{ID: identity.UID, Email: identity.Email, IsRegistered: true}, nil
	}
	customer, err := h.customers.FindByID(ctx, identity.UID)
	if err != nil {
		if isNotFound(err) {
			return &domain.Customer{ID: identity.UID, Email: identity.Email, IsRegistered: true}, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (h *CheckoutHandlers) lookupCart(ctx context.Context, cartID, customerID string) (domain.Cart, bool, error) {
	switch {
	case cartID != "":
		cart, err := h.carts.FindByID(ctx, cartID)
		if err != nil {
			if isNotFound(err) {
				return domain.Cart{}, false, nil
			}
			return domain.Cart{}, false, err
		}
		// A cart owned by another customer is invisible to this one.
		if cart.CustomerID != "" && cart.CustomerID != customerID {
			return domain.Cart{}, false, nil
		}
		return cart, true, nil
	case customerID != "":
		cart, err := h.carts.FindByCustomer(ctx, customerID)
		if err != nil {
			if isNotFound(err) {
				return domain.Cart{}, false, nil
			}
			return domain.Cart{}, false, err
		}
		return cart, true, nil
	default:
		return domain.Cart{}, false, nil
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func toNavigationResponse(nav checkout.Navigation) navigationResponse {
	resp := navigationResponse{
		Kind:     string(nav.Kind),
		URL:      nav.URL,
		OrderID:  nav.OrderID,
		View:     nav.View,
		Warnings: nav.Warnings,
	}
	if !nav.Route.IsZero() {
		resp.Route = &routePayload{Area: nav.Route.Area, Controller: nav.Route.Controller, Action: nav.Route.Action}
	}
	for _, fieldErr := range nav.Errors {
		resp.Errors = append(resp.Errors, fieldErrorPayload{Field: fieldErr.Field, Message: fieldErr.Message})
	}
	return resp
}
