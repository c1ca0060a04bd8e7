// Package handler exposes the storefront over JSON/HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/greenhouse/internal/domain/auth"
	"github.com/xenking/greenhouse/internal/domain/cart"
	"github.com/xenking/greenhouse/internal/domain/checkout"
	"github.com/xenking/greenhouse/internal/domain/order"
	"github.com/xenking/greenhouse/internal/domain/product"
)

// Config holds non-dependency settings for the Handler.
type Config struct {
	// ImageBaseURL is prepended to product image references.
	ImageBaseURL string
	// ConfirmationPath prefixes the order id in checkout redirects.
	ConfirmationPath string
	// FederationSecret authorizes the gateway that completed an external
	// sign-in. Empty disables /api/auth/federated.
	FederationSecret string
}

// Catalog reads products.
type Catalog interface {
	List(ctx context.Context, category string) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
}

// Identity authenticates shoppers.
type Identity interface {
	SignUp(ctx context.Context, email, password, displayName string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignInFederated(ctx context.Context, cred auth.FederatedCredential) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*auth.Principal, error)
}

// Carts hands out the cart of a shopper.
type Carts interface {
	Get(ctx context.Context, userID string) *cart.Store
}

// OrderHistory lists past orders.
type OrderHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]order.Stored, error)
}

// Deps are the domain services the handler delegates to.
type Deps struct {
	Catalog   Catalog
	Resolver  checkout.Resolver
	Addresses checkout.AddressBook
	Checkout  *checkout.Service
	Orders    OrderHistory
	Carts     Carts
	Identity  Identity
}

// Handler serves the storefront API.
type Handler struct {
	Deps
	imageBaseURL     string
	confirmationPath string
	federationSecret string
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.ConfirmationPath == "" {
		cfg.ConfirmationPath = "/order-confirmation/"
	}
	return &Handler{
		Deps:             deps,
		imageBaseURL:     cfg.ImageBaseURL,
		confirmationPath: cfg.ConfirmationPath,
		federationSecret: cfg.FederationSecret,
	}
}

// Routes returns the /api router. Middlewares run inside the router so they
// see the matched route pattern.
func (h *Handler) Routes(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Post("/auth/signup", h.signUp)
		r.Post("/auth/signin", h.signIn)
		if h.federationSecret != "" {
			r.Post("/auth/federated", h.signInFederated)
		}

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/auth/signout", h.signOut)

			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addCartItem)
			r.Put("/cart/items/{id}", h.setCartItem)
			r.Delete("/cart/items/{id}", h.removeCartItem)

			r.Get("/profile/address", h.getAddress)
			r.Put("/profile/address", h.putAddress)

			r.Get("/checkout/summary", h.checkoutSummary)
			r.Post("/checkout", h.checkout)

			r.Get("/orders", h.listOrders)
		})
	})
	return r
}
