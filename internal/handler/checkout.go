package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/domain/address"
	"github.com/xenking/greenhouse/internal/domain/checkout"
	"github.com/xenking/greenhouse/internal/domain/order"
	"github.com/xenking/greenhouse/internal/domain/payment"
	"github.com/xenking/greenhouse/internal/domain/pricing"
	"github.com/xenking/greenhouse/internal/domain/product"
)

func (h *Handler) checkoutSummary(w http.ResponseWriter, r *http.Request) {
	items, err := h.Resolver.Resolve(r.Context(), h.shopperCart(r).List())
	if err != nil {
		writeInternal(w, r, errors.Wrap(err, "resolve cart"))
		return
	}
	summary := pricing.Compute(items)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range items {
			h.encodeLineItem(e, it)
		}
		e.ArrEnd()
		encodeSummary(e, summary)
		e.ObjEnd()
	})
}

type checkoutRequest struct {
	address *address.Address
	card    payment.Card
}

func decodeCheckout(w http.ResponseWriter, r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "shippingAddress":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.address = new(address.Address)
			return d.Obj(addressFields(req.address))
		case "card":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "cardNumber":
					req.card.Number, err = optStr(d)
				case "cardName":
					req.card.HolderName, err = optStr(d)
				case "expiryDate":
					req.card.Expiry, err = optStr(d)
				case "cvv":
					req.card.CVV, err = optStr(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

// checkout runs a whole session in one request. The address may be omitted
// when the profile already has one.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheckout(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	ctx := r.Context()
	p, _ := principalFrom(ctx)
	s := h.Checkout.NewSession(checkout.Shopper{UserID: p.UID, Email: p.Email}, h.shopperCart(r))

	if err := s.Begin(ctx); err != nil {
		mapCheckoutError(w, r, s, err)
		return
	}

	addr := req.address
	if addr == nil {
		addr = s.SavedAddress()
	}
	if addr == nil {
		addr = &address.Address{}
	}
	if err := s.SubmitAddress(ctx, *addr); err != nil {
		mapCheckoutError(w, r, s, err)
		return
	}
	if err := s.SubmitPayment(ctx, req.card); err != nil {
		mapCheckoutError(w, r, s, err)
		return
	}

	placed := s.Placed()
	location := h.confirmationPath + placed.OrderID
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("orderId")
		e.Str(placed.OrderID)
		e.FieldStart("orderNumber")
		e.Str(placed.OrderNumber)
		e.FieldStart("confirmationUrl")
		e.Str(location)
		e.ObjEnd()
	})
}

// mapCheckoutError maps session errors to responses. A session left in
// Failed means the order write did not happen and the cart is intact.
func mapCheckoutError(w http.ResponseWriter, r *http.Request, s *checkout.Session, err error) {
	var (
		addrErr *address.ValidationError
		cardErr *payment.MissingFieldsError
	)
	switch {
	case errors.As(err, &addrErr):
		writeFieldError(w, addrErr.Error(), addrErr.Missing)
	case errors.As(err, &cardErr):
		writeFieldError(w, cardErr.Error(), cardErr.Fields)
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, order.ErrNoPrincipal):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case s.State() == checkout.Failed:
		zctx.From(r.Context()).Error("Order write failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "order could not be placed")
	default:
		writeInternal(w, r, err)
	}
}

func (h *Handler) encodeLineItem(e *jx.Encoder, it product.LineItem) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(it.ProductID)
	e.FieldStart("title")
	e.Str(it.Title)
	e.FieldStart("price")
	money(e, it.Price)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("lineTotal")
	money(e, it.Total())
	e.FieldStart("imageUrl")
	e.Str(h.imageURL(it.ImageRef))
	e.ObjEnd()
}

// encodeSummary writes the pricing fields into the current object.
func encodeSummary(e *jx.Encoder, s pricing.Summary) {
	e.FieldStart("subtotal")
	money(e, s.Subtotal)
	e.FieldStart("shipping")
	money(e, s.Shipping)
	e.FieldStart("tax")
	money(e, s.Tax)
	e.FieldStart("total")
	money(e, s.Total)
	e.FieldStart("currency")
	e.Str(s.CurrencyCode())
}
