package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/greenhouse/internal/domain/cart"
)

func (h *Handler) shopperCart(r *http.Request) *cart.Store {
	p, _ := principalFrom(r.Context())
	return h.Carts.Get(r.Context(), p.UID)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeCart(w, h.shopperCart(r).List())
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		quantity  = 1
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			productID, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	c := h.shopperCart(r)
	if err := c.Add(productID, quantity); err != nil {
		mapCartError(w, r, err)
		return
	}
	writeCart(w, c.List())
}

// setCartItem sets an absolute quantity; zero removes the entry.
func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	quantity := -1
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		quantity, err = d.Int()
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}
	if quantity < 0 {
		mapCartError(w, r, cart.ErrInvalidQuantity)
		return
	}

	c := h.shopperCart(r)
	c.SetQuantity(chi.URLParam(r, "id"), quantity)
	writeCart(w, c.List())
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c := h.shopperCart(r)
	c.Remove(chi.URLParam(r, "id"))
	writeCart(w, c.List())
}

func writeCart(w http.ResponseWriter, entries []cart.Entry) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		count := 0
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range entries {
			count += it.Quantity
			e.ObjStart()
			e.FieldStart("productId")
			e.Str(it.ProductID)
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("count")
		e.Int(count)
		e.ObjEnd()
	})
}

func mapCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeFieldError(w, err.Error(), []string{"quantity"})
	case errors.Is(err, cart.ErrEmptyProductID):
		writeFieldError(w, err.Error(), []string{"productId"})
	default:
		writeInternal(w, r, err)
	}
}
