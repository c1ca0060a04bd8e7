package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/greenhouse/internal/domain/order"
)

const maxOrdersPage = 100

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeFieldError(w, "limit must be a positive integer", []string{"limit"})
			return
		}
		limit = min(n, maxOrdersPage)
	}

	p, _ := principalFrom(r.Context())
	orders, err := h.Orders.ListByUser(r.Context(), p.UID, limit)
	if err != nil {
		if errors.Is(err, order.ErrNoPrincipal) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		writeInternal(w, r, errors.Wrap(err, "list orders"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range orders {
			encodeOrder(e, o)
		}
		e.ArrEnd()
	})
}

func encodeOrder(e *jx.Encoder, o order.Stored) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.OrderNumber)
	e.FieldStart("orderDate")
	timestamp(e, o.OrderDate)
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("paymentStatus")
	e.Str(o.PaymentStatus)
	e.FieldStart("grandTotal")
	e.Float64(o.Pricing.GrandTotal)
	e.FieldStart("currency")
	e.Str(o.Pricing.Currency)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
