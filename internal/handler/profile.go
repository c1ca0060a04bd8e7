package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/greenhouse/internal/domain/address"
)

func (h *Handler) getAddress(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	addr, err := h.Addresses.Load(r.Context(), p.UID)
	if err != nil {
		mapAddressError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("shippingAddress")
		if addr == nil {
			e.Null()
		} else {
			encodeAddress(e, *addr)
		}
		e.ObjEnd()
	})
}

func (h *Handler) putAddress(w http.ResponseWriter, r *http.Request) {
	var addr address.Address
	if err := decodeObject(w, r, addressFields(&addr)); err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	p, _ := principalFrom(r.Context())
	if err := h.Addresses.Save(r.Context(), p.UID, addr); err != nil {
		mapAddressError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("shippingAddress")
		encodeAddress(e, addr)
		e.ObjEnd()
	})
}

func addressFields(addr *address.Address) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "addressLine1":
			addr.AddressLine1, err = optStr(d)
		case "addressLine2":
			addr.AddressLine2, err = optStr(d)
		case "city":
			addr.City, err = optStr(d)
		case "state":
			addr.State, err = optStr(d)
		case "postalCode":
			addr.PostalCode, err = optStr(d)
		case "country":
			addr.Country, err = optStr(d)
		case "phone":
			addr.Phone, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	}
}

func encodeAddress(e *jx.Encoder, a address.Address) {
	e.ObjStart()
	for _, f := range []struct{ k, v string }{
		{"addressLine1", a.AddressLine1},
		{"addressLine2", a.AddressLine2},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
}

func mapAddressError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *address.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeFieldError(w, vErr.Error(), vErr.Missing)
	case errors.Is(err, address.ErrNoPrincipal):
		writeError(w, http.StatusUnauthorized, "authentication required")
	default:
		writeInternal(w, r, err)
	}
}
