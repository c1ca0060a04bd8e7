package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greenhouse/internal/domain/auth"
)

const federationSecretHeader = "X-Federation-Secret"

type principalKey struct{}

func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireAuth resolves the bearer token to a principal or answers 401.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.Identity.Verify(r.Context(), bearerToken(r))
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		case err != nil:
			writeInternal(w, r, errors.Wrap(err, "verify token"))
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, *p)
		ctx = zctx.With(ctx, zap.String("uid", p.UID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var email, password, displayName string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		case "displayName":
			displayName, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	s, err := h.Identity.SignUp(r.Context(), email, password, displayName)
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	writeSession(w, http.StatusCreated, s)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var email, password string
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	s, err := h.Identity.SignIn(r.Context(), email, password)
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, s)
}

// signInFederated accepts a credential already verified by the sign-in
// gateway, which proves itself with the shared federation secret.
func (h *Handler) signInFederated(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(federationSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.federationSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var cred auth.FederatedCredential
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "provider":
			cred.Provider, err = d.Str()
		case "subject":
			cred.Subject, err = d.Str()
		case "email":
			cred.Email, err = d.Str()
		case "displayName":
			cred.DisplayName, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadBody.Error())
		return
	}

	s, err := h.Identity.SignInFederated(r.Context(), cred)
	if err != nil {
		mapAuthError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, s)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Identity.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSession(w http.ResponseWriter, status int, s *auth.Session) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(s.Token)
		e.FieldStart("expiresAt")
		timestamp(e, s.ExpiresAt)
		e.FieldStart("user")
		e.ObjStart()
		e.FieldStart("uid")
		e.Str(s.Principal.UID)
		e.FieldStart("email")
		e.Str(s.Principal.Email)
		e.FieldStart("displayName")
		e.Str(s.Principal.DisplayName)
		e.ObjEnd()
		e.ObjEnd()
	})
}

func mapAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		writeFieldError(w, err.Error(), []string{"email"})
	case errors.Is(err, auth.ErrWeakPassword):
		writeFieldError(w, err.Error(), []string{"password"})
	case errors.Is(err, auth.ErrInvalidFederated):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeInternal(w, r, err)
	}
}
