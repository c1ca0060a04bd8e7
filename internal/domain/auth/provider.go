package auth

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/greenhouse/internal/docstore"
)

// DefaultSessionTTL is used when the provider is created without a TTL.
const DefaultSessionTTL = 7 * 24 * time.Hour

const minPasswordLen = 8

// StateListener is called with the signed-in principal, or nil on sign-out.
type StateListener func(p *Principal)

type listener struct {
	id uint64
	fn StateListener
}

// Provider authenticates shoppers and issues session tokens.
type Provider struct {
	store      docstore.Store
	pepper     []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time

	mu        sync.Mutex
	listeners []listener
	nextID    uint64
}

// NewProvider creates a Provider. pepper keys the HMAC applied to tokens
// before they are stored.
func NewProvider(store docstore.Store, pepper []byte, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Provider{
		store:      store,
		pepper:     pepper,
		ttl:        ttl,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// OnAuthStateChanged registers fn and returns a function that removes it.
func (p *Provider) OnAuthStateChanged(fn StateListener) (unsubscribe func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listeners = slices.DeleteFunc(p.listeners, func(l listener) bool { return l.id == id })
	}
}

// SignUp registers a password user and signs them in.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	if _, _, err := p.findUser(ctx, "email", email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := user{
		Email:        email,
		DisplayName:  displayName,
		Provider:     ProviderPassword,
		PasswordHash: string(hash),
		CreatedAt:    p.now(),
	}
	uid, err := p.store.Create(ctx, UsersCollection, u)
	if err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return p.startSession(ctx, uid, u)
}

// SignIn checks a password and starts a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	uid, u, err := p.findUser(ctx, "email", email)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.startSession(ctx, uid, *u)
}

// SignInFederated signs in with a verified external credential, creating
// the user on first use.
func (p *Provider) SignInFederated(ctx context.Context, cred FederatedCredential) (*Session, error) {
	if cred.Provider == "" || cred.Subject == "" || cred.Email == "" {
		return nil, ErrInvalidFederated
	}
	email, err := normalizeEmail(cred.Email)
	if err != nil {
		return nil, err
	}

	subject := cred.Provider + ":" + cred.Subject
	uid, u, err := p.findUser(ctx, "federatedSubject", subject)
	switch {
	case err == nil:
		return p.startSession(ctx, uid, *u)
	case !errors.Is(err, docstore.ErrNotFound):
		return nil, err
	}

	nu := user{
		Email:            email,
		DisplayName:      cred.DisplayName,
		Provider:         cred.Provider,
		FederatedSubject: subject,
		CreatedAt:        p.now(),
	}
	uid, err = p.store.Create(ctx, UsersCollection, nu)
	if err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return p.startSession(ctx, uid, nu)
}

// Verify resolves a bearer token to its principal.
func (p *Provider) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	hash := hashToken(p.pepper, token)

	var s session
	if err := p.store.Get(ctx, SessionsCollection, hash, &s); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "load session")
	}
	if !sameHash(hash, s.TokenHash) || !p.now().Before(s.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var u user
	if err := p.store.Get(ctx, UsersCollection, s.UserID, &u); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "load user")
	}
	return &Principal{UID: s.UserID, Email: u.Email, DisplayName: u.DisplayName}, nil
}

// SignOut revokes token. Unknown tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	err := p.store.Delete(ctx, SessionsCollection, hashToken(p.pepper, token))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	p.notify(nil)
	return nil
}

func (p *Provider) startSession(ctx context.Context, uid string, u user) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}

	now := p.now()
	s := session{
		TokenHash: hashToken(p.pepper, token),
		UserID:    uid,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}
	if err := p.store.Put(ctx, SessionsCollection, s.TokenHash, s); err != nil {
		return nil, errors.Wrap(err, "store session")
	}

	principal := Principal{UID: uid, Email: u.Email, DisplayName: u.DisplayName}
	p.notify(&principal)
	return &Session{Token: token, Principal: principal, ExpiresAt: s.ExpiresAt}, nil
}

func (p *Provider) findUser(ctx context.Context, field, value string) (string, *user, error) {
	snaps, err := p.store.Find(ctx, UsersCollection, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(field, docstore.OpEq, value)},
		Limit:   1,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, "find user")
	}
	if len(snaps) == 0 {
		return "", nil, docstore.ErrNotFound
	}

	var u user
	if err := snaps[0].Decode(&u); err != nil {
		return "", nil, errors.Wrap(err, "decode user")
	}
	return snaps[0].ID, &u, nil
}

func (p *Provider) notify(principal *Principal) {
	p.mu.Lock()
	ls := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, l := range ls {
		l.fn(principal)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
