package auth

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/greenhouse/internal/docstore"
)

type ProviderSuite struct {
	suite.Suite

	store    *docstore.Memory
	provider *Provider
	clock    time.Time
	events   []*Principal
	ctx      context.Context
}

func TestProvider(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = docstore.NewMemory()
	s.provider = NewProvider(s.store, []byte("pepper"), time.Hour)
	s.provider.bcryptCost = bcrypt.MinCost
	s.clock = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s.provider.now = func() time.Time { return s.clock }
	s.events = nil
	s.provider.OnAuthStateChanged(func(p *Principal) { s.events = append(s.events, p) })
}

func (s *ProviderSuite) TestSignUpThenVerify() {
	sess, err := s.provider.SignUp(s.ctx, " Ivy@Example.com ", "correct horse", "Ivy")
	s.Require().NoError(err)
	s.NotEmpty(sess.Token)
	s.Equal("ivy@example.com", sess.Principal.Email)
	s.Equal(s.clock.Add(time.Hour), sess.ExpiresAt)

	p, err := s.provider.Verify(s.ctx, sess.Token)
	s.Require().NoError(err)
	s.Equal(sess.Principal, *p)

	s.Require().Len(s.events, 1)
	s.Equal(sess.Principal.UID, s.events[0].UID)
}

func (s *ProviderSuite) TestTokenIsStoredHashed() {
	sess, err := s.provider.SignUp(s.ctx, "moss@example.com", "password123", "")
	s.Require().NoError(err)

	var stored session
	s.Require().ErrorIs(s.store.Get(s.ctx, SessionsCollection, sess.Token, &stored), docstore.ErrNotFound)
	s.Require().NoError(s.store.Get(s.ctx, SessionsCollection, hashToken([]byte("pepper"), sess.Token), &stored))
	s.NotEqual(sess.Token, stored.TokenHash)
	s.Equal(sess.Principal.UID, stored.UserID)
}

func (s *ProviderSuite) TestSignUpValidation() {
	_, err := s.provider.SignUp(s.ctx, "not-an-email", "password123", "")
	s.ErrorIs(err, ErrInvalidEmail)

	_, err = s.provider.SignUp(s.ctx, "fern@example.com", "short", "")
	s.ErrorIs(err, ErrWeakPassword)

	_, err = s.provider.SignUp(s.ctx, "fern@example.com", "password123", "")
	s.Require().NoError(err)
	_, err = s.provider.SignUp(s.ctx, "FERN@example.com", "password456", "")
	s.ErrorIs(err, ErrEmailTaken)
}

func (s *ProviderSuite) TestSignIn() {
	created, err := s.provider.SignUp(s.ctx, "fern@example.com", "password123", "Fern")
	s.Require().NoError(err)

	sess, err := s.provider.SignIn(s.ctx, "fern@example.com", "password123")
	s.Require().NoError(err)
	s.Equal(created.Principal.UID, sess.Principal.UID)
	s.NotEqual(created.Token, sess.Token)

	_, err = s.provider.SignIn(s.ctx, "fern@example.com", "wrong-password")
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.provider.SignIn(s.ctx, "nobody@example.com", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ProviderSuite) TestFederatedCreatesOnce() {
	cred := FederatedCredential{Provider: "google", Subject: "10987", Email: "leaf@example.com", DisplayName: "Leaf"}

	first, err := s.provider.SignInFederated(s.ctx, cred)
	s.Require().NoError(err)
	second, err := s.provider.SignInFederated(s.ctx, cred)
	s.Require().NoError(err)
	s.Equal(first.Principal.UID, second.Principal.UID)

	snaps, err := s.store.Find(s.ctx, UsersCollection, docstore.Query{})
	s.Require().NoError(err)
	s.Len(snaps, 1)

	_, err = s.provider.SignIn(s.ctx, "leaf@example.com", "anything-at-all")
	s.ErrorIs(err, ErrInvalidCredentials, "federated users have no password")

	_, err = s.provider.SignInFederated(s.ctx, FederatedCredential{Provider: "google"})
	s.ErrorIs(err, ErrInvalidFederated)
}

func (s *ProviderSuite) TestExpiredToken() {
	sess, err := s.provider.SignUp(s.ctx, "fern@example.com", "password123", "")
	s.Require().NoError(err)

	s.clock = s.clock.Add(time.Hour)
	_, err = s.provider.Verify(s.ctx, sess.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ProviderSuite) TestSignOut() {
	sess, err := s.provider.SignUp(s.ctx, "fern@example.com", "password123", "")
	s.Require().NoError(err)

	s.Require().NoError(s.provider.SignOut(s.ctx, sess.Token))
	_, err = s.provider.Verify(s.ctx, sess.Token)
	s.ErrorIs(err, ErrInvalidToken)

	s.Require().Len(s.events, 2)
	s.Nil(s.events[1])

	s.Require().NoError(s.provider.SignOut(s.ctx, sess.Token), "second sign-out is a no-op")
	s.Len(s.events, 2)
}

func (s *ProviderSuite) TestVerifyRejectsGarbage() {
	_, err := s.provider.Verify(s.ctx, "")
	s.ErrorIs(err, ErrInvalidToken)
	_, err = s.provider.Verify(s.ctx, gofakeit.New(7).LetterN(43))
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ProviderSuite) TestSignUpKeepsMergedAddress() {
	sess, err := s.provider.SignUp(s.ctx, "fern@example.com", "password123", "")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Merge(s.ctx, UsersCollection, sess.Principal.UID, map[string]any{
		"shippingAddress": map[string]string{"city": "Eugene"},
	}))

	_, err = s.provider.SignIn(s.ctx, "fern@example.com", "password123")
	s.Require().NoError(err)

	var raw map[string]any
	s.Require().NoError(s.store.Get(s.ctx, UsersCollection, sess.Principal.UID, &raw))
	s.Equal(map[string]any{"city": "Eugene"}, raw["shippingAddress"])
}

func TestUnsubscribe(t *testing.T) {
	p := NewProvider(docstore.NewMemory(), []byte("pepper"), 0)
	p.bcryptCost = bcrypt.MinCost
	calls := 0
	unsubscribe := p.OnAuthStateChanged(func(*Principal) { calls++ })
	unsubscribe()

	_, err := p.SignUp(context.Background(), "fern@example.com", "password123", "")
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, DefaultSessionTTL, p.ttl)
}

func TestSameHash(t *testing.T) {
	h := hashToken([]byte("k"), "token")
	assert.True(t, sameHash(h, h))
	assert.False(t, sameHash(h, hashToken([]byte("k"), "other")))
	assert.False(t, sameHash(h, "zz"))
}
