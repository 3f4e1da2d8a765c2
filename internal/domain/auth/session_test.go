package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions map[string]Session

func (m memSessions) FindByHash(_ context.Context, hash string) (*Session, error) {
	s, ok := m[hash]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &s, nil
}

func (m memSessions) Create(_ context.Context, s Session) error {
	m[s.KeyHash] = s
	return nil
}

func TestAuthenticate(t *testing.T) {
	store := memSessions{}
	a := NewAuthenticator(store, []byte("pepper"))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	require.NoError(t, store.Create(context.Background(), Session{UserID: "u1", Role: RoleCustomer, KeyHash: a.Hash("tok-1")}))
	require.NoError(t, store.Create(context.Background(), Session{UserID: "u2", Role: RoleAdmin, KeyHash: a.Hash("tok-2"), ExpiresAt: &future}))
	require.NoError(t, store.Create(context.Background(), Session{UserID: "u3", KeyHash: a.Hash("tok-3"), ExpiresAt: &past}))

	tests := []struct {
		token    string
		wantUser string
		wantErr  bool
	}{
		{token: "tok-1", wantUser: "u1"},
		{token: "tok-2", wantUser: "u2"},
		{token: "tok-3", wantErr: true},
		{token: "unknown", wantErr: true},
		{token: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			s, err := a.Authenticate(context.Background(), tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, s.UserID)
		})
	}
}

type brokenSessions struct{ err error }

func (b brokenSessions) FindByHash(context.Context, string) (*Session, error) { return nil, b.err }
func (b brokenSessions) Create(context.Context, Session) error            { return b.err }

func TestAuthenticate_StorageErrorIsNotUnauthorized(t *testing.T) {
	errDown := errors.New("connection refused")
	a := NewAuthenticator(brokenSessions{err: errDown}, []byte("pepper"))

	_, err := a.Authenticate(context.Background(), "tok-1")
	require.ErrorIs(t, err, errDown)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestHash_DependsOnPepper(t *testing.T) {
	a := NewAuthenticator(memSessions{}, []byte("a"))
	b := NewAuthenticator(memSessions{}, []byte("b"))

	assert.Len(t, a.Hash("tok"), 64)
	assert.Equal(t, a.Hash("tok"), a.Hash("tok"))
	assert.NotEqual(t, a.Hash("tok"), b.Hash("tok"))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), &Session{UserID: "u1", Role: RoleAdmin})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.Admin())
}
