package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
)

var secret = []byte("test-secret")

func TestIssueParseVerify(t *testing.T) {
	user := domain.User{ID: "u1", Name: "Karen", Email: "karen@example.dk", Roles: []domain.Role{domain.RoleSeller}}
	token, err := Issue(user, "sess-1", time.Hour, secret)
	require.NoError(t, err)

	parsed, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, "sess-1", parsed.SessionID)
	assert.Equal(t, user, parsed.User())
	assert.False(t, parsed.Expired(time.Now()))
	assert.True(t, parsed.Expired(time.Now().Add(2*time.Hour)))

	verified, err := Verify(token, secret)
	require.NoError(t, err)
	assert.Equal(t, parsed.UserID, verified.UserID)

	_, err = Verify(token, []byte("other"))
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-jwt")
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))

	_, err = Parse("  ")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := Issue(domain.User{ID: "u1"}, "s", -time.Minute, secret)
	require.NoError(t, err)
	_, err = Verify(token, secret)
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "session"))

	_, err := store.Load(time.Now())
	assert.ErrorIs(t, err, ErrNoSession)

	token, err := Issue(domain.User{ID: "u1"}, "s", time.Hour, secret)
	require.NoError(t, err)
	_, err = store.Save(token)
	require.NoError(t, err)

	loaded, err := store.Load(time.Now())
	require.NoError(t, err)
	assert.Equal(t, token, loaded.Token)

	_, err = store.Load(time.Now().Add(2 * time.Hour))
	assert.True(t, apperr.Is(err, apperr.TypeAuthentication))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load(time.Now())
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = store.Save("garbage")
	assert.Error(t, err)
}
