package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openkpis/catalog-engine/pkg/auth"
)

type fakeAcquirer struct {
	err      error
	userID   string
	isEditor bool
	calls    []string
}

func (f *fakeAcquirer) WithUser(ctx context.Context, userID string, isEditor bool) (*Scope, error) {
	f.calls = append(f.calls, "WithUser")
	f.userID, f.isEditor = userID, isEditor
	if f.err != nil {
		return nil, f.err
	}
	return &Scope{}, nil
}

func (f *fakeAcquirer) WithoutUser(ctx context.Context) (*Scope, error) {
	f.calls = append(f.calls, "WithoutUser")
	if f.err != nil {
		return nil, f.err
	}
	return &Scope{}, nil
}

func scopeCheckHandler(t *testing.T, reached *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetScope(r.Context())
		assert.True(t, ok, "scope should be in context")
		*reached = true
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestWithUserScope_Anonymous(t *testing.T) {
	acq := &fakeAcquirer{}
	var reached bool

	rec := httptest.NewRecorder()
	WithUserScope(acq, zap.NewNop())(scopeCheckHandler(t, &reached))(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"WithoutUser"}, acq.calls)
}

func TestWithUserScope_AuthenticatedEditor(t *testing.T) {
	acq := &fakeAcquirer{}
	var reached bool

	claims := &auth.Claims{Roles: []string{"editor"}}
	claims.Subject = "carol"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), claims, "token"))

	rec := httptest.NewRecorder()
	WithUserScope(acq, zap.NewNop())(scopeCheckHandler(t, &reached))(rec, req)

	require.True(t, reached)
	assert.Equal(t, []string{"WithUser"}, acq.calls)
	assert.Equal(t, "carol", acq.userID)
	assert.True(t, acq.isEditor)
}

func TestWithUserScope_AcquireFailure(t *testing.T) {
	acq := &fakeAcquirer{err: errors.New("pool exhausted")}
	var reached bool

	rec := httptest.NewRecorder()
	WithUserScope(acq, zap.NewNop())(scopeCheckHandler(t, &reached))(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database_error")
}

func TestScope_CloseWithoutConnection(t *testing.T) {
	assert.NotPanics(t, func() { (&Scope{}).Close() })
}

func TestGetScope_Missing(t *testing.T) {
	_, ok := GetScope(context.Background())
	assert.False(t, ok)

	_, ok = GetScope(SetScope(context.Background(), nil))
	assert.False(t, ok)
}
