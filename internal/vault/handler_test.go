package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dnelles/task-tracker/internal/google"
	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]TokenRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]TokenRecord)}
}

func (m *memStore) Upsert(_ context.Context, rec TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.UID] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, uid string) (*TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[uid]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, uid)
	return nil
}

// passthroughVerifier treats the bearer token itself as the uid.
type passthroughVerifier struct{}

func (passthroughVerifier) Verify(token string) (string, error) {
	return token, nil
}

// fakeProvider is a stand-in Google: /token answers the code exchange and
// refresh grant, /revoke counts revocations.
type fakeProvider struct {
	mu            sync.Mutex
	tokenStatus   int
	tokenResponse map[string]any
	revokeStatus  int
	revokeCalls   int
	lastTokenForm url.Values
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.lastTokenForm = r.PostForm
		status, resp := f.tokenStatus, f.tokenResponse
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.revokeCalls++
		status := f.revokeStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	return mux
}

type testEnv struct {
	router *gin.Engine
	store  *memStore
	states *StateSigner
	fake   *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &fakeProvider{
		tokenStatus:  http.StatusOK,
		revokeStatus: http.StatusOK,
		tokenResponse: map[string]any{
			"access_token":  "at1",
			"refresh_token": "rt1",
			"expires_in":    3600,
			"token_type":    "Bearer",
		},
	}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	provider := google.NewWithEndpoint("cid", "csec", oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, srv.URL+"/revoke")

	store := newMemStore()
	states := NewStateSigner("state-secret", 5*time.Minute, newMemNonces())
	handler := NewHandler(provider, store, states, "/")

	router := gin.New()
	requireAuth := middleware.GinRequireAuth(middleware.NewAuthMiddleware(passthroughVerifier{}))
	handler.RegisterRoutes(router, requireAuth)

	return &testEnv{
		router: router,
		store:  store,
		states: states,
		fake:   fake,
	}
}

func (e *testEnv) do(method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) issueState(t *testing.T, uid string) string {
	t.Helper()
	state, err := e.states.Issue(context.Background(), uid)
	require.NoError(t, err)
	return state
}

func TestStart_MissingUID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/start", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing uid", rec.Body.String())
}

func TestStart_RedirectCarriesOfflineConsentAndState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/start?uid=u1", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()

	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Contains(t, q.Get("scope"), "auth/tasks")
	assert.True(t, strings.HasSuffix(q.Get("redirect_uri"), "/google/callback"))

	// The state is opaque but must bind back to the uid it was issued for.
	uid, err := env.states.Redeem(context.Background(), q.Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestCallback_MissingParams(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/callback?code=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing code or state", rec.Body.String())

	rec = env.do(http.MethodGet, "/google/callback?state=zzz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_ForgedState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/callback?code=abc&state=u1", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid state", rec.Body.String())
}

func TestCallback_PersistsTokenAndRedirectsConnected(t *testing.T) {
	env := newTestEnv(t)
	state := env.issueState(t, "u1")

	rec := env.do(http.MethodGet, "/google/callback?code=abc&state="+url.QueryEscape(state), "")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?google=connected", rec.Header().Get("Location"))

	stored, err := env.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rt1", stored.RefreshToken)
	assert.Equal(t, "tasks", stored.Provider)

	env.fake.mu.Lock()
	defer env.fake.mu.Unlock()
	assert.Equal(t, "authorization_code", env.fake.lastTokenForm.Get("grant_type"))
	assert.Equal(t, "abc", env.fake.lastTokenForm.Get("code"))
}

func TestCallback_NoRefreshToken_NeedsConsent(t *testing.T) {
	env := newTestEnv(t)
	env.fake.tokenResponse = map[string]any{
		"access_token": "at1",
		"expires_in":   3600,
		"token_type":   "Bearer",
	}
	state := env.issueState(t, "u1")

	rec := env.do(http.MethodGet, "/google/callback?code=abc&state="+url.QueryEscape(state), "")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?google=needs_consent", rec.Header().Get("Location"))

	stored, err := env.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, stored, "nothing may be persisted without a refresh token")
}

func TestCallback_ExchangeFailed(t *testing.T) {
	env := newTestEnv(t)
	env.fake.tokenStatus = http.StatusBadRequest
	env.fake.tokenResponse = map[string]any{"error": "invalid_grant"}
	state := env.issueState(t, "u1")

	rec := env.do(http.MethodGet, "/google/callback?code=abc&state="+url.QueryEscape(state), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestStatus_BeforeAndAfterConnect(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/status", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":false}`, rec.Body.String())

	state := env.issueState(t, "u1")
	env.do(http.MethodGet, "/google/callback?code=abc&state="+url.QueryEscape(state), "")

	rec = env.do(http.MethodGet, "/google/status", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":true}`, rec.Body.String())
}

func TestStatus_RequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/google/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_NotConnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/google/refresh", "u1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not connected", rec.Body.String())
}

func TestRefresh_ReturnsAccessTokenWithoutPersistingIt(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Upsert(context.Background(), TokenRecord{
		UID:          "u1",
		Provider:     "tasks",
		RefreshToken: "rt1",
		CreatedAt:    time.Now(),
	}))

	rec := env.do(http.MethodPost, "/google/refresh", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"access_token":"at1","expires_in":3600}`, rec.Body.String())

	env.fake.mu.Lock()
	assert.Equal(t, "refresh_token", env.fake.lastTokenForm.Get("grant_type"))
	assert.Equal(t, "rt1", env.fake.lastTokenForm.Get("refresh_token"))
	env.fake.mu.Unlock()

	// The record still holds only the refresh token.
	stored, err := env.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rt1", stored.RefreshToken)
}

func TestRefresh_ProviderRejection(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Upsert(context.Background(), TokenRecord{
		UID: "u1", Provider: "tasks", RefreshToken: "revoked", CreatedAt: time.Now(),
	}))
	env.fake.tokenStatus = http.StatusBadRequest
	env.fake.tokenResponse = map[string]any{"error": "invalid_grant"}

	rec := env.do(http.MethodPost, "/google/refresh", "u1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestRevoke_IdempotentWhenNotConnected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/google/revoke", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	env.fake.mu.Lock()
	assert.Zero(t, env.fake.revokeCalls)
	env.fake.mu.Unlock()
}

func TestRevoke_DeletesRecordAndCallsProvider(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Upsert(context.Background(), TokenRecord{
		UID: "u1", Provider: "tasks", RefreshToken: "rt1", CreatedAt: time.Now(),
	}))

	rec := env.do(http.MethodPost, "/google/revoke", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	env.fake.mu.Lock()
	assert.Equal(t, 1, env.fake.revokeCalls)
	env.fake.mu.Unlock()

	stored, err := env.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Disconnected from here on.
	statusRec := env.do(http.MethodGet, "/google/status", "u1")
	assert.JSONEq(t, `{"connected":false}`, statusRec.Body.String())

	refreshRec := env.do(http.MethodPost, "/google/refresh", "u1")
	assert.Equal(t, http.StatusNotFound, refreshRec.Code)
}

func TestRevoke_ProviderFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.fake.revokeStatus = http.StatusInternalServerError
	require.NoError(t, env.store.Upsert(context.Background(), TokenRecord{
		UID: "u1", Provider: "tasks", RefreshToken: "rt1", CreatedAt: time.Now(),
	}))

	rec := env.do(http.MethodPost, "/google/revoke", "u1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	stored, err := env.store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, stored, "record must be deleted even when the provider call fails")
}
