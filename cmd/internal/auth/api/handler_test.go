package authapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"sarir/cmd/identity"
	"sarir/cmd/internal/auth/session"
	"sarir/cmd/security/password"
)

// fakeStore is an in-memory session.Store for handler tests.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*session.Row
	seq  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*session.Row)}
}

func (f *fakeStore) byJTI(jti string) *session.Row {
	for _, r := range f.rows {
		if r.JTI == jti {
			return r
		}
	}
	return nil
}

func (f *fakeStore) CreateWithCap(_ context.Context, in session.CreateInput, max int) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	row := &session.Row{
		ID:         in.JTI + "-row",
		UserID:     in.UserID,
		JTI:        in.JTI,
		DeviceID:   in.Meta.DeviceID,
		CreatedAt:  in.IssuedAt.Add(time.Duration(f.seq)),
		LastUsedAt: in.IssuedAt,
		ExpiresAt:  in.ExpiresAt,
	}
	f.rows[row.ID] = row

	if max > 0 {
		var active []*session.Row
		for _, r := range f.rows {
			if r.UserID == in.UserID && r.Active(in.IssuedAt) {
				active = append(active, r)
			}
		}
		sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
		for len(active) > max {
			delete(f.rows, active[0].ID)
			active = active[1:]
		}
	}
	return *row, nil
}

func (f *fakeStore) FindActive(_ context.Context, jti string, now time.Time) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.byJTI(jti)
	if r == nil {
		return session.Row{}, session.ErrSessionNotFound
	}
	if r.Revoked {
		return session.Row{}, session.ErrSessionRevoked
	}
	if !now.Before(r.ExpiresAt) {
		return session.Row{}, session.ErrSessionExpired
	}
	return *r, nil
}

func (f *fakeStore) Rotate(_ context.Context, oldJTI, newJTI string, now time.Time, ttl time.Duration) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.byJTI(oldJTI)
	if r == nil {
		return session.Row{}, session.ErrSessionNotFound
	}
	if r.Revoked {
		return session.Row{}, session.ErrSessionRevoked
	}
	if !now.Before(r.ExpiresAt) {
		return session.Row{}, session.ErrSessionExpired
	}
	r.JTI = newJTI
	r.LastUsedAt = now
	r.ExpiresAt = now.Add(ttl)
	return *r, nil
}

func (f *fakeStore) GetByJTI(_ context.Context, jti string) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r := f.byJTI(jti); r != nil {
		return *r, nil
	}
	return session.Row{}, session.ErrSessionNotFound
}

func (f *fakeStore) Revoke(_ context.Context, jti string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r := f.byJTI(jti); r != nil && !r.Revoked {
		r.Revoked = true
		r.LastUsedAt = now
	}
	return nil
}

func (f *fakeStore) RevokeAll(_ context.Context, userID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.Revoked {
			r.Revoked = true
			r.LastUsedAt = now
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string, now time.Time) ([]session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []session.Row
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Active(now), out[j].Active(now)
		if ai != aj {
			return ai
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStore) PruneExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for id, r := range f.rows {
		if !r.ExpiresAt.After(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

// fakeIdentity serves users by username or public id.
type fakeIdentity struct {
	users map[string]identity.UserAuth // by username
}

func (f *fakeIdentity) GetAuthByLogin(_ context.Context, login string) (identity.UserAuth, error) {
	if u, ok := f.users[login]; ok && u.User.IsActive {
		return u, nil
	}
	return identity.UserAuth{}, identity.OpError{Op: "identity.GetAuthByLogin", Kind: identity.ErrNotFound}
}

func (f *fakeIdentity) GetActiveByPublicID(_ context.Context, publicID string) (identity.User, error) {
	for _, u := range f.users {
		if u.User.PublicID == publicID && u.User.IsActive {
			return u.User, nil
		}
	}
	return identity.User{}, identity.OpError{Op: "identity.GetActiveByPublicID", Kind: identity.ErrNotFound}
}

// recordingAudit captures inserted events.
type recordingAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *recordingAudit) Insert(_ context.Context, e AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAudit) byEvent(event string) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEvent
	for _, e := range a.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	mux   *http.ServeMux
	store *fakeStore
	audit *recordingAudit
	ids   *fakeIdentity
	svc   *session.Service
}

func newTestEnv(t *testing.T, throttle LoginThrottle) *testEnv {
	t.Helper()

	hash, err := password.Hash("correct horse")
	if err != nil {
		t.Fatalf("password.Hash: %v", err)
	}
	ids := &fakeIdentity{users: map[string]identity.UserAuth{
		"alice": {
			User:         identity.User{ID: "u-alice", PublicID: "pub-alice", Username: "alice", IsActive: true},
			PasswordHash: hash,
		},
		"bob": {
			User:         identity.User{ID: "u-bob", PublicID: "pub-bob", Username: "bob", IsActive: true},
			PasswordHash: hash,
		},
	}}

	sessCfg := session.DefaultConfig()
	sessCfg.SecretKey = "handler-test-secret"
	codec, err := session.NewHMACCodec(sessCfg)
	if err != nil {
		t.Fatalf("NewHMACCodec: %v", err)
	}
	store := newFakeStore()
	svc := session.NewService(sessCfg, store, codec)

	if throttle == nil {
		throttle = NewMemoryThrottle(7, 5*time.Minute)
	}
	audit := &recordingAudit{}
	cfg := Config{
		MaxBodyBytes:   1 << 20,
		LoginLimit:     7,
		LoginWindow:    5 * time.Minute,
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(log, cfg, ids, svc, audit, throttle)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{mux: mux, store: store, audit: audit, ids: ids, svc: svc}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, pw string) *httptest.ResponseRecorder {
	t.Helper()
	body := strings.NewReader(`{"username":"` + username + `","password":"` + pw + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:51000"
	return e.do(req)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func accessTokenFromBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("token response = %+v", resp)
	}
	return resp.AccessToken
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.login(t, "alice", "correct horse")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	accessTokenFromBody(t, rec)
	if refreshCookie(t, rec) == nil {
		t.Fatalf("no refresh cookie set")
	}
	if got := env.audit.byEvent(EventLoginSuccess); len(got) != 1 {
		t.Fatalf("login_success audit rows = %d", len(got))
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	for _, tc := range []struct{ user, pw string }{
		{"alice", "wrong password"},
		{"nobody", "correct horse"},
	} {
		rec := env.login(t, tc.user, tc.pw)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("login(%s) status = %d", tc.user, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid_credentials") {
			t.Fatalf("login(%s) body = %s", tc.user, rec.Body.String())
		}
	}
	if got := env.audit.byEvent(EventLoginFail); len(got) != 2 {
		t.Fatalf("login_fail audit rows = %d", len(got))
	}
}

func TestLogin_Throttled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, NewMemoryThrottle(1, 5*time.Minute))

	if rec := env.login(t, "alice", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt status = %d", rec.Code)
	}
	rec := env.login(t, "alice", "correct horse")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	// A throttled attempt never reaches credential checks or the audit log.
	if got := env.audit.byEvent(EventLoginSuccess); len(got) != 0 {
		t.Fatalf("throttled attempt reached the credential path")
	}
	if len(env.audit.events) != 1 { // only the initial login_fail
		t.Fatalf("audit rows = %d, want 1", len(env.audit.events))
	}
}

func TestRefresh_RotatesCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	loginRec := env.login(t, "alice", "correct horse")
	oldCookie := refreshCookie(t, loginRec)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(oldCookie)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	newCookie := refreshCookie(t, rec)
	if newCookie == nil || newCookie.Value == oldCookie.Value {
		t.Fatalf("refresh did not rotate the cookie")
	}

	// The pre-rotation refresh token is dead.
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(oldCookie)
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale refresh status = %d", rec.Code)
	}

	if got := env.audit.byEvent(EventRefresh); len(got) != 1 {
		t.Fatalf("refresh audit rows = %d", len(got))
	}
}

func TestRefresh_MissingCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogout_RevokesAndClearsCookies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	loginRec := env.login(t, "alice", "correct horse")
	access := accessTokenFromBody(t, loginRec)
	cookie := refreshCookie(t, loginRec)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := env.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("refresh cookie not cleared")
	}

	// The access token is still cryptographically valid but its session is
	// revoked, so protected calls reject it.
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", rec.Code)
	}

	if got := env.audit.byEvent(EventLogout); len(got) != 1 {
		t.Fatalf("logout audit rows = %d", len(got))
	}
}

func TestLogout_GarbageCookieStillSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "not-a-jwt"})
	if rec := env.do(req); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if len(env.audit.events) != 0 {
		t.Fatalf("garbage logout wrote audit rows")
	}
}

func TestMe_ReturnsIdentity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	access := accessTokenFromBody(t, env.login(t, "alice", "correct horse"))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.PublicID != "pub-alice" || resp.User.Username != "alice" {
		t.Fatalf("me = %+v", resp.User)
	}
}

func TestListSessions_FlagsCurrent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.login(t, "alice", "correct horse")
	access := accessTokenFromBody(t, env.login(t, "alice", "correct horse"))

	req := httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d", rec.Code)
	}
	var resp sessionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(resp.Sessions))
	}
	var current int
	for _, s := range resp.Sessions {
		if s.Current {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("current sessions flagged = %d", current)
	}
}

func TestRevokeSession_OwnershipRules(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	aliceAccess := accessTokenFromBody(t, env.login(t, "alice", "correct horse"))
	bobRec := env.login(t, "bob", "correct horse")
	accessTokenFromBody(t, bobRec)

	var bobJTI string
	env.store.mu.Lock()
	for _, r := range env.store.rows {
		if r.UserID == "u-bob" {
			bobJTI = r.JTI
		}
	}
	env.store.mu.Unlock()

	del := func(jti string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/auth/sessions/"+jti, nil)
		req.Header.Set("Authorization", "Bearer "+aliceAccess)
		return env.do(req)
	}

	if rec := del("no-such-jti"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown jti status = %d", rec.Code)
	}
	if rec := del(bobJTI); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign jti status = %d", rec.Code)
	}

	var aliceJTI string
	env.store.mu.Lock()
	for _, r := range env.store.rows {
		if r.UserID == "u-alice" {
			aliceJTI = r.JTI
		}
	}
	env.store.mu.Unlock()
	if rec := del(aliceJTI); rec.Code != http.StatusNoContent {
		t.Fatalf("own jti status = %d", rec.Code)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.login(t, "alice", "correct horse")
	access := accessTokenFromBody(t, env.login(t, "alice", "correct horse"))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout-all status = %d", rec.Code)
	}
	var resp logoutAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Revoked != 2 {
		t.Fatalf("revoked = %d, want 2", resp.Revoked)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout-all status = %d", rec.Code)
	}
}
