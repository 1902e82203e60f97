package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sarir/cmd/identity"
	"sarir/cmd/internal/auth/session"
	"sarir/cmd/security/password"
)

// identityStore is the slice of the user store the auth handler needs.
type identityStore interface {
	GetAuthByLogin(ctx context.Context, login string) (identity.UserAuth, error)
	GetActiveByPublicID(ctx context.Context, publicID string) (identity.User, error)
}

// sessionService is the slice of the session lifecycle manager the handler
// needs; *session.Service satisfies it.
type sessionService interface {
	IssueSession(ctx context.Context, now time.Time, user session.Identity, meta session.DeviceMeta) (session.Issued, error)
	Authenticate(ctx context.Context, accessToken string, now time.Time) (session.Claims, error)
	VerifyRefresh(ctx context.Context, refreshToken string, now time.Time) (session.Claims, session.Row, error)
	RotateRefresh(ctx context.Context, now time.Time, oldJTI string, user session.Identity) (session.Issued, error)
	RevokeSession(ctx context.Context, now time.Time, jti string) error
	RevokeOwned(ctx context.Context, now time.Time, userID, jti string) error
	RevokeAll(ctx context.Context, now time.Time, userID string) (int64, error)
	ListSessions(ctx context.Context, userID string, now time.Time) ([]session.Row, error)
}

// Handler wires the HTTP auth endpoints to the identity and session layers.
type Handler struct {
	log *slog.Logger
	cfg Config

	identity identityStore
	sessions sessionService
	auditLog AuditWriter
	throttle LoginThrottle

	dummyHash string
}

// NewHandler constructs an auth Handler with all collaborators injected.
func NewHandler(log *slog.Logger, cfg Config, ids identityStore, sessions sessionService, audit AuditWriter, throttle LoginThrottle) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if audit == nil {
		audit = NopAuditLog{}
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		identity: ids,
		sessions: sessions,
		auditLog: audit,
		throttle: throttle,
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := password.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h
}

// Register wires auth routes onto the provided mux. The literal "current"
// segment is registered alongside the {jti} pattern; the more specific route
// wins.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/logout-all", h.handleLogoutAll)
	mux.HandleFunc("GET /auth/me", h.handleMe)
	mux.HandleFunc("GET /auth/sessions", h.handleListSessions)
	mux.HandleFunc("DELETE /auth/sessions/current", h.handleRevokeCurrent)
	mux.HandleFunc("DELETE /auth/sessions/{jti}", h.handleRevokeSession)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	pw := req.Password
	if username == "" || pw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Throttle gate before any credential or store work. A throttled attempt
	// touches neither the user store nor the audit log.
	if !h.throttle.Allow(ip, username, now) {
		loginAttempts.WithLabelValues("throttled").Inc()
		writeRateLimited(w, h.cfg.LoginWindow)
		return
	}

	userAuth, err := h.identity.GetAuthByLogin(ctx, username)
	if err != nil {
		// Timing resistance: run a verify against a dummy digest so a missing
		// user costs the same as a wrong password.
		if h.dummyHash != "" {
			password.Verify(pw, h.dummyHash)
		}
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			loginAttempts.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		loginAttempts.WithLabelValues("invalid_credentials").Inc()
		h.audit(ctx, EventLoginFail, nil, nil, ip, ua, now)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	if !password.Verify(pw, userAuth.PasswordHash) {
		loginAttempts.WithLabelValues("invalid_credentials").Inc()
		h.audit(ctx, EventLoginFail, &userAuth.User.ID, nil, ip, ua, now)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	meta := session.DeviceMeta{
		DeviceID:  trimPtr(req.DeviceID),
		UserAgent: truncate(ua, maxUserAgentLen),
		IP:        truncate(ip, maxIPLen),
	}
	issued, err := h.sessions.IssueSession(ctx, now, toSessionIdentity(userAuth.User), meta)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		loginAttempts.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	h.audit(ctx, EventLoginSuccess, &userAuth.User.ID, &issued.JTI, ip, ua, now)

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	h.setAccessCookie(w, issued.AccessToken, issued.AccessExp)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   issued.AccessExp,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := refreshTokenFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing refresh token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	claims, row, err := h.sessions.VerifyRefresh(ctx, refreshToken, now)
	if err != nil {
		refreshes.WithLabelValues("rejected").Inc()
		h.writeAuthFailure(w, err)
		return
	}

	user, err := h.identity.GetActiveByPublicID(ctx, claims.Subject)
	if err != nil || user.ID != row.UserID {
		if err != nil && !identity.IsNotFound(err) {
			h.log.Error("auth.refresh.lookup.fail", "err", err)
			refreshes.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		refreshes.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired or revoked")
		return
	}

	issued, err := h.sessions.RotateRefresh(ctx, now, claims.JTI, toSessionIdentity(user))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound),
			errors.Is(err, session.ErrSessionExpired),
			errors.Is(err, session.ErrSessionRevoked):
			refreshes.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired or revoked")
		default:
			h.log.Error("auth.refresh.rotate.fail", "err", err)
			refreshes.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	refreshes.WithLabelValues("success").Inc()
	h.audit(ctx, EventRefresh, &user.ID, &issued.JTI, ip, ua, now)

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	h.setAccessCookie(w, issued.AccessToken, issued.AccessExp)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   issued.AccessExp,
	})
}

// handleLogout revokes the session behind the presented refresh cookie. It
// always succeeds from the client's perspective: a missing or garbage cookie
// still clears cookies and returns 204.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	if refreshToken, ok := refreshTokenFromCookie(r); ok {
		_, row, err := h.sessions.VerifyRefresh(ctx, refreshToken, now)
		if err == nil {
			if err := h.sessions.RevokeSession(ctx, now, row.JTI); err != nil {
				h.log.Error("auth.logout.revoke.fail", "err", err)
			} else {
				h.audit(ctx, EventLogout, &row.UserID, &row.JTI, ip, ua, now)
			}
		} else {
			h.log.Debug("auth.logout.ignored_token", "err", err)
		}
	}

	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	n, err := h.sessions.RevokeAll(ctx, now, user.ID)
	if err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit(ctx, EventLogoutAll, &user.ID, nil, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()), now)
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, logoutAllResponse{Revoked: n})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	rows, err := h.sessions.ListSessions(r.Context(), user.ID, time.Now().UTC())
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := sessionListResponse{Sessions: make([]sessionInfo, 0, len(rows))}
	for _, row := range rows {
		out.Sessions = append(out.Sessions, toSessionInfo(row, claims.JTI))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevokeCurrent revokes the session the presented access token is
// bound to, then clears cookies.
func (h *Handler) handleRevokeCurrent(w http.ResponseWriter, r *http.Request) {
	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.sessions.RevokeSession(ctx, now, claims.JTI); err != nil {
		h.log.Error("auth.sessions.revoke_current.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit(ctx, EventRevokeSession, &user.ID, &claims.JTI, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()), now)
	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	jti := strings.TrimSpace(r.PathValue("jti"))
	if jti == "" {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	if err := h.sessions.RevokeOwned(ctx, now, user.ID, jti); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "not_found", "session not found")
		case errors.Is(err, session.ErrNotSessionOwner):
			writeError(w, http.StatusForbidden, "forbidden", "session belongs to another user")
		default:
			h.log.Error("auth.sessions.revoke.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit(ctx, EventRevokeSession, &user.ID, &jti, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()), now)
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// requireUser authenticates the request (bearer header or access cookie) and
// resolves the active user behind the token's subject.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (identity.User, session.Claims, bool) {
	token := accessToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
		return identity.User{}, session.Claims{}, false
	}

	now := time.Now().UTC()
	claims, err := h.sessions.Authenticate(r.Context(), token, now)
	if err != nil {
		h.writeAuthFailure(w, err)
		return identity.User{}, session.Claims{}, false
	}

	user, err := h.identity.GetActiveByPublicID(r.Context(), claims.Subject)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.require_user.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return identity.User{}, session.Claims{}, false
		}
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired or revoked")
		return identity.User{}, session.Claims{}, false
	}
	return user, claims, true
}

// writeAuthFailure collapses every token/session failure into one outward
// 401 so callers cannot distinguish a bad token from a dead session.
func (h *Handler) writeAuthFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrSessionRevoked):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired or revoked")
	default:
		h.log.Error("auth.authenticate.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func toSessionIdentity(u identity.User) session.Identity {
	return session.Identity{
		ID:          u.ID,
		PublicID:    u.PublicID,
		Username:    u.Username,
		IsSuperuser: u.IsSuperuser,
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
