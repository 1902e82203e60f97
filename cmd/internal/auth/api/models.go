package authapi

import (
	"time"

	"sarir/cmd/identity"
	"sarir/cmd/internal/auth/session"
)

type loginRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	DeviceID *string `json:"device_id,omitempty"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type userResponse struct {
	PublicID    string  `json:"public_id"`
	Username    string  `json:"username"`
	Email       *string `json:"email,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	IsSuperuser bool    `json:"is_superuser"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type sessionInfo struct {
	JTI        string     `json:"jti"`
	DeviceID   *string    `json:"device_id,omitempty"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	IP         *string    `json:"ip,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	Current    bool       `json:"current"`
}

type sessionListResponse struct {
	Sessions []sessionInfo `json:"sessions"`
}

type logoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		PublicID:    u.PublicID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		IsSuperuser: u.IsSuperuser,
	}
}

func toSessionInfo(row session.Row, currentJTI string) sessionInfo {
	return sessionInfo{
		JTI:        row.JTI,
		DeviceID:   row.DeviceID,
		UserAgent:  row.UserAgent,
		IP:         row.IP,
		CreatedAt:  row.CreatedAt,
		LastUsedAt: row.LastUsedAt,
		ExpiresAt:  row.ExpiresAt,
		Revoked:    row.Revoked,
		Current:    currentJTI != "" && row.JTI == currentJTI,
	}
}
