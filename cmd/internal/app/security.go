package app

import (
	"errors"
	"os"
	"strings"
)

// minSecretBytes is the minimum HS256 secret length under the strong-secret
// policy. Measured in bytes, not runes, because the key is used as raw bytes.
const minSecretBytes = 32

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast is intentional: a weak signing secret silently accepted at boot
// would undermine every token the process ever issues.
func ValidateSecurityConfig(cfg Config) error {
	secret := strings.TrimSpace(os.Getenv("SECRET_KEY"))
	if secret == "" {
		return errors.New("security policy: SECRET_KEY is missing")
	}
	if cfg.RequireStrongSecret && len(secret) < minSecretBytes {
		return errors.New("security policy: SARIR_REQUIRE_STRONG_SECRET=true but SECRET_KEY is shorter than 32 bytes")
	}
	return nil
}
