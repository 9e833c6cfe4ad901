package app

import (
	"errors"

	"mezon/cmd/security/seal"
)

// ValidateSecurityConfig enforces the vault sealing policy at startup and
// returns the Sealer for the session vault (nil means plaintext storage).
//
// A configured key is always validated, even when sealing is not required.
func ValidateSecurityConfig(cfg Config) (*seal.Sealer, error) {
	if !seal.Enabled() {
		if cfg.RequireSealedVault {
			return nil, errors.New("security policy: MEZON_REQUIRE_SEALED_VAULT=true but MEZON_SESSION_SEAL_KEY is missing")
		}
		return nil, nil
	}

	s, err := seal.FromEnv()
	if err != nil {
		switch {
		case errors.Is(err, seal.ErrKeyTooShort):
			return nil, errors.New("security policy: MEZON_SESSION_SEAL_KEY is too short (min 32 bytes)")
		default:
			return nil, err
		}
	}
	return s, nil
}
