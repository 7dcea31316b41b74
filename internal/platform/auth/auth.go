// Package auth authenticates and authorizes requests to the Pie-Docs code
// service. Identity arrives either as signed gateway headers, an OIDC bearer
// token / session cookie, or a fixed dev identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pivotpie/piedocs-go/internal/platform/env"
)

type Mode string

const (
	ModeOIDC     Mode = "oidc"
	ModeHeaders  Mode = "headers"
	ModeDev      Mode = "dev"
	ModeDisabled Mode = "disabled"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Config struct {
	Mode Mode

	RolesClaim string
	EmailClaim string

	SessionCookieName     string
	SessionCookieSecure   bool
	SessionCookieMaxAge   time.Duration
	SessionCookieSameSite string

	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCScopes       []string

	InternalSecret string

	DevSubject string
	DevEmail   string
	DevRoles   []string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeHeaders))))
	var mode Mode
	switch modeRaw {
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeHeaders):
		mode = ModeHeaders
	case string(ModeDev):
		mode = ModeDev
	case string(ModeDisabled):
		mode = ModeDisabled
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be one of: oidc, headers, dev, disabled (got %q)", modeRaw)
	}

	sessionCookieSecure, err := env.Bool("AUTH_SESSION_COOKIE_SECURE", true)
	if err != nil {
		return Config{}, err
	}
	maxAgeSeconds, err := env.Int("AUTH_SESSION_MAX_AGE_SECONDS", 3600)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:                  mode,
		RolesClaim:            env.String("AUTH_ROLES_CLAIM", "roles"),
		EmailClaim:            env.String("AUTH_EMAIL_CLAIM", "email"),
		SessionCookieName:     env.String("AUTH_SESSION_COOKIE_NAME", "piedocs_session"),
		SessionCookieSecure:   sessionCookieSecure,
		SessionCookieMaxAge:   time.Duration(maxAgeSeconds) * time.Second,
		SessionCookieSameSite: env.String("AUTH_SESSION_COOKIE_SAMESITE", "Lax"),
		OIDCIssuerURL:         env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:          env.String("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:      env.String("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:       env.String("OIDC_REDIRECT_URL", ""),
		OIDCScopes:            env.StringSlice("OIDC_SCOPES", []string{"openid", "profile", "email"}),
		InternalSecret:        env.String("PIEDOCS_INTERNAL_AUTH_SECRET", ""),
		DevSubject:            env.String("DEV_AUTH_SUBJECT", "dev-user"),
		DevEmail:              env.String("DEV_AUTH_EMAIL", "dev-user@example.local"),
		DevRoles:              env.StringSlice("DEV_AUTH_ROLES", []string{"admin"}),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(string(c.Mode)) == "" {
		return errors.New("AUTH_MODE is required")
	}
	if strings.TrimSpace(c.RolesClaim) == "" {
		return errors.New("AUTH_ROLES_CLAIM is required")
	}
	if strings.TrimSpace(c.EmailClaim) == "" {
		return errors.New("AUTH_EMAIL_CLAIM is required")
	}

	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.SessionCookieName) == "" {
			return errors.New("AUTH_SESSION_COOKIE_NAME is required when AUTH_MODE=oidc")
		}
		if c.SessionCookieMaxAge <= 0 {
			return errors.New("AUTH_SESSION_MAX_AGE_SECONDS must be positive when AUTH_MODE=oidc")
		}
	case ModeHeaders:
		if strings.TrimSpace(c.InternalSecret) == "" {
			return errors.New("PIEDOCS_INTERNAL_AUTH_SECRET is required when AUTH_MODE=headers")
		}
	case ModeDev:
		if strings.TrimSpace(c.DevSubject) == "" {
			return errors.New("DEV_AUTH_SUBJECT is required when AUTH_MODE=dev")
		}
		if len(c.DevRoles) == 0 {
			return errors.New("DEV_AUTH_ROLES must be non-empty when AUTH_MODE=dev")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}

	return nil
}

func (c Config) ValidateForLogin() error {
	if c.Mode != ModeOIDC {
		return fmt.Errorf("login requires AUTH_MODE=oidc (got %q)", c.Mode)
	}
	if strings.TrimSpace(c.OIDCClientSecret) == "" {
		return errors.New("OIDC_CLIENT_SECRET is required for login endpoints")
	}
	if strings.TrimSpace(c.OIDCRedirectURL) == "" {
		return errors.New("OIDC_REDIRECT_URL is required for login endpoints")
	}
	return nil
}
