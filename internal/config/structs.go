package config

import (
	"time"

	"github.com/AffiliateAggregator/AffiliateAggregator/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	TwoFactor TwoFactor
	OIDC      OIDC
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic   bool    // enable static file browsing (for development purposes only)
	CleanPath      bool    // use clean path middleware to allow multi slash requests
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// TwoFactor holds two-factor authentication settings.
type TwoFactor struct {
	// EncryptionKey derives the AES-256 key protecting stored TOTP secrets.
	// Falls back to the TWO_FACTOR_ENCRYPTION_KEY environment variable.
	EncryptionKey string
	// Issuer is the name shown in authenticator apps.
	Issuer string
}

// OIDC holds OpenID Connect settings for external identity sign-in.
type OIDC struct {
	Enabled      bool
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}
