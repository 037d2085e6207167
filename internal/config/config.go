// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

// Package config defines the Authweaver configuration model and its layered
// koanf loader (struct defaults, optional YAML file, environment variables).
package config

import (
	"time"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Authc     AuthcConfig     `koanf:"authc"`
	Authz     AuthzConfig     `koanf:"authz"`
	Blocklist BlocklistConfig `koanf:"blocklist"`
	Audit     AuditConfig     `koanf:"audit"`
	UserStore UserStoreConfig `koanf:"user_store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// AuthcConfig configures the authentication pipeline: the ordered domain
// list plus the pipeline-wide policies that surround it.
type AuthcConfig struct {
	// Debug surfaces the per-domain debug trace to API clients. Off in
	// production: the trace reveals which domains exist and why each one
	// failed.
	Debug bool `koanf:"debug"`

	// Domains is the ordered authentication domain list. First match wins.
	Domains []DomainConfig `koanf:"domains" validate:"dive"`

	// AdminDNs are patterns naming administrative identities. Admin
	// identities may never authenticate through the REST pipeline.
	AdminDNs []string `koanf:"admin_dns"`

	// RequiredLoginPrivileges must all hold for an authenticated user
	// before login is allowed. Checked against the authz enforcer.
	RequiredLoginPrivileges []string `koanf:"required_login_privileges"`

	// DomainTimeout bounds a single domain attempt, backend call included.
	DomainTimeout time.Duration `koanf:"domain_timeout"`

	// Impersonation maps a user name to the target name patterns that
	// user may impersonate via the impersonation header.
	Impersonation ImpersonationConfig `koanf:"impersonation"`

	// Cache configures the identity and impersonation caches.
	Cache AuthCacheConfig `koanf:"cache"`

	// Breaker configures the circuit breaker wrapped around backends.
	Breaker BreakerConfig `koanf:"breaker"`
}

// ImpersonationConfig configures who may impersonate whom.
type ImpersonationConfig struct {
	// Header is the request header carrying the impersonation target.
	Header string `koanf:"header"`

	// Allowed maps an authenticated user name to target name patterns.
	Allowed map[string][]string `koanf:"allowed"`
}

// AuthCacheConfig configures the identity caches.
type AuthCacheConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Capacity int           `koanf:"capacity" validate:"gte=0"`
	TTL      time.Duration `koanf:"ttl"`
}

// BreakerConfig configures the per-backend circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MinRequests uint32        `koanf:"min_requests"`
	FailureRate float64       `koanf:"failure_rate" validate:"gte=0,lte=1"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DomainConfig is one configured authentication domain.
type DomainConfig struct {
	// ID identifies the domain in logs and debug traces. When empty, a
	// content hash of the domain configuration is used.
	ID string `koanf:"id"`

	// Frontend is the credential extractor type: basic, bearer,
	// clientcert, trusted_header.
	Frontend string `koanf:"frontend" validate:"required"`

	// Backend is the credential verifier type: internal, jwt.
	Backend string `koanf:"backend" validate:"required"`

	// UserInfoBackends enrich the attribute bag after authentication,
	// strictly in order. Later backends may overwrite earlier attributes.
	UserInfoBackends []string `koanf:"user_info_backends"`

	Enabled bool `koanf:"enabled"`

	// Order is the legacy tie-break; the slice order is authoritative.
	Order int `koanf:"order"`

	// Challenge controls whether the frontend's protocol challenge is
	// aggregated into the final 401 response.
	Challenge bool `koanf:"challenge"`

	Accept  CriteriaConfig `koanf:"accept"`
	Skip    CriteriaConfig `koanf:"skip"`
	Mapping MappingConfig  `koanf:"user_mapping"`

	// FrontendOptions and BackendOptions are passed verbatim to the
	// frontend/backend constructors (header names, JWT keys, and so on).
	FrontendOptions map[string]interface{} `koanf:"frontend_options"`
	BackendOptions  map[string]interface{} `koanf:"backend_options"`
}

// CriteriaConfig is one side (accept or skip) of a domain's acceptance
// rules. All absent criteria are permissive.
type CriteriaConfig struct {
	// IPs are CIDR blocks or single addresses matched against both the
	// direct and the originating IP.
	IPs []string `koanf:"ips"`

	// OriginatingIPs are matched against the post-proxy-resolution IP only.
	OriginatingIPs []string `koanf:"originating_ips"`

	// TrustedIPs requires (accept side) the request to come through a
	// trusted proxy and additionally match one of these blocks.
	TrustedIPs []string `koanf:"trusted_ips"`

	// Users are username patterns (shell-style wildcards).
	Users []string `koanf:"users"`

	// ClientCertDNs are client certificate subject patterns.
	ClientCertDNs []string `koanf:"client_cert_dns"`
}

// MappingConfig is the declarative credential-to-user transform.
type MappingConfig struct {
	// UserName specs each produce candidate names; exactly one distinct
	// candidate must remain or the mapping fails.
	UserName []MappingRuleConfig `koanf:"user_name"`

	// Roles specs accumulate: all candidates become backend roles.
	Roles []MappingRuleConfig `koanf:"roles"`

	// Attrs maps output attribute names to a rule each. Failed lookups
	// are skipped, not errors.
	Attrs map[string]MappingRuleConfig `koanf:"attrs"`
}

// MappingRuleConfig is a single mapping specification.
type MappingRuleConfig struct {
	// From is a dot-separated path into the credential attribute bag.
	From string `koanf:"from"`

	// Pattern is an optional regex applied to the extracted value. One
	// capturing group yields the group; several concatenate.
	Pattern string `koanf:"pattern"`

	// Split divides the extracted value into a list before matching.
	Split string `koanf:"split"`

	// Static is a literal value; mutually exclusive with From.
	Static string `koanf:"static"`
}

// AuthzConfig configures the casbin-backed privilege checks.
type AuthzConfig struct {
	ModelPath   string        `koanf:"model_path"`
	PolicyPath  string        `koanf:"policy_path"`
	DefaultRole string        `koanf:"default_role"`
	CacheEnabled bool         `koanf:"cache_enabled"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// BlocklistConfig configures static blocklists and the failed-login lockout.
type BlocklistConfig struct {
	Users []string `koanf:"users"`
	IPs   []string `koanf:"ips"`

	Lockout LockoutConfig `koanf:"lockout"`
}

// LockoutConfig tunes the x/time-based failed-login limiter.
type LockoutConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxFailures int           `koanf:"max_failures" validate:"gte=0"`
	Window      time.Duration `koanf:"window"`
}

// AuditConfig configures the audit event pipeline.
type AuditConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BufferSize  int    `koanf:"buffer_size" validate:"gte=0"`
	Topic       string `koanf:"topic"`
	LogToStdout bool   `koanf:"log_to_stdout"`

	NATS AuditNATSConfig `koanf:"nats"`
}

// AuditNATSConfig configures the optional NATS transport for audit events.
// Only honored in builds with the nats tag; the default build publishes on
// an in-process bus.
type AuditNATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// UserStoreConfig configures the internal user store.
type UserStoreConfig struct {
	// Type selects the store implementation: memory or badger.
	Type string `koanf:"type" validate:"omitempty,oneof=memory badger"`

	// Path is the badger database directory (badger type only).
	Path string `koanf:"path"`

	// Users are statically configured internal users, seeded into the
	// store at startup.
	Users []InternalUserConfig `koanf:"users" validate:"dive"`
}

// InternalUserConfig is one statically configured user.
type InternalUserConfig struct {
	Name         string            `koanf:"name" validate:"required"`
	PasswordHash string            `koanf:"password_hash"`
	Roles        []string          `koanf:"roles"`
	Attributes   map[string]string `koanf:"attributes"`
}

// defaultConfig returns a Config with all defaults applied. The loader
// layers file and environment values on top.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			TrustedProxies:  []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Authc: AuthcConfig{
			Debug:         false,
			Domains:       []DomainConfig{},
			AdminDNs:      []string{},
			DomainTimeout: 10 * time.Second,
			Impersonation: ImpersonationConfig{
				Header:  "x-impersonate-as",
				Allowed: map[string][]string{},
			},
			Cache: AuthCacheConfig{
				Enabled:  true,
				Capacity: 10000,
				TTL:      time.Hour,
			},
			Breaker: BreakerConfig{
				Enabled:     true,
				MinRequests: 10,
				FailureRate: 0.6,
				Interval:    time.Minute,
				Timeout:     2 * time.Minute,
			},
		},
		Authz: AuthzConfig{
			DefaultRole:  "user",
			CacheEnabled: true,
			CacheTTL:     5 * time.Minute,
		},
		Blocklist: BlocklistConfig{
			Users: []string{},
			IPs:   []string{},
			Lockout: LockoutConfig{
				Enabled:     true,
				MaxFailures: 10,
				Window:      time.Minute,
			},
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1000,
			Topic:       "authc.audit",
			LogToStdout: false,
			NATS: AuditNATSConfig{
				Enabled:       false,
				URL:           "nats://127.0.0.1:4222",
				MaxReconnects: 10,
				ReconnectWait: 2 * time.Second,
			},
		},
		UserStore: UserStoreConfig{
			Type:  "memory",
			Users: []InternalUserConfig{},
		},
	}
}
