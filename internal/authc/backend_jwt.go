// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// jwtBackend verifies the bearer token carried as the credential secret
// and turns its claims into mapping attributes. Token verification is
// local and cheap, so identities are never cached: the token itself is
// the cache.
type jwtBackend struct {
	hmacKey      []byte
	rsaKey       *rsa.PublicKey
	issuer       string
	audience     string
	subjectClaim string
	rolesClaim   string
}

func newJWTBackend(options map[string]interface{}) (Backend, error) {
	b := &jwtBackend{
		issuer:       stringOption(options, "issuer", ""),
		audience:     stringOption(options, "audience", ""),
		subjectClaim: stringOption(options, "subject_claim", "sub"),
		rolesClaim:   stringOption(options, "roles_claim", ""),
	}

	hmacKey := stringOption(options, "signing_key", "")
	rsaPEM := stringOption(options, "rsa_public_key", "")
	switch {
	case hmacKey != "" && rsaPEM != "":
		return nil, fmt.Errorf("jwt backend: signing_key and rsa_public_key are mutually exclusive")
	case hmacKey != "":
		b.hmacKey = []byte(hmacKey)
	case rsaPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(rsaPEM))
		if err != nil {
			return nil, fmt.Errorf("jwt backend: parse rsa public key: %w", err)
		}
		b.rsaKey = key
	default:
		return nil, fmt.Errorf("jwt backend: one of signing_key or rsa_public_key is required")
	}

	return b, nil
}

func (b *jwtBackend) Type() string { return "jwt" }

func (b *jwtBackend) CachingPolicy() CachingPolicy { return CacheNever }

func (b *jwtBackend) Authenticate(_ context.Context, creds *AuthCredentials) (*AuthCredentials, error) {
	raw := creds.SecretBytes()
	if raw == nil {
		return nil, ErrNoCredentials
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(b.validMethods())}
	if b.issuer != "" {
		opts = append(opts, jwt.WithIssuer(b.issuer))
	}
	if b.audience != "" {
		opts = append(opts, jwt.WithAudience(b.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(string(raw), claims, b.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	for name, value := range claims {
		creds.Attribute(name, value)
	}

	if subject, ok := claims[b.subjectClaim].(string); ok && subject != "" {
		creds.UserName = subject
	}
	if creds.UserName == "" {
		return nil, &CredentialsError{Reason: fmt.Sprintf("token carries no %q claim", b.subjectClaim)}
	}

	if b.rolesClaim != "" {
		if raw, ok := claims[b.rolesClaim]; ok {
			creds.BackendRoles = append(creds.BackendRoles, attributeStrings(raw)...)
		}
	}

	return creds, nil
}

// UserInformation is not supported: a token proves its own bearer and
// cannot vouch for a third-party username.
func (b *jwtBackend) UserInformation(_ context.Context, _ *AuthCredentials) (*AuthCredentials, error) {
	return nil, ErrNotSupported
}

func (b *jwtBackend) keyFunc(token *jwt.Token) (interface{}, error) {
	alg := token.Method.Alg()
	switch {
	case b.hmacKey != nil && strings.HasPrefix(alg, "HS"):
		return b.hmacKey, nil
	case b.rsaKey != nil && strings.HasPrefix(alg, "RS"):
		return b.rsaKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %s", alg)
	}
}

func (b *jwtBackend) validMethods() []string {
	if b.hmacKey != nil {
		return []string{"HS256", "HS384", "HS512"}
	}
	return []string{"RS256", "RS384", "RS512"}
}
