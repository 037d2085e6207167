// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"strings"
)

// clientCertFrontend derives credentials from the TLS client certificate
// subject. The TLS layer already verified the certificate; there is no
// secret to carry and no challenge to offer.
type clientCertFrontend struct {
	// usernameAttribute picks the subject RDN used as the username,
	// "CN" by default. "dn" uses the whole subject string.
	usernameAttribute string
}

func newClientCertFrontend(options map[string]interface{}) (Frontend, error) {
	return &clientCertFrontend{
		usernameAttribute: stringOption(options, "username_attribute", "CN"),
	}, nil
}

func (f *clientCertFrontend) Type() string { return "clientcert" }

func (f *clientCertFrontend) ExtractCredentials(meta *RequestMetaData) (*AuthCredentials, error) {
	subject := meta.ClientCertSubject()
	if subject == "" {
		return nil, ErrNoCredentials
	}

	name := subject
	if !strings.EqualFold(f.usernameAttribute, "dn") {
		name = subjectAttribute(subject, f.usernameAttribute)
		if name == "" {
			return nil, ErrNoCredentials
		}
	}

	creds := NewCredentials(name, nil)
	creds.Attribute("client_cert_subject", subject)
	return creds, nil
}

func (f *clientCertFrontend) Challenge(_ *AuthCredentials) string { return "" }

// subjectAttribute extracts one RDN value (e.g. "CN") from an RFC 2253
// subject string.
func subjectAttribute(subject, attr string) string {
	prefix := strings.ToUpper(attr) + "="
	for _, part := range strings.Split(subject, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToUpper(part), prefix) {
			return part[len(prefix):]
		}
	}
	return ""
}
