// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

// User is the authenticated identity result, produced exactly once per
// successful authentication (freshly mapped or retrieved from cache).
// Treat values as immutable after construction; derive modified copies
// with the With* methods so cached identities are never mutated in place.
type User struct {
	// Name is the canonical user name after mapping.
	Name string `json:"name"`

	// BackendRoles are the role names asserted by the backend and the
	// role mapping rules.
	BackendRoles []string `json:"backend_roles,omitempty"`

	// Attributes are flat structured attributes produced by mapping.
	Attributes map[string]string `json:"attributes,omitempty"`

	// RequestedTenant is the tenant the client asked for, stamped on
	// success from the request.
	RequestedTenant string `json:"requested_tenant,omitempty"`

	// AuthDomain is provenance: the frontend/backend chain that
	// authenticated this user.
	AuthDomain string `json:"auth_domain,omitempty"`
}

// WithRequestedTenant returns a copy with the requested tenant stamped.
func (u *User) WithRequestedTenant(tenant string) *User {
	clone := u.clone()
	clone.RequestedTenant = tenant
	return clone
}

// HasRoles reports whether the user carries any backend role at all.
func (u *User) HasRoles() bool {
	return len(u.BackendRoles) > 0
}

func (u *User) clone() *User {
	clone := &User{
		Name:            u.Name,
		RequestedTenant: u.RequestedTenant,
		AuthDomain:      u.AuthDomain,
	}
	if len(u.BackendRoles) > 0 {
		clone.BackendRoles = make([]string, len(u.BackendRoles))
		copy(clone.BackendRoles, u.BackendRoles)
	}
	if len(u.Attributes) > 0 {
		clone.Attributes = make(map[string]string, len(u.Attributes))
		for k, v := range u.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
