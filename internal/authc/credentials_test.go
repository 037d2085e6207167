// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package authc

import (
	"testing"
)

func TestSecretBuffer_ZeroOverwritesBytes(t *testing.T) {
	secret := NewSecret([]byte("hunter2"))

	raw := secret.Bytes()
	if string(raw) != "hunter2" {
		t.Fatalf("Bytes() = %q, want hunter2", raw)
	}

	secret.Zero()

	// The underlying buffer must be zero-filled, not merely hidden.
	for i, b := range raw {
		if b != 0 {
			t.Errorf("byte %d = %#x after Zero(), want 0", i, b)
		}
	}
	if secret.Bytes() != nil {
		t.Error("Bytes() after Zero() should be nil")
	}
	if !secret.Zeroed() {
		t.Error("Zeroed() = false after Zero()")
	}

	// Idempotent.
	secret.Zero()
}

func TestSecretBuffer_CopiesInput(t *testing.T) {
	input := []byte("original")
	secret := NewSecret(input)
	input[0] = 'X'

	if string(secret.Bytes()) != "original" {
		t.Errorf("Bytes() = %q, caller mutation leaked into buffer", secret.Bytes())
	}
}

func TestSecretBuffer_Digest(t *testing.T) {
	a := NewSecret([]byte("password"))
	b := NewSecret([]byte("password"))
	c := NewSecret([]byte("different"))

	if a.Digest() == "" {
		t.Fatal("Digest() empty for non-empty secret")
	}
	if a.Digest() != b.Digest() {
		t.Error("equal secrets should produce equal digests")
	}
	if a.Digest() == c.Digest() {
		t.Error("different secrets should produce different digests")
	}

	a.Zero()
	if a.Digest() != "" {
		t.Error("Digest() after Zero() should be empty")
	}
}

func TestAuthCredentials_ClearSecrets(t *testing.T) {
	creds := NewCredentials("alice", []byte("pw"))
	creds.ClearSecrets()

	if creds.SecretBytes() != nil {
		t.Error("SecretBytes() after ClearSecrets() should be nil")
	}
	if creds.SecretDigest() != "" {
		t.Error("SecretDigest() after ClearSecrets() should be empty")
	}

	// Nil-safe on secretless and nil credentials.
	NewCredentials("bob", nil).ClearSecrets()
	var nilCreds *AuthCredentials
	nilCreds.ClearSecrets()
}

func TestAuthCredentials_Attribute(t *testing.T) {
	creds := &AuthCredentials{}
	creds.Attribute("department", "ops")

	if creds.Attributes["department"] != "ops" {
		t.Errorf("Attributes = %v, want department=ops", creds.Attributes)
	}
}
