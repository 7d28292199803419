// Package settings is the read-mostly key-value collaborator holding
// per-provider model overrides and stored credentials. Absence of a key is
// a valid state; callers fall back to their defaults.
package settings

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("settings: key not found")

// Store is the opaque key-value contract. Consistency is last-write-wins
// per key and is the backing store's concern, not ours.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backing connection.
	Close() error
}

// Namespaced keys per provider id.

// ModelKey is the key holding the model override for a provider.
func ModelKey(providerID string) string { return "settings:model:" + providerID }

// APIKeyKey is the key holding the stored credential for a provider.
func APIKeyKey(providerID string) string { return "settings:apikey:" + providerID }
