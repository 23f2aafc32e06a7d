package main

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "murmur"
	keyringAPIKey  = "api-key"
)

// KeyringService stores the transcription API key in the OS keychain.
// Secrets never land in config.yaml.
type KeyringService struct {
	service string
}

// NewKeyringService returns a KeyringService using murmur's keychain entry.
func NewKeyringService() *KeyringService {
	return &KeyringService{service: keyringService}
}

// SetAPIKey stores the API key. An empty key clears the entry instead.
func (k *KeyringService) SetAPIKey(key string) error {
	if key == "" {
		return k.DeleteAPIKey()
	}
	if err := keyring.Set(k.service, keyringAPIKey, key); err != nil {
		return fmt.Errorf("keyring: set: %w", err)
	}
	return nil
}

// APIKey returns the stored key, or "" when none is set.
func (k *KeyringService) APIKey() (string, error) {
	key, err := keyring.Get(k.service, keyringAPIKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring: get: %w", err)
	}
	return key, nil
}

// DeleteAPIKey removes the stored key. A missing entry is not an error.
func (k *KeyringService) DeleteAPIKey() error {
	err := keyring.Delete(k.service, keyringAPIKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring: delete: %w", err)
	}
	return nil
}

// HasAPIKey reports whether a key is currently stored.
func (k *KeyringService) HasAPIKey() bool {
	key, err := k.APIKey()
	return err == nil && key != ""
}
