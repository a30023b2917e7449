package commands

import (
	"fmt"

	"github.com/allisson/go-pwdhash"
)

// RunHashAPIKey prints the Argon2id hash of an API key, for use as the
// API_KEY_HASH configuration value. The plain key is never stored anywhere.
func RunHashAPIKey(apiKey string, io IOTuple) error {
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}

	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return fmt.Errorf("failed to create hasher: %w", err)
	}

	hash, err := hasher.Hash([]byte(apiKey))
	if err != nil {
		return fmt.Errorf("failed to hash api key: %w", err)
	}

	fmt.Fprintf(io.Writer, "API_KEY_HASH=%s\n", hash)
	return nil
}
