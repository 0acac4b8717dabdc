package auth

import (
	"context"
	"fmt"
	"strings"
)

// Identity names the caller behind an API key. ClientID ends up in the
// audit log next to each question.
type Identity struct {
	ClientID string
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:client,key:client". A bare key is
// accepted and identifies itself as client "anonymous".
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, client, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		client = strings.TrimSpace(client)
		if key == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key", entry)
		}
		if found && (client == "" || strings.Contains(client, ":")) {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:client", entry)
		}
		if !found {
			client = "anonymous"
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("duplicate static key for client %q", client)
		}
		validator.keys[key] = Identity{ClientID: client}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
