// Package grpc carries the MDD bearer token over gRPC metadata, so gRPC
// calls share the token store and refresh cycle of a client.AuthClient.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// DefaultMetadataKeyAuthorization is the default gRPC metadata key for the bearer token
const DefaultMetadataKeyAuthorization = "authorization"

// Config holds the metadata key configuration for outgoing auth.
type Config struct {
	// MetadataKeyAuthorization is the gRPC metadata key carrying "Bearer <token>".
	// Defaults to "authorization".
	MetadataKeyAuthorization string

	// PublicMethods are full method names ("/package.Service/Method") treated
	// like auth endpoints: no bearer is attached and Unauthenticated never
	// triggers a refresh.
	PublicMethods map[string]bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		PublicMethods:            make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(publicMethods ...string) *Config {
	config := DefaultConfig()
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// BearerToOutgoingContext adds "Bearer <token>" to outgoing metadata under key.
// An empty token leaves ctx unchanged.
func BearerToOutgoingContext(ctx context.Context, key, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, key, "Bearer "+token)
}
