package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/panyam/mddclient/client"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that attaches
// the stored bearer token to every call not listed in config.PublicMethods.
// An Unauthenticated response joins the AuthClient's refresh cycle and the call
// is retried once with the new token; a failed refresh returns the
// *client.RefreshError.
func UnaryClientInterceptor(ac *client.AuthClient, config *Config) grpc.UnaryClientInterceptor {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if config.PublicMethods[method] {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		sent, _ := ac.AccessToken()
		err := invoker(BearerToOutgoingContext(ctx, config.MetadataKeyAuthorization, sent), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		token, refreshErr := ac.Coordinator().Renew(ctx, sent)
		if refreshErr != nil {
			return refreshErr
		}
		return invoker(BearerToOutgoingContext(ctx, config.MetadataKeyAuthorization, token), method, req, reply, cc, opts...)
	}
}
