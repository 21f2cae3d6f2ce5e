package requestid

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// MetadataKey is the header and gRPC metadata key carrying request ids.
const MetadataKey = "x-request-id"

// FromContext returns the request id embedded in incoming gRPC metadata.
func FromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	ids, ok := md[MetadataKey]
	if !ok || len(ids) == 0 {
		return "", false
	}

	return ids[0], true
}

// FromContextOrMissing returns the request id, or "missing" if there is none.
func FromContextOrMissing(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return "missing"
}

// AddToIncomingContext returns a context whose incoming metadata carries id,
// overwriting any existing one. Contexts without incoming metadata get a fresh
// metadata set.
func AddToIncomingContext(ctx context.Context, id string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	} else {
		md = md.Copy()
	}
	md.Set(MetadataKey, id)
	return metadata.NewIncomingContext(ctx, md)
}

// UnaryServerInterceptor annotates incoming requests with a random UUID.
// If replace is false, requests that already carry an id keep it.
func UnaryServerInterceptor(replace bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := FromContext(ctx); !ok || replace {
			ctx = AddToIncomingContext(ctx, uuid.NewString())
		}
		return handler(ctx, req)
	}
}
