package requestid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "missing", FromContextOrMissing(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKey, "foo"))
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "foo", id)
}

func TestAddToIncomingContext(t *testing.T) {
	ctx := AddToIncomingContext(context.Background(), "first")
	assert.Equal(t, "first", FromContextOrMissing(ctx))

	ctx = AddToIncomingContext(ctx, "second")
	assert.Equal(t, "second", FromContextOrMissing(ctx))
}

func TestUnaryServerInterceptor(t *testing.T) {
	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = FromContextOrMissing(ctx)
		return nil, nil
	}

	_, err := UnaryServerInterceptor(false)(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	_, err = uuid.Parse(seen)
	assert.NoError(t, err)

	existing := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKey, "keep"))
	_, err = UnaryServerInterceptor(false)(existing, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "keep", seen)

	_, err = UnaryServerInterceptor(true)(existing, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.NotEqual(t, "keep", seen)
}
