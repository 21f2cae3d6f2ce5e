package errs

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rishansujesh/job-registry/internal/common/requestid"
)

func TestCodeFromError(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected codes.Code
	}{
		"nil":               {err: nil, expected: codes.OK},
		"status":            {err: status.Error(codes.Aborted, "x"), expected: codes.Aborted},
		"already exists":    {err: &ErrAlreadyExists{Type: "job", Value: "a:1:b"}, expected: codes.AlreadyExists},
		"wrapped not found": {err: errors.Wrap(&ErrNotFound{Value: "a"}, "get"), expected: codes.NotFound},
		"invalid argument":  {err: &ErrInvalidArgument{Name: "id", Value: "x"}, expected: codes.InvalidArgument},
		"canceled":          {err: errors.WithStack(context.Canceled), expected: codes.Canceled},
		"other":             {err: errors.New("boom"), expected: codes.Unknown},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CodeFromError(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `resource "a:1:b" of type "job" already exists`, (&ErrAlreadyExists{Type: "job", Value: "a:1:b"}).Error())
	assert.Equal(t, `resource "a" does not exist; gone`, (&ErrNotFound{Value: "a", Message: "gone"}).Error())
	assert.Equal(t, `value "x" is invalid for field "id"`, (&ErrInvalidArgument{Name: "id", Value: "x"}).Error())
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(errors.Wrap(&ErrNotFound{}, "x")))
	assert.False(t, IsNotFound(errors.New("x")))
	assert.True(t, IsAlreadyExists(errors.WithMessage(&ErrAlreadyExists{}, "x")))
	assert.False(t, IsAlreadyExists(nil))
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor()
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.Wrap(&ErrNotFound{Type: "job", Value: "a:1:b"}, "loading job")
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, `resource "a:1:b" of type "job" does not exist`, st.Message())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestid.MetadataKey, "abc"))
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	st, _ = status.FromError(err)
	assert.Contains(t, st.Message(), `[x-request-id: "abc"]`)
}
