// Package errs contains the errors returned by the job registry's storage and
// service layers. The gRPC interceptor in this package converts them into
// statuses with the matching code.
package errs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rishansujesh/job-registry/internal/common/requestid"
)

// ErrAlreadyExists is returned whenever some resource already exists.
// Type and Message are optional.
type ErrAlreadyExists struct {
	Type    string // Resource type, e.g., "job"
	Value   string // Resource name, e.g., "foo:1:abc..."
	Message string
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrNotFound is returned whenever some resource isn't found.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is returned when a request carries a value that cannot
// be used, e.g. an id that fails to parse.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "id"
	Value   interface{} // The invalid value that was provided
	Message string
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// IsNotFound reports whether err has an *ErrNotFound in its chain.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// IsAlreadyExists reports whether err has an *ErrAlreadyExists in its chain.
func IsAlreadyExists(err error) bool {
	var e *ErrAlreadyExists
	return errors.As(err, &e)
}

// CodeFromError maps error types to gRPC return codes, looking through the
// whole chain.
func CodeFromError(err error) codes.Code {
	// nil and gRPC statuses carry their own code.
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}

	{
		var e *ErrAlreadyExists
		if errors.As(err, &e) {
			return codes.AlreadyExists
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return codes.NotFound
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return codes.InvalidArgument
		}
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}

	return codes.Unknown
}

// UnaryServerInterceptor returns an interceptor that extracts the cause of an
// error chain and returns it as a gRPC status error.
//
// Insert it before the logging interceptor so the full chain is logged and
// only the cause reaches the caller.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		rv, err := handler(ctx, req)

		if _, ok := status.FromError(err); ok {
			return rv, err
		}

		cause := errors.Cause(err)
		code := CodeFromError(cause)

		if id, ok := requestid.FromContext(ctx); ok {
			return rv, status.Error(code, fmt.Sprintf("[%s: %q] ", requestid.MetadataKey, id)+cause.Error())
		}
		return rv, status.Error(code, cause.Error())
	}
}
