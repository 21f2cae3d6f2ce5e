// Package client is a gRPC client for the job registry master.
package client

import (
	"context"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/protocol"
)

type ApiConnectionDetails struct {
	// host:port of the master's gRPC endpoint
	Url string
	// Calls fail after this long; zero means no timeout
	Timeout time.Duration
}

// CreateApiConnection dials the master. Unavailable errors are retried with
// exponential backoff.
func CreateApiConnection(config *ApiConnectionDetails, additionalDialOptions ...grpc.DialOption) (*grpc.ClientConn, error) {
	retryOpts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffExponential(500 * time.Millisecond)),
		grpc_retry.WithMax(3),
	}
	dialOpts := make([]grpc.DialOption, 0, len(additionalDialOptions)+2)
	dialOpts = append(dialOpts, additionalDialOptions...)
	dialOpts = append(dialOpts,
		grpc.WithChainUnaryInterceptor(grpc_retry.UnaryClientInterceptor(retryOpts...)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	conn, err := grpc.Dial(config.Url, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", config.Url)
	}
	return conn, nil
}

type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

func New(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// CreateJob submits job in its wire form.
func (c *Client) CreateJob(ctx context.Context, job *descriptors.Job) (*protocol.CreateJobResponse, error) {
	b, err := job.ToJSON()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return c.CreateJobJSON(ctx, b)
}

// CreateJobJSON submits an already encoded descriptor without decoding it
// locally, so the master reports any problem with it.
func (c *Client) CreateJobJSON(ctx context.Context, descriptor []byte) (*protocol.CreateJobResponse, error) {
	in := &structpb.Struct{}
	if err := in.UnmarshalJSON(descriptor); err != nil {
		return nil, errors.Wrap(err, "job descriptor must be a JSON object")
	}
	var resp protocol.CreateJobResponse
	if err := c.invoke(ctx, protocol.CreateJobMethod, in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*protocol.JobView, error) {
	var view protocol.JobView
	if err := c.invoke(ctx, protocol.GetJobMethod, protocol.JobRef{ID: id}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) ListJobs(ctx context.Context, req protocol.ListJobsRequest) ([]protocol.JobView, error) {
	var resp protocol.ListJobsResponse
	if err := c.invoke(ctx, protocol.ListJobsMethod, req, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) DeleteJob(ctx context.Context, id string) (*protocol.JobDeleteResponse, error) {
	var resp protocol.JobDeleteResponse
	if err := c.invoke(ctx, protocol.DeleteJobMethod, protocol.JobRef{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) invoke(ctx context.Context, method string, req any, resp any) error {
	in, ok := req.(*structpb.Struct)
	if !ok {
		var err error
		if in, err = protocol.ToStruct(req); err != nil {
			return err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return protocol.FromStruct(out, resp)
}
