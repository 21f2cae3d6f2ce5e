// Package jobctl implements the jobctl commands. Each command is a method on
// App writing human readable output to App.Out.
package jobctl

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"sigs.k8s.io/yaml"

	"github.com/rishansujesh/job-registry/internal/client"
	"github.com/rishansujesh/job-registry/internal/configuration"
	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/protocol"
	redisx "github.com/rishansujesh/job-registry/internal/redis"
)

// JobAPI is the part of the master API jobctl uses. *client.Client
// implements it.
type JobAPI interface {
	CreateJobJSON(ctx context.Context, descriptor []byte) (*protocol.CreateJobResponse, error)
	GetJob(ctx context.Context, id string) (*protocol.JobView, error)
	ListJobs(ctx context.Context, req protocol.ListJobsRequest) ([]protocol.JobView, error)
	DeleteJob(ctx context.Context, id string) (*protocol.JobDeleteResponse, error)
}

type Params struct {
	MasterUrl string
	RedisAddr string
	Timeout   time.Duration

	Stream     string
	DeadLetter string
	Group      string

	// Set by Connect and ConnectRedis unless provided, e.g. by tests.
	JobAPI JobAPI
	Redis  *redis.Client
}

type App struct {
	Params *Params
	Out    io.Writer

	closers []func() error
}

func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
	}
}

// Connect dials the master unless a JobAPI is already set.
func (a *App) Connect() error {
	if a.Params.JobAPI != nil {
		return nil
	}
	conn, err := client.CreateApiConnection(&client.ApiConnectionDetails{Url: a.Params.MasterUrl})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, conn.Close)
	a.Params.JobAPI = client.New(conn, a.Params.Timeout)
	return nil
}

// ConnectRedis connects to the event stream's Redis unless a client is
// already set.
func (a *App) ConnectRedis(ctx context.Context) error {
	if a.Params.Redis != nil {
		return nil
	}
	rdb, err := redisx.NewClientWithBackoff(ctx, configuration.RedisConfig{
		Addr:            a.Params.RedisAddr,
		ConnectAttempts: 3,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, rdb.Close)
	a.Params.Redis = rdb
	return nil
}

// Close releases connections opened by Connect and ConnectRedis.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) context() (context.Context, context.CancelFunc) {
	if a.Params.Timeout > 0 {
		return context.WithTimeout(context.Background(), a.Params.Timeout)
	}
	return context.WithCancel(context.Background())
}

// readDescriptor reads a job file, YAML or JSON, and returns its JSON form.
func readDescriptor(path string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	b, err = yaml.YAMLToJSON(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return b, nil
}

func parseDescriptor(path string) (*descriptors.Job, error) {
	b, err := readDescriptor(path)
	if err != nil {
		return nil, err
	}
	return descriptors.ParseJob(b)
}
