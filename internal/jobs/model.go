package jobs

import (
	"context"
	"time"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/descriptors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// StoredJob is a descriptor plus the bookkeeping the registry keeps for it.
type StoredJob struct {
	Job       *descriptors.Job
	CreatedAt time.Time
	AuditedAt *time.Time
	AuditOK   *bool
}

type ListJobsParams struct {
	// Only jobs whose name contains this substring
	NameContains string
	// Only jobs whose id sorts after this one; stable under concurrent deletes
	AfterID string
	Limit   int
	Offset  int
}

func (p ListJobsParams) normalized() ListJobsParams {
	if p.Limit <= 0 || p.Limit > maxListLimit {
		p.Limit = defaultListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Repository stores job descriptors keyed by their id. Implementations
// return *errs.ErrAlreadyExists and *errs.ErrNotFound for the obvious cases.
type Repository interface {
	CreateJob(ctx context.Context, job *descriptors.Job) error
	GetJob(ctx context.Context, id descriptors.JobID) (*StoredJob, error)
	// ListJobs returns jobs ordered by id.
	ListJobs(ctx context.Context, p ListJobsParams) ([]StoredJob, error)
	DeleteJob(ctx context.Context, id descriptors.JobID) error
	MarkAudited(ctx context.Context, id descriptors.JobID, ok bool, at time.Time) error
}

func jobNotFound(id descriptors.JobID) error {
	return &errs.ErrNotFound{Type: "job", Value: id.String()}
}

func jobAlreadyExists(id descriptors.JobID) error {
	return &errs.ErrAlreadyExists{Type: "job", Value: id.String()}
}
