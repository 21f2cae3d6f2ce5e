package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/rishansujesh/job-registry/internal/descriptors"
)

const (
	jobsTable = "jobs"
	idIndex   = "id" // primary key, the job id string
)

// memJob is the row stored in memdb. Rows are never modified in place.
type memJob struct {
	ID        string
	Name      string
	Job       *descriptors.Job
	CreatedAt time.Time
	AuditedAt *time.Time
	AuditOK   *bool
}

func (r *memJob) stored() StoredJob {
	return StoredJob{Job: r.Job, CreatedAt: r.CreatedAt, AuditedAt: r.AuditedAt, AuditOK: r.AuditOK}
}

// MemoryStore is a Repository on go-memdb, used for single-node mode and tests.
type MemoryStore struct {
	db  *memdb.MemDB
	now func() time.Time
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &MemoryStore{db: db, now: time.Now}, nil
}

func (s *MemoryStore) CreateJob(_ context.Context, job *descriptors.Job) error {
	id := job.ID()
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(jobsTable, idIndex, id.String())
	if err != nil {
		return errors.WithStack(err)
	}
	if existing != nil {
		return jobAlreadyExists(id)
	}
	row := &memJob{ID: id.String(), Name: job.Name(), Job: job, CreatedAt: s.now().UTC()}
	if err := txn.Insert(jobsTable, row); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id descriptors.JobID) (*StoredJob, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	obj, err := txn.First(jobsTable, idIndex, id.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, jobNotFound(id)
	}
	stored := obj.(*memJob).stored()
	return &stored, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, p ListJobsParams) ([]StoredJob, error) {
	p = p.normalized()
	txn := s.db.Txn(false)
	defer txn.Abort()

	var iter memdb.ResultIterator
	var err error
	if p.AfterID != "" {
		iter, err = txn.LowerBound(jobsTable, idIndex, p.AfterID)
	} else {
		iter, err = txn.Get(jobsTable, idIndex)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	out := []StoredJob{}
	skipped := 0
	for obj := iter.Next(); obj != nil && len(out) < p.Limit; obj = iter.Next() {
		row := obj.(*memJob)
		if row.ID == p.AfterID {
			continue
		}
		if p.NameContains != "" && !strings.Contains(row.Name, p.NameContains) {
			continue
		}
		if skipped < p.Offset {
			skipped++
			continue
		}
		out = append(out, row.stored())
	}
	return out, nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id descriptors.JobID) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(jobsTable, idIndex, id.String())
	if err != nil {
		return errors.WithStack(err)
	}
	if obj == nil {
		return jobNotFound(id)
	}
	if err := txn.Delete(jobsTable, obj); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) MarkAudited(_ context.Context, id descriptors.JobID, ok bool, at time.Time) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(jobsTable, idIndex, id.String())
	if err != nil {
		return errors.WithStack(err)
	}
	if obj == nil {
		return jobNotFound(id)
	}
	updated := *obj.(*memJob)
	auditedAt := at.UTC()
	updated.AuditedAt = &auditedAt
	updated.AuditOK = &ok
	if err := txn.Insert(jobsTable, &updated); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

func memorySchema() *memdb.DBSchema {
	indexes := map[string]*memdb.IndexSchema{
		idIndex: {
			Name:    idIndex,
			Unique:  true,
			Indexer: &memdb.StringFieldIndex{Field: "ID"},
		},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			jobsTable: {
				Name:    jobsTable,
				Indexes: indexes,
			},
		},
	}
}
