package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/rishansujesh/job-registry/internal/descriptors"
)

// Store is the Postgres Repository. Descriptors are kept as jsonb.
type Store struct {
	DB        *sql.DB
	DefaultTO time.Duration // default timeout per query
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, DefaultTO: 5 * time.Second}
}

var _ Repository = (*Store)(nil)

func (s *Store) CreateJob(ctx context.Context, job *descriptors.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.DefaultTO)
	defer cancel()

	descriptor, err := job.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}
	id := job.ID()

	err = WithJobTxLock(ctx, s.DB, id.String(), func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id.String()).
			Scan(&exists); err != nil {
			return err
		}
		if exists {
			return jobAlreadyExists(id)
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO jobs (id, name, version, hash, descriptor)
VALUES ($1, $2, $3, $4, $5::jsonb);`,
			id.String(), id.Name(), id.Version(), id.Hash(), string(descriptor))
		return err
	})
	if isUniqueViolation(err) {
		return jobAlreadyExists(id)
	}
	return errors.WithMessagef(err, "creating job %s", id)
}

const selectColumns = `descriptor, created_at, audited_at, audit_ok`

func (s *Store) GetJob(ctx context.Context, id descriptors.JobID) (*StoredJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.DefaultTO)
	defer cancel()

	row := s.DB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE id = $1`, id.String())
	stored, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobNotFound(id)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "loading job %s", id)
	}
	return stored, nil
}

func (s *Store) ListJobs(ctx context.Context, p ListJobsParams) ([]StoredJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.DefaultTO)
	defer cancel()

	p = p.normalized()
	conds := []string{}
	args := []any{}
	i := 1
	if p.NameContains != "" {
		conds = append(conds, fmt.Sprintf("strpos(name, $%d) > 0", i))
		args = append(args, p.NameContains)
		i++
	}
	if p.AfterID != "" {
		conds = append(conds, fmt.Sprintf(`id COLLATE "C" > $%d`, i))
		args = append(args, p.AfterID)
		i++
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	q := fmt.Sprintf(`
SELECT %s
FROM jobs
%s
ORDER BY id COLLATE "C" ASC
LIMIT $%d OFFSET $%d;`, selectColumns, where, i, i+1)
	args = append(args, p.Limit, p.Offset)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WithMessage(err, "listing jobs")
	}
	defer rows.Close()

	out := []StoredJob{}
	for rows.Next() {
		stored, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, rows.Err()
}

func (s *Store) DeleteJob(ctx context.Context, id descriptors.JobID) error {
	ctx, cancel := context.WithTimeout(ctx, s.DefaultTO)
	defer cancel()
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id.String())
	if err != nil {
		return errors.WithMessagef(err, "deleting job %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jobNotFound(id)
	}
	return nil
}

func (s *Store) MarkAudited(ctx context.Context, id descriptors.JobID, ok bool, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.DefaultTO)
	defer cancel()
	res, err := s.DB.ExecContext(ctx, `UPDATE jobs SET audited_at = $1, audit_ok = $2 WHERE id = $3`,
		at.UTC(), ok, id.String())
	if err != nil {
		return errors.WithMessagef(err, "marking job %s audited", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return jobNotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*StoredJob, error) {
	var (
		raw       []byte
		stored    StoredJob
		auditedAt sql.NullTime
		auditOK   sql.NullBool
	)
	if err := row.Scan(&raw, &stored.CreatedAt, &auditedAt, &auditOK); err != nil {
		return nil, err
	}
	job, err := descriptors.ParseJob(raw)
	if err != nil {
		return nil, err
	}
	stored.Job = job
	if auditedAt.Valid {
		t := auditedAt.Time
		stored.AuditedAt = &t
	}
	if auditOK.Valid {
		v := auditOK.Bool
		stored.AuditOK = &v
	}
	return &stored, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}
