// Package master implements the job registry operations: creation with
// identity verification, lookup, listing and deletion.
package master

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/events"
	"github.com/rishansujesh/job-registry/internal/jobs"
	"github.com/rishansujesh/job-registry/internal/protocol"
	"github.com/rishansujesh/job-registry/internal/validation"
)

type Service struct {
	repo      jobs.Repository
	validator validation.Validator[*descriptors.Job]
	publisher events.Publisher
}

func NewService(repo jobs.Repository, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		validator: validation.NewJobValidator(),
		publisher: publisher,
	}
}

// InvalidDefinition builds the response for a rejected descriptor.
func InvalidDefinition(messages ...string) *protocol.CreateJobResponse {
	return &protocol.CreateJobResponse{
		Status: protocol.StatusInvalidJobDefinition,
		Errors: messages,
	}
}

// CreateJob stores job if its claimed id matches its content and it passes
// validation. Rejections are reported through the response status; the
// returned error is reserved for storage failures.
func (s *Service) CreateJob(ctx context.Context, job *descriptors.Job) (*protocol.CreateJobResponse, error) {
	resp, err := s.createJob(ctx, job)
	if err != nil {
		return nil, err
	}
	jobCreateCounter.WithLabelValues(resp.Status.String()).Inc()
	return resp, nil
}

func (s *Service) createJob(ctx context.Context, job *descriptors.Job) (*protocol.CreateJobResponse, error) {
	if job == nil {
		return InvalidDefinition("Job was not specified."), nil
	}
	logger := log.WithField("jobId", job.ID().String())

	if err := s.validator.Validate(job); err != nil {
		messages := validation.Messages(err)
		logger.Infof("rejecting job: %v", messages)
		return InvalidDefinition(messages...), nil
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		if errs.IsAlreadyExists(err) {
			logger.Info("job already exists")
			return &protocol.CreateJobResponse{
				Status: protocol.StatusJobAlreadyExists,
				ID:     job.ID().String(),
			}, nil
		}
		return nil, errors.WithMessage(err, "storing job")
	}

	if err := s.publisher.Publish(ctx, events.NewCreated(job)); err != nil {
		eventPublishFailures.Inc()
		logger.WithError(err).Warn("job stored but created event not published")
	}
	logger.Info("created job")
	return &protocol.CreateJobResponse{
		Status: protocol.StatusOK,
		ID:     job.ID().String(),
	}, nil
}

func (s *Service) GetJob(ctx context.Context, id descriptors.JobID) (*jobs.StoredJob, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, p jobs.ListJobsParams) ([]jobs.StoredJob, error) {
	return s.repo.ListJobs(ctx, p)
}

// DeleteJob removes a job. A missing job is reported as JOB_NOT_FOUND.
func (s *Service) DeleteJob(ctx context.Context, id descriptors.JobID) (*protocol.JobDeleteResponse, error) {
	logger := log.WithField("jobId", id.String())
	if err := s.repo.DeleteJob(ctx, id); err != nil {
		if errs.IsNotFound(err) {
			jobDeleteCounter.WithLabelValues(protocol.DeleteStatusJobNotFound.String()).Inc()
			return &protocol.JobDeleteResponse{Status: protocol.DeleteStatusJobNotFound}, nil
		}
		return nil, errors.WithMessage(err, "deleting job")
	}
	if err := s.publisher.Publish(ctx, events.NewDeleted(id)); err != nil {
		eventPublishFailures.Inc()
		logger.WithError(err).Warn("job deleted but deleted event not published")
	}
	logger.Info("deleted job")
	jobDeleteCounter.WithLabelValues(protocol.DeleteStatusOK.String()).Inc()
	return &protocol.JobDeleteResponse{Status: protocol.DeleteStatusOK}, nil
}
