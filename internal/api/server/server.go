// Package server exposes the job registry over gRPC and a REST gateway.
package server

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/jobs"
	"github.com/rishansujesh/job-registry/internal/master"
	"github.com/rishansujesh/job-registry/internal/protocol"
)

// Server adapts master.Service to JobServiceServer.
type Server struct {
	service *master.Service
}

func New(service *master.Service) *Server {
	return &Server{service: service}
}

// CreateJob decodes the descriptor carried by req and submits it. Descriptors
// that cannot be decoded, including ones whose id does not parse, are
// answered with INVALID_JOB_DEFINITION rather than an RPC error.
func (s *Server) CreateJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.createJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return protocol.ToStruct(resp)
}

func (s *Server) createJob(ctx context.Context, req *structpb.Struct) (*protocol.CreateJobResponse, error) {
	b, err := protocol.StructJSON(req)
	if err != nil {
		return nil, err
	}
	job, err := descriptors.ParseJob(b)
	if err != nil {
		log.WithError(err).Info("rejecting undecodable job")
		return master.InvalidDefinition(errors.Cause(err).Error()), nil
	}
	return s.service.CreateJob(ctx, job)
}

func (s *Server) GetJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := refID(req)
	if err != nil {
		return nil, err
	}
	stored, err := s.service.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return protocol.ToStruct(view(*stored))
}

func (s *Server) ListJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in protocol.ListJobsRequest
	if err := protocol.FromStruct(req, &in); err != nil {
		return nil, &errs.ErrInvalidArgument{Name: "request", Value: req.String(), Message: err.Error()}
	}
	stored, err := s.service.ListJobs(ctx, jobs.ListJobsParams{
		NameContains: in.NameContains,
		Limit:        in.Limit,
		Offset:       in.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := protocol.ListJobsResponse{Jobs: make([]protocol.JobView, 0, len(stored))}
	for _, j := range stored {
		out.Jobs = append(out.Jobs, view(j))
	}
	return protocol.ToStruct(out)
}

func (s *Server) DeleteJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := refID(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.service.DeleteJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return protocol.ToStruct(resp)
}

func refID(req *structpb.Struct) (descriptors.JobID, error) {
	var ref protocol.JobRef
	if err := protocol.FromStruct(req, &ref); err != nil {
		return descriptors.JobID{}, &errs.ErrInvalidArgument{Name: "id", Value: req.String(), Message: err.Error()}
	}
	id, err := descriptors.ParseJobID(ref.ID)
	if err != nil {
		return descriptors.JobID{}, &errs.ErrInvalidArgument{Name: "id", Value: ref.ID, Message: err.Error()}
	}
	return id, nil
}

func view(j jobs.StoredJob) protocol.JobView {
	return protocol.JobView{
		Job:       j.Job,
		CreatedAt: j.CreatedAt,
		AuditedAt: j.AuditedAt,
		AuditOK:   j.AuditOK,
	}
}
