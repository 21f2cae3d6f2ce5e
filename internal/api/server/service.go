package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rishansujesh/job-registry/internal/protocol"
)

// JobServiceServer is the server API for the job registry. Every message is
// a Struct carrying the JSON wire form of the request or response.
type JobServiceServer interface {
	CreateJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterJobServiceServer(s grpc.ServiceRegistrar, srv JobServiceServer) {
	s.RegisterService(&JobServiceDesc, srv)
}

type unaryMethod func(JobServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(JobServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(JobServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// JobServiceDesc describes the job registry service to grpc.Server.
var JobServiceDesc = grpc.ServiceDesc{
	ServiceName: protocol.JobServiceName,
	HandlerType: (*JobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateJob",
			Handler:    unaryHandler(protocol.CreateJobMethod, JobServiceServer.CreateJob),
		},
		{
			MethodName: "GetJob",
			Handler:    unaryHandler(protocol.GetJobMethod, JobServiceServer.GetJob),
		},
		{
			MethodName: "ListJobs",
			Handler:    unaryHandler(protocol.ListJobsMethod, JobServiceServer.ListJobs),
		},
		{
			MethodName: "DeleteJob",
			Handler:    unaryHandler(protocol.DeleteJobMethod, JobServiceServer.DeleteJob),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobregistry/v1/jobs.proto",
}
