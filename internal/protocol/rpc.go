package protocol

// JobServiceName is the fully qualified gRPC service name of the registry.
const JobServiceName = "jobregistry.v1.JobService"

// Full method names, as seen by interceptors and clients.
const (
	CreateJobMethod = "/" + JobServiceName + "/CreateJob"
	GetJobMethod    = "/" + JobServiceName + "/GetJob"
	ListJobsMethod  = "/" + JobServiceName + "/ListJobs"
	DeleteJobMethod = "/" + JobServiceName + "/DeleteJob"
)
