// Package protocol holds the request/response types exchanged between job
// registry clients and the master.
package protocol

import (
	"encoding/json"
	"fmt"
)

// CreateJobStatus is the outcome of a job creation request.
type CreateJobStatus int

const (
	StatusOK CreateJobStatus = iota
	// StatusIDMismatch is reserved; creation reports id mismatches as
	// StatusInvalidJobDefinition.
	StatusIDMismatch
	StatusJobAlreadyExists
	StatusInvalidJobDefinition
)

var createJobStatusNames = map[CreateJobStatus]string{
	StatusOK:                   "OK",
	StatusIDMismatch:           "ID_MISMATCH",
	StatusJobAlreadyExists:     "JOB_ALREADY_EXISTS",
	StatusInvalidJobDefinition: "INVALID_JOB_DEFINITION",
}

func (s CreateJobStatus) String() string {
	if name, ok := createJobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CreateJobStatus(%d)", int(s))
}

func (s CreateJobStatus) MarshalText() ([]byte, error) {
	name, ok := createJobStatusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown create job status %d", int(s))
	}
	return []byte(name), nil
}

func (s *CreateJobStatus) UnmarshalText(b []byte) error {
	for status, name := range createJobStatusNames {
		if name == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown create job status %q", string(b))
}

// CreateJobResponse is returned for every creation request, accepted or not.
type CreateJobResponse struct {
	Status CreateJobStatus `json:"status"`
	Errors []string        `json:"errors,omitempty"`
	ID     string          `json:"id,omitempty"`
}

func (r *CreateJobResponse) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// DeleteJobStatus is the outcome of a job deletion request.
type DeleteJobStatus int

const (
	DeleteStatusOK DeleteJobStatus = iota
	DeleteStatusJobNotFound
)

var deleteJobStatusNames = map[DeleteJobStatus]string{
	DeleteStatusOK:          "OK",
	DeleteStatusJobNotFound: "JOB_NOT_FOUND",
}

func (s DeleteJobStatus) String() string {
	if name, ok := deleteJobStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DeleteJobStatus(%d)", int(s))
}

func (s DeleteJobStatus) MarshalText() ([]byte, error) {
	name, ok := deleteJobStatusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown delete job status %d", int(s))
	}
	return []byte(name), nil
}

func (s *DeleteJobStatus) UnmarshalText(b []byte) error {
	for status, name := range deleteJobStatusNames {
		if name == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown delete job status %q", string(b))
}

type JobDeleteResponse struct {
	Status DeleteJobStatus `json:"status"`
}
