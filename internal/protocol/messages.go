package protocol

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rishansujesh/job-registry/internal/descriptors"
)

// JobRef addresses a single stored job by its id string.
type JobRef struct {
	ID string `json:"id"`
}

type ListJobsRequest struct {
	NameContains string `json:"name_contains,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// JobView is a stored job as returned by lookups.
type JobView struct {
	Job       *descriptors.Job `json:"job"`
	CreatedAt time.Time        `json:"created_at"`
	AuditedAt *time.Time       `json:"audited_at,omitempty"`
	AuditOK   *bool            `json:"audit_ok,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobView `json:"jobs"`
}

// ToStruct converts any JSON-encodable value into a Struct. The value must
// encode as a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "converting to struct")
	}
	return s, nil
}

// StructJSON returns the JSON encoding of s. A nil Struct encodes as {}.
func StructJSON(s *structpb.Struct) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// FromStruct decodes s into v with encoding/json semantics.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := StructJSON(s)
	if err != nil {
		return err
	}
	return errors.WithStack(json.Unmarshal(b, v))
}
