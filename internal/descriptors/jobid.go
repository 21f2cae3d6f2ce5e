package descriptors

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashLength is the number of hex characters in a job id hash.
const HashLength = 40

// MalformedIdentityError is returned when a string cannot be parsed as a JobID.
type MalformedIdentityError struct {
	Value  string
	Reason string
}

func (err *MalformedIdentityError) Error() string {
	return fmt.Sprintf("malformed job id %q: %s", err.Value, err.Reason)
}

// JobID identifies a job by name, version and content hash. It is comparable,
// so == and map keys are structural over the triple.
type JobID struct {
	name    string
	version string
	hash    string
}

// NewJobID builds a JobID from its parts without checking them. It represents
// a claim that still has to be verified against the job content.
func NewJobID(name, version, hash string) JobID {
	return JobID{name: name, version: version, hash: hash}
}

// ParseJobID parses "name:version:hash".
func ParseJobID(s string) (JobID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return JobID{}, &MalformedIdentityError{Value: s, Reason: fmt.Sprintf("expected 3 components, got %d", len(parts))}
	}
	for i, p := range parts {
		if p == "" {
			return JobID{}, &MalformedIdentityError{Value: s, Reason: fmt.Sprintf("component %d is empty", i)}
		}
	}
	if err := checkHash(parts[2]); err != nil {
		return JobID{}, &MalformedIdentityError{Value: s, Reason: err.Error()}
	}
	return JobID{name: parts[0], version: parts[1], hash: parts[2]}, nil
}

// MustParseJobID is like ParseJobID but panics on error.
func MustParseJobID(s string) JobID {
	id, err := ParseJobID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func checkHash(h string) error {
	if len(h) != HashLength {
		return fmt.Errorf("hash must be %d hex characters, got %d", HashLength, len(h))
	}
	if strings.ToLower(h) != h {
		return fmt.Errorf("hash must be lowercase")
	}
	if _, err := hex.DecodeString(h); err != nil {
		return fmt.Errorf("hash is not hex: %v", err)
	}
	return nil
}

func (id JobID) Name() string { return id.name }
func (id JobID) Version() string { return id.version }
func (id JobID) Hash() string { return id.hash }

// IsZero reports whether no part of the id is set.
func (id JobID) IsZero() bool {
	return id == JobID{}
}

// String formats the id as "name:version:hash".
func (id JobID) String() string {
	return id.name + ":" + id.version + ":" + id.hash
}

func (id JobID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *JobID) UnmarshalText(b []byte) error {
	parsed, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
