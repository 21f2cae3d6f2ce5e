// Package descriptors contains the job descriptor value types and the
// content-derived job id computation.
//
// A Job is immutable once built: every container it exposes is a copy. Jobs
// are created with a Builder, which computes the id from the job content, or
// with NewJob, which takes an id claim as given. Claims are verified by the
// validation package before a job is accepted.
package descriptors

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrBuilderMisuse is the panic value for programmer errors in helper construction.
var ErrBuilderMisuse = errors.New("builder misuse")

// Job is an immutable job descriptor.
type Job struct {
	id           JobID
	name         string
	version      string
	image        string
	command      []string
	env          map[string]string
	ports        map[string]PortMapping
	registration map[ServiceEndpoint]ServicePorts
	volumes      map[string]string
}

// NewJob returns a job carrying the given id claim. Name and version are taken
// from the id. All containers are copied; nil containers become empty.
func NewJob(
	id JobID,
	image string,
	command []string,
	env map[string]string,
	ports map[string]PortMapping,
	registration map[ServiceEndpoint]ServicePorts,
	volumes map[string]string,
) *Job {
	return &Job{
		id:           id,
		name:         id.Name(),
		version:      id.Version(),
		image:        image,
		command:      copyStrings(command),
		env:          copyMap(env),
		ports:        copyMap(ports),
		registration: copyMap(registration),
		volumes:      copyMap(volumes),
	}
}

func (j *Job) ID() JobID { return j.id }
func (j *Job) Name() string { return j.name }
func (j *Job) Version() string { return j.version }
func (j *Job) Image() string { return j.image }
func (j *Job) Command() []string { return copyStrings(j.command) }

func (j *Job) Env() map[string]string { return copyMap(j.env) }
func (j *Job) Ports() map[string]PortMapping { return copyMap(j.ports) }
func (j *Job) Registration() map[ServiceEndpoint]ServicePorts { return copyMap(j.registration) }
func (j *Job) Volumes() map[string]string { return copyMap(j.volumes) }

// ComputedID returns the id derived from the job's own content, ignoring the
// id the job carries.
func (j *Job) ComputedID() JobID {
	return ComputeJobID(j.name, j.version, j.image, j.command, j.env)
}

// ToBuilder returns a builder seeded with a copy of the job's fields.
func (j *Job) ToBuilder() *Builder {
	return &Builder{
		name:         j.name,
		version:      j.version,
		image:        j.image,
		command:      copyStrings(j.command),
		env:          copyMap(j.env),
		ports:        copyMap(j.ports),
		registration: copyMap(j.registration),
		volumes:      copyMap(j.volumes),
	}
}

// Equal reports whether two jobs have the same id and content.
func (j *Job) Equal(other *Job) bool {
	if j == nil || other == nil {
		return j == other
	}
	if j.id != other.id || j.name != other.name || j.version != other.version || j.image != other.image {
		return false
	}
	if len(j.command) != len(other.command) {
		return false
	}
	for i := range j.command {
		if j.command[i] != other.command[i] {
			return false
		}
	}
	if !mapsEqual(j.env, other.env, func(a, b string) bool { return a == b }) {
		return false
	}
	if !mapsEqual(j.ports, other.ports, PortMapping.Equal) {
		return false
	}
	if !mapsEqual(j.registration, other.registration, ServicePorts.Equal) {
		return false
	}
	return mapsEqual(j.volumes, other.volumes, func(a, b string) bool { return a == b })
}

func (j *Job) String() string {
	b, err := j.ToJSON()
	if err != nil {
		return j.id.String()
	}
	return string(b)
}

type jobJSON struct {
	ID           *JobID                           `json:"id,omitempty"`
	Name         string                           `json:"name,omitempty"`
	Version      string                           `json:"version,omitempty"`
	Image        string                           `json:"image"`
	Command      []string                         `json:"command"`
	Env          map[string]string                `json:"env"`
	Ports        map[string]PortMapping           `json:"ports"`
	Registration map[ServiceEndpoint]ServicePorts `json:"registration"`
	Volumes      map[string]string                `json:"volumes"`
}

// ToJSON encodes the job in its wire format.
func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

func (j *Job) MarshalJSON() ([]byte, error) {
	out := jobJSON{
		Name:         j.name,
		Version:      j.version,
		Image:        j.image,
		Command:      j.command,
		Env:          j.env,
		Ports:        j.ports,
		Registration: j.registration,
		Volumes:      j.volumes,
	}
	if !j.id.IsZero() {
		id := j.id
		out.ID = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire format. Unknown fields are ignored and
// missing optional fields default to empty.
func (j *Job) UnmarshalJSON(b []byte) error {
	var in jobJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var id JobID
	if in.ID != nil {
		id = *in.ID
	}
	decoded := NewJob(id, in.Image, in.Command, in.Env, in.Ports, in.Registration, in.Volumes)
	if in.Name != "" {
		decoded.name = in.Name
	}
	if in.Version != "" {
		decoded.version = in.Version
	}
	*j = *decoded
	return nil
}

// ParseJob decodes a job from its wire format.
func ParseJob(b []byte) (*Job, error) {
	var j Job
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&j); err != nil {
		return nil, errors.Wrap(err, "parsing job")
	}
	return &j, nil
}

// EnvFromPairs builds an env map from alternating keys and values. It panics
// with ErrBuilderMisuse if given an odd number of arguments.
func EnvFromPairs(kv ...string) map[string]string {
	if len(kv)%2 != 0 {
		panic(errors.Wrapf(ErrBuilderMisuse, "EnvFromPairs needs an even number of arguments, got %d", len(kv)))
	}
	env := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		env[kv[i]] = kv[i+1]
	}
	return env
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mapsEqual[K comparable, V any](a, b map[K]V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !eq(va, vb) {
			return false
		}
	}
	return true
}
