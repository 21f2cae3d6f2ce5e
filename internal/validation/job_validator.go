package validation

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/docker/distribution/reference"
	"github.com/hashicorp/go-multierror"

	"github.com/rishansujesh/job-registry/internal/descriptors"
)

var (
	nameVersionPattern = regexp.MustCompile(`^[0-9a-zA-Z\-_.]+$`)
	portNamePattern    = regexp.MustCompile(`^[_\-\w]+$`)
	registrationName   = regexp.MustCompile(`^[_\-\w]+$`)
)

const (
	minPort = 0
	maxPort = 65535
)

// NewJobValidator returns the validator applied to every job before it is
// stored. Identity is recomputed from the job's own content.
func NewJobValidator() Validator[*descriptors.Job] {
	return NewCompoundValidator[*descriptors.Job](
		identityValidator{},
		encodingValidator{},
		nameVersionValidator{},
		imageValidator{},
		portsValidator{},
		registrationValidator{},
		volumesValidator{},
	)
}

type identityValidator struct{}

func (identityValidator) Validate(job *descriptors.Job) error {
	id := job.ID()
	if id.IsZero() {
		return fmt.Errorf("Job id was not specified.")
	}

	var result *multierror.Error
	if id.Name() == "" {
		result = multierror.Append(result, fmt.Errorf("Job name was not specified."))
	}
	if id.Version() == "" {
		result = multierror.Append(result, fmt.Errorf("Job version was not specified."))
	}
	if id.Hash() == "" {
		result = multierror.Append(result, fmt.Errorf("Job hash was not specified."))
	}
	if result != nil {
		return result
	}

	recomputed := job.ComputedID()
	if id.Name() != job.Name() {
		result = multierror.Append(result, fmt.Errorf("Id name mismatch: %s != %s", id.Name(), job.Name()))
	}
	if id.Version() != job.Version() {
		result = multierror.Append(result, fmt.Errorf("Id version mismatch: %s != %s", id.Version(), job.Version()))
	}
	if id.Hash() != recomputed.Hash() {
		result = multierror.Append(result, fmt.Errorf("Id hash mismatch: %s != %s", id.Hash(), recomputed.Hash()))
	}
	return result.ErrorOrNil()
}

// encodingValidator rejects hashed fields that are not valid UTF-8. The
// canonical encoding replaces invalid bytes with U+FFFD, so such jobs would
// share an id with different content.
type encodingValidator struct{}

func (encodingValidator) Validate(job *descriptors.Job) error {
	var result *multierror.Error
	if !utf8.ValidString(job.Name()) {
		result = multierror.Append(result, fmt.Errorf("Job name is not valid UTF-8: %q", job.Name()))
	}
	if !utf8.ValidString(job.Version()) {
		result = multierror.Append(result, fmt.Errorf("Job version is not valid UTF-8: %q", job.Version()))
	}
	if !utf8.ValidString(job.Image()) {
		result = multierror.Append(result, fmt.Errorf("Image is not valid UTF-8: %q", job.Image()))
	}
	for i, arg := range job.Command() {
		if !utf8.ValidString(arg) {
			result = multierror.Append(result, fmt.Errorf("Command argument %d is not valid UTF-8: %q", i, arg))
		}
	}
	env := job.Env()
	for _, key := range sortedKeys(env) {
		if !utf8.ValidString(key) || !utf8.ValidString(env[key]) {
			result = multierror.Append(result, fmt.Errorf("Env variable %q is not valid UTF-8", key))
		}
	}
	return result.ErrorOrNil()
}

type nameVersionValidator struct{}

func (nameVersionValidator) Validate(job *descriptors.Job) error {
	var result *multierror.Error
	if job.Name() != "" && !nameVersionPattern.MatchString(job.Name()) {
		result = multierror.Append(result,
			fmt.Errorf("Job name may only contain [0-9a-zA-Z-_.] in job name [%s].", job.Name()))
	}
	if job.Version() != "" && !nameVersionPattern.MatchString(job.Version()) {
		result = multierror.Append(result,
			fmt.Errorf("Job version may only contain [0-9a-zA-Z-_.] in job version [%s].", job.Version()))
	}
	return result.ErrorOrNil()
}

type imageValidator struct{}

func (imageValidator) Validate(job *descriptors.Job) error {
	image := job.Image()
	if image == "" {
		return fmt.Errorf("Image was not specified.")
	}
	if _, err := reference.ParseNormalizedNamed(image); err != nil {
		return fmt.Errorf("Invalid image reference %q: %v", image, err)
	}
	return nil
}

type portsValidator struct{}

func (portsValidator) Validate(job *descriptors.Job) error {
	ports := job.Ports()
	var result *multierror.Error
	externalPorts := make(map[int]string, len(ports))
	for _, name := range sortedKeys(ports) {
		mapping := ports[name]
		if !portNamePattern.MatchString(name) {
			result = multierror.Append(result, fmt.Errorf("Invalid port name: %s", name))
		}
		switch mapping.Protocol() {
		case descriptors.ProtocolTCP, descriptors.ProtocolUDP:
		default:
			result = multierror.Append(result,
				fmt.Errorf("Invalid port mapping protocol: %s", mapping.Protocol()))
		}
		if !validPort(mapping.InternalPort()) {
			result = multierror.Append(result,
				fmt.Errorf("Invalid internal port: %d", mapping.InternalPort()))
		}
		external, ok := mapping.ExternalPort()
		if !ok {
			continue
		}
		if !validPort(external) {
			result = multierror.Append(result, fmt.Errorf("Invalid external port: %d", external))
			continue
		}
		if other, exists := externalPorts[external]; exists {
			result = multierror.Append(result,
				fmt.Errorf("Duplicate external port mapping: %d used by %s and %s", external, other, name))
			continue
		}
		externalPorts[external] = name
	}
	return result.ErrorOrNil()
}

func validPort(port int) bool {
	return port >= minPort && port <= maxPort
}

type registrationValidator struct{}

func (registrationValidator) Validate(job *descriptors.Job) error {
	ports := job.Ports()
	registration := job.Registration()

	endpoints := make([]descriptors.ServiceEndpoint, 0, len(registration))
	for endpoint := range registration {
		endpoints = append(endpoints, endpoint)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].String() < endpoints[j].String()
	})

	var result *multierror.Error
	for _, endpoint := range endpoints {
		if !registrationName.MatchString(endpoint.Name) {
			result = multierror.Append(result,
				fmt.Errorf("Invalid service registration name: %s", endpoint.Name))
		}
		for _, portName := range registration[endpoint].Ports() {
			if _, ok := ports[portName]; !ok {
				result = multierror.Append(result,
					fmt.Errorf("Service registration refers to missing port mapping: %s=%s", endpoint, portName))
			}
		}
	}
	return result.ErrorOrNil()
}

type volumesValidator struct{}

func (volumesValidator) Validate(job *descriptors.Job) error {
	volumes := job.Volumes()
	var result *multierror.Error
	for _, containerPath := range sortedKeys(volumes) {
		source := volumes[containerPath]
		if !path.IsAbs(containerPath) {
			result = multierror.Append(result, fmt.Errorf("Volume path is not absolute: %s", containerPath))
		}
		if source != "" && !path.IsAbs(source) {
			result = multierror.Append(result, fmt.Errorf("Volume source is not absolute: %s", source))
		}
	}
	return result.ErrorOrNil()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
