package descriptors

// Builder stages the fields of a Job. It is not safe for concurrent use;
// callers that need to fork a staged job should Clone it.
//
// Every setter copies its argument and every getter returns a copy, so the
// builder never shares a container with its callers or with the jobs it builds.
type Builder struct {
	name         string
	version      string
	image        string
	command      []string
	env          map[string]string
	ports        map[string]PortMapping
	registration map[ServiceEndpoint]ServicePorts
	volumes      map[string]string
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetName(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) SetVersion(version string) *Builder {
	b.version = version
	return b
}

func (b *Builder) SetImage(image string) *Builder {
	b.image = image
	return b
}

func (b *Builder) SetCommand(command []string) *Builder {
	b.command = copyStrings(command)
	return b
}

func (b *Builder) SetEnv(env map[string]string) *Builder {
	b.env = copyMap(env)
	return b
}

func (b *Builder) AddEnv(key, value string) *Builder {
	if b.env == nil {
		b.env = map[string]string{}
	}
	b.env[key] = value
	return b
}

func (b *Builder) SetPorts(ports map[string]PortMapping) *Builder {
	b.ports = copyMap(ports)
	return b
}

func (b *Builder) AddPort(name string, mapping PortMapping) *Builder {
	if b.ports == nil {
		b.ports = map[string]PortMapping{}
	}
	b.ports[name] = mapping
	return b
}

func (b *Builder) SetRegistration(registration map[ServiceEndpoint]ServicePorts) *Builder {
	b.registration = copyMap(registration)
	return b
}

func (b *Builder) AddRegistration(endpoint ServiceEndpoint, ports ServicePorts) *Builder {
	if b.registration == nil {
		b.registration = map[ServiceEndpoint]ServicePorts{}
	}
	b.registration[endpoint] = ports
	return b
}

func (b *Builder) SetVolumes(volumes map[string]string) *Builder {
	b.volumes = copyMap(volumes)
	return b
}

func (b *Builder) AddVolume(path, source string) *Builder {
	if b.volumes == nil {
		b.volumes = map[string]string{}
	}
	b.volumes[path] = source
	return b
}

func (b *Builder) Name() string { return b.name }
func (b *Builder) Version() string { return b.version }
func (b *Builder) Image() string { return b.image }
func (b *Builder) Command() []string { return copyStrings(b.command) }

func (b *Builder) Env() map[string]string { return copyMap(b.env) }
func (b *Builder) Ports() map[string]PortMapping { return copyMap(b.ports) }
func (b *Builder) Registration() map[ServiceEndpoint]ServicePorts { return copyMap(b.registration) }
func (b *Builder) Volumes() map[string]string { return copyMap(b.volumes) }

// Clone returns a builder that shares no state with b.
func (b *Builder) Clone() *Builder {
	return &Builder{
		name:         b.name,
		version:      b.version,
		image:        b.image,
		command:      copyStrings(b.command),
		env:          copyMap(b.env),
		ports:        copyMap(b.ports),
		registration: copyMap(b.registration),
		volumes:      copyMap(b.volumes),
	}
}

// Build snapshots the builder into a new Job whose id is computed from its
// content. The builder is left unchanged and may be built again.
func (b *Builder) Build() *Job {
	id := ComputeJobID(b.name, b.version, b.image, b.command, b.env)
	return NewJob(id, b.image, b.command, b.env, b.ports, b.registration, b.volumes)
}
