package descriptors

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func concat[K comparable, V any](maps ...map[K]V) map[K]V {
	out := map[K]V{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func TestBuilder_SetAddBuildClone(t *testing.T) {
	builder := NewBuilder()

	setCommand := []string{"set", "command"}
	setEnv := map[string]string{"set": "env"}
	setPorts := map[string]PortMapping{"set_ports": PortMappingOf(1234)}
	setRegistration := map[ServiceEndpoint]ServicePorts{
		ServiceEndpointOf("set_service", "set_proto"): ServicePortsOf("set_ports1", "set_ports2"),
	}
	setVolumes := map[string]string{"/set": "/host/set"}

	addEnv := map[string]string{"add": "env"}
	addPorts := map[string]PortMapping{"add_ports": PortMappingOf(4711)}
	addRegistration := map[ServiceEndpoint]ServicePorts{
		ServiceEndpointOf("add_service", "add_proto"): ServicePortsOf("add_ports1", "add_ports2"),
	}
	addVolumes := map[string]string{"/add": "/host/add"}

	expectedEnv := concat(setEnv, addEnv)
	expectedPorts := concat(setPorts, addPorts)
	expectedRegistration := concat(setRegistration, addRegistration)
	expectedVolumes := concat(setVolumes, addVolumes)

	builder.
		SetName("set_name").
		SetVersion("set_version").
		SetImage("set_image").
		SetCommand(setCommand).
		SetEnv(setEnv).
		SetPorts(setPorts).
		SetRegistration(setRegistration).
		SetVolumes(setVolumes)

	assert.Equal(t, "set_name", builder.Name())
	assert.Equal(t, "set_version", builder.Version())
	assert.Equal(t, "set_image", builder.Image())
	assert.Equal(t, setCommand, builder.Command())
	assert.Equal(t, setEnv, builder.Env())
	assert.Equal(t, setPorts, builder.Ports())
	assert.Equal(t, setRegistration, builder.Registration())
	assert.Equal(t, setVolumes, builder.Volumes())

	for k, v := range addEnv {
		builder.AddEnv(k, v)
	}
	for k, v := range addPorts {
		builder.AddPort(k, v)
	}
	for k, v := range addRegistration {
		builder.AddRegistration(k, v)
	}
	for k, v := range addVolumes {
		builder.AddVolume(k, v)
	}

	assert.Equal(t, setCommand, builder.Command())
	assert.Equal(t, expectedEnv, builder.Env())
	assert.Equal(t, expectedPorts, builder.Ports())
	assert.Equal(t, expectedRegistration, builder.Registration())
	assert.Equal(t, expectedVolumes, builder.Volumes())

	job := builder.Build()
	assert.Equal(t, "set_name", job.ID().Name())
	assert.Equal(t, "set_version", job.ID().Version())
	assert.Equal(t, "set_image", job.Image())
	assert.Equal(t, setCommand, job.Command())
	assert.Equal(t, expectedEnv, job.Env())
	assert.Equal(t, expectedPorts, job.Ports())
	assert.Equal(t, expectedRegistration, job.Registration())
	assert.Equal(t, expectedVolumes, job.Volumes())

	cloned := builder.Clone()
	assert.Equal(t, "set_name", cloned.Name())
	assert.Equal(t, expectedEnv, cloned.Env())
	assert.Equal(t, expectedPorts, cloned.Ports())
	assert.Equal(t, expectedRegistration, cloned.Registration())

	clonedJob := cloned.Build()
	assert.Equal(t, job, clonedJob)
	assert.True(t, job.Equal(clonedJob))
}

func TestBuilder_AddCreatesMissingMaps(t *testing.T) {
	job := NewBuilder().
		SetName("n").
		SetVersion("v").
		AddEnv("a", "1").
		AddPort("http", PortMappingOf(80)).
		AddRegistration(ServiceEndpointOf("web", "http"), ServicePortsOf("http")).
		AddVolume("/data", "/srv/data").
		Build()

	assert.Equal(t, map[string]string{"a": "1"}, job.Env())
	assert.Equal(t, map[string]PortMapping{"http": PortMappingOf(80)}, job.Ports())
	assert.Len(t, job.Registration(), 1)
	assert.Equal(t, map[string]string{"/data": "/srv/data"}, job.Volumes())
}

func TestBuilder_SetThenAddKeepsExisting(t *testing.T) {
	p := PortMappingOf(8080)
	q := PortMappingWithExternal(9090, 19090).WithProtocol(ProtocolUDP)

	job := NewBuilder().
		SetPorts(map[string]PortMapping{"p": p}).
		AddPort("q", q).
		Build()

	assert.Equal(t, map[string]PortMapping{"p": p, "q": q}, job.Ports())
}

func TestBuilder_SetReplacesWholesale(t *testing.T) {
	b := NewBuilder().
		AddEnv("old", "1").
		SetEnv(map[string]string{"new": "2"})
	assert.Equal(t, map[string]string{"new": "2"}, b.Env())
}

func TestBuilder_CloneIsIndependent(t *testing.T) {
	b1 := NewBuilder().
		SetName("n").
		SetCommand([]string{"a"}).
		AddEnv("x", "0").
		AddPort("p", PortMappingOf(1))

	b2 := b1.Clone()
	b2.AddEnv("a", "1")
	b2.AddPort("q", PortMappingOf(2))
	b2.SetCommand([]string{"b"})
	b2.SetName("other")

	assert.Equal(t, map[string]string{"x": "0"}, b1.Env())
	assert.Equal(t, map[string]PortMapping{"p": PortMappingOf(1)}, b1.Ports())
	assert.Equal(t, []string{"a"}, b1.Command())
	assert.Equal(t, "n", b1.Name())

	b1.AddEnv("y", "9")
	assert.Equal(t, map[string]string{"x": "0", "a": "1"}, b2.Env())
}

func TestBuilder_GettersDoNotExposeState(t *testing.T) {
	b := NewBuilder().SetCommand([]string{"a"}).AddEnv("k", "v")

	cmd := b.Command()
	cmd[0] = "mutated"
	env := b.Env()
	env["k"] = "mutated"
	env["extra"] = "x"

	assert.Equal(t, []string{"a"}, b.Command())
	assert.Equal(t, map[string]string{"k": "v"}, b.Env())
}

func TestBuilder_BuildDoesNotMutateBuilder(t *testing.T) {
	b := NewBuilder().SetName("n").SetVersion("1").SetImage("busybox").SetCommand([]string{"true"}).AddEnv("A", "1")

	first := b.Build()
	second := b.Build()

	assert.Equal(t, "n", b.Name())
	assert.Equal(t, []string{"true"}, b.Command())
	assert.Equal(t, map[string]string{"A": "1"}, b.Env())
	assert.Empty(t, b.Ports())
	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)

	b.AddEnv("B", "2")
	assert.Equal(t, map[string]string{"A": "1"}, first.Env())
	assert.NotEqual(t, first.ID(), b.Build().ID())
}

func TestJob_IsImmutable(t *testing.T) {
	expectedCommand := []string{"foo"}
	expectedEnv := map[string]string{"e1": "1"}
	expectedPorts := map[string]PortMapping{"p1": PortMappingWithExternal(1, 2)}
	expectedRegistration := map[ServiceEndpoint]ServicePorts{
		ServiceEndpointOf("foo", "tcp"): ServicePortsOf("p1"),
	}

	mutableCommand := []string{"foo"}
	mutableEnv := map[string]string{"e1": "1"}
	mutablePorts := map[string]PortMapping{"p1": PortMappingWithExternal(1, 2)}
	mutableRegistration := map[ServiceEndpoint]ServicePorts{
		ServiceEndpointOf("foo", "tcp"): ServicePortsOf("p1"),
	}

	builder := NewBuilder().
		SetCommand(mutableCommand).
		SetEnv(mutableEnv).
		SetPorts(mutablePorts).
		SetImage("foobar:4711").
		SetName("foozbarz").
		SetVersion("17").
		SetRegistration(mutableRegistration)

	job := builder.Build()

	mutableCommand[0] = "bar"
	mutableEnv["e2"] = "2"
	mutablePorts["p2"] = PortMappingWithExternal(3, 4)
	mutableRegistration[ServiceEndpointOf("bar", "udp")] = ServicePortsOf("p2")

	builder.AddPort("added_port", PortMappingOf(4711))
	builder.AddEnv("added_env", "FOO")
	builder.AddRegistration(ServiceEndpointOf("added_reg", "added_proto"), ServicePortsOf("added_port"))

	assert.Equal(t, expectedCommand, job.Command())
	assert.Equal(t, expectedEnv, job.Env())
	assert.Equal(t, expectedPorts, job.Ports())
	assert.Equal(t, expectedRegistration, job.Registration())

	// Builder state is untouched by the caller's maps too.
	assert.Equal(t, expectedCommand, builder.Command())
	assert.NotContains(t, builder.Env(), "e2")

	// Getters hand out copies.
	env := job.Env()
	env["sneaky"] = "x"
	assert.Equal(t, expectedEnv, job.Env())
}

func TestJob_SHA1ID(t *testing.T) {
	job := NewBuilder().
		SetCommand([]string{"foo", "bar"}).
		SetImage("foobar:4711").
		SetName("foozbarz").
		SetVersion("17").
		Build()

	assert.Equal(t, MustParseJobID("foozbarz:17:1085fb2d97e209f68bd325d08cb01601bd86b1cd"), job.ID())
	assert.Equal(t, job.ID(), job.ComputedID())
}

func TestJob_SHA1IDWithEnv(t *testing.T) {
	job := NewBuilder().
		SetCommand([]string{"foo", "bar"}).
		SetImage("foobar:4711").
		SetName("foozbarz").
		SetVersion("17").
		SetEnv(map[string]string{"FOO": "BAR"}).
		Build()

	assert.Equal(t, MustParseJobID("foozbarz:17:4763bcf889a6c3d9b078111f80e4c15658deae87"), job.ID())
}

func TestJob_EmptyEnvEqualsUnset(t *testing.T) {
	base := NewBuilder().SetName("n").SetVersion("1").SetImage("busybox").SetCommand([]string{"true"})
	unset := base.Clone().Build()
	empty := base.Clone().SetEnv(map[string]string{}).Build()

	assert.Equal(t, unset.ID(), empty.ID())
	assert.True(t, unset.Equal(empty))
	assert.Equal(t, unset, empty)
}

func TestJob_NewJobKeepsClaim(t *testing.T) {
	claim := NewJobID("bad", "job", "deadbeef")
	job := NewJob(claim, "busyBox", []string{"sleep", "infinity"}, nil, nil, nil, nil)

	assert.Equal(t, claim, job.ID())
	assert.Equal(t, "bad", job.Name())
	assert.Equal(t, "job", job.Version())
	assert.NotEqual(t, claim, job.ComputedID())
	assert.NotNil(t, job.Env())
	assert.NotNil(t, job.Volumes())
}

func TestJob_ToBuilderRoundTrip(t *testing.T) {
	job := NewBuilder().
		SetName("n").
		SetVersion("1").
		SetImage("busybox").
		SetCommand([]string{"true"}).
		AddEnv("A", "B").
		AddPort("http", PortMappingOf(80)).
		Build()

	rebuilt := job.ToBuilder().Build()
	assert.True(t, job.Equal(rebuilt))

	changed := job.ToBuilder().AddEnv("C", "D").Build()
	assert.NotEqual(t, job.ID(), changed.ID())
	assert.Equal(t, map[string]string{"A": "B"}, job.Env())
}

func TestJob_Equal(t *testing.T) {
	base := NewBuilder().SetName("n").SetVersion("1").SetImage("busybox").SetCommand([]string{"a", "b"})

	tests := map[string]struct {
		other *Job
		equal bool
	}{
		"same":                   {other: base.Clone().Build(), equal: true},
		"different command":      {other: base.Clone().SetCommand([]string{"b", "a"}).Build(), equal: false},
		"different ports":        {other: base.Clone().AddPort("p", PortMappingOf(1)).Build(), equal: false},
		"different protocol":     {other: base.Clone().AddPort("p", PortMappingOf(1).WithProtocol(ProtocolUDP)).Build(), equal: false},
		"different volumes":      {other: base.Clone().AddVolume("/a", "/b").Build(), equal: false},
		"different registration": {other: base.Clone().AddRegistration(ServiceEndpointOf("s", "tcp"), ServicePortsOf("p")).Build(), equal: false},
		"nil":                    {other: nil, equal: false},
	}
	job := base.Clone().Build()
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.equal, job.Equal(tc.other))
		})
	}
}

func newTestJob() *Job {
	return NewBuilder().
		SetCommand([]string{"foo", "bar"}).
		SetImage("foobar:4711").
		SetName("foozbarz").
		SetVersion("17").
		Build()
}

func TestJob_ParseWithUnknownFields(t *testing.T) {
	job := newTestJob()
	b, err := job.ToJSON()
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))
	fields["UNKNOWN_FIELD"] = "FOOBAR"
	modified, err := json.Marshal(fields)
	require.NoError(t, err)

	parsed, err := ParseJob(modified)
	require.NoError(t, err)
	assert.Equal(t, job, parsed)
}

func TestJob_ParseWithMissingEnv(t *testing.T) {
	job := newTestJob()
	b, err := job.ToJSON()
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))
	delete(fields, "env")
	modified, err := json.Marshal(fields)
	require.NoError(t, err)

	parsed, err := ParseJob(modified)
	require.NoError(t, err)
	assert.Equal(t, job, parsed)
}

func TestJob_ParseMinimalDocument(t *testing.T) {
	doc := `{"id":"foozbarz:17:1085fb2d97e209f68bd325d08cb01601bd86b1cd","image":"foobar:4711","command":["foo","bar"]}`

	parsed, err := ParseJob([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, newTestJob(), parsed)
	assert.Equal(t, "foozbarz", parsed.Name())
	assert.Equal(t, "17", parsed.Version())
}

func TestJob_JSONRoundTripWithAllFields(t *testing.T) {
	job := NewBuilder().
		SetName("web").
		SetVersion("2").
		SetImage("nginx:1.25").
		SetCommand([]string{"nginx", "-g", "daemon off;"}).
		AddEnv("MODE", "prod").
		AddPort("http", PortMappingWithExternal(80, 8080)).
		AddPort("dns", PortMappingOf(53).WithProtocol(ProtocolUDP)).
		AddRegistration(ServiceEndpointOf("web", "http"), ServicePortsOf("http")).
		AddVolume("/etc/nginx", "/srv/nginx").
		Build()

	b, err := job.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"web/http":{"ports":{"http":{}}}`)

	parsed, err := ParseJob(b)
	require.NoError(t, err)
	assert.True(t, job.Equal(parsed))
	assert.Equal(t, job, parsed)
}

func TestJob_ZeroPortMappingRoundTrip(t *testing.T) {
	job := NewBuilder().
		SetName("web").
		SetVersion("1").
		SetImage("nginx").
		AddPort("http", PortMapping{}).
		Build()
	assert.Equal(t, ProtocolTCP, job.Ports()["http"].Protocol())

	b, err := job.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"http":{"internalPort":0,"protocol":"tcp"}`)

	parsed, err := ParseJob(b)
	require.NoError(t, err)
	assert.True(t, job.Equal(parsed))
	assert.True(t, PortMapping{}.Equal(PortMappingOf(0)))
	assert.False(t, PortMappingOf(0).Equal(PortMappingOf(0).WithProtocol(ProtocolUDP)))
}

func TestParseJob_MalformedID(t *testing.T) {
	_, err := ParseJob([]byte(`{"id":"bad:job:deadbeef","image":"busybox"}`))
	require.Error(t, err)
	var malformed *MalformedIdentityError
	assert.True(t, errors.As(err, &malformed))
}

func TestEnvFromPairs(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, EnvFromPairs("a", "1", "b", "2"))
	assert.Equal(t, map[string]string{}, EnvFromPairs())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrBuilderMisuse))
	}()
	EnvFromPairs("a", "1", "b")
}
