package descriptors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// PortMapping maps a container port to an optional external port.
type PortMapping struct {
	internalPort int
	externalPort int
	hasExternal  bool
	protocol     string
}

// PortMappingOf returns a tcp mapping with a dynamically allocated external port.
func PortMappingOf(internalPort int) PortMapping {
	return PortMapping{internalPort: internalPort, protocol: ProtocolTCP}
}

// PortMappingWithExternal returns a tcp mapping pinned to externalPort.
func PortMappingWithExternal(internalPort, externalPort int) PortMapping {
	return PortMapping{internalPort: internalPort, externalPort: externalPort, hasExternal: true, protocol: ProtocolTCP}
}

// WithProtocol returns a copy of the mapping using protocol.
func (p PortMapping) WithProtocol(protocol string) PortMapping {
	p.protocol = protocol
	return p
}

func (p PortMapping) InternalPort() int { return p.internalPort }
// Protocol returns the mapping's protocol. The zero value means tcp.
func (p PortMapping) Protocol() string {
	if p.protocol == "" {
		return ProtocolTCP
	}
	return p.protocol
}

// ExternalPort returns the external port and whether one was requested.
func (p PortMapping) ExternalPort() (int, bool) {
	return p.externalPort, p.hasExternal
}

func (p PortMapping) String() string {
	if p.hasExternal {
		return fmt.Sprintf("%d:%d/%s", p.internalPort, p.externalPort, p.Protocol())
	}
	return fmt.Sprintf("%d/%s", p.internalPort, p.Protocol())
}

// Equal compares mappings with an unset protocol treated as tcp.
func (p PortMapping) Equal(other PortMapping) bool {
	return p.internalPort == other.internalPort &&
		p.hasExternal == other.hasExternal &&
		p.externalPort == other.externalPort &&
		p.Protocol() == other.Protocol()
}

type portMappingJSON struct {
	InternalPort int    `json:"internalPort"`
	ExternalPort *int   `json:"externalPort,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
}

func (p PortMapping) MarshalJSON() ([]byte, error) {
	out := portMappingJSON{InternalPort: p.internalPort, Protocol: p.Protocol()}
	if p.hasExternal {
		ext := p.externalPort
		out.ExternalPort = &ext
	}
	return json.Marshal(out)
}

func (p *PortMapping) UnmarshalJSON(b []byte) error {
	var in portMappingJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*p = PortMappingOf(in.InternalPort)
	if in.ExternalPort != nil {
		p.externalPort = *in.ExternalPort
		p.hasExternal = true
	}
	if in.Protocol != "" {
		p.protocol = in.Protocol
	}
	return nil
}

// ServiceEndpoint names a service registration, e.g. "web/http".
type ServiceEndpoint struct {
	Name     string
	Protocol string
}

func ServiceEndpointOf(name, protocol string) ServiceEndpoint {
	return ServiceEndpoint{Name: name, Protocol: protocol}
}

func (e ServiceEndpoint) String() string {
	return e.Name + "/" + e.Protocol
}

func (e ServiceEndpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *ServiceEndpoint) UnmarshalText(b []byte) error {
	s := string(b)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		*e = ServiceEndpoint{Name: s}
		return nil
	}
	*e = ServiceEndpoint{Name: s[:i], Protocol: s[i+1:]}
	return nil
}

// ServicePorts is the immutable set of port names a service endpoint is registered on.
type ServicePorts struct {
	ports []string
}

// ServicePortsOf returns a set of the given port names.
func ServicePortsOf(names ...string) ServicePorts {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	ports := make([]string, 0, len(set))
	for n := range set {
		ports = append(ports, n)
	}
	sort.Strings(ports)
	return ServicePorts{ports: ports}
}

// Ports returns the sorted port names.
func (s ServicePorts) Ports() []string {
	out := make([]string, len(s.ports))
	copy(out, s.ports)
	return out
}

func (s ServicePorts) Contains(name string) bool {
	i := sort.SearchStrings(s.ports, name)
	return i < len(s.ports) && s.ports[i] == name
}

func (s ServicePorts) Equal(other ServicePorts) bool {
	if len(s.ports) != len(other.ports) {
		return false
	}
	for i := range s.ports {
		if s.ports[i] != other.ports[i] {
			return false
		}
	}
	return true
}

type servicePortsJSON struct {
	Ports map[string]struct{} `json:"ports"`
}

func (s ServicePorts) MarshalJSON() ([]byte, error) {
	out := servicePortsJSON{Ports: make(map[string]struct{}, len(s.ports))}
	for _, p := range s.ports {
		out.Ports[p] = struct{}{}
	}
	return json.Marshal(out)
}

func (s *ServicePorts) UnmarshalJSON(b []byte) error {
	var in servicePortsJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	names := make([]string, 0, len(in.Ports))
	for n := range in.Ports {
		names = append(names, n)
	}
	*s = ServicePortsOf(names...)
	return nil
}
