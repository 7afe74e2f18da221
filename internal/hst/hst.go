// Package hst reads virtual host and mount configuration from a merged
// configuration tree and resolves requests to mounts.
//
// Virtual hosts are nested per host name label, top-level domain first:
// the node path com/example/www describes www.example.com. Each host may
// carry a root mount and port mounts; mounts nest by path segment.
package hst

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/nodename"
	"github.com/conneroisu/hcm/internal/tree"
)

// Node types and property names.
const (
	TypeVirtualHosts     = "hst:virtualhosts"
	TypeVirtualHostGroup = "hst:virtualhostgroup"
	TypeVirtualHost      = "hst:virtualhost"
	TypePortMount        = "hst:portmount"
	TypeMount            = "hst:mount"

	RootMountName = "hst:root"

	PropDefaultHostName = "hst:defaulthostname"
	PropScheme          = "hst:scheme"
	PropShowPort        = "hst:showport"
	PropMountPoint      = "hst:mountpoint"
	PropIsMapped        = "hst:ismapped"
	PropAlias           = "hst:alias"
	PropType            = "hst:type"
	PropLocale          = "hst:locale"
	PropHomePage        = "hst:homepage"

	DefaultScheme    = "http"
	DefaultMountType = "live"
)

// Wildcard host name labels.
const (
	WildcardDefault = "_default_"
	WildcardAny     = "*"
)

// Sentinel errors; errors.Is matches any error with the same code.
var (
	ErrHostNotFound  = hcmerrors.NewValidationError(hcmerrors.ErrCodeHostNotFound, "host not found")
	ErrMountNotFound = hcmerrors.NewValidationError(hcmerrors.ErrCodeMountNotFound, "mount not found")
)

// VirtualHosts is the set of hosts read from the hosts node.
type VirtualHosts struct {
	DefaultHostName string
	hosts           map[string]*VirtualHost
}

// VirtualHost is one host name.
type VirtualHost struct {
	Name       string
	Group      string
	Scheme     string
	ShowPort   bool
	Locale     string
	RootMount  *Mount
	PortMounts map[int]*Mount
}

// Mount maps a path prefix of a host to a site.
type Mount struct {
	Name       string
	Parent     *Mount
	Children   []*Mount
	Host       *VirtualHost
	Port       int
	MountPoint string
	IsMapped   bool
	Alias      string
	Type       string
	Locale     string
	HomePage   string
}

// Path returns the mount path below its host, "/" for a root mount.
func (m *Mount) Path() string {
	if m.Parent == nil {
		return "/"
	}
	parent := m.Parent.Path()
	if parent == "/" {
		return "/" + m.Name
	}
	return parent + "/" + m.Name
}

// Child returns the named child mount or nil.
func (m *Mount) Child(name string) *Mount {
	for _, c := range m.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ResolvedMount is the outcome of resolving a request.
type ResolvedMount struct {
	Mount         *Mount
	Host          *VirtualHost
	MatchedPath   string
	RemainingPath string
}

// Load reads the hosts node at hostsPath.
func Load(root *tree.Node, hostsPath string) (*VirtualHosts, error) {
	hostsNode := root.Resolve(hostsPath)
	if hostsNode == nil {
		return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeHostNotFound,
			fmt.Sprintf("hosts node '%s' does not exist", hostsPath))
	}

	vh := &VirtualHosts{
		DefaultHostName: strings.ToLower(stringProp(hostsNode, PropDefaultHostName, "")),
		hosts:           make(map[string]*VirtualHost),
	}

	for _, group := range hostsNode.Nodes() {
		if group.PrimaryType() != TypeVirtualHostGroup {
			continue
		}
		for _, host := range group.Nodes() {
			if host.PrimaryType() != TypeVirtualHost {
				continue
			}
			if err := vh.loadHost(group.Name(), host, nil, hostDefaults{scheme: DefaultScheme}); err != nil {
				return nil, err
			}
		}
	}
	return vh, nil
}

type hostDefaults struct {
	scheme   string
	showPort bool
	locale   string
}

func (vh *VirtualHosts) loadHost(group string, node *tree.Node, labels []string, inherited hostDefaults) error {
	labels = append([]string{strings.ToLower(nodename.Decode(node.Name()))}, labels...)
	name := strings.Join(labels, ".")

	defaults := hostDefaults{
		scheme:   stringProp(node, PropScheme, inherited.scheme),
		showPort: boolProp(node, PropShowPort, inherited.showPort),
		locale:   stringProp(node, PropLocale, inherited.locale),
	}

	if existing, ok := vh.hosts[name]; ok {
		return hcmerrors.NewValidationError(hcmerrors.ErrCodeDuplicateHost,
			fmt.Sprintf("host '%s' is defined in groups '%s' and '%s'", name, existing.Group, group)).
			WithContext("node", node.Path())
	}

	host := &VirtualHost{
		Name:       name,
		Group:      group,
		Scheme:     defaults.scheme,
		ShowPort:   defaults.showPort,
		Locale:     defaults.locale,
		PortMounts: make(map[int]*Mount),
	}
	vh.hosts[name] = host

	for _, child := range node.Nodes() {
		switch child.PrimaryType() {
		case TypeVirtualHost:
			if err := vh.loadHost(group, child, labels, defaults); err != nil {
				return err
			}
		case TypePortMount:
			port, err := strconv.Atoi(child.Name())
			if err != nil || port <= 0 || port > 65535 {
				return hcmerrors.NewValidationError(hcmerrors.ErrCodeValidationFailed,
					fmt.Sprintf("port mount '%s' must be named after a port number", child.Path()))
			}
			if r := child.Node(RootMountName); r != nil && r.PrimaryType() == TypeMount {
				host.PortMounts[port] = loadMount(host, port, r, nil)
			}
		case TypeMount:
			if child.Name() == RootMountName {
				host.RootMount = loadMount(host, 0, child, nil)
			}
		}
	}
	return nil
}

func loadMount(host *VirtualHost, port int, node *tree.Node, parent *Mount) *Mount {
	inheritedType, inheritedLocale := DefaultMountType, host.Locale
	if parent != nil {
		inheritedType, inheritedLocale = parent.Type, parent.Locale
	}

	m := &Mount{
		Name:       node.Name(),
		Parent:     parent,
		Host:       host,
		Port:       port,
		MountPoint: stringProp(node, PropMountPoint, ""),
		IsMapped:   boolProp(node, PropIsMapped, true),
		Alias:      stringProp(node, PropAlias, ""),
		Type:       stringProp(node, PropType, inheritedType),
		Locale:     stringProp(node, PropLocale, inheritedLocale),
		HomePage:   stringProp(node, PropHomePage, ""),
	}
	if parent == nil {
		m.Name = ""
	}

	for _, child := range node.Nodes() {
		if child.PrimaryType() == TypeMount {
			m.Children = append(m.Children, loadMount(host, port, child, m))
		}
	}
	return m
}

// Hosts returns all hosts sorted by name.
func (vh *VirtualHosts) Hosts() []*VirtualHost {
	out := make([]*VirtualHost, 0, len(vh.hosts))
	for _, h := range vh.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Host returns the host matching name. An exact match wins over wildcard
// labels; among wildcard matches the one with the fewest wildcards wins.
// Unknown names fall back to the default host name.
func (vh *VirtualHosts) Host(name string) (*VirtualHost, error) {
	name = strings.ToLower(name)
	if h := vh.match(name); h != nil {
		return h, nil
	}
	if vh.DefaultHostName != "" && vh.DefaultHostName != name {
		if h := vh.match(vh.DefaultHostName); h != nil {
			return h, nil
		}
	}
	return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeHostNotFound,
		fmt.Sprintf("no virtual host matches '%s'", name))
}

func (vh *VirtualHosts) match(name string) *VirtualHost {
	if h, ok := vh.hosts[name]; ok {
		return h
	}

	labels := strings.Split(name, ".")
	var best *VirtualHost
	bestWildcards := len(labels) + 1
	for hostName, h := range vh.hosts {
		pattern := strings.Split(hostName, ".")
		if len(pattern) != len(labels) {
			continue
		}
		wildcards, ok := matchLabels(pattern, labels)
		if !ok {
			continue
		}
		if wildcards < bestWildcards || (wildcards == bestWildcards && hostName < best.Name) {
			best, bestWildcards = h, wildcards
		}
	}
	return best
}

func matchLabels(pattern, labels []string) (int, bool) {
	wildcards := 0
	for i, p := range pattern {
		switch {
		case p == WildcardDefault || p == WildcardAny:
			wildcards++
		case p != labels[i]:
			return 0, false
		}
	}
	return wildcards, true
}

// Resolve finds the mount serving a request. A "host:port" host overrides
// port. A port mount for the port beats the host's root mount; below it
// the deepest mount whose segments prefix path wins.
func (vh *VirtualHosts) Resolve(host string, port int, path string) (*ResolvedMount, error) {
	if h, p, ok := strings.Cut(host, ":"); ok {
		if n, err := strconv.Atoi(p); err == nil {
			host, port = h, n
		}
	}

	vhost, err := vh.Host(host)
	if err != nil {
		return nil, err
	}

	mount := vhost.PortMounts[port]
	if mount == nil {
		mount = vhost.RootMount
	}
	if mount == nil {
		return nil, hcmerrors.NewValidationError(hcmerrors.ErrCodeMountNotFound,
			fmt.Sprintf("host '%s' has no mount for port %d", vhost.Name, port))
	}

	segments := splitRequestPath(path)
	matched := 0
	for matched < len(segments) {
		child := mount.Child(segments[matched])
		if child == nil {
			break
		}
		mount = child
		matched++
	}

	return &ResolvedMount{
		Mount:         mount,
		Host:          vhost,
		MatchedPath:   "/" + strings.Join(segments[:matched], "/"),
		RemainingPath: "/" + strings.Join(segments[matched:], "/"),
	}, nil
}

func splitRequestPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func stringProp(n *tree.Node, name, fallback string) string {
	if p := n.Property(name); p != nil {
		if v, ok := p.Value(); ok {
			return v.Raw
		}
	}
	return fallback
}

func boolProp(n *tree.Node, name string, fallback bool) bool {
	raw := stringProp(n, name, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
