package types

// Reserved namespaces every Maya scene carries. They are never reported
// to clients.
var ReservedNamespaces = []string{"UI", "shared"}

// Node is one entry of a host scene graph.
type Node struct {
	// LongName is the full DAG path, e.g. "|rig|char:root".
	LongName string `json:"long_name" yaml:"long_name" msgpack:"long_name"`
	Type     string `json:"type" yaml:"type" msgpack:"type"`
}

// NodeQuery filters a node listing. Empty Name and Type mean no filter.
type NodeQuery struct {
	Name     string
	Type     string
	FullPath bool
}

// SceneFile is the on-disk representation written by the standalone host.
type SceneFile struct {
	Version    int      `json:"version" yaml:"version" msgpack:"version"`
	Nodes      []Node   `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty" msgpack:"namespaces"`
	References []string `json:"references,omitempty" yaml:"references,omitempty" msgpack:"references"`
}

// SelectionSet is the on-disk representation of a saved selection.
type SelectionSet struct {
	Nodes []string `json:"nodes" yaml:"nodes"`
}
