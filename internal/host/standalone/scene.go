// Package standalone provides an in-process scene host used when the server
// runs outside of a DCC, and by tests.
package standalone

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/types"
)

const sceneVersion = 1

// Scene is a minimal scene graph that behaves like a DCC for the commands
// the server issues.
type Scene struct {
	mu sync.Mutex

	name        string
	nodes       map[string]types.Node
	namespaces  map[string]struct{}
	references  []string
	selection   []string
	ui          map[string]struct{}
	focused     string
	currentFile string

	logger *zap.Logger
}

var _ host.Host = (*Scene)(nil)

// New creates an empty scene for the DCC called name.
func New(name string, logger *zap.Logger) *Scene {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scene{
		name:   name,
		ui:     make(map[string]struct{}),
		logger: logger,
	}
	s.reset()
	return s
}

func (s *Scene) reset() {
	s.nodes = make(map[string]types.Node)
	s.namespaces = make(map[string]struct{})
	for _, ns := range types.ReservedNamespaces {
		s.namespaces[ns] = struct{}{}
	}
	s.references = nil
	s.selection = nil
}

// Name implements host.Host.
func (s *Scene) Name() string {
	return s.name
}

// AddNode adds or replaces a node. longName must start with "|".
func (s *Scene) AddNode(longName, nodeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addNodeLocked(types.Node{LongName: longName, Type: nodeType})
}

func (s *Scene) addNodeLocked(node types.Node) {
	if !strings.HasPrefix(node.LongName, "|") {
		node.LongName = "|" + node.LongName
	}
	s.nodes[node.LongName] = node
	for _, ns := range namespacesOf(node.LongName) {
		s.namespaces[ns] = struct{}{}
	}
}

// AddNamespace registers a namespace that may have no nodes.
func (s *Scene) AddNamespace(ns string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[ns] = struct{}{}
}

// AddUIElement registers a UI element that SetFocus can target.
func (s *Scene) AddUIElement(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui[name] = struct{}{}
}

// Focused returns the UI element that last received focus.
func (s *Scene) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// CurrentFile returns the path the scene was last saved to or opened from.
func (s *Scene) CurrentFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFile
}

// ListNamespaces implements host.Host. Results are unordered and include
// the reserved namespaces.
func (s *Scene) ListNamespaces(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.namespaces))
	for ns := range s.namespaces {
		out = append(out, ns)
	}
	return out, nil
}

// ListNodes implements host.Host. Name is a glob matched against the short
// name, or against the long name when it starts with "|".
func (s *Scene) ListNodes(ctx context.Context, query types.NodeQuery) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, long := range s.sortedNamesLocked() {
		node := s.nodes[long]
		if query.Type != "" && node.Type != query.Type {
			continue
		}
		if query.Name != "" {
			subject := shortName(long)
			if strings.HasPrefix(query.Name, "|") {
				subject = long
			}
			ok, err := path.Match(query.Name, subject)
			if err != nil {
				return nil, fmt.Errorf("invalid node name pattern %q: %w", query.Name, err)
			}
			if !ok {
				continue
			}
		}
		if query.FullPath {
			out = append(out, long)
		} else {
			out = append(out, shortName(long))
		}
	}
	return out, nil
}

// SetFocus implements host.Host.
func (s *Scene) SetFocus(ctx context.Context, uiName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ui[uiName]; !ok {
		return fmt.Errorf("%w: %q", host.ErrUIElementNotFound, uiName)
	}
	s.focused = uiName
	return nil
}

// SaveFile implements host.Host.
func (s *Scene) SaveFile(ctx context.Context, filePath string, format host.FileFormat) error {
	s.mu.Lock()
	scene := s.snapshotLocked()
	s.mu.Unlock()

	data, err := encodeScene(scene, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create scene directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write scene file: %w", err)
	}

	s.mu.Lock()
	s.currentFile = filePath
	s.mu.Unlock()

	s.logger.Debug("Scene saved",
		zap.String("path", filePath),
		zap.String("format", string(format)),
		zap.Int("nodes", len(scene.Nodes)))
	return nil
}

// OpenFile implements host.Host. The current scene is replaced.
func (s *Scene) OpenFile(ctx context.Context, filePath string, format host.FileFormat) error {
	scene, err := readScene(filePath, format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.mergeLocked(scene, "")
	s.references = append(s.references, scene.References...)
	s.currentFile = filePath
	return nil
}

// ImportFile implements host.Host. Nodes are merged as-is, without
// renaming on namespace clashes.
func (s *Scene) ImportFile(ctx context.Context, filePath string, format host.FileFormat) error {
	scene, err := readScene(filePath, format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(scene, "")
	return nil
}

// ReferenceFile implements host.Host. Referenced nodes live under a
// namespace named after the file.
func (s *Scene) ReferenceFile(ctx context.Context, filePath string, format host.FileFormat) error {
	scene, err := readScene(filePath, format)
	if err != nil {
		return err
	}

	ns := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[ns] = struct{}{}
	s.mergeLocked(scene, ns)
	s.references = append(s.references, filePath)
	return nil
}

// References implements host.Host.
func (s *Scene) References(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.references...), nil
}

// Selection implements host.Host.
func (s *Scene) Selection(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection...), nil
}

// Select implements host.Host. Names may be long or unique short names.
func (s *Scene) Select(ctx context.Context, nodes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	selection := make([]string, 0, len(nodes))
	for _, name := range nodes {
		long, ok := s.resolveLocked(name)
		if !ok {
			return fmt.Errorf("%w: %q", host.ErrNodeNotFound, name)
		}
		selection = append(selection, long)
	}
	s.selection = selection
	return nil
}

func (s *Scene) resolveLocked(name string) (string, bool) {
	if _, ok := s.nodes[name]; ok {
		return name, true
	}
	var match string
	for long := range s.nodes {
		if shortName(long) == name {
			if match != "" {
				return "", false
			}
			match = long
		}
	}
	return match, match != ""
}

func (s *Scene) mergeLocked(scene *types.SceneFile, ns string) {
	for _, node := range scene.Nodes {
		if ns != "" {
			node.LongName = prefixNamespace(node.LongName, ns)
		}
		s.addNodeLocked(node)
	}
	for _, name := range scene.Namespaces {
		if ns != "" {
			name = ns + ":" + name
		}
		s.namespaces[name] = struct{}{}
	}
}

func (s *Scene) snapshotLocked() *types.SceneFile {
	scene := &types.SceneFile{Version: sceneVersion}
	for _, long := range s.sortedNamesLocked() {
		scene.Nodes = append(scene.Nodes, s.nodes[long])
	}

	derived := make(map[string]struct{})
	for long := range s.nodes {
		for _, ns := range namespacesOf(long) {
			derived[ns] = struct{}{}
		}
	}
	for _, ns := range types.ReservedNamespaces {
		derived[ns] = struct{}{}
	}
	for ns := range s.namespaces {
		if _, ok := derived[ns]; !ok {
			scene.Namespaces = append(scene.Namespaces, ns)
		}
	}
	sort.Strings(scene.Namespaces)
	scene.References = append(scene.References, s.references...)
	return scene
}

func (s *Scene) sortedNamesLocked() []string {
	names := make([]string, 0, len(s.nodes))
	for long := range s.nodes {
		names = append(names, long)
	}
	sort.Strings(names)
	return names
}

func encodeScene(scene *types.SceneFile, format host.FileFormat) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case host.FormatBinary:
		data, err = msgpack.Marshal(scene)
	case host.FormatAscii:
		data, err = yaml.Marshal(scene)
	default:
		return nil, fmt.Errorf("unknown scene format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode scene: %w", err)
	}
	return data, nil
}

func readScene(filePath string, format host.FileFormat) (*types.SceneFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	var scene types.SceneFile
	switch format {
	case host.FormatBinary:
		err = msgpack.Unmarshal(data, &scene)
	case host.FormatAscii:
		err = yaml.Unmarshal(data, &scene)
	default:
		return nil, fmt.Errorf("unknown scene format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode scene %s: %w", filePath, err)
	}
	return &scene, nil
}

// shortName returns the leaf of a DAG path.
func shortName(long string) string {
	if i := strings.LastIndex(long, "|"); i >= 0 {
		return long[i+1:]
	}
	return long
}

// namespacesOf returns every namespace, parents included, used by the
// segments of a DAG path.
func namespacesOf(long string) []string {
	var out []string
	for _, segment := range strings.Split(long, "|") {
		parts := strings.Split(segment, ":")
		for i := 1; i < len(parts); i++ {
			out = append(out, strings.Join(parts[:i], ":"))
		}
	}
	return out
}

func prefixNamespace(long, ns string) string {
	segments := strings.Split(long, "|")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		segments[i] = ns + ":" + segment
	}
	return strings.Join(segments, "|")
}
