package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/types"
)

// FolderItem is a directory in the library hierarchy.
type FolderItem struct {
	BaseItem
}

func (f *FolderItem) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(types.CapSave, types.CapDelete, types.CapRename, types.CapMove)
}

// Save creates the folder.
func (f *FolderItem) Save(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	if err := os.MkdirAll(f.path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	if err := f.register(nil, values); err != nil {
		return nil, err
	}
	return []string{}, nil
}

// Delete removes the folder with its contents and their records.
func (f *FolderItem) Delete(ctx context.Context) error {
	if err := os.RemoveAll(f.path); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", f.path, err)
	}
	return f.library.Remove(f.path)
}

func (f *FolderItem) Rename(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return f.relocate(filepath.Join(filepath.Dir(f.path), name))
}

func (f *FolderItem) Move(ctx context.Context, targetDir string) (string, error) {
	return f.relocate(filepath.Join(targetDir, filepath.Base(f.path)))
}

// SceneItem is a DCC scene file. The format follows the extension.
type SceneItem struct {
	FileItem
}

func (s *SceneItem) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(
		types.CapSave,
		types.CapExportData,
		types.CapLoad,
		types.CapImportData,
		types.CapReferenceData,
		types.CapDelete,
		types.CapDeleteWithDependencies,
		types.CapRename,
		types.CapMove,
	)
}

func (s *SceneItem) format() host.FileFormat {
	return host.FormatForPath(s.path)
}

// Save writes the current host scene to the item path and returns the
// scene references as dependencies.
func (s *SceneItem) Save(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	return s.write(ctx, values)
}

// Export writes the scene like Save and flags the record as exported.
func (s *SceneItem) Export(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	metadata := make(map[string]interface{}, len(values)+1)
	for k, v := range values {
		metadata[k] = v
	}
	metadata["exported"] = true
	return s.write(ctx, metadata)
}

func (s *SceneItem) write(ctx context.Context, metadata map[string]interface{}) ([]string, error) {
	h, err := s.requireHost()
	if err != nil {
		return nil, err
	}
	if err := h.SaveFile(ctx, s.path, s.format()); err != nil {
		return nil, fmt.Errorf("failed to save scene: %w", err)
	}

	deps, err := h.References(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scene references: %w", err)
	}
	if deps == nil {
		deps = []string{}
	}
	if err := s.register(deps, metadata); err != nil {
		return nil, err
	}
	return deps, nil
}

func (s *SceneItem) Load(ctx context.Context) error {
	h, err := s.requireHost()
	if err != nil {
		return err
	}
	return h.OpenFile(ctx, s.path, s.format())
}

func (s *SceneItem) ImportData(ctx context.Context) error {
	h, err := s.requireHost()
	if err != nil {
		return err
	}
	return h.ImportFile(ctx, s.path, s.format())
}

func (s *SceneItem) ReferenceData(ctx context.Context) error {
	h, err := s.requireHost()
	if err != nil {
		return err
	}
	return h.ReferenceFile(ctx, s.path, s.format())
}

// DeleteWithDependencies removes the scene along with the dependencies
// recorded at save time that live inside the library root.
func (s *SceneItem) DeleteWithDependencies(ctx context.Context) error {
	rec, err := s.library.Record(s.path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if rec != nil {
		root := s.library.Root() + "/"
		for _, dep := range rec.Dependencies {
			if !strings.HasPrefix(filepath.ToSlash(dep), root) {
				continue
			}
			if err := os.Remove(dep); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete dependency %s: %w", dep, err)
			}
			if err := s.library.Remove(dep); err != nil {
				return err
			}
		}
	}
	return s.Delete(ctx)
}

// SelectionSetItem stores a list of scene nodes.
type SelectionSetItem struct {
	FileItem
}

func (s *SelectionSetItem) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(types.CapSave, types.CapLoad, types.CapDelete, types.CapRename, types.CapMove)
}

// Save stores values["nodes"], or the current host selection when absent.
func (s *SelectionSetItem) Save(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	nodes, err := nodesFromValues(values)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		h, err := s.requireHost()
		if err != nil {
			return nil, err
		}
		if nodes, err = h.Selection(ctx); err != nil {
			return nil, fmt.Errorf("failed to read selection: %w", err)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes to save in selection set %q", s.path)
	}

	data, err := yaml.Marshal(&types.SelectionSet{Nodes: nodes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode selection set: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write selection set: %w", err)
	}

	if err := s.register(nil, map[string]interface{}{"count": len(nodes)}); err != nil {
		return nil, err
	}
	return []string{}, nil
}

// Load selects the stored nodes in the host.
func (s *SelectionSetItem) Load(ctx context.Context) error {
	h, err := s.requireHost()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read selection set: %w", err)
	}
	var set types.SelectionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("failed to decode selection set: %w", err)
	}
	return h.Select(ctx, set.Nodes)
}

func nodesFromValues(values map[string]interface{}) ([]string, error) {
	raw, ok := values["nodes"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		nodes := make([]string, 0, len(v))
		for _, n := range v {
			s, ok := n.(string)
			if !ok {
				return nil, fmt.Errorf("node names must be strings, got %T", n)
			}
			nodes = append(nodes, s)
		}
		return nodes, nil
	default:
		return nil, fmt.Errorf("nodes must be a list, got %T", raw)
	}
}

// ImageItem is a preview or reference image. It is only managed, never
// loaded into the host.
type ImageItem struct {
	FileItem
}

func (i *ImageItem) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(types.CapDelete, types.CapRename, types.CapMove)
}
