package library

import (
	"sort"
	"strings"

	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// Factory builds an item of a kind around its base.
type Factory func(base BaseItem) DataItem

// Kind describes one item implementation and the paths it handles.
type Kind struct {
	Name       types.ItemKind
	Extensions []string
	// Folder kinds handle directories instead of extensions.
	Folder bool
	New    Factory
}

// Registry maps paths to item kinds.
type Registry struct {
	kinds  map[types.ItemKind]Kind
	byExt  map[string]types.ItemKind
	folder types.ItemKind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[types.ItemKind]Kind),
		byExt: make(map[string]types.ItemKind),
	}
}

// DefaultRegistry returns a registry with the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Kind{
		Name:   types.KindFolder,
		Folder: true,
		New:    func(b BaseItem) DataItem { return &FolderItem{BaseItem: b} },
	})
	r.Register(Kind{
		Name:       types.KindMayaAscii,
		Extensions: []string{".ma"},
		New:        func(b BaseItem) DataItem { return &SceneItem{FileItem: FileItem{BaseItem: b}} },
	})
	r.Register(Kind{
		Name:       types.KindMayaBinary,
		Extensions: []string{".mb"},
		New:        func(b BaseItem) DataItem { return &SceneItem{FileItem: FileItem{BaseItem: b}} },
	})
	r.Register(Kind{
		Name:       types.KindSelectionSet,
		Extensions: []string{".set"},
		New:        func(b BaseItem) DataItem { return &SelectionSetItem{FileItem: FileItem{BaseItem: b}} },
	})
	r.Register(Kind{
		Name:       types.KindImage,
		Extensions: []string{".png", ".jpg", ".jpeg"},
		New:        func(b BaseItem) DataItem { return &ImageItem{FileItem: FileItem{BaseItem: b}} },
	})
	return r
}

// Register adds or replaces a kind. Later registrations win extension
// conflicts.
func (r *Registry) Register(kind Kind) {
	r.kinds[kind.Name] = kind
	if kind.Folder {
		r.folder = kind.Name
	}
	for _, ext := range kind.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = kind.Name
	}
}

// ByName returns the kind registered under name.
func (r *Registry) ByName(name types.ItemKind) (Kind, bool) {
	kind, ok := r.kinds[name]
	return kind, ok
}

// ForPath returns the kind handling path.
func (r *Registry) ForPath(path string, isDir bool) (Kind, bool) {
	if isDir {
		if r.folder == "" {
			return Kind{}, false
		}
		return r.ByName(r.folder)
	}
	name, ok := r.byExt[utils.Extension(path)]
	if !ok {
		return Kind{}, false
	}
	return r.ByName(name)
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
