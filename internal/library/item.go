package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// ErrUnsupported is returned by operations an item does not implement.
var ErrUnsupported = errors.New("operation not supported")

// ErrInvalidName is returned by Rename for names that would leave the
// item's folder.
var ErrInvalidName = errors.New("invalid item name")

// DataItem is a single addressable unit of saved data. Callers check
// Capabilities before invoking an operation; operations outside the set
// return ErrUnsupported.
type DataItem interface {
	Path() string
	Kind() types.ItemKind
	Capabilities() types.CapabilitySet

	// Save writes the item and returns its dependency paths.
	Save(ctx context.Context, values map[string]interface{}) (interface{}, error)
	// Export writes the item for use outside the library and returns its
	// dependency paths.
	Export(ctx context.Context, values map[string]interface{}) (interface{}, error)
	Load(ctx context.Context) error
	ImportData(ctx context.Context) error
	ReferenceData(ctx context.Context) error
	Delete(ctx context.Context) error
	DeleteWithDependencies(ctx context.Context) error
	// Rename and Move return the new path of the item.
	Rename(ctx context.Context, name string) (string, error)
	Move(ctx context.Context, targetDir string) (string, error)
}

// Supports reports whether item advertises c.
func Supports(item DataItem, c types.Capability) bool {
	return item != nil && item.Capabilities().Has(c)
}

// BaseItem implements every operation as unsupported. Item kinds embed it
// and override what they handle.
type BaseItem struct {
	library *Library
	path    string
	kind    types.ItemKind
}

func newBase(l *Library, path string, kind types.ItemKind) BaseItem {
	return BaseItem{library: l, path: path, kind: kind}
}

func (b *BaseItem) Path() string                      { return b.path }
func (b *BaseItem) Kind() types.ItemKind              { return b.kind }
func (b *BaseItem) Capabilities() types.CapabilitySet { return nil }

func (b *BaseItem) Save(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	return nil, b.unsupported(types.CapSave)
}

func (b *BaseItem) Export(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	return nil, b.unsupported(types.CapExportData)
}

func (b *BaseItem) Load(ctx context.Context) error {
	return b.unsupported(types.CapLoad)
}

func (b *BaseItem) ImportData(ctx context.Context) error {
	return b.unsupported(types.CapImportData)
}

func (b *BaseItem) ReferenceData(ctx context.Context) error {
	return b.unsupported(types.CapReferenceData)
}

func (b *BaseItem) Delete(ctx context.Context) error {
	return b.unsupported(types.CapDelete)
}

func (b *BaseItem) DeleteWithDependencies(ctx context.Context) error {
	return b.unsupported(types.CapDeleteWithDependencies)
}

func (b *BaseItem) Rename(ctx context.Context, name string) (string, error) {
	return "", b.unsupported(types.CapRename)
}

func (b *BaseItem) Move(ctx context.Context, targetDir string) (string, error) {
	return "", b.unsupported(types.CapMove)
}

func (b *BaseItem) unsupported(c types.Capability) error {
	return fmt.Errorf("%w: %s on %s item %q", ErrUnsupported, c, b.kind, b.path)
}

func (b *BaseItem) requireHost() (host.Host, error) {
	if b.library.host == nil {
		return nil, ErrNoHost
	}
	return b.library.host, nil
}

func (b *BaseItem) register(deps []string, metadata map[string]interface{}) error {
	return b.library.Register(&types.ItemRecord{
		Path:         b.path,
		Kind:         b.kind,
		Dependencies: deps,
		Metadata:     metadata,
	})
}

// checkName accepts a plain file or folder name.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// relocate moves the item and its records to newPath.
func (b *BaseItem) relocate(newPath string) (string, error) {
	newPath = utils.NormalizePath(newPath)
	if newPath == b.path {
		return newPath, nil
	}
	if utils.PathExists(newPath) {
		return "", fmt.Errorf("cannot move %q: %q already exists", b.path, newPath)
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := os.Rename(b.path, newPath); err != nil {
		return "", fmt.Errorf("failed to move item: %w", err)
	}
	if err := b.library.Rebase(b.path, newPath); err != nil {
		return "", fmt.Errorf("failed to update library records: %w", err)
	}

	b.library.logger.Debug("Item relocated",
		zap.String("from", b.path),
		zap.String("to", newPath))
	b.path = newPath
	return newPath, nil
}

// FileItem implements delete, rename and move for single-file items.
type FileItem struct {
	BaseItem
}

func (f *FileItem) Delete(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", f.path, err)
	}
	return f.library.Remove(f.path)
}

// Rename keeps the current extension when name has none.
func (f *FileItem) Rename(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if filepath.Ext(name) == "" {
		name += filepath.Ext(f.path)
	}
	return f.relocate(filepath.Join(filepath.Dir(f.path), name))
}

func (f *FileItem) Move(ctx context.Context, targetDir string) (string, error) {
	return f.relocate(filepath.Join(targetDir, filepath.Base(f.path)))
}
