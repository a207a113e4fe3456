// Package host defines the bridge between command handlers and the DCC
// application that owns the scene.
package host

import (
	"context"
	"errors"

	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

var (
	// ErrUIElementNotFound is returned by SetFocus for unknown UI names.
	ErrUIElementNotFound = errors.New("ui element not found")

	// ErrNodeNotFound is returned when a named node is not in the scene.
	ErrNodeNotFound = errors.New("node not found")
)

// FileFormat is the host scene serialization.
type FileFormat string

const (
	FormatAscii  FileFormat = "ascii"
	FormatBinary FileFormat = "binary"
)

// FormatForPath picks the scene format from the file extension.
func FormatForPath(path string) FileFormat {
	switch utils.Extension(path) {
	case ".mb", ".max":
		return FormatBinary
	default:
		return FormatAscii
	}
}

// Host is implemented by every DCC integration.
type Host interface {
	// Name is the DCC identifier used to locate DCC specific item plugins,
	// e.g. "maya" or "max".
	Name() string

	ListNamespaces(ctx context.Context) ([]string, error)
	ListNodes(ctx context.Context, query types.NodeQuery) ([]string, error)
	SetFocus(ctx context.Context, uiName string) error

	SaveFile(ctx context.Context, path string, format FileFormat) error
	OpenFile(ctx context.Context, path string, format FileFormat) error
	ImportFile(ctx context.Context, path string, format FileFormat) error
	ReferenceFile(ctx context.Context, path string, format FileFormat) error
	References(ctx context.Context) ([]string, error)

	Selection(ctx context.Context) ([]string, error)
	Select(ctx context.Context, nodes []string) error
}
