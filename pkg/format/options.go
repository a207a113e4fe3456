package format

import "github.com/berrythewa/datalibrary/internal/types"

// Options controls formatting behavior
type Options struct {
	UseColors    bool
	UseIcons     bool
	MaxWidth     int  // Max path width (0 = no limit)
	ShowMetadata bool // Show id, dependencies and metadata
	Compact      bool // One line per record
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors:    true,
		UseIcons:     true,
		MaxWidth:     80,
		ShowMetadata: true,
	}
}

// CompactOptions returns options for single-line listings
func CompactOptions() Options {
	opts := DefaultOptions()
	opts.Compact = true
	opts.ShowMetadata = false
	return opts
}

// KindIcons maps item kinds to Unicode icons
var KindIcons = map[types.ItemKind]string{
	types.KindFolder:       "📁",
	types.KindMayaAscii:    "📝",
	types.KindMayaBinary:   "📦",
	types.KindSelectionSet: "🎯",
	types.KindImage:        "🖼️",
}

// KindColors maps item kinds to colors
var KindColors = map[types.ItemKind]string{
	types.KindFolder:       Yellow,
	types.KindMayaAscii:    Cyan,
	types.KindMayaBinary:   Blue,
	types.KindSelectionSet: Green,
	types.KindImage:        Magenta,
}

// iconFor falls back to a generic icon for kinds registered at runtime.
func iconFor(kind types.ItemKind) string {
	if icon, ok := KindIcons[kind]; ok {
		return icon
	}
	return "📄"
}
