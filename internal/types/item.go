package types

import (
	"time"
)

// ItemKind identifies which item implementation handles a path.
type ItemKind string

const (
	KindFolder       ItemKind = "folder"
	KindMayaAscii    ItemKind = "maya.ascii"
	KindMayaBinary   ItemKind = "maya.binary"
	KindSelectionSet ItemKind = "selection.set"
	KindImage        ItemKind = "image"
)

// ItemRecord is the persisted index entry of a data item inside a library.
type ItemRecord struct {
	ID           string                 `json:"id" yaml:"id"`
	Path         string                 `json:"path" yaml:"path"`
	Name         string                 `json:"name" yaml:"name"`
	Kind         ItemKind               `json:"kind" yaml:"kind"`
	Extension    string                 `json:"extension,omitempty" yaml:"extension,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// Capabilities is filled from the item kind when records are read and
	// is never stored.
	Capabilities []string               `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Created      time.Time              `json:"created" yaml:"created"`
	Modified     time.Time              `json:"modified" yaml:"modified"`
}

// LibraryInfo is the metadata stored alongside the items of a library.
type LibraryInfo struct {
	ID      string    `json:"id" yaml:"id"`
	Root    string    `json:"root" yaml:"root"`
	Created time.Time `json:"created" yaml:"created"`
	Synced  time.Time `json:"synced,omitempty" yaml:"synced,omitempty"`
}
