package types

import (
	"sort"
)

// Capability names an operation a data item may support.
type Capability string

const (
	CapSave                   Capability = "save"
	CapLoad                   Capability = "load"
	CapImportData             Capability = "import_data"
	CapReferenceData          Capability = "reference_data"
	CapExportData             Capability = "export_data"
	CapDelete                 Capability = "delete"
	CapDeleteWithDependencies Capability = "delete_with_dependencies"
	CapRename                 Capability = "rename"
	CapMove                   Capability = "move"
)

// AllCapabilities lists every known capability in display order.
var AllCapabilities = []Capability{
	CapSave,
	CapLoad,
	CapImportData,
	CapReferenceData,
	CapExportData,
	CapDelete,
	CapDeleteWithDependencies,
	CapRename,
	CapMove,
}

// ParseCapability converts a wire name into a Capability.
func ParseCapability(name string) (Capability, bool) {
	for _, c := range AllCapabilities {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// CapabilitySet is the set of operations advertised by an item.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set. A nil set has nothing.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in AllCapabilities order, unknown ones last.
func (s CapabilitySet) List() []Capability {
	order := make(map[Capability]int, len(AllCapabilities))
	for i, c := range AllCapabilities {
		order[c] = i
	}

	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Strings returns the set as wire names.
func (s CapabilitySet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = string(c)
	}
	return out
}
