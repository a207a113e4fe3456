package format

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/berrythewa/datalibrary/internal/types"
)

// Formatter renders library item records for terminal output
type Formatter struct {
	options Options
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{
		options: opts,
	}
}

// NewDefault creates a new formatter with default options
func NewDefault() *Formatter {
	return New(DefaultOptions())
}

// FormatRecord formats a single item record
func (f *Formatter) FormatRecord(rec *types.ItemRecord) string {
	if rec == nil {
		return ColorizeIf("No item", Gray, f.options.UseColors)
	}

	header := f.formatHeader(rec)
	path := TruncateLeft(rec.Path, f.options.MaxWidth)

	if f.options.Compact {
		return header + "  " + DimIf(path, f.options.UseColors)
	}

	parts := []string{header, IndentText(path, "  ")}
	if f.options.ShowMetadata {
		parts = append(parts, IndentText(f.formatMetadata(rec), "  "))
	}
	return strings.Join(parts, "\n")
}

// FormatRecordList formats a listing of item records
func (f *Formatter) FormatRecordList(records []*types.ItemRecord) string {
	if len(records) == 0 {
		return ColorizeIf("No items in library", Gray, f.options.UseColors)
	}

	title := fmt.Sprintf("Library items (%d)", len(records))
	parts := []string{ColorizeIf(title, BrightBlue, f.options.UseColors), ""}

	for i, rec := range records {
		index := DimIf(fmt.Sprintf("[%d]", i+1), f.options.UseColors)
		if f.options.Compact {
			parts = append(parts, index+" "+f.FormatRecord(rec))
			continue
		}
		parts = append(parts, index, f.FormatRecord(rec))
		if i < len(records)-1 {
			parts = append(parts, CreateSeparator(f.options))
		}
	}
	return strings.Join(parts, "\n")
}

func (f *Formatter) formatHeader(rec *types.ItemRecord) string {
	kind := ColorizeIf(fmt.Sprintf("%-14s", rec.Kind), KindColors[rec.Kind], f.options.UseColors)
	name := BoldIf(rec.Name, f.options.UseColors)
	if f.options.UseIcons {
		return iconFor(rec.Kind) + " " + kind + " " + name
	}
	return kind + " " + name
}

func (f *Formatter) formatMetadata(rec *types.ItemRecord) string {
	lines := []string{
		DimIf("id: ", f.options.UseColors) + rec.ID,
		DimIf("modified: ", f.options.UseColors) + FormatRelativeTime(rec.Modified),
	}

	if len(rec.Capabilities) > 0 {
		lines = append(lines, DimIf("capabilities: ", f.options.UseColors)+strings.Join(rec.Capabilities, ", "))
	}

	if len(rec.Dependencies) > 0 {
		lines = append(lines, DimIf("dependencies:", f.options.UseColors))
		for _, dep := range rec.Dependencies {
			lines = append(lines, "  - "+dep)
		}
	}

	keys := lo.Keys(rec.Metadata)
	slices.Sort(keys)
	for _, key := range keys {
		value := TruncateText(fmt.Sprint(rec.Metadata[key]), f.options.MaxWidth)
		lines = append(lines, DimIf(key+": ", f.options.UseColors)+value)
	}
	return strings.Join(lines, "\n")
}

// FormatRecord formats a single record with given options
func FormatRecord(rec *types.ItemRecord, opts Options) string {
	return New(opts).FormatRecord(rec)
}

// FormatRecordList formats records with given options
func FormatRecordList(records []*types.ItemRecord, opts Options) string {
	return New(opts).FormatRecordList(records)
}
