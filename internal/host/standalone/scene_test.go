package standalone

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/types"
)

func newRigScene() *Scene {
	s := New("maya", nil)
	s.AddNode("|rig", "transform")
	s.AddNode("|rig|char:root", "joint")
	s.AddNode("|rig|char:body", "mesh")
	s.AddNode("|props|env:tree:trunk", "mesh")
	return s
}

func TestListNamespaces(t *testing.T) {
	s := newRigScene()

	namespaces, err := s.ListNamespaces(context.Background())
	require.NoError(t, err)
	sort.Strings(namespaces)

	assert.Equal(t, []string{"UI", "char", "env", "env:tree", "shared"}, namespaces)
}

func TestListNodes(t *testing.T) {
	s := newRigScene()
	ctx := context.Background()

	tests := []struct {
		name  string
		query types.NodeQuery
		want  []string
	}{
		{"All", types.NodeQuery{FullPath: true},
			[]string{"|props|env:tree:trunk", "|rig", "|rig|char:body", "|rig|char:root"}},
		{"ShortNames", types.NodeQuery{Type: "mesh"},
			[]string{"env:tree:trunk", "char:body"}},
		{"NameGlob", types.NodeQuery{Name: "char:*", FullPath: true},
			[]string{"|rig|char:body", "|rig|char:root"}},
		{"NameAndType", types.NodeQuery{Name: "char:*", Type: "joint", FullPath: true},
			[]string{"|rig|char:root"}},
		{"LongNamePattern", types.NodeQuery{Name: "|rig|*", FullPath: false},
			[]string{"char:body", "char:root"}},
		{"NoMatch", types.NodeQuery{Name: "missing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListNodes(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetFocus(t *testing.T) {
	s := New("maya", nil)
	s.AddUIElement("outliner")
	ctx := context.Background()

	require.NoError(t, s.SetFocus(ctx, "outliner"))
	assert.Equal(t, "outliner", s.Focused())

	err := s.SetFocus(ctx, "doesNotExist")
	assert.True(t, errors.Is(err, host.ErrUIElementNotFound))
	assert.Equal(t, "outliner", s.Focused())
}

func TestSaveAndOpenFormats(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"scene.ma", "scene.mb"} {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "shots", name)
			format := host.FormatForPath(file)

			src := newRigScene()
			src.AddNamespace("empty")
			require.NoError(t, src.SaveFile(ctx, file, format))
			assert.Equal(t, file, src.CurrentFile())

			dst := New("maya", nil)
			dst.AddNode("|old", "transform")
			require.NoError(t, dst.OpenFile(ctx, file, format))

			nodes, err := dst.ListNodes(ctx, types.NodeQuery{FullPath: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"|props|env:tree:trunk", "|rig", "|rig|char:body", "|rig|char:root"}, nodes)

			namespaces, err := dst.ListNamespaces(ctx)
			require.NoError(t, err)
			assert.Contains(t, namespaces, "empty")
		})
	}
}

func TestImportMergesScene(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "props.ma")

	src := New("maya", nil)
	src.AddNode("|lamp", "mesh")
	require.NoError(t, src.SaveFile(ctx, file, host.FormatAscii))

	dst := New("maya", nil)
	dst.AddNode("|table", "mesh")
	require.NoError(t, dst.ImportFile(ctx, file, host.FormatAscii))

	nodes, err := dst.ListNodes(ctx, types.NodeQuery{FullPath: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"|lamp", "|table"}, nodes)
	assert.Equal(t, "", dst.CurrentFile())
}

func TestReferenceFile(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "chair.mb")

	src := New("maya", nil)
	src.AddNode("|grp|seat", "mesh")
	require.NoError(t, src.SaveFile(ctx, file, host.FormatBinary))

	dst := New("maya", nil)
	require.NoError(t, dst.ReferenceFile(ctx, file, host.FormatBinary))

	nodes, err := dst.ListNodes(ctx, types.NodeQuery{FullPath: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"|chair:grp|chair:seat"}, nodes)

	refs, err := dst.References(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, refs)
}

func TestSelect(t *testing.T) {
	s := newRigScene()
	ctx := context.Background()

	require.NoError(t, s.Select(ctx, []string{"char:root", "|rig"}))
	sel, err := s.Selection(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"|rig|char:root", "|rig"}, sel)

	err = s.Select(ctx, []string{"ghost"})
	assert.True(t, errors.Is(err, host.ErrNodeNotFound))
}

func TestOpenMissingFile(t *testing.T) {
	s := New("maya", nil)
	err := s.OpenFile(context.Background(), filepath.Join(t.TempDir(), "nope.ma"), host.FormatAscii)
	assert.Error(t, err)
}
