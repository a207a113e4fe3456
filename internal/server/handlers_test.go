package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/host/standalone"
	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// mockHost is a testify mock of host.Host.
type mockHost struct {
	mock.Mock
}

var _ host.Host = (*mockHost)(nil)

func (m *mockHost) Name() string { return "mock" }

func (m *mockHost) ListNamespaces(ctx context.Context) ([]string, error) {
	args := m.Called()
	namespaces, _ := args.Get(0).([]string)
	return namespaces, args.Error(1)
}

func (m *mockHost) ListNodes(ctx context.Context, query types.NodeQuery) ([]string, error) {
	args := m.Called(query)
	nodes, _ := args.Get(0).([]string)
	return nodes, args.Error(1)
}

func (m *mockHost) SetFocus(ctx context.Context, uiName string) error {
	return m.Called(uiName).Error(0)
}

func (m *mockHost) SaveFile(ctx context.Context, path string, format host.FileFormat) error {
	return m.Called(path, format).Error(0)
}

func (m *mockHost) OpenFile(ctx context.Context, path string, format host.FileFormat) error {
	return m.Called(path, format).Error(0)
}

func (m *mockHost) ImportFile(ctx context.Context, path string, format host.FileFormat) error {
	return m.Called(path, format).Error(0)
}

func (m *mockHost) ReferenceFile(ctx context.Context, path string, format host.FileFormat) error {
	return m.Called(path, format).Error(0)
}

func (m *mockHost) References(ctx context.Context) ([]string, error) {
	args := m.Called()
	refs, _ := args.Get(0).([]string)
	return refs, args.Error(1)
}

func (m *mockHost) Selection(ctx context.Context) ([]string, error) {
	args := m.Called()
	nodes, _ := args.Get(0).([]string)
	return nodes, args.Error(1)
}

func (m *mockHost) Select(ctx context.Context, nodes []string) error {
	return m.Called(nodes).Error(0)
}

// recordingItem is a test item kind that remembers the values it was
// saved with.
type recordingItem struct {
	library.BaseItem
	saved *[]map[string]interface{}
}

func (r *recordingItem) Capabilities() types.CapabilitySet {
	return types.NewCapabilitySet(types.CapSave)
}

func (r *recordingItem) Save(ctx context.Context, values map[string]interface{}) (interface{}, error) {
	*r.saved = append(*r.saved, values)
	if values["fail"] == true {
		return nil, errors.New("refused")
	}
	return map[string]interface{}{"saved": r.Path()}, nil
}

type fixture struct {
	srv     *Server
	root    string
	libPath string
	loads   *int
	saved   []map[string]interface{}
}

func newFixture(t *testing.T, h host.Host) *fixture {
	t.Helper()

	f := &fixture{root: t.TempDir()}
	f.libPath = filepath.Join(f.root, "data.db")

	lib, err := library.Load(f.libPath, library.Options{})
	require.NoError(t, err)
	require.NoError(t, lib.Close())

	registry := library.DefaultRegistry()
	registry.Register(library.Kind{
		Name:       types.ItemKind("record"),
		Extensions: []string{".rec"},
		New: func(b library.BaseItem) library.DataItem {
			return &recordingItem{BaseItem: b, saved: &f.saved}
		},
	})

	load, loads := countingLoader(library.Options{Host: h, Registry: registry})
	f.loads = loads
	f.srv = New(Options{
		Host:      h,
		Cache:     NewLibraryCache(load, nil),
		ItemsRoot: filepath.Join(f.root, "items"),
	})
	t.Cleanup(func() { f.srv.Close() })
	return f
}

func (f *fixture) call(t *testing.T, cmd string, args map[string]interface{}) ipc.Reply {
	t.Helper()
	reply := f.srv.Handle(context.Background(), ipc.NewRequest(cmd, args))
	_, ok := reply.Success()
	require.True(t, ok, "reply must always carry success")
	return reply
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, rel)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
}

func requireSuccess(t *testing.T, reply ipc.Reply) interface{} {
	t.Helper()
	success, _ := reply.Success()
	require.True(t, success, "unexpected failure: %s", reply.Message())
	result, _ := reply.Result()
	return result
}

func requireFailure(t *testing.T, reply ipc.Reply, message string) {
	t.Helper()
	success, _ := reply.Success()
	require.False(t, success)
	assert.Equal(t, message, reply.Message())
}

func TestHostHandlers(t *testing.T) {
	t.Run("ListNamespacesFiltersReserved", func(t *testing.T) {
		h := &mockHost{}
		h.On("ListNamespaces").Return([]string{"UI", "shared", "rig", "anim", "rig"}, nil)
		f := newFixture(t, h)

		result := requireSuccess(t, f.call(t, ipc.CmdListNamespaces, nil))
		assert.Equal(t, []string{"anim", "rig"}, result)
		h.AssertExpectations(t)
	})

	t.Run("ListNamespacesEmpty", func(t *testing.T) {
		h := &mockHost{}
		h.On("ListNamespaces").Return([]string{"UI", "shared"}, nil)
		f := newFixture(t, h)

		result := requireSuccess(t, f.call(t, ipc.CmdListNamespaces, nil))
		assert.Equal(t, []string{}, result)
	})

	t.Run("ListNodesDefaultsToFullPath", func(t *testing.T) {
		h := &mockHost{}
		h.On("ListNodes", types.NodeQuery{Name: "foo", Type: "", FullPath: true}).
			Return([]string{"|grp|foo"}, nil).Once()
		f := newFixture(t, h)

		result := requireSuccess(t, f.call(t, ipc.CmdListNodes, map[string]interface{}{"node_name": "foo"}))
		assert.Equal(t, []string{"|grp|foo"}, result)
		h.AssertExpectations(t)
	})

	t.Run("ListNodesShortNames", func(t *testing.T) {
		h := &mockHost{}
		h.On("ListNodes", types.NodeQuery{Name: "*", Type: "joint", FullPath: false}).
			Return(nil, nil).Once()
		f := newFixture(t, h)

		result := requireSuccess(t, f.call(t, ipc.CmdListNodes, map[string]interface{}{
			"node_name": "*",
			"node_type": "joint",
			"full_path": false,
		}))
		assert.Equal(t, []string{}, result)
		h.AssertExpectations(t)
	})

	t.Run("ListNodesHostError", func(t *testing.T) {
		h := &mockHost{}
		h.On("ListNodes", mock.Anything).Return(nil, errors.New("scene locked"))
		f := newFixture(t, h)

		reply := f.call(t, ipc.CmdListNodes, map[string]interface{}{"node_name": "foo"})
		success, _ := reply.Success()
		assert.False(t, success)
		assert.Contains(t, reply.Message(), "scene locked")
	})

	t.Run("SetFocusIsBestEffort", func(t *testing.T) {
		h := &mockHost{}
		h.On("SetFocus", "missingPanel").Return(host.ErrUIElementNotFound)
		f := newFixture(t, h)

		reply := f.call(t, ipc.CmdSetFocus, map[string]interface{}{"ui_name": "missingPanel"})
		requireSuccess(t, reply)
		_, hasResult := reply.Result()
		assert.False(t, hasResult)
		h.AssertExpectations(t)
	})

	t.Run("LoadDataItems", func(t *testing.T) {
		f := newFixture(t, &mockHost{})

		result := requireSuccess(t, f.call(t, ipc.CmdLoadDataItems, nil))
		assert.Equal(t, []string{}, result)

		dir := filepath.Join(f.root, "items", "dccs", "mock", "data")
		require.NoError(t, os.MkdirAll(dir, 0755))
		result = requireSuccess(t, f.call(t, ipc.CmdLoadDataItems, nil))
		assert.Equal(t, []string{dir}, result)
	})

	t.Run("SaveDCCFile", func(t *testing.T) {
		h := &mockHost{}
		f := newFixture(t, h)
		target := f.path("scenes/shot.mb")
		h.On("SaveFile", target, host.FormatBinary).Return(nil).Once()

		requireSuccess(t, f.call(t, ipc.CmdSaveDCCFile, map[string]interface{}{"file_path": target}))
		requireFailure(t, f.call(t, ipc.CmdSaveDCCFile, nil), "Impossible to save DCC file because no file path was given")
		h.AssertExpectations(t)
	})

	t.Run("ImportDCCFile", func(t *testing.T) {
		h := &mockHost{}
		f := newFixture(t, h)
		source := f.path("scenes/prop.ma")

		requireFailure(t, f.call(t, ipc.CmdImportDCCFile, map[string]interface{}{"file_path": source}),
			fmt.Sprintf("Impossible to import DCC file \"%s\" because it does not exist!", source))

		writeFile(t, source)
		h.On("ImportFile", source, host.FormatAscii).Return(nil).Once()
		requireSuccess(t, f.call(t, ipc.CmdImportDCCFile, map[string]interface{}{"file_path": source}))
		h.AssertExpectations(t)
	})
}

func TestHostHandlersNeedHost(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.call(t, ipc.CmdListNamespaces, nil)
	requireFailure(t, reply, `Unknown command "list_namespaces"`)

	// Library commands are still served.
	requireSuccess(t, f.call(t, ipc.CmdListItems, map[string]interface{}{"library_path": f.libPath}))
}

func TestWriteDataHandlers(t *testing.T) {
	t.Run("MissingLibrary", func(t *testing.T) {
		f := newFixture(t, nil)
		libPath := f.path("nowhere/data.db")
		dataPath := f.path("a.rec")

		reply := f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": libPath,
			"data_path":    dataPath,
		})
		requireFailure(t, reply, fmt.Sprintf("Impossible to save data \"%s\" because library \"%s\" does not exist!", dataPath, libPath))
		assert.Equal(t, 0, *f.loads)
		assert.Empty(t, f.saved)
	})

	t.Run("NoMatchingKind", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("notes.txt")

		reply := f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		})
		requireFailure(t, reply, fmt.Sprintf("Impossible to save data \"%s\" because data item was not found in library \"%s\"", dataPath, f.libPath))
	})

	t.Run("UnsupportedCapability", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("preview.png")

		reply := f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		})
		requireFailure(t, reply, fmt.Sprintf("Data item \"%s\" does not support save operation", dataPath))

		reply = f.call(t, ipc.CmdExportData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    f.path("a.rec"),
		})
		requireFailure(t, reply, fmt.Sprintf("Data item \"%s\" does not support export_data operation", f.path("a.rec")))
	})

	t.Run("SavePassesValuesAndResult", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("shots/a.rec")

		result := requireSuccess(t, f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
			"values":       map[string]interface{}{"comment": "first"},
		}))
		assert.Equal(t, map[string]interface{}{"saved": utils.NormalizePath(dataPath)}, result)
		require.Len(t, f.saved, 1)
		assert.Equal(t, map[string]interface{}{"comment": "first"}, f.saved[0])

		// Values default to an empty map.
		requireSuccess(t, f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		}))
		require.Len(t, f.saved, 2)
		assert.NotNil(t, f.saved[1])
		assert.Empty(t, f.saved[1])
	})

	t.Run("SaveErrorIsReported", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("a.rec")

		reply := f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
			"values":       map[string]interface{}{"fail": true},
		})
		requireFailure(t, reply, fmt.Sprintf("Failed to save data \"%s\": refused", dataPath))
	})

	t.Run("LibraryIsCached", func(t *testing.T) {
		f := newFixture(t, nil)
		for i := 0; i < 3; i++ {
			requireSuccess(t, f.call(t, ipc.CmdSaveData, map[string]interface{}{
				"library_path": f.libPath,
				"data_path":    f.path("a.rec"),
			}))
		}
		assert.Equal(t, 1, *f.loads)

		other := f.path("other/data.db")
		lib, err := library.Load(other, library.Options{})
		require.NoError(t, err)
		require.NoError(t, lib.Close())

		requireSuccess(t, f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": other,
			"data_path":    f.path("other/b.rec"),
		}))
		assert.Equal(t, 2, *f.loads)
	})

	t.Run("SaveSceneRecordsDependencies", func(t *testing.T) {
		scene := standalone.New("maya", nil)
		scene.AddNode("|hero|body", "mesh")
		f := newFixture(t, scene)
		dataPath := f.path("chars/hero.ma")

		result := requireSuccess(t, f.call(t, ipc.CmdSaveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		}))
		assert.Equal(t, []string{}, result)
		assert.True(t, utils.FileExists(dataPath))

		items := requireSuccess(t, f.call(t, ipc.CmdListItems, map[string]interface{}{"library_path": f.libPath}))
		records, ok := items.([]*types.ItemRecord)
		require.True(t, ok)
		require.Len(t, records, 1)
		assert.Equal(t, utils.NormalizePath(dataPath), records[0].Path)
		assert.Equal(t, types.KindMayaAscii, records[0].Kind)
	})
}

func TestReadDataHandlers(t *testing.T) {
	t.Run("MissingData", func(t *testing.T) {
		f := newFixture(t, standalone.New("maya", nil))
		dataPath := f.path("rig/pose.ma")

		for cmd, verb := range map[string]string{
			ipc.CmdLoadData:      "load",
			ipc.CmdImportData:    "import",
			ipc.CmdReferenceData: "reference",
		} {
			reply := f.call(t, cmd, map[string]interface{}{
				"library_path": f.libPath,
				"data_path":    dataPath,
			})
			requireFailure(t, reply, fmt.Sprintf("Impossible to %s data \"%s\" because it does not exist!", verb, dataPath))
		}
		assert.Equal(t, 0, *f.loads)
	})

	t.Run("MissingLibrary", func(t *testing.T) {
		f := newFixture(t, nil)
		libPath := f.path("gone.db")
		dataPath := f.path("rig/pose.ma")
		writeFile(t, dataPath)

		reply := f.call(t, ipc.CmdLoadData, map[string]interface{}{
			"library_path": libPath,
			"data_path":    dataPath,
		})
		requireFailure(t, reply, fmt.Sprintf("Impossible to load data \"%s\" because library \"%s\" does not exist!", dataPath, libPath))
	})

	t.Run("LoadScene", func(t *testing.T) {
		h := &mockHost{}
		f := newFixture(t, h)
		dataPath := f.path("rig/pose.mb")
		writeFile(t, dataPath)

		normalized := utils.NormalizePath(dataPath)
		h.On("OpenFile", normalized, host.FormatBinary).Return(nil).Once()
		h.On("ImportFile", normalized, host.FormatBinary).Return(nil).Once()
		h.On("ReferenceFile", normalized, host.FormatBinary).Return(errors.New("read only")).Once()

		args := map[string]interface{}{"library_path": f.libPath, "data_path": dataPath}
		reply := f.call(t, ipc.CmdLoadData, args)
		requireSuccess(t, reply)
		_, hasResult := reply.Result()
		assert.False(t, hasResult)

		requireSuccess(t, f.call(t, ipc.CmdImportData, args))
		requireFailure(t, f.call(t, ipc.CmdReferenceData, args),
			fmt.Sprintf("Failed to reference data \"%s\": read only", dataPath))
		h.AssertExpectations(t)
	})

	t.Run("UnsupportedLoad", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("preview.png")
		writeFile(t, dataPath)

		reply := f.call(t, ipc.CmdLoadData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		})
		requireFailure(t, reply, fmt.Sprintf("Data item \"%s\" does not support load operation", dataPath))
	})
}

func TestManageDataHandlers(t *testing.T) {
	t.Run("RenameAndMove", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("refs/front.png")
		writeFile(t, dataPath)

		result := requireSuccess(t, f.call(t, ipc.CmdRenameData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
			"name":         "side",
		}))
		renamed := utils.NormalizePath(f.path("refs/side.png"))
		assert.Equal(t, renamed, result)
		assert.True(t, utils.FileExists(renamed))

		result = requireSuccess(t, f.call(t, ipc.CmdMoveData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    renamed,
			"target":       f.path("archive"),
		}))
		moved := utils.NormalizePath(f.path("archive/side.png"))
		assert.Equal(t, moved, result)
		assert.True(t, utils.FileExists(moved))
		assert.False(t, utils.PathExists(renamed))
	})

	t.Run("RenameNeedsName", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("a.png")
		requireFailure(t, f.call(t, ipc.CmdRenameData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		}), fmt.Sprintf("Impossible to rename data \"%s\" because no new name was given", dataPath))
	})

	t.Run("RenameStaysInFolder", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("refs/front.png")
		writeFile(t, dataPath)

		requireFailure(t, f.call(t, ipc.CmdRenameData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
			"name":         "../../x.png",
		}), fmt.Sprintf("Failed to rename data \"%s\": invalid item name: \"../../x.png\"", dataPath))
		assert.True(t, utils.FileExists(dataPath))
	})

	t.Run("Delete", func(t *testing.T) {
		f := newFixture(t, nil)
		dataPath := f.path("a.png")
		writeFile(t, dataPath)

		requireFailure(t, f.call(t, ipc.CmdDeleteData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
			"dependencies": true,
		}), fmt.Sprintf("Data item \"%s\" does not support delete_with_dependencies operation", dataPath))

		requireSuccess(t, f.call(t, ipc.CmdDeleteData, map[string]interface{}{
			"library_path": f.libPath,
			"data_path":    dataPath,
		}))
		assert.False(t, utils.PathExists(dataPath))
	})

	t.Run("SyncAndList", func(t *testing.T) {
		f := newFixture(t, nil)
		writeFile(t, f.path("chars/hero.ma"))
		writeFile(t, f.path("chars/hero.png"))

		result := requireSuccess(t, f.call(t, ipc.CmdSyncLibrary, map[string]interface{}{"library_path": f.libPath}))
		assert.Equal(t, 3, result)

		items := requireSuccess(t, f.call(t, ipc.CmdListItems, map[string]interface{}{"library_path": f.libPath}))
		records, ok := items.([]*types.ItemRecord)
		require.True(t, ok)
		paths := make([]string, 0, len(records))
		for _, rec := range records {
			paths = append(paths, rec.Path)
		}
		root := utils.NormalizePath(f.root)
		assert.Equal(t, []string{root + "/chars", root + "/chars/hero.ma", root + "/chars/hero.png"}, paths)
	})
}
