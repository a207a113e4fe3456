package client

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/internal/types"
)

// list runs a read-only query returning strings. Failed or malformed
// replies yield an empty list. A successful reply whose result is not a
// list of strings, a JSON null included, is narrowed to an empty list too;
// callers that need the raw result use call and Result.Payload.
func (c *Client) list(ctx context.Context, cmd string, args map[string]interface{}) ([]string, error) {
	result, err := c.call(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if result.Message != InvalidReplyMessage {
			c.logger.Debug("Query failed", zap.String("cmd", cmd), zap.String("message", result.Message))
		}
		return []string{}, nil
	}

	out, ok := result.Strings()
	if !ok {
		c.logger.Warn("Unexpected result type", zap.String("cmd", cmd), zap.Any("result", result.Payload))
		return []string{}, nil
	}
	return out, nil
}

// LoadDataItems returns the folders the server scans for item plugins.
// Like every list query it returns the server's result as []string, or
// an empty list when the result has any other shape.
func (c *Client) LoadDataItems(ctx context.Context) ([]string, error) {
	return c.list(ctx, ipc.CmdLoadDataItems, nil)
}

// ListNamespaces returns the scene namespaces, sorted and without the
// reserved ones.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	return c.list(ctx, ipc.CmdListNamespaces, nil)
}

// ListNodes returns the scene nodes matching query. Empty filters match
// every node.
func (c *Client) ListNodes(ctx context.Context, query types.NodeQuery) ([]string, error) {
	args := map[string]interface{}{
		"node_name": nilIfEmpty(query.Name),
		"node_type": nilIfEmpty(query.Type),
		"full_path": query.FullPath,
	}
	return c.list(ctx, ipc.CmdListNodes, args)
}

// SetFocus asks the host to focus a UI element. It reports false only
// when the reply is unusable.
func (c *Client) SetFocus(ctx context.Context, uiName string) (bool, error) {
	result, err := c.call(ctx, ipc.CmdSetFocus, map[string]interface{}{"ui_name": uiName})
	if err != nil {
		return false, err
	}
	return result.Success, nil
}

// SaveData saves the item at dataPath. On success the payload is the
// dependency list produced by the save.
func (c *Client) SaveData(ctx context.Context, libraryPath, dataPath string, values map[string]interface{}) (Result, error) {
	return c.call(ctx, ipc.CmdSaveData, writeArgs(libraryPath, dataPath, values))
}

// ExportData exports the item at dataPath.
func (c *Client) ExportData(ctx context.Context, libraryPath, dataPath string, values map[string]interface{}) (Result, error) {
	return c.call(ctx, ipc.CmdExportData, writeArgs(libraryPath, dataPath, values))
}

// LoadData opens the item at dataPath in the host.
func (c *Client) LoadData(ctx context.Context, libraryPath, dataPath string) (Result, error) {
	return c.call(ctx, ipc.CmdLoadData, dataArgs(libraryPath, dataPath))
}

// ImportData merges the item at dataPath into the host scene.
func (c *Client) ImportData(ctx context.Context, libraryPath, dataPath string) (Result, error) {
	return c.call(ctx, ipc.CmdImportData, dataArgs(libraryPath, dataPath))
}

// ReferenceData references the item at dataPath in the host scene.
func (c *Client) ReferenceData(ctx context.Context, libraryPath, dataPath string) (Result, error) {
	return c.call(ctx, ipc.CmdReferenceData, dataArgs(libraryPath, dataPath))
}

// SaveDCCFile saves the current host scene to path.
func (c *Client) SaveDCCFile(ctx context.Context, path string) (Result, error) {
	return c.call(ctx, ipc.CmdSaveDCCFile, map[string]interface{}{"file_path": path})
}

// ImportDCCFile merges the scene file at path into the host scene.
func (c *Client) ImportDCCFile(ctx context.Context, path string) (bool, error) {
	result, err := c.call(ctx, ipc.CmdImportDCCFile, map[string]interface{}{"file_path": path})
	if err != nil {
		return false, err
	}
	return result.Success, nil
}

// DeleteData removes the item at dataPath, and its dependencies when
// withDependencies is set.
func (c *Client) DeleteData(ctx context.Context, libraryPath, dataPath string, withDependencies bool) (Result, error) {
	args := dataArgs(libraryPath, dataPath)
	args["dependencies"] = withDependencies
	return c.call(ctx, ipc.CmdDeleteData, args)
}

// RenameData renames the item at dataPath. The payload is the new path.
func (c *Client) RenameData(ctx context.Context, libraryPath, dataPath, name string) (Result, error) {
	args := dataArgs(libraryPath, dataPath)
	args["name"] = name
	return c.call(ctx, ipc.CmdRenameData, args)
}

// MoveData moves the item at dataPath into target. The payload is the new
// path.
func (c *Client) MoveData(ctx context.Context, libraryPath, dataPath, target string) (Result, error) {
	args := dataArgs(libraryPath, dataPath)
	args["target"] = target
	return c.call(ctx, ipc.CmdMoveData, args)
}

// SyncLibrary re-indexes root, or the whole library when root is empty,
// and returns the number of items found.
func (c *Client) SyncLibrary(ctx context.Context, libraryPath, root string) (int, Result, error) {
	args := map[string]interface{}{"library_path": libraryPath}
	if root != "" {
		args["root"] = root
	}

	result, err := c.call(ctx, ipc.CmdSyncLibrary, args)
	if err != nil || !result.Success {
		return 0, result, err
	}
	count, ok := toInt(result.Payload)
	if !ok {
		return 0, Result{Message: fmt.Sprintf("unexpected sync result %v", result.Payload)}, nil
	}
	return count, result, nil
}

// ListItems returns the records stored in the library.
func (c *Client) ListItems(ctx context.Context, libraryPath string) ([]types.ItemRecord, Result, error) {
	result, err := c.call(ctx, ipc.CmdListItems, map[string]interface{}{"library_path": libraryPath})
	if err != nil || !result.Success {
		return nil, result, err
	}

	// Replies from a remote server carry generic JSON, so round trip the
	// payload into records.
	encoded, err := json.Marshal(result.Payload)
	if err != nil {
		return nil, Result{Message: fmt.Sprintf("unexpected list result: %v", err)}, nil
	}
	records := []types.ItemRecord{}
	if err := json.Unmarshal(encoded, &records); err != nil {
		return nil, Result{Message: fmt.Sprintf("unexpected list result: %v", err)}, nil
	}
	return records, result, nil
}

// Ping reports whether the server answers.
func (c *Client) Ping(ctx context.Context) error {
	result, err := c.call(ctx, ipc.CmdPing, nil)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("ping failed: %s", result.Message)
	}
	return nil
}

func dataArgs(libraryPath, dataPath string) map[string]interface{} {
	return map[string]interface{}{
		"library_path": libraryPath,
		"data_path":    dataPath,
	}
}

func writeArgs(libraryPath, dataPath string, values map[string]interface{}) map[string]interface{} {
	if values == nil {
		values = map[string]interface{}{}
	}
	args := dataArgs(libraryPath, dataPath)
	args["values"] = values
	return args
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
