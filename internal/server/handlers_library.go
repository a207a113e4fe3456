package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

type dataArgs struct {
	LibraryPath  string                 `mapstructure:"library_path"`
	DataPath     string                 `mapstructure:"data_path"`
	Values       map[string]interface{} `mapstructure:"values"`
	Dependencies bool                   `mapstructure:"dependencies"`
	Name         string                 `mapstructure:"name"`
	Target       string                 `mapstructure:"target"`
	Root         string                 `mapstructure:"root"`
}

// writeOp is a data command that produces a result from values.
type writeOp struct {
	verb       string
	capability types.Capability
	call       func(ctx context.Context, item library.DataItem, values map[string]interface{}) (interface{}, error)
}

// readOp is a data command acting on existing data.
type readOp struct {
	verb       string
	capability types.Capability
	call       func(ctx context.Context, item library.DataItem) error
}

func (s *Server) registerLibraryHandlers() {
	s.dispatcher.Register(ipc.CmdSaveData, s.writeData(writeOp{
		verb:       "save",
		capability: types.CapSave,
		call: func(ctx context.Context, item library.DataItem, values map[string]interface{}) (interface{}, error) {
			return item.Save(ctx, values)
		},
	}))
	s.dispatcher.Register(ipc.CmdExportData, s.writeData(writeOp{
		verb:       "export",
		capability: types.CapExportData,
		call: func(ctx context.Context, item library.DataItem, values map[string]interface{}) (interface{}, error) {
			return item.Export(ctx, values)
		},
	}))

	s.dispatcher.Register(ipc.CmdLoadData, s.readData(readOp{
		verb:       "load",
		capability: types.CapLoad,
		call:       func(ctx context.Context, item library.DataItem) error { return item.Load(ctx) },
	}))
	s.dispatcher.Register(ipc.CmdImportData, s.readData(readOp{
		verb:       "import",
		capability: types.CapImportData,
		call:       func(ctx context.Context, item library.DataItem) error { return item.ImportData(ctx) },
	}))
	s.dispatcher.Register(ipc.CmdReferenceData, s.readData(readOp{
		verb:       "reference",
		capability: types.CapReferenceData,
		call:       func(ctx context.Context, item library.DataItem) error { return item.ReferenceData(ctx) },
	}))

	s.dispatcher.Register(ipc.CmdDeleteData, s.deleteData)
	s.dispatcher.Register(ipc.CmdRenameData, s.renameData)
	s.dispatcher.Register(ipc.CmdMoveData, s.moveData)
	s.dispatcher.Register(ipc.CmdSyncLibrary, s.syncLibrary)
	s.dispatcher.Register(ipc.CmdListItems, s.listItems)
}

// checkLibrary fails the reply unless the library path names an existing
// file.
func (s *Server) checkLibrary(verb string, args dataArgs, reply ipc.Reply) bool {
	if args.LibraryPath == "" {
		reply.Fail("Impossible to %s data \"%s\" because no library path was given", verb, args.DataPath)
		return false
	}
	if !utils.FileExists(args.LibraryPath) {
		reply.Fail("Impossible to %s data \"%s\" because library \"%s\" does not exist!", verb, args.DataPath, args.LibraryPath)
		return false
	}
	return true
}

func (s *Server) library(path string) (*library.Library, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("server has no library cache")
	}
	return s.cache.Get(path)
}

// openLibrary validates the library path and returns the cached handle. A
// nil library with a nil error means the reply was already failed.
func (s *Server) openLibrary(verb string, args dataArgs, reply ipc.Reply) (*library.Library, error) {
	if !s.checkLibrary(verb, args, reply) {
		return nil, nil
	}
	return s.library(args.LibraryPath)
}

func (s *Server) writeData(op writeOp) HandlerFunc {
	return func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
		var args dataArgs
		if err := decodeArgs(data, &args); err != nil {
			return fmt.Errorf("invalid %s arguments: %w", op.verb, err)
		}

		lib, err := s.openLibrary(op.verb, args, reply)
		if lib == nil || err != nil {
			return err
		}

		item, err := lib.Get(args.DataPath, true)
		if err != nil {
			return err
		}
		if item == nil {
			reply.Fail("Impossible to %s data \"%s\" because data item was not found in library \"%s\"", op.verb, args.DataPath, args.LibraryPath)
			return nil
		}
		if !library.Supports(item, op.capability) {
			reply.Fail("Data item \"%s\" does not support %s operation", args.DataPath, op.capability)
			return nil
		}

		values := args.Values
		if values == nil {
			values = map[string]interface{}{}
		}
		result, err := op.call(ctx, item, values)
		if err != nil {
			reply.Fail("Failed to %s data \"%s\": %v", op.verb, args.DataPath, err)
			return nil
		}

		s.logger.Info("Data written",
			zap.String("verb", op.verb),
			zap.String("library", lib.Identifier()),
			zap.String("data", item.Path()))
		reply.SucceedWith(result)
		return nil
	}
}

// resolveExisting checks that the data exists and returns its item. A nil
// item with a nil error means the reply was already failed.
func (s *Server) resolveExisting(verb string, args dataArgs, reply ipc.Reply) (library.DataItem, error) {
	if !s.checkLibrary(verb, args, reply) {
		return nil, nil
	}
	if !utils.PathExists(args.DataPath) {
		reply.Fail("Impossible to %s data \"%s\" because it does not exist!", verb, args.DataPath)
		return nil, nil
	}

	lib, err := s.library(args.LibraryPath)
	if err != nil {
		return nil, err
	}

	item, err := lib.Get(args.DataPath, false)
	if err != nil {
		return nil, err
	}
	if item == nil {
		reply.Fail("Impossible to %s data \"%s\" because data item was not found in library \"%s\"", verb, args.DataPath, args.LibraryPath)
		return nil, nil
	}
	return item, nil
}

func (s *Server) readData(op readOp) HandlerFunc {
	return func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
		var args dataArgs
		if err := decodeArgs(data, &args); err != nil {
			return fmt.Errorf("invalid %s arguments: %w", op.verb, err)
		}

		item, err := s.resolveExisting(op.verb, args, reply)
		if item == nil || err != nil {
			return err
		}
		if !library.Supports(item, op.capability) {
			reply.Fail("Data item \"%s\" does not support %s operation", args.DataPath, op.capability)
			return nil
		}

		if err := op.call(ctx, item); err != nil {
			reply.Fail("Failed to %s data \"%s\": %v", op.verb, args.DataPath, err)
			return nil
		}

		reply.Succeed(nil)
		return nil
	}
}

func (s *Server) deleteData(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args dataArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid delete arguments: %w", err)
	}

	item, err := s.resolveExisting("delete", args, reply)
	if item == nil || err != nil {
		return err
	}

	capability := types.CapDelete
	call := item.Delete
	if args.Dependencies {
		capability = types.CapDeleteWithDependencies
		call = item.DeleteWithDependencies
	}
	if !library.Supports(item, capability) {
		reply.Fail("Data item \"%s\" does not support %s operation", args.DataPath, capability)
		return nil
	}
	if err := call(ctx); err != nil {
		reply.Fail("Failed to delete data \"%s\": %v", args.DataPath, err)
		return nil
	}

	reply.Succeed(nil)
	return nil
}

func (s *Server) renameData(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args dataArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid rename arguments: %w", err)
	}
	if args.Name == "" {
		reply.Fail("Impossible to rename data \"%s\" because no new name was given", args.DataPath)
		return nil
	}

	item, err := s.resolveExisting("rename", args, reply)
	if item == nil || err != nil {
		return err
	}
	if !library.Supports(item, types.CapRename) {
		reply.Fail("Data item \"%s\" does not support %s operation", args.DataPath, types.CapRename)
		return nil
	}

	newPath, err := item.Rename(ctx, args.Name)
	if err != nil {
		reply.Fail("Failed to rename data \"%s\": %v", args.DataPath, err)
		return nil
	}
	reply.SucceedWith(newPath)
	return nil
}

func (s *Server) moveData(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args dataArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid move arguments: %w", err)
	}
	if args.Target == "" {
		reply.Fail("Impossible to move data \"%s\" because no target folder was given", args.DataPath)
		return nil
	}

	item, err := s.resolveExisting("move", args, reply)
	if item == nil || err != nil {
		return err
	}
	if !library.Supports(item, types.CapMove) {
		reply.Fail("Data item \"%s\" does not support %s operation", args.DataPath, types.CapMove)
		return nil
	}

	newPath, err := item.Move(ctx, args.Target)
	if err != nil {
		reply.Fail("Failed to move data \"%s\": %v", args.DataPath, err)
		return nil
	}
	reply.SucceedWith(newPath)
	return nil
}

func (s *Server) syncLibrary(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args dataArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid sync arguments: %w", err)
	}

	lib, err := s.openLibrary("sync", args, reply)
	if lib == nil || err != nil {
		return err
	}

	count, err := lib.Sync(ctx, args.Root)
	if err != nil {
		return err
	}
	reply.SucceedWith(count)
	return nil
}

func (s *Server) listItems(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args dataArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid list arguments: %w", err)
	}

	lib, err := s.openLibrary("list", args, reply)
	if lib == nil || err != nil {
		return err
	}

	records, err := lib.Records()
	if err != nil {
		return err
	}
	if records == nil {
		records = []*types.ItemRecord{}
	}
	reply.SucceedWith(records)
	return nil
}
