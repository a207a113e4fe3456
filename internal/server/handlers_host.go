package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

type listNodesArgs struct {
	NodeName string `mapstructure:"node_name"`
	NodeType string `mapstructure:"node_type"`
	FullPath *bool  `mapstructure:"full_path"`
}

type fileArgs struct {
	FilePath string `mapstructure:"file_path"`
}

func (s *Server) registerHostHandlers() {
	s.dispatcher.Register(ipc.CmdLoadDataItems, s.loadDataItems)
	s.dispatcher.Register(ipc.CmdListNamespaces, s.listNamespaces)
	s.dispatcher.Register(ipc.CmdListNodes, s.listNodes)
	s.dispatcher.Register(ipc.CmdSetFocus, s.setFocus)
	s.dispatcher.Register(ipc.CmdSaveDCCFile, s.saveDCCFile)
	s.dispatcher.Register(ipc.CmdImportDCCFile, s.importDCCFile)
}

// loadDataItems reports the DCC specific item plugin folder if it exists.
func (s *Server) loadDataItems(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	paths := []string{}

	if s.itemsRoot != "" {
		dir := filepath.Join(s.itemsRoot, "dccs", s.host.Name(), "data")
		if utils.DirExists(dir) {
			paths = append(paths, dir)
		}
	}

	reply.SucceedWith(paths)
	return nil
}

func (s *Server) listNamespaces(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	namespaces, err := s.host.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	namespaces = lo.Uniq(lo.Without(namespaces, types.ReservedNamespaces...))
	sort.Strings(namespaces)

	reply.SucceedWith(namespaces)
	return nil
}

func (s *Server) listNodes(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args listNodesArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid list_nodes arguments: %w", err)
	}

	query := types.NodeQuery{
		Name:     args.NodeName,
		Type:     args.NodeType,
		FullPath: args.FullPath == nil || *args.FullPath,
	}
	nodes, err := s.host.ListNodes(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	if nodes == nil {
		nodes = []string{}
	}

	reply.SucceedWith(nodes)
	return nil
}

// setFocus is best effort: host failures are logged and the command still
// succeeds.
func (s *Server) setFocus(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	uiName, _ := data["ui_name"].(string)
	if err := s.host.SetFocus(ctx, uiName); err != nil {
		s.logger.Debug("Ignoring focus failure", zap.String("ui_name", uiName), zap.Error(err))
	}

	reply.Succeed(nil)
	return nil
}

func (s *Server) saveDCCFile(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args fileArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid save_dcc_file arguments: %w", err)
	}
	if args.FilePath == "" {
		reply.Fail("Impossible to save DCC file because no file path was given")
		return nil
	}

	if err := s.host.SaveFile(ctx, args.FilePath, host.FormatForPath(args.FilePath)); err != nil {
		return fmt.Errorf("failed to save DCC file \"%s\": %w", args.FilePath, err)
	}

	reply.Succeed(nil)
	return nil
}

func (s *Server) importDCCFile(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
	var args fileArgs
	if err := decodeArgs(data, &args); err != nil {
		return fmt.Errorf("invalid import_dcc_file arguments: %w", err)
	}
	if !utils.FileExists(args.FilePath) {
		reply.Fail("Impossible to import DCC file \"%s\" because it does not exist!", args.FilePath)
		return nil
	}

	if err := s.host.ImportFile(ctx, args.FilePath, host.FormatForPath(args.FilePath)); err != nil {
		return fmt.Errorf("failed to import DCC file \"%s\": %w", args.FilePath, err)
	}

	reply.Succeed(nil)
	return nil
}
