package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/datalibrary/internal/client"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/format"
)

var clientAddr string

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send commands to a running server",
		Long: `Send data library commands to a running server.

Examples:
  datalibrary client ping
  datalibrary client nodes --type mesh
  datalibrary client save ~/libs/main/data.db ~/libs/main/rig/hero.ma --value comment=v1
  datalibrary client load ~/libs/main/data.db ~/libs/main/rig/hero.ma`,
	}

	cmd.PersistentFlags().StringVarP(&clientAddr, "addr", "a", "", "server address (default from config)")

	cmd.AddCommand(
		newClientPingCmd(),
		newClientItemsDirsCmd(),
		newClientNamespacesCmd(),
		newClientNodesCmd(),
		newClientFocusCmd(),
		newClientWriteCmd("save", "Save a data item from the current scene", (*client.Client).SaveData),
		newClientWriteCmd("export", "Export a data item from the current scene", (*client.Client).ExportData),
		newClientReadCmd("load", "Load a data item into the scene", (*client.Client).LoadData),
		newClientReadCmd("import", "Import a data item into the scene", (*client.Client).ImportData),
		newClientReadCmd("reference", "Reference a data item in the scene", (*client.Client).ReferenceData),
		newClientSaveFileCmd(),
		newClientImportFileCmd(),
		newClientDeleteCmd(),
		newClientRenameCmd(),
		newClientMoveCmd(),
		newClientSyncCmd(),
		newClientItemsCmd(),
	)
	return cmd
}

func newClient() *client.Client {
	addr := clientAddr
	if addr == "" {
		addr = cfg.Server.Address()
	}
	return client.New(addr,
		client.WithRetries(cfg.Client.Retries),
		client.WithRetryDelay(cfg.Client.RetryDelay),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger.Named("client")))
}

func newClientPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("pong")
			return nil
		},
	}
}

func newClientItemsDirsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "item-dirs",
		Short: "List the DCC specific item plugin folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := newClient().LoadDataItems(cmd.Context())
			if err != nil {
				return err
			}
			return printList(dirs)
		},
	}
}

func newClientNamespacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List scene namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			namespaces, err := newClient().ListNamespaces(cmd.Context())
			if err != nil {
				return err
			}
			return printList(namespaces)
		},
	}
}

func newClientNodesCmd() *cobra.Command {
	var (
		name  string
		kind  string
		short bool
	)

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List scene nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := newClient().ListNodes(cmd.Context(), types.NodeQuery{
				Name:     name,
				Type:     kind,
				FullPath: !short,
			})
			if err != nil {
				return err
			}
			return printList(nodes)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "node name pattern")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "node type")
	cmd.Flags().BoolVarP(&short, "short", "s", false, "print short names instead of full paths")
	return cmd
}

func newClientFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus <ui-name>",
		Short: "Focus a host UI element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := newClient().SetFocus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("invalid reply from server")
			}
			return nil
		},
	}
}

func newClientWriteCmd(use, short string, call func(*client.Client, context.Context, string, string, map[string]interface{}) (client.Result, error)) *cobra.Command {
	var rawValues []string

	cmd := &cobra.Command{
		Use:   use + " <library> <data>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseValues(rawValues)
			if err != nil {
				return err
			}
			res, err := call(newClient(), cmd.Context(), abs(args[0]), abs(args[1]), values)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}

	cmd.Flags().StringArrayVar(&rawValues, "value", nil, "item value as key=value, repeatable")
	return cmd
}

func newClientReadCmd(use, short string, call func(*client.Client, context.Context, string, string) (client.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <library> <data>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := call(newClient(), cmd.Context(), abs(args[0]), abs(args[1]))
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}

func newClientSaveFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save-file <path>",
		Short: "Save the current scene to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().SaveDCCFile(cmd.Context(), abs(args[0]))
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}

func newClientImportFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-file <path>",
		Short: "Import a scene file into the current scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := newClient().ImportDCCFile(cmd.Context(), abs(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("failed to import %s", args[0])
			}
			return nil
		},
	}
}

func newClientDeleteCmd() *cobra.Command {
	var withDeps bool

	cmd := &cobra.Command{
		Use:   "delete <library> <data>",
		Short: "Delete a data item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().DeleteData(cmd.Context(), abs(args[0]), abs(args[1]), withDeps)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}

	cmd.Flags().BoolVar(&withDeps, "with-dependencies", false, "also delete the dependencies inside the library")
	return cmd
}

func newClientRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <library> <data> <new-name>",
		Short: "Rename a data item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().RenameData(cmd.Context(), abs(args[0]), abs(args[1]), args[2])
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}

func newClientMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <library> <data> <target-folder>",
		Short: "Move a data item to another folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().MoveData(cmd.Context(), abs(args[0]), abs(args[1]), abs(args[2]))
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}

func newClientSyncCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "sync <library>",
		Short: "Re-index a library through the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, res, err := newClient().SyncLibrary(cmd.Context(), abs(args[0]), abs(root))
			if err != nil {
				return err
			}
			if !res.Success {
				return printResult(res)
			}
			fmt.Printf("Indexed %d items\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "folder to index (default is the library folder)")
	return cmd
}

func newClientItemsCmd() *cobra.Command {
	var kind, capability string

	cmd := &cobra.Command{
		Use:   "items <library>",
		Short: "List the items recorded in a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, res, err := newClient().ListItems(cmd.Context(), abs(args[0]))
			if err != nil {
				return err
			}
			if !res.Success {
				return printResult(res)
			}
			records, err = filterRecords(records, kind, capability)
			if err != nil {
				return err
			}
			return printRecords(records)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list items of this kind")
	cmd.Flags().StringVar(&capability, "capability", "", "only list items supporting this operation")
	return cmd
}

// abs resolves path against the client working directory.
func abs(path string) string {
	if path == "" {
		return ""
	}
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return path
}

// parseValues turns key=value pairs into item values. Values are parsed as
// YAML scalars or flow collections, so numbers, booleans and lists keep
// their type.
func parseValues(raw []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q, expected key=value", pair)
		}
		var parsed interface{}
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
			parsed = value
		}
		values[key] = parsed
	}
	return values, nil
}

func printResult(res client.Result) error {
	if useJSON {
		out := map[string]interface{}{"success": res.Success}
		if res.Message != "" {
			out["message"] = res.Message
		}
		if res.Payload != nil {
			out["result"] = res.Payload
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else if res.Success && res.Payload != nil {
		if list, ok := res.Strings(); ok {
			for _, s := range list {
				fmt.Println(s)
			}
		} else {
			fmt.Println(res.Payload)
		}
	}

	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

func printList(list []string) error {
	if useJSON {
		return json.NewEncoder(os.Stdout).Encode(list)
	}
	for _, s := range list {
		fmt.Println(s)
	}
	return nil
}

func printRecords(records []types.ItemRecord) error {
	if useJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	opts := format.CompactOptions()
	if detailed {
		opts = format.DefaultOptions()
	}
	opts.UseColors = !noColor

	ptrs := make([]*types.ItemRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	fmt.Println(format.FormatRecordList(ptrs, opts))
	return nil
}
