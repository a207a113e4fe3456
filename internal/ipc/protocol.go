package ipc

import (
	"fmt"
)

// Reply and request keys.
const (
	KeyCommand = "cmd"
	KeySuccess = "success"
	KeyMessage = "message"
	KeyResult  = "result"

	// KeyLegacyMessage is the failure key older servers used for some
	// commands. It is read but never written.
	KeyLegacyMessage = "msg"
)

// Command names understood by the server.
const (
	CmdLoadDataItems  = "load_data_items"
	CmdListNamespaces = "list_namespaces"
	CmdListNodes      = "list_nodes"
	CmdSetFocus       = "set_focus"
	CmdSaveDCCFile    = "save_dcc_file"
	CmdImportDCCFile  = "import_dcc_file"
	CmdSaveData       = "save_data"
	CmdExportData     = "export_data"
	CmdLoadData       = "load_data"
	CmdImportData     = "import_data"
	CmdReferenceData  = "reference_data"

	CmdDeleteData  = "delete_data"
	CmdRenameData  = "rename_data"
	CmdMoveData    = "move_data"
	CmdSyncLibrary = "sync_library"
	CmdListItems   = "list_items"

	CmdPing = "ping"
	CmdEcho = "echo"
)

// Request represents a command sent from a client to the server: a "cmd"
// entry plus command-specific arguments.
type Request map[string]interface{}

// NewRequest builds a request for cmd. args may be nil.
func NewRequest(cmd string, args map[string]interface{}) Request {
	req := make(Request, len(args)+1)
	for k, v := range args {
		req[k] = v
	}
	req[KeyCommand] = cmd
	return req
}

// Command returns the command name, or "" if missing or not a string.
func (r Request) Command() string {
	cmd, _ := r[KeyCommand].(string)
	return cmd
}

// Args returns a copy of the request without the command entry.
func (r Request) Args() Request {
	args := make(Request, len(r))
	for k, v := range r {
		if k == KeyCommand {
			continue
		}
		args[k] = v
	}
	return args
}

// Reply is the mutable result a handler populates.
type Reply map[string]interface{}

// NewReply returns an empty reply.
func NewReply() Reply {
	return make(Reply)
}

// Succeed marks the reply successful and stores result. A nil result
// leaves the "result" key untouched.
func (r Reply) Succeed(result interface{}) {
	r[KeySuccess] = true
	if result != nil {
		r[KeyResult] = result
	}
}

// SucceedWith marks the reply successful and stores result verbatim, nil
// included.
func (r Reply) SucceedWith(result interface{}) {
	r[KeySuccess] = true
	r[KeyResult] = result
}

// Fail marks the reply as failed with a formatted message and drops any
// result set earlier.
func (r Reply) Fail(format string, args ...interface{}) {
	r[KeySuccess] = false
	r[KeyMessage] = fmt.Sprintf(format, args...)
	delete(r, KeyResult)
}

// Success returns the success flag and whether it was present as a bool.
func (r Reply) Success() (success bool, ok bool) {
	success, ok = r[KeySuccess].(bool)
	return success, ok
}

// Message returns the failure message, falling back to the legacy key.
func (r Reply) Message() string {
	if msg, ok := r[KeyMessage].(string); ok {
		return msg
	}
	msg, _ := r[KeyLegacyMessage].(string)
	return msg
}

// Result returns the result payload and whether it was set.
func (r Reply) Result() (interface{}, bool) {
	v, ok := r[KeyResult]
	return v, ok
}
