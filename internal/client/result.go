package client

import (
	"github.com/berrythewa/datalibrary/internal/ipc"
)

// InvalidReplyMessage is the message of results decoded from replies
// without a boolean "success".
const InvalidReplyMessage = "invalid reply from server"

// Result is a decoded reply.
type Result struct {
	Success bool
	Message string
	Payload interface{}
}

// Strings returns the payload as a string list. ok is false when the
// payload is not a list of strings.
func (r Result) Strings() (out []string, ok bool) {
	return toStrings(r.Payload)
}

// decodeReply reads reply with defaults for every missing key. ok reports
// whether the reply was well formed.
func decodeReply(reply ipc.Reply) (Result, bool) {
	success, ok := reply.Success()
	if !ok {
		return Result{Message: InvalidReplyMessage}, false
	}

	result := Result{Success: success, Message: reply.Message()}
	if success {
		result.Payload, _ = reply.Result()
	}
	return result, true
}

func toStrings(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
