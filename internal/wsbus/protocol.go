package wsbus

import "encoding/json"

// EventType enumerates the wire event strings used by the JSON frame
// envelope, grounded on crates/alerion_datamodel/src/websocket.rs's
// EventType enum.
type EventType string

const (
	EventAuth             EventType = "auth"
	EventAuthSuccess      EventType = "auth success"
	EventStats            EventType = "stats"
	EventLogs             EventType = "logs"
	EventConsoleOutput    EventType = "console output"
	EventInstallOutput    EventType = "install output"
	EventInstallCompleted EventType = "install completed"
	EventStatus           EventType = "status"
	EventSendLogs         EventType = "send logs"
	EventSendStats        EventType = "send stats"
	EventSendCommand      EventType = "send command"
	EventSetState         EventType = "set state"
	EventDaemonError      EventType = "daemon error"
	EventJWTError         EventType = "jwt error"
)

// frame is the wire envelope: {event, args?:[string,...]}.
type frame struct {
	Event EventType `json:"event"`
	Args  []string  `json:"args,omitempty"`
}

func decodeFrame(raw []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frame{}, err
	}
	return f, nil
}

func encodeFrame(f frame) ([]byte, error) {
	return json.Marshal(f)
}

func noArgsFrame(event EventType) frame {
	return frame{Event: event}
}

func oneArgFrame(event EventType, arg string) frame {
	return frame{Event: event, Args: []string{arg}}
}

// firstArg returns args[0] or "" when absent.
func (f frame) firstArg() string {
	if len(f.Args) == 0 {
		return ""
	}
	return f.Args[0]
}
