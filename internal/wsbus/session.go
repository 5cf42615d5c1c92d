package wsbus

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// StatusProvider reports a server's current process state as the wire
// status string (offline|starting|running|stopping|...), pushed after a
// successful auth frame and whenever the caller chooses to refresh it.
type StatusProvider interface {
	StatusString() string
}

// Session drives one websocket connection for one server: an inbound
// reader and an outbound multiplexer selecting on the bus broadcast, the
// inbound protocol state, and connection close.
type Session struct {
	conn   *websocket.Conn
	bus    *Bus
	auth   *Authenticator
	status StatusProvider
	log    *slog.Logger

	serverUUID  string
	permissions Permission
	authed      bool
	wantsLogs   bool
	wantsStats  bool

	onAuthFailed func()
}

func NewSession(conn *websocket.Conn, bus *Bus, auth *Authenticator, status StatusProvider, serverUUID string, log *slog.Logger) *Session {
	return &Session{
		conn:       conn,
		bus:        bus,
		auth:       auth,
		status:     status,
		serverUUID: serverUUID,
		log:        log.With("server", serverUUID),
	}
}

// OnAuthFailed registers a callback invoked every time an auth frame is
// rejected, for callers that want to count jwt-error occurrences (e.g.
// internal/metrics).
func (s *Session) OnAuthFailed(f func()) {
	s.onAuthFailed = f
}

// Run blocks until the connection closes. It owns the connection: callers
// must not use conn after Run returns.
func (s *Session) Run() {
	defer s.conn.Close()

	outbound, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	inboundFrames := make(chan frame, subscriberBufferSize)
	readerDone := make(chan struct{})
	go s.readLoop(inboundFrames, readerDone)

	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				return
			}
			s.deliverOutbound(msg)

		case f, ok := <-inboundFrames:
			if !ok {
				return
			}
			s.handleFrame(f)

		case <-readerDone:
			return
		}
	}
}

func (s *Session) readLoop(out chan<- frame, done chan<- struct{}) {
	defer close(done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := decodeFrame(raw)
		if err != nil {
			s.log.Warn("discarding malformed websocket frame", "error", err)
			continue
		}
		select {
		case out <- f:
		default:
			// Inbound frame queue saturated; drop rather than block the
			// reader and stall connection teardown.
		}
	}
}

func (s *Session) deliverOutbound(msg OutboundMessage) {
	switch msg.Kind {
	case KindServerOutput:
		if s.wantsLogs {
			s.writeFrame(oneArgFrame(EventConsoleOutput, msg.Output))
		}
	case KindInstallOutput:
		if s.permissions.Has(PermAdminInstall) {
			s.writeFrame(oneArgFrame(EventInstallOutput, msg.Output))
		}
	}
}

func (s *Session) handleFrame(f frame) {
	switch f.Event {
	case EventAuth:
		s.handleAuth(f.firstArg())

	case EventSendLogs:
		if !s.authorize(PermConsole) {
			return
		}
		s.wantsLogs = true

	case EventSendStats:
		if !s.authed {
			return
		}
		s.wantsStats = true

	case EventSendCommand:
		if !s.authorize(PermConsole) {
			return
		}
		// Command forwarding via container stdin is out of scope for
		// this version; the frame is accepted and otherwise ignored.

	case EventSetState:
		s.handleSetState(f.firstArg())

	default:
		s.log.Debug("ignoring unrecognized websocket event", "event", f.Event)
	}
}

func (s *Session) handleAuth(token string) {
	perms, err := s.auth.Authenticate(token, s.serverUUID)
	if err != nil {
		if s.onAuthFailed != nil {
			s.onAuthFailed()
		}
		s.writeFrame(noArgsFrame(EventJWTError))
		return
	}

	s.authed = true
	s.permissions = perms
	s.writeFrame(noArgsFrame(EventAuthSuccess))
	if s.status != nil {
		s.writeFrame(oneArgFrame(EventStatus, s.status.StatusString()))
	}
}

func (s *Session) handleSetState(action string) {
	want := SetStateAction(action)
	var required Permission
	switch want {
	case ActionStart:
		required = PermStart
	case ActionStop, ActionKill:
		required = PermStop
	case ActionRestart:
		required = PermRestart
	default:
		return
	}

	if !s.authorize(required) {
		return
	}
	s.bus.Publish(InboundMessage{Action: want})
}

func (s *Session) authorize(want Permission) bool {
	return s.authed && s.permissions.Has(want)
}

func (s *Session) writeFrame(f frame) {
	payload, err := encodeFrame(f)
	if err != nil {
		s.log.Error("failed to encode outbound websocket frame", "error", err)
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.log.Debug("websocket write failed", "error", err)
	}
}
