package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/mayankgaur0405/Dev2Gether/internal/protocol"
	"github.com/mayankgaur0405/Dev2Gether/internal/room"
	"github.com/mayankgaur0405/Dev2Gether/pkg/metrics"
)

// session is the hub's view of one connected client: its outbound queue plus
// the room/name binding established by a join. *Conn implements it; tests
// substitute fakes.
type session interface {
	room.Subscriber
	Room() string
	SetRoom(string)
	Name() string
	SetName(string)
}

// Runner executes code on the external engine.
type Runner interface {
	Execute(ctx context.Context, code, language, version string) (string, error)
}

// Hub accepts websocket connections and dispatches their events into the
// room registry. Clients never talk to each other directly; every state
// change passes through here and is fanned back out by the registry.
type Hub struct {
	log    *slog.Logger
	reg    *room.Registry
	bus    *RedisBus // nil when running single-instance
	engine Runner
}

// NewHub wires the hub to the registry, bus, and execution engine
func NewHub(logger *slog.Logger, reg *room.Registry, bus *RedisBus, engine Runner) *Hub {
	return &Hub{log: logger, reg: reg, bus: bus, engine: engine}
}

// Run listens to the bus and forwards frames published by other instances
// to the local members of the room. Returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.bus == nil {
		<-ctx.Done()
		return
	}
	go h.bus.Subscribe(ctx, func(msg BusMessage) {
		h.reg.BroadcastAll(msg.RoomID, msg.Frame)
	})
	<-ctx.Done()
}

// ServeWS handles a new /ws connection for its whole lifetime. When the read
// loop ends, for any reason, the connection's room membership is dropped:
// transport loss and explicit close produce the same leave effect.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(conn)
	metrics.ConnectedClients.Inc()
	h.log.Debug("ws.connected", "conn", c.ID())

	go c.WriteLoop(ctx)

	for {
		raw, ok := c.Read(ctx)
		if !ok {
			break
		}
		h.dispatch(c, raw)
	}

	if c.Room() != "" {
		h.reg.Leave(c.Room(), c.ID())
	}
	metrics.ConnectedClients.Dec()
	h.log.Debug("ws.disconnected", "conn", c.ID())
	_ = c.Close()
}

// dispatch routes one inbound frame. Malformed frames and events against
// rooms that no longer exist are silent no-ops; the relay stays tolerant of
// races instead of raising faults.
func (h *Hub) dispatch(s session, raw []byte) {
	f, err := protocol.Decode(raw)
	if err != nil {
		h.log.Debug("ws.badframe", "conn", s.ID(), "err", err)
		return
	}
	metrics.EventsTotal.WithLabelValues(f.Event).Inc()

	switch f.Event {
	case protocol.EventJoin:
		h.handleJoin(s, f.Data)
	case protocol.EventLeaveRoom:
		h.handleLeave(s)
	case protocol.EventCodeChange:
		h.handleCodeChange(s, f.Data)
	case protocol.EventTyping:
		h.handleTyping(s, f.Data)
	case protocol.EventLanguageChange:
		h.handleLanguageChange(s, f.Data)
	case protocol.EventChatMessage:
		h.handleChat(s, f.Data)
	case protocol.EventCompileCode:
		h.handleCompile(s, f.Data)
	default:
		h.log.Debug("ws.unknown_event", "conn", s.ID(), "event", f.Event)
	}
}

func (h *Hub) handleJoin(s session, data json.RawMessage) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	// One room per connection: a second join moves the connection, so the
	// member set can never hold the same participant twice.
	if s.Room() != "" {
		h.reg.Leave(s.Room(), s.ID())
		s.SetRoom("")
		s.SetName("")
	}

	snap, err := h.reg.Join(p.RoomID, p.UserName, s)
	if err != nil {
		h.log.Warn("join.rejected", "conn", s.ID(), "err", err)
		return
	}
	s.SetRoom(p.RoomID)
	s.SetName(p.UserName)

	if frame, err := protocol.Encode(protocol.EventRoomState, snap); err == nil {
		s.Send(frame)
	}
}

func (h *Hub) handleLeave(s session) {
	if s.Room() == "" {
		return
	}
	h.reg.Leave(s.Room(), s.ID())
	s.SetRoom("")
	s.SetName("")
}

func (h *Hub) handleCodeChange(s session, data json.RawMessage) {
	var p protocol.CodeChange
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.reg.SetCode(p.RoomID, s.ID(), p.Code)
	h.publish(p.RoomID, protocol.EventCodeUpdate, p.Code)
	h.publish(p.RoomID, protocol.EventUserTyping, s.Name())
}

func (h *Hub) handleTyping(s session, data json.RawMessage) {
	var p protocol.Typing
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.reg.Typing(p.RoomID, s.ID(), p.UserName)
	h.publish(p.RoomID, protocol.EventUserTyping, p.UserName)
}

func (h *Hub) handleLanguageChange(s session, data json.RawMessage) {
	var p protocol.LanguageChange
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.reg.SetLanguage(p.RoomID, s.ID(), p.Language)
	h.publish(p.RoomID, protocol.EventLanguageUpdate, p.Language)
}

func (h *Hub) handleChat(s session, data json.RawMessage) {
	var p protocol.Chat
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.reg.PostChat(p.RoomID, s.ID(), p.Msg)
	h.publish(p.RoomID, protocol.EventChatMessage, p.Msg)
}

// handleCompile forwards a run request to the engine and, when it finishes,
// broadcasts the output to the whole room, requester included. Results from
// concurrent requests land in arrival order with no correlation id; there is
// no cancellation, a disconnecting requester does not retract its run.
func (h *Hub) handleCompile(s session, data json.RawMessage) {
	var p protocol.Compile
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	go func() {
		out, err := h.engine.Execute(context.Background(), p.Code, p.Language, p.Version)
		if err != nil {
			// Engine failure surfaces as ordinary output text, same channel.
			h.log.Warn("exec.failed", "room", p.RoomID, "err", err)
			out = err.Error()
		}
		result := protocol.RunResult{Run: protocol.RunOutput{Output: out}}
		frame, err := protocol.Encode(protocol.EventCodeResponse, result)
		if err != nil {
			return
		}
		h.reg.BroadcastAll(p.RoomID, frame)
		if h.bus != nil {
			_ = h.bus.Publish(context.Background(), BusMessage{RoomID: p.RoomID, Frame: frame})
		}
	}()
}

// publish mirrors a broadcast onto the bus so other hub instances can relay
// it to their local members of the room.
func (h *Hub) publish(roomID, event string, data any) {
	if h.bus == nil {
		return
	}
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return
	}
	_ = h.bus.Publish(context.Background(), BusMessage{RoomID: roomID, Frame: frame})
}
