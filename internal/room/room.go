package room

import (
	"sync"

	"github.com/mayankgaur0405/Dev2Gether/internal/protocol"
)

// Subscriber is one connection's outbound queue. Send must never block; it
// reports whether the frame was queued (a full queue drops the frame).
type Subscriber interface {
	ID() string
	Send(frame []byte) bool
}

// member ties a connection to the display name it joined under. Names are
// not deduplicated; two members may share one, they stay distinct by
// connection ID.
type member struct {
	sub  Subscriber
	name string
}

// Room holds the authoritative shared state for one room identifier: current
// code text, language tag, roster, and chat transcript. Every mutation is
// serialized on the room's own mutex, so two concurrently arriving events
// for the same room never interleave into a partial write. Rooms never
// synchronize with each other.
//
// Broadcasts are enqueued while the mutex is held, which is what gives chat
// and state updates their per-room FIFO delivery order.
type Room struct {
	id string

	mu       sync.Mutex
	code     string
	language string
	members  []member // insertion order preserved for roster display
	chat     []protocol.ChatMessage
}

func newRoom(id string) *Room {
	return &Room{
		id:       id,
		code:     protocol.DefaultCode,
		language: protocol.DefaultLanguage,
	}
}

// join adds a participant and returns the snapshot for the joining
// connection. The updated roster is broadcast to every other member.
func (r *Room) join(sub Subscriber, name string) protocol.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, member{sub: sub, name: name})
	r.broadcastRoster(sub.ID())
	return protocol.RoomState{
		RoomID:   r.id,
		Code:     r.code,
		Language: r.language,
		Users:    r.userNames(),
	}
}

// leave removes the participant if present. Leaving twice, or while not a
// member, is a no-op. Returns whether a member was removed and whether the
// room is now empty.
func (r *Room) leave(subID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.sub.ID() == subID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		r.broadcastRoster("")
	}
	return removed, len(r.members) == 0
}

// setCode applies a last-writer-wins code overwrite and fans it out to every
// member except the origin (the origin already rendered it locally). Every
// code change also refreshes the origin's typing presence for the others.
func (r *Room) setCode(originID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
	r.broadcastOthers(originID, protocol.EventCodeUpdate, code)
	if name, ok := r.memberName(originID); ok {
		r.broadcastOthers(originID, protocol.EventUserTyping, name)
	}
}

// setLanguage applies a last-writer-wins language overwrite, no echo to the
// origin.
func (r *Room) setLanguage(originID, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.language = language
	r.broadcastOthers(originID, protocol.EventLanguageUpdate, language)
}

// typing relays an ephemeral presence signal to everyone but the origin.
// Nothing is stored; receivers run their own expiry window.
func (r *Room) typing(originID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastOthers(originID, protocol.EventUserTyping, name)
}

// postChat appends to the transcript and relays to everyone but the origin.
// The sender renders its own message optimistically, so echoing it back
// would duplicate it.
func (r *Room) postChat(originID string, msg protocol.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
	r.broadcastOthers(originID, protocol.EventChatMessage, msg)
}

// broadcastAll enqueues a pre-encoded frame to every member, origin
// included. Used for execution results and frames arriving from the bus.
func (r *Room) broadcastAll(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		m.sub.Send(frame)
	}
}

func (r *Room) broadcastOthers(originID, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return
	}
	for _, m := range r.members {
		if m.sub.ID() == originID {
			continue
		}
		m.sub.Send(frame)
	}
}

// broadcastRoster sends the userJoined roster to every member except the
// excluded connection (the joiner gets the roster inside its snapshot).
func (r *Room) broadcastRoster(excludeID string) {
	frame, err := protocol.Encode(protocol.EventUserJoined, r.userNames())
	if err != nil {
		return
	}
	for _, m := range r.members {
		if m.sub.ID() == excludeID {
			continue
		}
		m.sub.Send(frame)
	}
}

// Info is a read-only view of one room for the REST surface. The chat
// transcript itself is never exposed, only its length.
type Info struct {
	RoomID   string   `json:"roomId"`
	Language string   `json:"language"`
	Users    []string `json:"users"`
	Messages int      `json:"messages"`
}

func (r *Room) info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		RoomID:   r.id,
		Language: r.language,
		Users:    r.userNames(),
		Messages: len(r.chat),
	}
}

func (r *Room) memberName(subID string) (string, bool) {
	for _, m := range r.members {
		if m.sub.ID() == subID {
			return m.name, true
		}
	}
	return "", false
}

func (r *Room) userNames() []string {
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.name)
	}
	return names
}
