// Package room owns all per-room shared state: roster, code/language,
// chat transcript. Rooms are created lazily on first join and destroyed,
// state discarded, as soon as the last member leaves.
package room

import (
	"errors"
	"sort"
	"sync"

	"log/slog"

	"github.com/mayankgaur0405/Dev2Gether/internal/protocol"
	"github.com/mayankgaur0405/Dev2Gether/pkg/metrics"
)

var (
	ErrEmptyRoomID = errors.New("room id required")
	ErrEmptyName   = errors.New("display name required")
)

// Registry maps room identifiers to live rooms. The registry mutex guards
// only the map; room create/destroy paths take it for writing, everything
// else for reading, so a room can never be torn down underneath a state
// change. Per-room mutation is serialized by the room's own mutex.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry sets up an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{log: logger, rooms: map[string]*Room{}}
}

// Join adds a participant to a room, creating the room with placeholder
// defaults if it does not exist yet. The snapshot for the joining connection
// is returned; everyone else in the room gets the updated roster. Empty room
// id or display name is rejected before any state mutation.
func (g *Registry) Join(roomID, name string, sub Subscriber) (protocol.RoomState, error) {
	if roomID == "" {
		return protocol.RoomState{}, ErrEmptyRoomID
	}
	if name == "" {
		return protocol.RoomState{}, ErrEmptyName
	}

	// The registry write lock is held across the join so the room cannot be
	// emptied and destroyed between lookup and membership insert.
	g.mu.Lock()
	defer g.mu.Unlock()

	rm := g.rooms[roomID]
	if rm == nil {
		rm = newRoom(roomID)
		g.rooms[roomID] = rm
		metrics.ActiveRooms.Set(float64(len(g.rooms)))
		g.log.Info("room.created", "room", roomID)
	}

	snap := rm.join(sub, name)
	g.log.Debug("room.join", "room", roomID, "user", name, "conn", sub.ID())
	return snap, nil
}

// Leave removes the participant if present; leaving a room it never joined,
// or a room that no longer exists, is a silent no-op. When the last member
// leaves, the room and everything it held is discarded.
func (g *Registry) Leave(roomID, subID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm := g.rooms[roomID]
	if rm == nil {
		return
	}
	removed, empty := rm.leave(subID)
	if !removed {
		return
	}
	g.log.Debug("room.leave", "room", roomID, "conn", subID)
	if empty {
		delete(g.rooms, roomID)
		metrics.ActiveRooms.Set(float64(len(g.rooms)))
		g.log.Info("room.destroyed", "room", roomID)
	}
}

// SetCode overwrites the room's code, last writer wins. A change against a
// nonexistent room is a no-op (tolerates a change racing room teardown).
func (g *Registry) SetCode(roomID, originID, code string) {
	g.withRoom(roomID, func(rm *Room) { rm.setCode(originID, code) })
}

// SetLanguage overwrites the room's language tag, last writer wins.
func (g *Registry) SetLanguage(roomID, originID, language string) {
	g.withRoom(roomID, func(rm *Room) { rm.setLanguage(originID, language) })
}

// Typing relays an ephemeral presence signal to the rest of the room.
func (g *Registry) Typing(roomID, originID, name string) {
	g.withRoom(roomID, func(rm *Room) { rm.typing(originID, name) })
}

// PostChat appends to the room transcript and relays to everyone except the
// originator.
func (g *Registry) PostChat(roomID, originID string, msg protocol.ChatMessage) {
	g.withRoom(roomID, func(rm *Room) { rm.postChat(originID, msg) })
}

// BroadcastAll delivers a pre-encoded frame to every member of a room,
// originator included.
func (g *Registry) BroadcastAll(roomID string, frame []byte) {
	g.withRoom(roomID, func(rm *Room) { rm.broadcastAll(frame) })
}

// Snapshot returns the read-only view of one room.
func (g *Registry) Snapshot(roomID string) (Info, bool) {
	var info Info
	ok := g.withRoom(roomID, func(rm *Room) { info = rm.info() })
	return info, ok
}

// List returns info for all live rooms, sorted by room id.
func (g *Registry) List() []Info {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, rm := range g.rooms {
		rooms = append(rooms, rm)
	}
	g.mu.RUnlock()

	out := make([]Info, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// withRoom runs fn against a live room while holding the registry read lock,
// so the room cannot be destroyed mid-operation. Returns false for unknown
// rooms.
func (g *Registry) withRoom(roomID string, fn func(*Room)) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rm := g.rooms[roomID]
	if rm == nil {
		return false
	}
	fn(rm)
	return true
}
