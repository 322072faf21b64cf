package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayankgaur0405/Dev2Gether/internal/protocol"
	"github.com/mayankgaur0405/Dev2Gether/internal/room"
)

// fakeSession simulates a connected client without a websocket.
type fakeSession struct {
	id     string
	roomID string
	name   string

	mu     sync.Mutex
	frames [][]byte
}

func newFakeSession(id string) *fakeSession { return &fakeSession{id: id} }

func (f *fakeSession) ID() string   { return f.id }
func (f *fakeSession) Room() string { return f.roomID }
func (f *fakeSession) Name() string { return f.name }

func (f *fakeSession) SetRoom(roomID string) { f.roomID = roomID }
func (f *fakeSession) SetName(name string)   { f.name = name }

func (f *fakeSession) Send(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeSession) byEvent(t *testing.T, event string) []json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, raw := range f.frames {
		fr, err := protocol.Decode(raw)
		require.NoError(t, err)
		if fr.Event == event {
			out = append(out, fr.Data)
		}
	}
	return out
}

// fakeRunner answers every execution with a fixed output or error.
type fakeRunner struct {
	out string
	err error
}

func (r *fakeRunner) Execute(_ context.Context, code, language, version string) (string, error) {
	return r.out, r.err
}

func testHub(runner Runner) (*Hub, *room.Registry) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := room.NewRegistry(logger)
	return NewHub(logger, reg, nil, runner), reg
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := protocol.Encode(event, data)
	require.NoError(t, err)
	return b
}

func TestDispatchJoinSendsSnapshot(t *testing.T) {
	h, _ := testHub(&fakeRunner{})
	s := newFakeSession("c1")

	h.dispatch(s, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))

	assert.Equal(t, "abc", s.Room())
	assert.Equal(t, "Alice", s.Name())

	snaps := s.byEvent(t, protocol.EventRoomState)
	require.Len(t, snaps, 1)
	var snap protocol.RoomState
	require.NoError(t, json.Unmarshal(snaps[0], &snap))
	assert.Equal(t, protocol.DefaultCode, snap.Code)
	assert.Equal(t, protocol.DefaultLanguage, snap.Language)
	assert.Equal(t, []string{"Alice"}, snap.Users)
}

func TestDispatchJoinRejectedOnEmptyInput(t *testing.T) {
	h, reg := testHub(&fakeRunner{})
	s := newFakeSession("c1")

	h.dispatch(s, frame(t, protocol.EventJoin, protocol.Join{RoomID: "", UserName: "Alice"}))
	h.dispatch(s, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: ""}))

	assert.Empty(t, s.Room())
	assert.Empty(t, s.byEvent(t, protocol.EventRoomState))
	assert.Empty(t, reg.List())
}

func TestDispatchSecondJoinMovesConnection(t *testing.T) {
	h, reg := testHub(&fakeRunner{})
	s := newFakeSession("c1")

	h.dispatch(s, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(s, frame(t, protocol.EventJoin, protocol.Join{RoomID: "xyz", UserName: "Alice"}))

	assert.Equal(t, "xyz", s.Room())
	// Room "abc" emptied out and was destroyed.
	_, ok := reg.Snapshot("abc")
	assert.False(t, ok)
	info, ok := reg.Snapshot("xyz")
	require.True(t, ok)
	assert.Equal(t, []string{"Alice"}, info.Users)
}

func TestDispatchCodeChangeFansOutWithTyping(t *testing.T) {
	h, _ := testHub(&fakeRunner{})
	alice := newFakeSession("c1")
	bob := newFakeSession("c2")

	h.dispatch(alice, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(bob, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Bob"}))

	h.dispatch(alice, frame(t, protocol.EventCodeChange, protocol.CodeChange{RoomID: "abc", Code: "let x=1;"}))

	codes := bob.byEvent(t, protocol.EventCodeUpdate)
	require.Len(t, codes, 1)
	var code string
	require.NoError(t, json.Unmarshal(codes[0], &code))
	assert.Equal(t, "let x=1;", code)

	typing := bob.byEvent(t, protocol.EventUserTyping)
	require.Len(t, typing, 1)
	var name string
	require.NoError(t, json.Unmarshal(typing[0], &name))
	assert.Equal(t, "Alice", name)

	// The editor never hears its own change back.
	assert.Empty(t, alice.byEvent(t, protocol.EventCodeUpdate))
	assert.Empty(t, alice.byEvent(t, protocol.EventUserTyping))
}

func TestDispatchChatRelay(t *testing.T) {
	h, _ := testHub(&fakeRunner{})
	alice := newFakeSession("c1")
	bob := newFakeSession("c2")

	h.dispatch(alice, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(bob, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Bob"}))

	msg := protocol.ChatMessage{User: "Bob", Text: "hi", Time: 12345}
	h.dispatch(bob, frame(t, protocol.EventChatMessage, protocol.Chat{RoomID: "abc", Msg: msg}))

	msgs := alice.byEvent(t, protocol.EventChatMessage)
	require.Len(t, msgs, 1)
	var got protocol.ChatMessage
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, msg, got)

	assert.Empty(t, bob.byEvent(t, protocol.EventChatMessage))
}

func TestDispatchLeaveRoom(t *testing.T) {
	h, reg := testHub(&fakeRunner{})
	alice := newFakeSession("c1")
	bob := newFakeSession("c2")

	h.dispatch(alice, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(bob, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Bob"}))

	h.dispatch(alice, frame(t, protocol.EventLeaveRoom, nil))

	assert.Empty(t, alice.Room())
	rosters := bob.byEvent(t, protocol.EventUserJoined)
	require.NotEmpty(t, rosters)
	var users []string
	require.NoError(t, json.Unmarshal(rosters[len(rosters)-1], &users))
	assert.Equal(t, []string{"Bob"}, users)

	// Leave without a room is a no-op.
	h.dispatch(alice, frame(t, protocol.EventLeaveRoom, nil))
	_, ok := reg.Snapshot("abc")
	assert.True(t, ok)
}

func TestDispatchCompileBroadcastsToAll(t *testing.T) {
	h, _ := testHub(&fakeRunner{out: "42\n"})
	alice := newFakeSession("c1")
	bob := newFakeSession("c2")

	h.dispatch(alice, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(bob, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Bob"}))

	h.dispatch(alice, frame(t, protocol.EventCompileCode, protocol.Compile{
		RoomID: "abc", Code: "console.log(42)", Language: "javascript", Version: "*",
	}))

	// The result is broadcast to the requester too: rooms share one output
	// console.
	for _, s := range []*fakeSession{alice, bob} {
		require.Eventually(t, func() bool {
			return len(s.byEvent(t, protocol.EventCodeResponse)) == 1
		}, time.Second, 5*time.Millisecond)

		var res protocol.RunResult
		require.NoError(t, json.Unmarshal(s.byEvent(t, protocol.EventCodeResponse)[0], &res))
		assert.Equal(t, "42\n", res.Run.Output)
	}
}

func TestDispatchCompileFailureSurfacesAsOutput(t *testing.T) {
	h, _ := testHub(&fakeRunner{err: errors.New("engine: runtime unknown is unknown")})
	alice := newFakeSession("c1")

	h.dispatch(alice, frame(t, protocol.EventJoin, protocol.Join{RoomID: "abc", UserName: "Alice"}))
	h.dispatch(alice, frame(t, protocol.EventCompileCode, protocol.Compile{
		RoomID: "abc", Code: "x", Language: "unknown", Version: "*",
	}))

	require.Eventually(t, func() bool {
		return len(alice.byEvent(t, protocol.EventCodeResponse)) == 1
	}, time.Second, 5*time.Millisecond)

	var res protocol.RunResult
	require.NoError(t, json.Unmarshal(alice.byEvent(t, protocol.EventCodeResponse)[0], &res))
	assert.Equal(t, "engine: runtime unknown is unknown", res.Run.Output)
}

func TestDispatchToleratesGarbage(t *testing.T) {
	h, reg := testHub(&fakeRunner{})
	s := newFakeSession("c1")

	h.dispatch(s, []byte("not json"))
	h.dispatch(s, frame(t, "no-such-event", map[string]string{"x": "y"}))
	h.dispatch(s, frame(t, protocol.EventCodeChange, "not an object"))

	assert.Empty(t, reg.List())
	assert.Empty(t, s.frames)
}
