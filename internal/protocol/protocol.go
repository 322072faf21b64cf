// Package protocol defines the wire contract between clients and the sync
// core. Every message is a JSON frame {"event": name, "data": payload}; the
// payload shapes mirror what the web client emits and listens for.
package protocol

import "encoding/json"

// Client -> core events
const (
	EventJoin           = "join"
	EventLeaveRoom      = "leaveRoom"
	EventCodeChange     = "codeChange"
	EventTyping         = "typing"
	EventLanguageChange = "languageChange"
	EventChatMessage    = "chatMessage"
	EventCompileCode    = "compileCode"
)

// Core -> client events
const (
	EventRoomState      = "roomState"
	EventUserJoined     = "userJoined"
	EventCodeUpdate     = "codeUpdate"
	EventUserTyping     = "userTyping"
	EventLanguageUpdate = "languageUpdate"
	EventCodeResponse   = "codeResponse"
	// chat broadcast reuses EventChatMessage
)

// Room defaults applied on first creation. Rejoining an emptied room starts
// from these again, never from prior content.
const (
	DefaultCode     = "// start code here"
	DefaultLanguage = "javascript"
)

// TypingWindow is the display window (ms) each receiver runs for a typing
// indicator. The core relays typing signals statelessly; expiry is a
// receiver-side concern and this constant only documents the contract.
const TypingWindow = 2000

// Frame is the envelope for every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event + payload into a wire-ready frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Decode parses a raw websocket message into a frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(b, &f)
	return f, err
}

// Join asks to enter a room under a display name.
type Join struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// CodeChange overwrites the room's code (last writer wins).
type CodeChange struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// Typing signals that a participant is editing.
type Typing struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// LanguageChange overwrites the room's language tag.
type LanguageChange struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

// ChatMessage is one immutable chat entry. Time is epoch milliseconds as
// produced by the client (Date.now()).
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// Chat carries a chat message into the core.
type Chat struct {
	RoomID string      `json:"roomId"`
	Msg    ChatMessage `json:"msg"`
}

// Compile requests a run of the given code on the execution engine.
// Version "*" means latest available for the language.
type Compile struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Version  string `json:"version"`
}

// RoomState is the snapshot sent to a joining connection only.
type RoomState struct {
	RoomID   string   `json:"roomId"`
	Code     string   `json:"code"`
	Language string   `json:"language"`
	Users    []string `json:"users"`
}

// RunResult is the codeResponse payload. The client reads run.output, so the
// engine's response shape is preserved on the wire; engine failures surface
// as ordinary output text in the same field.
type RunResult struct {
	Run RunOutput `json:"run"`
}

// RunOutput holds the combined stdout/stderr text of an execution.
type RunOutput struct {
	Output string `json:"output"`
}
