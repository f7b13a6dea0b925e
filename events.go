package main

// Messages coming from clients. Type selects the command; roomId, name
// and identity are only required for create_room/join_room.
type ClientMessage struct {
	Type     string `json:"type"`               // "create_room", "join_room", "leave_room", "buzz", "next_question", "wrong", "resume", "timeout", "judge", "clear_display", "end_game", "close_room"
	RoomID   string `json:"roomId,omitempty"`   // create_room / join_room
	Name     string `json:"name,omitempty"`     // create_room / join_room
	Identity string `json:"identity,omitempty"` // overrides the cookie identity when set
}

// JoinedMessage confirms room entry to a single client.
type JoinedMessage struct {
	Type string `json:"type"` // "joined"
}

// RoleMessage tells a client whether it is the moderator.
type RoleMessage struct {
	Type     string `json:"type"` // "role"
	IsMaster bool   `json:"isMaster"`
}

// MasterInfoMessage carries the moderator's display name.
type MasterInfoMessage struct {
	Type string `json:"type"` // "master_info"
	Name string `json:"name"`
}

// CounterMessage carries the current round number; 0 means no active round.
type CounterMessage struct {
	Type string `json:"type"` // "counter"
	Cur  int    `json:"cur"`
}

// CharMessage carries one streamed increment of the question text.
type CharMessage struct {
	Type string `json:"type"` // "char"
	C    string `json:"c"`
}

// BuzzedMessage identifies the contestant holding the floor.
type BuzzedMessage struct {
	Type string `json:"type"` // "buzzed"
	Name string `json:"name"`
}

// ClearBuzzedMessage releases the floor display.
type ClearBuzzedMessage struct {
	Type string `json:"type"` // "clear_buzzed"
}

// RevealMessage discloses the full question and answer to all members.
type RevealMessage struct {
	Type     string `json:"type"` // "reveal"
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ClearDisplayMessage blanks the question display.
type ClearDisplayMessage struct {
	Type string `json:"type"` // "clear_display"
}

// EnableBuzzMessage toggles whether contestants may attempt to buzz.
type EnableBuzzMessage struct {
	Type    string `json:"type"` // "enable_buzz"
	Enabled bool   `json:"enabled"`
}

// PlayerInfo is one contestant's roster entry.
type PlayerInfo struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// PlayersMessage carries the contestant roster, keyed by identity.
// The moderator is never listed.
type PlayersMessage struct {
	Type    string                `json:"type"` // "players"
	Players map[string]PlayerInfo `json:"players"`
}

// FinalMessage carries the final ranking. Empty is set instead of a
// ranking when the room never had any contestants.
type FinalMessage struct {
	Type    string      `json:"type"` // "final"
	Ranking []RankEntry `json:"ranking"`
	Empty   bool        `json:"empty,omitempty"`
}

// SyncStateMessage resyncs the moderator's control affordances after a
// reconnect. Sent to the moderator only.
type SyncStateMessage struct {
	Type  string `json:"type"` // "sync_state"
	Phase Phase  `json:"phase"`
}

// SyncDisplayMessage restores the question display for a (re)joining
// client: the revealed-so-far prefix, or the full text plus answer once
// the round has been judged.
type SyncDisplayMessage struct {
	Type     string `json:"type"` // "sync_display"
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// EnableEndMessage signals that the last question has been judged.
type EnableEndMessage struct {
	Type string `json:"type"` // "enable_end"
}

// ErrorMessage reports a rejected command to the offending client only.
type ErrorMessage struct {
	Type    string `json:"type"` // "error_msg"
	Message string `json:"message"`
}

// RoomClosedMessage is the only event that forces clients back to an
// unjoined state.
type RoomClosedMessage struct {
	Type string `json:"type"` // "room_closed"
}
