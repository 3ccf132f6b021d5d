// Package events defines the wire protocol: the envelope every frame uses
// in both directions, the event names, and the typed payloads.
package events

import (
	"encoding/json"
	"time"
)

// Envelope frames every message on the socket.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	Typing     = "typing"
	StopTyping = "stopTyping"
	Cursor     = "cursor"

	RoomJoin      = "room:join"
	RoomLeave     = "room:leave"
	RoomHandRaise = "room:hand-raise"
	RoomHandLower = "room:hand-lower"
	RoomPromote   = "room:promote"
	RoomDemote    = "room:demote"

	GameInvite        = "game:invite"
	GameInviteAccept  = "game:invite-accept"
	GameInviteDecline = "game:invite-decline"
	GameMove          = "game:move"

	RPSInvite        = "rps:invite"
	RPSInviteAccept  = "rps:invite-accept"
	RPSInviteDecline = "rps:invite-decline"
	RPSMove          = "rps:move"

	ChessInvite        = "chess:invite"
	ChessInviteAccept  = "chess:invite-accept"
	ChessInviteDecline = "chess:invite-decline"
	ChessMove          = "chess:move"
	ChessResign        = "chess:resign"
	ChessEnd           = "chess:end"

	RandomJoin    = "random:join"
	RandomSkip    = "random:skip"
	RandomLeave   = "random:leave"
	RandomMessage = "random:message"
	RandomSignal  = "random:signal"
)

// Outbound event names.
const (
	OnlineUsers = "getOnlineUsers"

	RoomJoined            = "room:joined"
	RoomParticipantJoined = "room:participant-joined"
	RoomParticipantLeft   = "room:participant-left"
	RoomHandChanged       = "room:hand-changed"
	RoomRoleChanged       = "room:role-changed"

	GameStart                = "game:start"
	GameState                = "game:state"
	GameOver                 = "game:over"
	GameOpponentDisconnected = "game:opponent-disconnected"

	RPSStart      = "rps:start"
	RPSRoundWait  = "rps:round-wait"
	RPSRoundOver  = "rps:round-over"
	RPSOver       = "rps:over"
	RPSDisconnect = "rps:opponent-disconnected"

	ChessStart      = "chess:start"
	ChessState      = "chess:state"
	ChessOver       = "chess:over"
	ChessDisconnect = "chess:opponent-disconnected"

	RandomSearching = "random:searching"
	RandomMatched   = "random:matched"
	RandomEnded     = "random:ended"

	SessionExpired = "session:expired"
)

// Prefixes the dispatcher relays without interpretation.
const (
	CallPrefix       = "call:"
	RoomWebRTCPrefix = "room:webrtc:"
)

// Client -> server payloads.

type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

type CursorPayload struct {
	ReceiverID string  `json:"receiverId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type RoomTargetPayload struct {
	RoomID       string `json:"roomId"`
	TargetUserID string `json:"targetUserId"`
}

type InvitePayload struct {
	InvitedUserID string `json:"invitedUserId"`
	GameID        string `json:"gameId"`
	HostID        string `json:"hostId"`
	HostName      string `json:"hostName"`
}

type MovePayload struct {
	GameID   string `json:"gameId"`
	Position int    `json:"position"`
	PlayerID string `json:"playerId"`
}

type RPSMovePayload struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"`
}

type ChessMovePayload struct {
	GameID string          `json:"gameId"`
	Board  json.RawMessage `json:"board"`
	Move   json.RawMessage `json:"move"`
}

type ChessEndPayload struct {
	GameID   string `json:"gameId"`
	WinnerID string `json:"winnerId"`
}

type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

type RandomMessagePayload struct {
	SessionID string          `json:"sessionId"`
	Message   json.RawMessage `json:"message"`
}

type RelayPayload struct {
	ReceiverID string `json:"receiverId"`
	RoomID     string `json:"roomId"`
	SessionID  string `json:"sessionId"`
}

// Server -> client payloads.

type ErrorPayload struct {
	Reason string `json:"reason"`
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

type SenderPayload struct {
	SenderID string `json:"senderId"`
}

type CursorNoticePayload struct {
	SenderID string  `json:"senderId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type RoomParticipant struct {
	UserID     string    `json:"userId"`
	FullName   string    `json:"fullName"`
	AvatarURL  string    `json:"avatarUrl"`
	Role       string    `json:"role"`
	HandRaised bool      `json:"handRaised"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type RoomRosterPayload struct {
	RoomID       string            `json:"roomId"`
	Participants []RoomParticipant `json:"participants"`
}

type RoomMemberPayload struct {
	RoomID     string `json:"roomId"`
	UserID     string `json:"userId"`
	FullName   string `json:"fullName,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	Role       string `json:"role,omitempty"`
	HandRaised bool   `json:"handRaised"`
	Initiator  string `json:"initiatorId,omitempty"`
}

type GameStartPayload struct {
	GameID      string            `json:"gameId"`
	Board       []string          `json:"board"`
	Players     []string          `json:"players"`
	Symbols     map[string]string `json:"symbols"`
	CurrentTurn string            `json:"currentTurn"`
}

type GameStatePayload struct {
	GameID      string   `json:"gameId"`
	Board       []string `json:"board"`
	CurrentTurn string   `json:"currentTurn"`
	LastMove    int      `json:"lastMove"`
	MovedBy     string   `json:"movedBy"`
}

type GameOverPayload struct {
	GameID   string `json:"gameId"`
	WinnerID string `json:"winnerId,omitempty"`
	Draw     bool   `json:"draw"`
}

type RPSStartPayload struct {
	GameID  string   `json:"gameId"`
	Players []string `json:"players"`
	BestOf  int      `json:"bestOf"`
}

type RPSRoundPayload struct {
	GameID string            `json:"gameId"`
	Round  int               `json:"round"`
	Moves  map[string]string `json:"moves"`
	Winner string            `json:"winnerId,omitempty"`
	Scores map[string]int    `json:"scores"`
}

type ChessStartPayload struct {
	GameID string          `json:"gameId"`
	White  string          `json:"whiteId"`
	Black  string          `json:"blackId"`
	Board  json.RawMessage `json:"board"`
}

type ChessStatePayload struct {
	GameID      string          `json:"gameId"`
	Board       json.RawMessage `json:"board"`
	Move        json.RawMessage `json:"move"`
	CurrentTurn string          `json:"currentTurn"`
}

type RandomMatchedPayload struct {
	SessionID   string `json:"sessionId"`
	PartnerID   string `json:"partnerId"`
	PartnerName string `json:"partnerName"`
	IsCaller    bool   `json:"isCaller"`
}

type SessionExpiredPayload struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
}

// Marshal wraps payload into a ready-to-send envelope frame.
func Marshal(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// ErrorEvent derives the error event name for an inbound event, following
// the <family>:error convention. "game:move" becomes "game:error"; events
// without a family get a bare "error".
func ErrorEvent(inbound string) string {
	for i := 0; i < len(inbound); i++ {
		if inbound[i] == ':' {
			return inbound[:i] + ":error"
		}
	}
	return "error"
}
