package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeAuth          MessageType = "auth"
	MessageTypeListRooms     MessageType = "list_rooms"
	MessageTypeJoin          MessageType = "join"
	MessageTypeCreatePrivate MessageType = "create_private"
	MessageTypeJoinCode      MessageType = "join_code"
	MessageTypeLocal         MessageType = "local"
	MessageTypeRejoin        MessageType = "rejoin"
	MessageTypeDecline       MessageType = "decline"
	MessageTypeLeave         MessageType = "leave"
	MessageTypePlay          MessageType = "play"
	MessageTypePass          MessageType = "pass"
	MessageTypeDraw          MessageType = "draw"
	MessageTypeEndRound      MessageType = "end_round"
	MessageTypeCanvas        MessageType = "canvas"

	// Server to client messages
	MessageTypeError          MessageType = "error"
	MessageTypeAuthResponse   MessageType = "auth_response"
	MessageTypeRoomList       MessageType = "room_list"
	MessageTypeMatchJoined    MessageType = "match_joined"
	MessageTypeMatchLeft      MessageType = "match_left"
	MessageTypeMatchRemoved   MessageType = "match_removed"
	MessageTypeSnapshot       MessageType = "snapshot"
	MessageTypeEvent          MessageType = "event"
	MessageTypeReconnectOffer MessageType = "reconnect_offer"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
