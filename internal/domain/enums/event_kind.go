package enums

type EventKind string

const (
	EventKindMessage        EventKind = "message"
	EventKindMessageDeleted EventKind = "message_deleted"
	EventKindReadReceipt    EventKind = "read_receipt"
	EventKindMatch          EventKind = "match"
	EventKindAck            EventKind = "ack"
	EventKindError          EventKind = "error"
)

type NotificationKind string

const (
	NotificationKindMatch NotificationKind = "match"
)

type ConnState string

const (
	ConnStateDisconnected ConnState = "disconnected"
	ConnStateConnecting   ConnState = "connecting"
	ConnStateConnected    ConnState = "connected"
)
