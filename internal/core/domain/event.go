package domain

import "time"

type ChannelID string

type EventName string

const (
	EventConnected    EventName = "connected"
	EventUnreadCount  EventName = "unread_count"
	EventNotification EventName = "notification"
	EventHeartbeat    EventName = "heartbeat"
)

type ConnectedPayload struct {
	ClientID  ChannelID `json:"clientId"`
	UserID    UserID    `json:"userId"`
	Timestamp string    `json:"timestamp"`
}

type UnreadCountPayload struct {
	Count int `json:"count"`
}

type HeartbeatPayload struct {
	Timestamp string `json:"timestamp"`
}

// TimestampLayout is ISO 8601 in UTC with milliseconds, e.g.
// 2024-05-29T16:26:40.123Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NowTimestamp is the timestamp carried by connected and heartbeat events.
func NowTimestamp() string {
	return FormatTimestamp(time.Now())
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}

type ConnectionStats struct {
	TotalClients  int            `json:"totalClients"`
	TotalUsers    int            `json:"totalUsers"`
	ClientsByUser map[UserID]int `json:"clientsByUser"`
}
