package model

// Realtime event names exchanged over the websocket
const (
	// Inbound
	EventBananaClick = "banana-click"

	// Outbound
	EventBananaCountUpdated = "banana-count-updated"
	EventRankingsUpdated    = "rankings-updated"
	EventActiveUsers        = "active-users"
	EventAccountStatus      = "account-status"
	EventConnectError       = "connect-error"
)

// ClickEvent is the payload of an inbound banana-click. Amount is the client's
// claim and is only ever validated against the server-computed yield.
type ClickEvent struct {
	Amount int64       `json:"amount"`
	Source ClickSource `json:"source,omitempty"`
}

// BananaCountPayload is sent to the clicking connection after a delta lands
type BananaCountPayload struct {
	BananaCount int64 `json:"bananaCount"`
}

// RankingPayload is one leaderboard row on the wire
type RankingPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	BananaCount int64  `json:"bananaCount"`
	Online      bool   `json:"online"`
}

// PresencePayload is one online user as seen by admins
type PresencePayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	BananaCount int64  `json:"bananaCount"`
	ConnectedAt int64  `json:"connectedAt"` // unix millis
	LastSeenAt  int64  `json:"lastSeenAt"`  // unix millis
}

// AccountStatusPayload tells a connection that its account was blocked or unblocked
type AccountStatusPayload struct {
	Blocked bool `json:"blocked"`
}

// ConnectErrorPayload is sent before a refused connection is closed
type ConnectErrorPayload struct {
	Message string `json:"message"`
}

// RankingPayloads converts a snapshot to its wire form
func RankingPayloads(s RankingSnapshot) []RankingPayload {
	out := make([]RankingPayload, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = RankingPayload{
			ID:          string(e.ID),
			Username:    e.Username,
			BananaCount: e.Score,
			Online:      e.Online,
		}
	}
	return out
}

// PresencePayloads converts presence entries to their wire form
func PresencePayloads(entries []PresenceEntry) []PresencePayload {
	out := make([]PresencePayload, len(entries))
	for i, e := range entries {
		out[i] = PresencePayload{
			ID:          string(e.Identity.ID),
			Username:    e.Identity.Username,
			Role:        string(e.Identity.Role),
			BananaCount: e.CachedScore,
			ConnectedAt: e.ConnectedAt.UnixMilli(),
			LastSeenAt:  e.LastSeenAt.UnixMilli(),
		}
	}
	return out
}
