package response

import (
	"time"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/services/shop"
)

// User represents an account in API responses. The password hash never
// leaves the server.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	BananaCount int64      `json:"bananaCount"`
	IsBlocked   bool       `json:"isBlocked"`
	IsActive    bool       `json:"isActive"`
	LastActive  *time.Time `json:"lastActive,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// UserFromModel converts a model.Account to a response User
func UserFromModel(a *model.Account) User {
	u := User{
		ID:          string(a.ID),
		Username:    a.Username,
		Email:       a.Email,
		Role:        string(a.Role),
		BananaCount: a.Score,
		IsBlocked:   a.Blocked,
		IsActive:    a.Active,
		CreatedAt:   a.CreatedAt,
	}
	if !a.LastActiveAt.IsZero() {
		t := a.LastActiveAt
		u.LastActive = &t
	}
	return u
}

// UsersFromModel converts a list of accounts
func UsersFromModel(accounts []*model.Account) []User {
	out := make([]User, len(accounts))
	for i, a := range accounts {
		out[i] = UserFromModel(a)
	}
	return out
}

// AuthResponse is the response for register and login
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      UserFromModel(s.Account),
	}
}

// UserMessage pairs an account with a status message
type UserMessage struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// Message is a bare status message
type Message struct {
	Message string `json:"message"`
}

// Offer is one upgrade on sale
type Offer struct {
	Upgrade    string `json:"upgrade"`
	Level      int    `json:"level"`
	Price      int64  `json:"price"`
	Affordable bool   `json:"affordable"`
}

// Catalog is the shop as seen by one account
type Catalog struct {
	BananaCount      int64   `json:"bananaCount"`
	MultiplierActive bool    `json:"multiplierActive"`
	Upgrades         []Offer `json:"upgrades"`
}

// CatalogFromService converts a shop.Catalog
func CatalogFromService(c *shop.Catalog) Catalog {
	out := Catalog{
		BananaCount:      c.BananaCount,
		MultiplierActive: c.MultiplierActive,
		Upgrades:         make([]Offer, len(c.Offers)),
	}
	for i, o := range c.Offers {
		out.Upgrades[i] = Offer{
			Upgrade:    string(o.Kind),
			Level:      o.Level,
			Price:      o.Price,
			Affordable: o.Affordable,
		}
	}
	return out
}

// Purchase is the response to buying an upgrade
type Purchase struct {
	Upgrade     string `json:"upgrade"`
	Level       int    `json:"level"`
	Price       int64  `json:"price"`
	BananaCount int64  `json:"bananaCount"`
}

// PurchaseFromService converts a shop.Purchase
func PurchaseFromService(p *shop.Purchase) Purchase {
	return Purchase{
		Upgrade:     string(p.Kind),
		Level:       p.Account.Upgrades.Level(p.Kind),
		Price:       p.Price,
		BananaCount: p.Account.Score,
	}
}

// Health is the health check response
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}
