package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case []User:
		o.printUsers(v)
	case AuthResult:
		o.printAuthResult(v)
	case UserMessage:
		fmt.Println(v.Message)
		o.printUser(v.User)
	case []RankingEntry:
		o.printRankings(v)
	case []PresenceEntry:
		o.printPresence(v)
	case Catalog:
		o.printCatalog(v)
	case Purchase:
		o.printPurchase(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		o.printJSON(data)
	}
}

// User response type (matches API)
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

// AuthResult is returned by register and login
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// UserMessage pairs a status message with an account
type UserMessage struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// Message is a bare status message
type Message struct {
	Message string `json:"message"`
}

// RankingEntry is one leaderboard row
type RankingEntry struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	BananaCount int64  `json:"bananaCount"`
	Online      bool   `json:"online"`
}

// PresenceEntry is one online user, pushed to admins over the websocket
type PresenceEntry struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	BananaCount int64  `json:"bananaCount"`
	ConnectedAt int64  `json:"connectedAt"`
	LastSeenAt  int64  `json:"lastSeenAt"`
}

// Offer is one upgrade on sale
type Offer struct {
	Upgrade    string `json:"upgrade"`
	Level      int    `json:"level"`
	Price      int64  `json:"price"`
	Affordable bool   `json:"affordable"`
}

// Catalog response type
type Catalog struct {
	BananaCount      int64   `json:"bananaCount"`
	MultiplierActive bool    `json:"multiplierActive"`
	Upgrades         []Offer `json:"upgrades"`
}

// Purchase response type
type Purchase struct {
	Upgrade     string `json:"upgrade"`
	Level       int    `json:"level"`
	Price       int64  `json:"price"`
	BananaCount int64  `json:"bananaCount"`
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (o *Output) printUser(u User) {
	fmt.Printf("ID:       %s\n", u.ID)
	fmt.Printf("Username: %s\n", u.Username)
	fmt.Printf("Email:    %s\n", u.Email)
	fmt.Printf("Role:     %s\n", u.Role)
	fmt.Printf("Bananas:  %d\n", u.BananaCount)
	fmt.Printf("Blocked:  %s\n", yesNo(u.IsBlocked))
	fmt.Printf("Active:   %s\n", yesNo(u.IsActive))
	if u.LastActive != nil {
		fmt.Printf("Last seen: %s\n", u.LastActive.Local().Format(time.DateTime))
	}
}

func (o *Output) printUsers(users []User) {
	if len(users) == 0 {
		fmt.Println("No users")
		return
	}
	fmt.Printf("%-36s  %-20s  %-7s  %10s  %s\n", "ID", "USERNAME", "ROLE", "BANANAS", "FLAGS")
	for _, u := range users {
		var flags []string
		if u.IsActive {
			flags = append(flags, "active")
		}
		if u.IsBlocked {
			flags = append(flags, "blocked")
		}
		fmt.Printf("%-36s  %-20s  %-7s  %10d  %s\n", u.ID, u.Username, u.Role, u.BananaCount, strings.Join(flags, ","))
	}
}

func (o *Output) printAuthResult(r AuthResult) {
	fmt.Printf("Logged in as %s (%s)\n", r.User.Username, r.User.Role)
	fmt.Printf("Token expires: %s\n", r.ExpiresAt.Local().Format(time.DateTime))
}

func (o *Output) printRankings(entries []RankingEntry) {
	if len(entries) == 0 {
		fmt.Println("No rankings yet")
		return
	}
	for i, e := range entries {
		online := ""
		if e.Online {
			online = " *"
		}
		fmt.Printf("%3d. %-20s %10d%s\n", i+1, e.Username, e.BananaCount, online)
	}
}

func (o *Output) printPresence(entries []PresenceEntry) {
	if len(entries) == 0 {
		fmt.Println("Nobody online")
		return
	}
	for _, e := range entries {
		since := time.UnixMilli(e.ConnectedAt).Local().Format(time.TimeOnly)
		fmt.Printf("%-20s  %-7s  %10d  since %s\n", e.Username, e.Role, e.BananaCount, since)
	}
}

func (o *Output) printCatalog(c Catalog) {
	fmt.Printf("Bananas: %d\n", c.BananaCount)
	if c.MultiplierActive {
		fmt.Println("Multiplier boost active")
	}
	for _, offer := range c.Upgrades {
		mark := " "
		if offer.Affordable {
			mark = "$"
		}
		fmt.Printf("%s %-12s level %-3d price %d\n", mark, offer.Upgrade, offer.Level, offer.Price)
	}
}

func (o *Output) printPurchase(p Purchase) {
	fmt.Printf("Bought %s level %d for %d bananas\n", p.Upgrade, p.Level, p.Price)
	fmt.Printf("Bananas left: %d\n", p.BananaCount)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Connections: %d\n", h.Connections)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
