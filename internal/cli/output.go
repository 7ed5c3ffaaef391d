package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Account:
		o.printAccount(v)
	case AuthResult:
		o.printAuthResult(v)
	case Me:
		o.printMe(v)
	case Room:
		o.printRoom(v)
	case PlayerList:
		o.printPlayerList(v)
	case ReadyState:
		o.printReadyState(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Account response type
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResult response type
type AuthResult struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

// Me response type
type Me struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Player response type
type Player struct {
	DisplayName string    `json:"display_name"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Room response type
type Room struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	HostUserID string    `json:"host_user_id"`
	State      string    `json:"state"`
	Players    []Player  `json:"players"`
	AllReady   bool      `json:"all_ready"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PlayerList response type
type PlayerList struct {
	Code     string   `json:"code"`
	Players  []Player `json:"players"`
	AllReady bool     `json:"all_ready"`
}

// ReadyState response type
type ReadyState struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	AllReady    bool   `json:"all_ready"`
}

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func (o *Output) printAccount(a Account) {
	_, _ = fmt.Fprintf(o.w, "Account: %s (%s)\n", a.Username, a.ID)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printAccount(a.Account)
	_, _ = fmt.Fprintf(o.w, "Token: %s\n", a.Token)
}

func (o *Output) printMe(m Me) {
	_, _ = fmt.Fprintf(o.w, "Logged in as %s (%s)\n", m.Username, m.UserID)
}

func (o *Output) printRoom(r Room) {
	_, _ = fmt.Fprintf(o.w, "Room: %s\n", r.Code)
	_, _ = fmt.Fprintf(o.w, "State: %s\n", r.State)
	_, _ = fmt.Fprintf(o.w, "Host: %s\n", r.HostUserID)
	o.printPlayers(r.Players, r.AllReady)
}

func (o *Output) printPlayerList(l PlayerList) {
	_, _ = fmt.Fprintf(o.w, "Room: %s\n", l.Code)
	o.printPlayers(l.Players, l.AllReady)
}

func (o *Output) printPlayers(players []Player, allReady bool) {
	_, _ = fmt.Fprintf(o.w, "Players (%d):\n", len(players))
	for _, p := range players {
		mark := " "
		if p.Ready {
			mark = "x"
		}
		_, _ = fmt.Fprintf(o.w, "  [%s] %s\n", mark, p.DisplayName)
	}
	if allReady {
		_, _ = fmt.Fprintln(o.w, "All players ready")
	}
}

func (o *Output) printReadyState(s ReadyState) {
	_, _ = fmt.Fprintf(o.w, "Toggled %s in %s\n", s.DisplayName, s.Code)
	if s.AllReady {
		_, _ = fmt.Fprintln(o.w, "All players ready")
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Storage != "" {
		_, _ = fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	}
}
