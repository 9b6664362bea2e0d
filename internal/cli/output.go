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
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case OnlinePlayers:
		o.printOnlinePlayers(v)
	case Stats:
		o.printStats(v)
	case Ticket:
		o.printTicket(v)
	case RoomList:
		o.printRoomList(v)
	case TableList:
		o.printTableList(v)
	case TableDetail:
		o.printTableDetail(v)
	case ReloadResult:
		o.printReloadResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
	Online      bool   `json:"online,omitempty"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// OnlinePlayers response type
type OnlinePlayers struct {
	Players []Player `json:"players"`
}

// Stats response type
type Stats struct {
	PlayerID       string `json:"player_id"`
	Rating         int    `json:"rating"`
	GamesCompleted int    `json:"games_completed"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Streak         int    `json:"streak"`
	Hero           bool   `json:"hero"`
}

// Ticket response type
type Ticket struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Room response type
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTables   int    `json:"max_tables"`
	TableCount  int    `json:"table_count"`
	MemberCount int    `json:"member_count"`
}

// RoomList response type
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// TableSummary response type
type TableSummary struct {
	ID      string `json:"id"`
	RoomID  string `json:"room_id"`
	Number  int    `json:"number"`
	HostID  string `json:"host_id"`
	Type    string `json:"type"`
	Rated   bool   `json:"rated"`
	Playing bool   `json:"playing"`
	Seated  int    `json:"seated"`
	Members int    `json:"members"`
}

// TableList response type
type TableList struct {
	RoomID string         `json:"room_id"`
	Tables []TableSummary `json:"tables"`
}

// Seat response type
type Seat struct {
	Number      int        `json:"number"`
	Team        int        `json:"team"`
	Target      int        `json:"target"`
	PlayerID    string     `json:"player_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Ready       bool       `json:"ready"`
	Board       *SeatBoard `json:"board,omitempty"`
}

// SeatBoard is the board of an occupied seat during a game
type SeatBoard struct {
	Board      Board `json:"board"`
	Eliminated bool  `json:"eliminated"`
}

// Board response type; empty cells are null
type Board struct {
	Rows [][]*Cell `json:"rows"`
	Over bool      `json:"over"`
}

// Cell response type
type Cell struct {
	Kind   string `json:"kind"`
	Letter string `json:"letter,omitempty"`
}

// Member response type
type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ChatMessage response type
type ChatMessage struct {
	AuthorName string    `json:"author_name,omitempty"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableDetail response type
type TableDetail struct {
	TableSummary
	Seats   []Seat        `json:"seats"`
	Members []Member      `json:"members"`
	Chat    []ChatMessage `json:"chat"`
}

// ReloadResult response type
type ReloadResult struct {
	TableID string `json:"table_id"`
	Changed []int  `json:"changed_seats"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (o *Output) printPlayer(p Player) {
	fmt.Printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	fmt.Printf("Guest: %s\n", yesNo(p.IsGuest))
	if p.Online {
		fmt.Println("Online: yes")
	}
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printOnlinePlayers(p OnlinePlayers) {
	fmt.Printf("Online (%d):\n", len(p.Players))
	for _, pl := range p.Players {
		guest := ""
		if pl.IsGuest {
			guest = " [guest]"
		}
		fmt.Printf("  - %s (%s)%s\n", pl.DisplayName, pl.ID, guest)
	}
}

func (o *Output) printStats(s Stats) {
	fmt.Printf("Player: %s\n", s.PlayerID)
	fmt.Printf("Rating: %d\n", s.Rating)
	fmt.Printf("Games: %d (%d won, %d lost)\n", s.GamesCompleted, s.Wins, s.Losses)
	fmt.Printf("Streak: %d\n", s.Streak)
	fmt.Printf("Hero eligible: %s\n", yesNo(s.Hero))
}

func (o *Output) printTicket(t Ticket) {
	fmt.Printf("Ticket: %s\n", t.Ticket)
	fmt.Printf("Expires: %s\n", t.ExpiresAt.Local().Format(time.RFC3339))
}

func (o *Output) printRoomList(l RoomList) {
	for _, r := range l.Rooms {
		fmt.Printf("%-12s %-20s tables %d/%d  members %d\n", r.ID, r.Name, r.TableCount, r.MaxTables, r.MemberCount)
	}
}

func (o *Output) printTableList(l TableList) {
	if len(l.Tables) == 0 {
		fmt.Printf("No tables in %s\n", l.RoomID)
		return
	}
	for _, t := range l.Tables {
		o.printTableLine(t)
	}
}

func (o *Output) printTableLine(t TableSummary) {
	flags := []string{t.Type}
	if t.Rated {
		flags = append(flags, "rated")
	}
	if t.Playing {
		flags = append(flags, "playing")
	}
	fmt.Printf("%-12s #%-3d host %-12s seated %d  members %d  [%s]\n",
		t.ID, t.Number, t.HostID, t.Seated, t.Members, strings.Join(flags, ", "))
}

func (o *Output) printTableDetail(t TableDetail) {
	o.printTableLine(t.TableSummary)

	fmt.Println("\nSeats:")
	for _, s := range t.Seats {
		occupant := "(empty)"
		if s.PlayerID != "" {
			occupant = fmt.Sprintf("%s (%s)", s.DisplayName, s.PlayerID)
		}
		ready := ""
		if s.Ready {
			ready = " [ready]"
		}
		fmt.Printf("  %d  team %d  %s%s\n", s.Number, s.Team, occupant, ready)
	}

	fmt.Printf("\nMembers (%d):\n", len(t.Members))
	for _, m := range t.Members {
		host := ""
		if m.ID == t.HostID {
			host = " [host]"
		}
		fmt.Printf("  - %s (%s)%s\n", m.DisplayName, m.ID, host)
	}

	for _, s := range t.Seats {
		if s.Board == nil {
			continue
		}
		status := ""
		if s.Board.Eliminated {
			status = " (eliminated)"
		}
		fmt.Printf("\nSeat %d%s:\n", s.Number, status)
		o.printBoard(s.Board.Board)
	}

	if len(t.Chat) > 0 {
		fmt.Println("\nChat:")
		for _, m := range t.Chat {
			author := m.AuthorName
			if author == "" {
				author = m.Kind
			}
			fmt.Printf("  [%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), author, m.Text)
		}
	}
}

func (o *Output) printBoard(b Board) {
	if len(b.Rows) == 0 {
		return
	}
	width := len(b.Rows[0])

	// Print top border
	fmt.Print("   +")
	fmt.Print(strings.Repeat("-", width))
	fmt.Println("+")

	for row, cells := range b.Rows {
		fmt.Printf("%2d |", row)
		for _, cell := range cells {
			switch {
			case cell == nil:
				fmt.Print(".")
			case cell.Letter != "":
				fmt.Print(cell.Letter)
			case cell.Kind != "":
				fmt.Print(strings.ToLower(cell.Kind[:1]))
			default:
				fmt.Print("#")
			}
		}
		fmt.Println("|")
	}

	// Print bottom border
	fmt.Print("   +")
	fmt.Print(strings.Repeat("-", width))
	fmt.Println("+")
}

func (o *Output) printReloadResult(r ReloadResult) {
	if len(r.Changed) == 0 {
		fmt.Printf("Table %s unchanged\n", r.TableID)
		return
	}
	parts := make([]string, len(r.Changed))
	for i, n := range r.Changed {
		parts[i] = fmt.Sprint(n)
	}
	fmt.Printf("Table %s reloaded, seats changed: %s\n", r.TableID, strings.Join(parts, ", "))
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
