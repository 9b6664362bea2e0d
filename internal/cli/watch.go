package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
)

func newWatchCmd() *cobra.Command {
	var rooms, tables []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live events over the websocket",
		Long: `Obtain a socket ticket, connect to the websocket endpoint and print every
frame the server sends.

Use --room and --table to subscribe on connect. Server pings are answered
automatically so the connection counts as responsive.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return watch(ctx, rooms, tables, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&rooms, "room", nil, "Room to join on connect (repeatable)")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "Table to join on connect (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output frames as JSON lines")

	return cmd
}

// Frame is a server message as the CLI sees it
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	TableID   string          `json:"table_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func watch(ctx context.Context, rooms, tables []string, jsonOutput bool) error {
	var ticket Ticket
	if err := client.Post("/api/v1/socket-ticket", nil, &ticket); err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.SocketURL(ticket.Ticket), nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	seq := 0
	send := func(cmd protocol.Command) error {
		seq++
		payload, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		return conn.WriteJSON(protocol.Envelope{Type: cmd.Type(), ID: strconv.Itoa(seq), Payload: payload})
	}

	for _, id := range rooms {
		if err := send(protocol.RoomJoin{RoomID: model.RoomID(id)}); err != nil {
			return fmt.Errorf("join room %s: %w", id, err)
		}
	}
	for _, id := range tables {
		if err := send(protocol.TableJoin{TableID: model.TableID(id)}); err != nil {
			return fmt.Errorf("join table %s: %w", id, err)
		}
	}

	if !jsonOutput {
		fmt.Println("Connected")
	}

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if !jsonOutput {
					fmt.Println("Disconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}

		printFrame(frame, jsonOutput)

		if frame.Type == string(model.EventPing) {
			var ping model.PingPayload
			if err := json.Unmarshal(frame.Payload, &ping); err != nil {
				return fmt.Errorf("bad ping: %w", err)
			}
			if err := send(protocol.Pong{Nonce: ping.Nonce}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return fmt.Errorf("pong: %w", err)
			}
		}
	}
}

func printFrame(f Frame, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(f)
		fmt.Println(string(data))
		return
	}

	scope := f.TableID
	if scope == "" {
		scope = f.RoomID
	}
	if scope != "" {
		scope = " " + scope
	}

	// Board payloads are large; keep one line per frame
	payload := string(f.Payload)
	if len(payload) > 120 {
		payload = payload[:120] + "..."
	}
	fmt.Printf("[%s] %s%s: %s\n", f.Timestamp.Local().Format("15:04:05"), f.Type, scope, payload)
}
