package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/plughost/internal/metrics"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

// Envelope is the JSON frame broadcast to shell clients
type Envelope struct {
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	Args      []any  `json:"args"`
	Timestamp int64  `json:"timestamp"`
}

type shellClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *shellClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Shell is a capability.Messenger that broadcasts host messages to every
// connected websocket client
type Shell struct {
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*shellClient
}

// NewShell creates a new websocket shell
func NewShell(m *metrics.Metrics, logger zerolog.Logger) *Shell {
	return &Shell{
		logger:  logger.With().Str("component", "shell").Logger(),
		metrics: m,
		// the default origin check only admits clients without an Origin
		// header or from the shell's own host
		upgrader: websocket.Upgrader{},
		clients: make(map[string]*shellClient),
	}
}

// Handler upgrades HTTP connections to shell clients
func (s *Shell) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to upgrade shell connection")
			return
		}

		client := &shellClient{id: gonanoid.Must(), conn: conn}
		s.add(client)
		defer s.remove(client.id)

		// clients only listen; reading detects the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (s *Shell) add(c *shellClient) {
	s.mu.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.mu.Unlock()

	s.metrics.ShellClients(n)
	s.logger.Debug().Str("client_id", c.id).Int("clients", n).Msg("Shell client connected")
}

func (s *Shell) remove(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	delete(s.clients, id)
	n := len(s.clients)
	s.mu.Unlock()

	if ok {
		c.conn.Close()
		s.metrics.ShellClients(n)
		s.logger.Debug().Str("client_id", id).Int("clients", n).Msg("Shell client disconnected")
	}
}

// Send implements capability.Messenger
func (s *Shell) Send(ctx context.Context, channel string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}

	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(Envelope{
		ID:        id,
		Channel:   channel,
		Args:      args,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode message on %s: %w", channel, err)
	}

	s.mu.RLock()
	clients := make([]*shellClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	failed := 0
	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.logger.Warn().Err(err).Str("client_id", c.id).Str("channel", channel).Msg("Failed to send to shell client")
			s.remove(c.id)
			failed++
		}
	}

	s.metrics.ShellMessageSent()
	s.logger.Debug().
		Str("id", id).
		Str("channel", channel).
		Int("clients", len(clients)).
		Int("failed", failed).
		Msg("Shell message sent")
	return nil
}

// ClientCount returns the number of connected clients
func (s *Shell) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client
func (s *Shell) Close() error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.remove(id)
	}
	return nil
}
