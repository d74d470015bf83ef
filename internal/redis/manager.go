// Package redis holds the Redis connections of the bot and the premium tier
// source built on them.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/setup/config"
	"go.uber.org/zap"
)

// PremiumDBIndex holds cached guild tiers. Pub/sub is not scoped to a
// database, so tier change notifications share this client.
const PremiumDBIndex = 0

const connBufferSize = 1 << 18

// Manager hands out one rueidis client per logical database, connecting on first use.
type Manager struct {
	mu      sync.Mutex
	clients map[int]rueidis.Client
	addr    string
	cfg     *config.Redis
	logger  *zap.Logger
}

// NewManager creates a Manager without opening any connection.
func NewManager(cfg *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		addr:    cfg.Host + ":" + strconv.Itoa(cfg.Port),
		cfg:     cfg,
		logger:  logger.Named("redis"),
	}
}

// Client returns the client of db, connecting and pinging it the first time.
func (m *Manager) Client(ctx context.Context, db int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[db]; ok {
		return client, nil
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:         []string{m.addr},
		Username:            m.cfg.Username,
		Password:            m.cfg.Password,
		SelectDB:            db,
		ClientName:          "starboard",
		ReadBufferEachConn:  connBufferSize,
		WriteBufferEachConn: connBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w (addr=%s, db=%d)", err, m.addr, db)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w (addr=%s, db=%d)", err, m.addr, db)
	}

	m.clients[db] = client
	m.logger.Debug("Connected to redis", zap.String("addr", m.addr), zap.Int("db", db))
	return client, nil
}

// Close disconnects every client. Later calls to Client reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for db, client := range m.clients {
		client.Close()
		delete(m.clients, db)
	}
	m.logger.Debug("Closed redis clients")
}
