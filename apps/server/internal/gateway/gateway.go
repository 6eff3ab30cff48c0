package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/monitoring"
)

var log = logrus.WithField("component", "gateway")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one subscriber of the decision feed.
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	// Opponent restricts the feed to one opponent when set.
	Opponent string
}

// Gateway streams decision records to websocket subscribers.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
}

func New() *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
	}
}

// HandleWebSocket upgrades the request and registers the connection. The
// optional "opponent" query parameter filters the feed.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("upgrade failed")
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Gateway:  g,
		LastPing: time.Now(),
		Opponent: r.URL.Query().Get("opponent"),
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.WithFields(logrus.Fields{"conn": c.ID, "opponent": c.Opponent, "total": total}).Info("subscriber connected")

	go c.readPump()
	go c.writePump()
}

// readPump only services control frames; subscribers do not send data.
func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("conn", c.ID).Debug("read error")
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.connections[c.ID]; !ok {
		return
	}
	delete(g.connections, c.ID)
	close(c.Send)
	log.WithFields(logrus.Fields{"conn": c.ID, "total": len(g.connections)}).Info("subscriber disconnected")
}

// Count is the number of live subscribers.
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Publish sends rec to every matching subscriber. Slow subscribers miss
// records rather than block the caller.
func (g *Gateway) Publish(rec monitoring.DecisionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.WithError(err).Warn("encode decision record")
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		if c.Opponent != "" && c.Opponent != rec.OpponentID {
			continue
		}
		select {
		case c.Send <- data:
		default:
			log.WithField("conn", c.ID).Debug("send buffer full, dropping record")
		}
	}
}
