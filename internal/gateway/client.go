package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/ephemeral-chat/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents one websocket connection. The room/name binding is set
// on successful join and cleared on disconnect; it is guarded by the
// gateway's lock, not the client's.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	room string
	name string
}

// HandleWS upgrades the HTTP connection and starts the client's pumps.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade connection")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	logrus.WithField("conn", client.ID).Debug("Client connected")

	go client.writePump()
	go client.readPump(g)
}

func (g *Gateway) clientRoom(c *Client) (room, name string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return c.room, c.name
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		c.conn.Close()
		logrus.WithField("conn", c.ID).Debug("Client disconnected")
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logrus.WithError(err).Debug("Failed to parse event")
			continue
		}

		switch ev.Type {
		case models.EventJoin:
			g.Join(c, ev)
		case models.EventMessage:
			g.Message(c, ev)
		default:
			logrus.WithField("type", ev.Type).Debug("Unknown event type")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendEvent(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal event")
		return
	}
	c.enqueue(data)
}

// enqueue never blocks: a client that cannot drain its buffer misses the
// event rather than stalling the room.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logrus.WithField("conn", c.ID).Warn("Send buffer full, dropping event")
	}
}
