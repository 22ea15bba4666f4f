package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/cartwin/pkg/log"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 4 * 1024

	defaultWriteWait = 10 * time.Second
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSlowSubscriber   = errors.New("subscriber send queue is full")
)

// Conn is a websocket subscriber.
type Conn struct {
	id        string
	vehicleID string
	ws        *websocket.Conn
	writeWait time.Duration
	logger    log.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

var _ Subscriber = (*Conn)(nil)

// NewConn wraps an upgraded websocket connection.
func NewConn(id, vehicleID string, ws *websocket.Conn, buffer int, writeWait time.Duration) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &Conn{
		id:        id,
		vehicleID: vehicleID,
		ws:        ws,
		writeWait: writeWait,
		logger:    log.WithValues("subscriber", id, "vehicle", vehicleID),
		send:      make(chan []byte, buffer),
	}
}

func (c *Conn) ID() string        { return c.id }
func (c *Conn) VehicleID() string { return c.vehicleID }

// Send queues msg for the write pump.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSubscriberClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// Close stops the write pump, which then closes the socket.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Serve pumps the connection until the peer goes away. It blocks on the
// read side and calls onDone once reading stops.
func (c *Conn) Serve(onDone func()) {
	go c.writePump()
	c.readPump()
	onDone()
}

func (c *Conn) readPump() {
	defer func() { _ = c.ws.Close() }()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Live subscriber read failed", "error", err)
			}
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("Live subscriber write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
