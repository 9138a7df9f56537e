package notifier

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/config"
	dashdomain "github.com/crashchain/crashchain/internal/dashboard/domain"
	"github.com/crashchain/crashchain/internal/notifier/jsonsafe"
	"github.com/crashchain/crashchain/internal/observability/metrics"
)

const (
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	// maxMissedPongs terminates a connection after two unanswered pings.
	maxMissedPongs = 2
	sendBuffer     = 8
)

// message is the envelope pushed to every dashboard subscriber.
type message struct {
	Type string                 `json:"type"`
	Data []dashdomain.GroupView `json:"data"`
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Dashboard dashdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

// Hub fans dashboard snapshots out to websocket subscribers. New
// connections get the current snapshot immediately; every successful
// cache refresh is pushed as an update.
type Hub struct {
	log       *zap.Logger
	dashboard dashdomain.Service
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader

	pingInterval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	missed atomic.Int32
	done   chan struct{}
}

func New(p Params) *Hub {
	origin := p.Cfg.AllowedOrigin
	return &Hub{
		log:       p.Log.Named("notifier.hub"),
		dashboard: p.Dashboard,
		metrics:   p.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients send no Origin header.
				got := r.Header.Get("Origin")
				if got == "" || origin == "" || origin == "*" {
					return true
				}
				return got == origin
			},
		},
		pingInterval: defaultPingInterval,
		clients:      map[*client]struct{}{},
	}
}

// Handle upgrades the request and serves the subscriber until the peer
// goes away or stops answering pings.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	// Queue the snapshot before the client is visible to Broadcast, so
	// initialData is always the first frame a subscriber receives.
	if payload, err := h.snapshotPayload(c); err != nil {
		h.log.Warn("initial snapshot unavailable", zap.Error(err))
	} else {
		cl.send <- payload
	}
	h.register(cl)

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) snapshotPayload(c *gin.Context) ([]byte, error) {
	views, ok := h.dashboard.Current()
	if !ok {
		var err error
		views, err = h.dashboard.Refresh(c.Request.Context())
		if err != nil {
			return nil, err
		}
	}
	return jsonsafe.Marshal(message{Type: "initialData", Data: views})
}

// Broadcast pushes views to every subscriber. Slow consumers whose buffer
// is full are dropped rather than blocking the rest.
func (h *Hub) Broadcast(views []dashdomain.GroupView) {
	payload, err := jsonsafe.Marshal(message{Type: "update", Data: views})
	if err != nil {
		h.log.Error("encode update", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.log.Warn("subscriber too slow, dropping")
			h.dropLocked(cl)
		}
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.WSClientConnected()
	h.log.Info("subscriber connected", zap.Int("subscribers", n))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	_, known := h.clients[cl]
	if known {
		h.dropLocked(cl)
	}
	h.mu.Unlock()
}

// dropLocked removes a client while h.mu is held.
func (h *Hub) dropLocked(cl *client) {
	delete(h.clients, cl)
	close(cl.done)
	cl.conn.Close()
	h.metrics.WSClientDisconnected()
}

func (h *Hub) readPump(cl *client) {
	defer h.unregister(cl)

	cl.conn.SetPongHandler(func(string) error {
		cl.missed.Store(0)
		return nil
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(cl)
				return
			}
		case <-ticker.C:
			if cl.missed.Load() >= maxMissedPongs {
				h.log.Info("subscriber unresponsive, terminating")
				h.unregister(cl)
				return
			}
			cl.missed.Add(1)
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(cl)
				return
			}
		case <-cl.done:
			return
		}
	}
}
