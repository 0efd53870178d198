package uploader

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"ppup1090core/lib/tracker"
)

func listenTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// wsClient is one connected live-feed subscriber.
type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
}

// WebsocketSink serves the live track set to any number of subscribers over
// a plain HTTP upgrade, broadcasting every Post call to all of them. Each
// client is tagged with a uuid so disconnects and slow-consumer drops can
// be logged against a stable identifier.
type WebsocketSink struct {
	addr string
	srv  *http.Server

	mu      sync.Mutex
	clients map[uuid.UUID]*wsClient

	logger zerolog.Logger
}

// NewWebsocketSink builds a sink that listens on addr (host:port) and
// upgrades any connection to path "/" into a live feed subscriber.
func NewWebsocketSink(addr string) *WebsocketSink {
	return &WebsocketSink{
		addr:    addr,
		clients: make(map[uuid.UUID]*wsClient),
		logger:  log.With().Str("sink", "websocket").Logger(),
	}
}

func (w *WebsocketSink) Open() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleUpgrade)
	w.srv = &http.Server{Addr: w.addr, Handler: mux}

	ln, err := listenTCP(w.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := w.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			w.logger.Error().Err(err).Msg("websocket sink server exited")
		}
	}()
	return nil
}

func (w *WebsocketSink) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		w.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{id: uuid.New(), conn: conn}
	w.mu.Lock()
	w.clients[client.id] = client
	w.mu.Unlock()

	w.logger.Info().Str("client", client.id.String()).Msg("client connected")

	// Block until the client disconnects; writes happen from Post.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	w.mu.Lock()
	delete(w.clients, client.id)
	w.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func (w *WebsocketSink) Post(snapshots []tracker.AircraftSnapshot) error {
	w.mu.Lock()
	clients := make([]*wsClient, 0, len(w.clients))
	for _, c := range w.clients {
		clients = append(clients, c)
	}
	w.mu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := wsjson.Write(ctx, c.conn, snapshots)
		cancel()
		if err != nil {
			w.logger.Debug().Str("client", c.id.String()).Err(err).Msg("dropping slow or disconnected client")
			w.mu.Lock()
			delete(w.clients, c.id)
			w.mu.Unlock()
			_ = c.conn.Close(websocket.StatusProtocolError, "write failed")
		}
	}
	return nil
}

func (w *WebsocketSink) Close() error {
	w.mu.Lock()
	clients := w.clients
	w.clients = nil
	w.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusServiceRestart, "shutting down")
	}
	if w.srv != nil {
		return w.srv.Close()
	}
	return nil
}
