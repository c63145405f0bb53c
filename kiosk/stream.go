package kiosk

import (
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/checkin/api"
	"github.com/International-Combat-Archery-Alliance/checkin/checkin"
	"github.com/gorilla/websocket"
)

// viewSlot holds the newest view offered to a stream. Subscribers are
// notified from several goroutines, so views can be offered out of order;
// an older revision never replaces a newer one.
type viewSlot struct {
	mu    sync.Mutex
	view  checkin.View
	ready chan struct{}
}

func newViewSlot() *viewSlot {
	return &viewSlot{ready: make(chan struct{}, 1)}
}

func (s *viewSlot) offer(v checkin.View) {
	s.mu.Lock()
	if v.Revision >= s.view.Revision {
		s.view = v
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *viewSlot) take() checkin.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.view
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

func (a *API) checkOrigin(r *http.Request) bool {
	if a.env == api.LOCAL {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(a.allowedOrigins, origin) {
		return true
	}
	// same host, as the default upgrader allows
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (a *API) getStream(w http.ResponseWriter, r *http.Request) {
	logger := api.GetLoggerFromCtx(r.Context(), a.logger)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.Warn("Failed to upgrade view stream", "error", err)
		return
	}

	latest := newViewSlot()
	unsubscribe := a.workflow.Subscribe(latest.offer)
	latest.offer(a.workflow.View())

	done := make(chan struct{})

	a.streams.Add(2)
	go func() {
		defer a.streams.Done()
		defer close(done)
		readPump(conn)
	}()
	go func() {
		defer a.streams.Done()
		defer unsubscribe()
		a.writePump(conn, latest, done)
	}()

	logger.Info("View stream connected")
}

// readPump discards client messages and returns once the connection fails,
// keeping the read deadline alive through pongs.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (a *API) writePump(conn *websocket.Conn, latest *viewSlot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	var sent uint64
	first := true
	for {
		select {
		case <-a.streamsDone:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "kiosk shutting down"))
			return
		case <-done:
			return
		case <-latest.ready:
			v := latest.take()
			if !first && v.Revision <= sent {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(viewToApiView(v))
			if err != nil {
				a.logger.Warn("Failed to write view to stream", "error", err)
				return
			}
			sent = v.Revision
			first = false
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
