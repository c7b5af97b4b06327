package officehours

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Raytar/officehours/broadcast"
	"github.com/Raytar/officehours/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// socketConn adapts a websocket to broadcast.Conn. The hub calls Send from a
// single goroutine per connection; pings use WriteControl, which may run
// concurrently with it.
type socketConn struct {
	ws   *websocket.Conn
	once sync.Once
}

func (s *socketConn) Send(ev broadcast.Event) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteJSON(ev)
}

func (s *socketConn) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.ws.Close()
	})
	return err
}

func (oh *OfficeHours) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if oh.cfg.allowAllOrigins() {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range oh.cfg.AllowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
}

// serveSocket upgrades the request and registers the connection under the
// identity query parameter until the client goes away.
func (oh *OfficeHours) serveSocket(c *gin.Context) {
	identity := c.Query("identity")
	if err := getValidator().Var(identity, "required,email"); err != nil {
		oh.replyErr(c, fmt.Errorf("%w: identity must be an email address", models.ErrValidation))
		return
	}
	ws, err := oh.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		oh.log.Debugln("Websocket upgrade failed:", err)
		return
	}
	conn := &socketConn{ws: ws}
	oh.coord.RegisterConnection(c.Request.Context(), identity, conn)
	oh.log.Debugln("Client connected:", identity)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	// clients only listen; reading drives pong handling and close detection
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	oh.coord.UnregisterConnection(identity, conn)
	_ = conn.Close()
	oh.log.Debugln("Client disconnected:", identity)
}
