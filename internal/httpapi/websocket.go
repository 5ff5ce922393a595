package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/styrainc/rtvolume/internal/subscriber"
	"github.com/styrainc/rtvolume/pkg/api"
)

// outboundQueueSize bounds the number of undelivered events a slow
// subscriber is allowed to accumulate before it's dropped.
const outboundQueueSize = 64

// writeTimeout bounds how long a single websocket write may block;
// exceeding it counts as a failed send and deregisters the sink.
const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsSink adapts a websocket connection to subscriber.Sink. Send enqueues
// onto a bounded channel drained by a dedicated writer goroutine, so a
// slow client can't block the volume actor's broadcast loop.
type wsSink struct {
	queue  chan api.ServerEvent
	closed chan struct{}
}

func newWSSink(conn *websocket.Conn) *wsSink {
	s := &wsSink{
		queue:  make(chan api.ServerEvent, outboundQueueSize),
		closed: make(chan struct{}),
	}
	go s.writeLoop(conn)
	return s
}

func (s *wsSink) Send(event api.ServerEvent) error {
	select {
	case s.queue <- event:
		return nil
	case <-s.closed:
		return websocket.ErrCloseSent
	default:
		return websocket.ErrCloseSent
	}
}

func (s *wsSink) writeLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case event := <-s.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				close(s.closed)
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *wsSink) stop() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

// handleSubscribe upgrades the connection and registers a wsSink with
// the volume's subscriber registry. A missing Upgrade header never
// reaches here (handleRoot routes to LIST instead); any other upgrade
// failure is surfaced by the upgrader itself.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	volumeID := mux.Vars(r)["volume"]
	v, err := s.volumes.Get(r.Context(), volumeID)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("volume_id", volumeID).Msg("websocket upgrade failed")
		return
	}

	sink := newWSSink(conn)
	sub := v.Subscribe(sink)
	defer func() {
		v.Unsubscribe(sub)
		sink.stop()
	}()

	// Drain and discard inbound frames; the protocol is server-to-client
	// only, but reading keeps control frames (ping/close) flowing and
	// detects client disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ subscriber.Sink = (*wsSink)(nil)
