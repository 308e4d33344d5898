package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. The clients set is owned by this
// goroutine alone; registration, removal and fan-out never interleave. The
// loop exits when done closes; remaining clients are torn down so their
// write pumps stop too.
func (s *BroadcastServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			return

		case client := <-s.register:
			// Initial state goes out before the client joins the active
			// set, so a subscriber always sees series before any point.
			s.sendInitialState(client)
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))
			s.fanOut(countMessage(len(s.clients)))

		case client := <-s.unregister:
			if _, found := s.clients[client]; found {
				delete(s.clients, client)
				close(client.send)
				s.clientCount.Store(int64(len(s.clients)))
				s.fanOut(countMessage(len(s.clients)))
			}

		case message := <-s.broadcast:
			if dropped := s.fanOut(message); dropped > 0 {
				s.clientCount.Store(int64(len(s.clients)))
				s.fanOut(countMessage(len(s.clients)))
			}
		}
	}
}

// -----------------------------------------------------------------------------

// sendInitialState hands a freshly accepted client the current full snapshot:
// one series message plus the latest poll and market records.
func (s *BroadcastServer) sendInitialState(client *Client) {
	snapshot := s.Cache.Current()

	client.send <- &models.MEnvelope{
		Type: models.MsgSeries,
		Data: models.MSeriesPayload{
			SeriesByGranularity: snapshot.SeriesByGranularity,
			SnapshotTime:        snapshot.SnapshotTime.Unix(),
		},
	}
	if snapshot.Poll != nil {
		client.send <- &models.MEnvelope{Type: models.MsgPoll, Data: snapshot.Poll}
	}
	if snapshot.Market != nil {
		client.send <- &models.MEnvelope{Type: models.MsgMarket, Data: snapshot.Market}
	}
}

// -----------------------------------------------------------------------------

// fanOut delivers one message to every active client without blocking: a
// client whose send buffer is full is dropped on the spot so it can never
// stall the hub or delay the others. Returns the number of dropped clients.
func (s *BroadcastServer) fanOut(message *models.MEnvelope) int {
	dropped := 0
	for client := range s.clients {
		select {
		case client.send <- message:
			// Message sent successfully
		default:
			// Client too slow, disconnect to prevent Hub blocking
			delete(s.clients, client)
			close(client.send)
			dropped++
		}
	}
	return dropped
}

// -----------------------------------------------------------------------------

func countMessage(clients int) *models.MEnvelope {
	return &models.MEnvelope{
		Type: models.MsgCount,
		Data: models.MCountPayload{Clients: clients},
	}
}

// -----------------------------------------------------------------------------

// Broadcast queues one typed message for fan-out to every active subscriber.
func (s *BroadcastServer) Broadcast(message *models.MEnvelope) {
	// Non-blocking: with a large buffer a full queue means the hub is gone,
	// not busy.
	select {
	case s.broadcast <- message:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s message", message.Type)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *BroadcastServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
