package server

import (
	"encoding/json"
	"net/http"
	"time"

	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ interfaces.IDataExchanger = (*APIServer)(nil)

// directMessage is a reply meant for one client only.
type directMessage struct {
	client  *Client
	message *models.MLatestData
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the client set. Every write to a client's send channel happens
// here, so a channel is never written after it is closed.
func (s *APIServer) runHub() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Add(1)
			// Send initial state on connect
			s.deliver(client, s.initialState(nil))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
			}

		case dm := <-s.direct:
			if _, ok := s.clients[dm.client]; ok {
				s.deliver(dm.client, dm.message)
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				filtered := client.filter(message)
				if filtered == nil {
					continue
				}
				s.deliver(client, filtered)
			}
		}
	}
}

// deliver queues a message; a client too slow to keep up is disconnected so
// the hub never blocks.
func (s *APIServer) deliver(client *Client, message *models.MLatestData) {
	select {
	case client.send <- message:
	default:
		s.Logger.Warning("Client %s too slow, disconnecting", client.id)
		s.drop(client)
	}
}

func (s *APIServer) drop(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.connections.Add(-1)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateResult stores the newest result of a pet for REST readers and new
// websocket clients.
func (s *APIServer) UpdateResult(result models.MCycleResult) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if s.latestState.Results == nil {
		s.latestState.Results = make(map[int64]models.MCycleResult)
	}
	s.latestState.Results[result.PetID] = result
	s.latestState.Timestamp = timestamp(result.At)
	s.latestState.Type = "UPDATE"
}

// -----------------------------------------------------------------------------

// Broadcast queues a message for every websocket client. Accepts a cycle
// result or a prepared MLatestData.
func (s *APIServer) Broadcast(message interface{}) {
	state, ok := toLatestData(message)
	if !ok {
		s.Logger.Info("Broadcast expected a cycle result, got %T", message)
		return
	}

	select {
	case <-s.done:
	case s.broadcast <- state:
	default:
		s.Logger.Warning("Broadcast queue full, dropping update")
	}
}

// -----------------------------------------------------------------------------

// initialState copies the cached results, restricted to pets when given.
func (s *APIServer) initialState(pets []int64) *models.MLatestData {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return &models.MLatestData{
		Type:      "INITIAL",
		Results:   filterResults(s.latestState.Results, pets),
		Timestamp: s.latestState.Timestamp,
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

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.id, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command and answers with the
// matching cached results.
func (s *APIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.subscribe(cmd.PetIDs)

	select {
	case s.direct <- directMessage{client: client, message: s.initialState(cmd.PetIDs)}:
	case <-s.done:
	case <-time.After(writeWait):
		s.Logger.Warning("Subscribe reply for client %s dropped", client.id)
	}
}
