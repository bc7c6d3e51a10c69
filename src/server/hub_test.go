package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alphatrak-observer/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, s *APIServer) *websocket.Conn {
	t.Helper()
	go s.runHub()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) models.MLatestData {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.MLatestData
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_InitialThenUpdates(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.UpdateResult(models.MCycleResult{PetID: 1, Kind: models.ResultSnapshot, At: time.Unix(100, 0)})

	conn := dialHub(t, s)

	initial := readState(t, conn)
	assert.Equal(t, "INITIAL", initial.Type)
	require.Contains(t, initial.Results, int64(1))
	assert.Equal(t, int64(100), initial.Timestamp)

	update := models.MCycleResult{PetID: 2, Kind: models.ResultAuthRequired, Reason: "authentication failed", At: time.Unix(200, 0)}
	s.UpdateResult(update)
	s.Broadcast(update)

	msg := readState(t, conn)
	assert.Equal(t, "UPDATE", msg.Type)
	require.Contains(t, msg.Results, int64(2))
	assert.Equal(t, models.ResultAuthRequired, msg.Results[2].Kind)
	assert.Equal(t, int64(200), msg.Timestamp)
}

func TestHub_SubscribeFiltersPets(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.UpdateResult(models.MCycleResult{PetID: 1, Kind: models.ResultSnapshot, At: time.Unix(100, 0)})
	s.UpdateResult(models.MCycleResult{PetID: 2, Kind: models.ResultTransient, At: time.Unix(101, 0)})

	conn := dialHub(t, s)
	assert.Len(t, readState(t, conn).Results, 2)

	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", PetIDs: []int64{2}}))
	reply := readState(t, conn)
	assert.Equal(t, "INITIAL", reply.Type)
	require.Len(t, reply.Results, 1)
	assert.Contains(t, reply.Results, int64(2))

	s.Broadcast(models.MCycleResult{PetID: 1, Kind: models.ResultSnapshot, At: time.Unix(300, 0)})
	s.Broadcast(models.MCycleResult{PetID: 2, Kind: models.ResultSnapshot, At: time.Unix(301, 0)})

	// Pet 1 is filtered out, so the next message is pet 2's.
	msg := readState(t, conn)
	require.Len(t, msg.Results, 1)
	assert.Equal(t, int64(301), msg.Timestamp)
}

func TestHub_BadCommandDisconnects(t *testing.T) {
	s, _, _ := newTestServer(t)
	conn := dialHub(t, s)
	readState(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return s.connections.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcast_IgnoresUnknownPayloads(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Broadcast(map[string]interface{}{"foo": 1})
	assert.Len(t, s.broadcast, 0)

	s.Broadcast(&models.MCycleResult{PetID: 1})
	assert.Len(t, s.broadcast, 1)
}

func TestFilterResults(t *testing.T) {
	all := map[int64]models.MCycleResult{1: {PetID: 1}, 2: {PetID: 2}}

	got := filterResults(all, nil)
	assert.Len(t, got, 2)
	got[3] = models.MCycleResult{}
	assert.Len(t, all, 2)

	assert.Len(t, filterResults(all, []int64{2, 9}), 1)
}
