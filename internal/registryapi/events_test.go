package registryapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, EventSubscribed, readEvent(t, conn).Type)
	return conn
}

func request(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestEvents(t *testing.T) {
	ts := httptest.NewServer(New(newStore(t)).Handler())
	defer ts.Close()

	first := dialEvents(t, ts)
	second := dialEvents(t, ts)

	resp := request(t, http.MethodPut, ts.URL+"/schemas/orders.proto", ordersDecl)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventPublished, ev.Type)
		assert.Equal(t, "orders.proto", ev.File)
		assert.NotEmpty(t, ev.Revision)
		assert.True(t, ev.Valid)
		assert.NotZero(t, ev.Timestamp)
	}

	second.Close()

	resp = request(t, http.MethodDelete, ts.URL+"/schemas/orders.proto", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ev := readEvent(t, first)
	assert.Equal(t, EventDeleted, ev.Type)
	assert.Equal(t, "orders.proto", ev.File)
}

func TestEventsNotSentForFailures(t *testing.T) {
	ts := httptest.NewServer(New(newStore(t)).Handler())
	defer ts.Close()

	conn := dialEvents(t, ts)

	resp := request(t, http.MethodDelete, ts.URL+"/schemas/missing.proto", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = request(t, http.MethodPut, ts.URL+"/schemas/broken.proto?require_valid=true", brokenDecl)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = request(t, http.MethodPut, ts.URL+"/schemas/broken.proto", brokenDecl)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := readEvent(t, conn)
	assert.Equal(t, EventPublished, ev.Type)
	assert.Equal(t, "broken.proto", ev.File)
	assert.False(t, ev.Valid)
}

func TestEventsRequiresUpgrade(t *testing.T) {
	rec := do(t, New(newStore(t)).Handler(), http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
