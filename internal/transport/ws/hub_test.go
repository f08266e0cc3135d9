package ws

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

	"chatsurvey/internal/model"
	"chatsurvey/internal/service"
)

func newFeed(t *testing.T) (*Hub, *service.AuthService, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	auth := service.NewAuthService("admin", "pw", "secret")
	h := NewHandler(hub, auth, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.AdminWS))
	t.Cleanup(srv.Close)
	return hub, auth, srv
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestAdminFeed_DeliversEvents(t *testing.T) {
	hub, auth, srv := newFeed(t)

	login, err := auth.Login("admin", "pw")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + login.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, MsgConnected, hello.Type)
	assert.JSONEq(t, `{"adminId":"`+login.AdminID+`"}`, string(hello.Payload))
	assert.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastToAdmins(service.EventAnswerRecorded, model.SurveyEvent{SessionID: "s1", BlockID: "b1", Progress: 40})

	msg := readMessage(t, conn)
	assert.Equal(t, MsgAnswerRecorded, msg.Type)
	var ev model.SurveyEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.Equal(t, model.SurveyEvent{SessionID: "s1", BlockID: "b1", Progress: 40}, ev)
}

func TestAdminFeed_RejectsBadTokens(t *testing.T) {
	_, _, srv := newFeed(t)

	for _, query := range []string{"", "?token=nope"} {
		resp, err := http.Get(srv.URL + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, query)
	}
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, originChecker(nil)(req))
	assert.False(t, originChecker([]string{"https://admin.example"})(req))
	assert.True(t, originChecker([]string{"https://admin.example", "https://evil.example"})(req))
	assert.True(t, originChecker([]string{"*"})(req))
}

func TestBroadcastToAdmins_NoListeners(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	assert.NotPanics(t, func() {
		hub.BroadcastToAdmins(service.EventSessionStarted, map[string]string{"sessionId": "s"})
	})
}
