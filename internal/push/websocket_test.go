package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWSStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("api_key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dashboard_update","metrics":{"approved":7}}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	}))
	defer ts.Close()

	d := &WSDialer{URL: ts.URL + "/api/dashboard/ws", APIKey: "secret"}
	s, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"dashboard_update","metrics":{"approved":7}}`, string(msg))

	_, err = s.Next()
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestWSDialer_Refused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := (&WSDialer{URL: ts.URL}).Dial(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestWSURL(t *testing.T) {
	require.Equal(t, "ws://h/x", wsURL("http://h/x"))
	require.Equal(t, "wss://h/x", wsURL("https://h/x"))
	require.Equal(t, "ws://h/x", wsURL("ws://h/x"))
}
