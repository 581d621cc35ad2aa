package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/superghost/internal/game"
	"github.com/robalobadob/superghost/internal/notify"
	"github.com/robalobadob/superghost/internal/service"
)

func readDelta(t *testing.T, conn *websocket.Conn) game.Delta {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type = %d", kind)
	}
	raw, err := base64.StdEncoding.DecodeString(string(frame))
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	var d game.Delta
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("json: %v", err)
	}
	return d
}

func TestSubscribeStreamsDeltas(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	m, _ := h.svc.Create(ctx, service.CreateRequest{PlayerID: "A"})
	_, _ = h.svc.Join(ctx, m.ID, "B", nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v3/game/subscribe/" + m.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readDelta(t, conn)
	if first.Player1ID == nil || *first.Player1ID != "A" || first.Player2ID == nil || *first.Player2ID != "B" {
		t.Fatalf("first frame = %+v", first)
	}
	if !first.IsBlockingMoveForPlayerOne {
		t.Fatal("player two should be on the move")
	}

	if _, err := h.svc.Append(ctx, m.ID, "B", "s"); err != nil {
		t.Fatal(err)
	}
	next := readDelta(t, conn)
	if next.Word == nil || *next.Word != "S" || next.IsBlockingMoveForPlayerOne || next.Player1ID != nil {
		t.Fatalf("delta = %+v", next)
	}

	if err := h.svc.Quit(ctx, m.ID, "A"); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure || ce.Text != "playerLeft" {
		t.Fatalf("close = %v", err)
	}
}

func TestSubscribeUnknownMatch(t *testing.T) {
	h := newHarness(t, nil)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v3/game/subscribe/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	c := &wsClient{send: make(chan notify.Event, 1), dropped: make(chan struct{})}
	if !c.Deliver(notify.Event{}) {
		t.Fatal("first deliver refused")
	}
	if c.Deliver(notify.Event{}) {
		t.Fatal("full queue accepted")
	}
	select {
	case <-c.dropped:
	default:
		t.Fatal("client not marked dropped")
	}
}
