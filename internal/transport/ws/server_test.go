package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelshelter.ai/internal/protocol"
	"voxelshelter.ai/internal/runner"
	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/sim/catalogs"
	"voxelshelter.ai/internal/sim/voxel"
)

func newTestServer(t *testing.T) (*httptest.Server, *voxel.World) {
	t.Helper()
	w, err := voxel.New(voxel.DefaultConfig(), catalogs.MustDefault())
	if err != nil {
		t.Fatalf("voxel.New: %v", err)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	m := runner.NewManager(runner.Deps{World: w, Clock: w.Clock(), Config: shelter.DefaultConfig()})
	s := NewServer(w, m, v, nil, Options{Inventory: map[string]int{"DIRT": 200, "TORCH": 4}, TuningDigest: "abc"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, w
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type != typ {
			continue
		}
		if err := json.Unmarshal(msg, v); err != nil {
			t.Fatalf("unmarshal %s: %v", typ, err)
		}
		return
	}
}

func hello(t *testing.T, conn *websocket.Conn, token string) protocol.WelcomeMsg {
	t.Helper()
	spawn := [3]int{0, 65, 0}
	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "tester",
		Spawn:           &spawn,
		ResumeToken:     token,
	}); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &w)
	return w
}

func TestHandshakeAndPlan(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)
	w := hello(t, conn, "")
	if w.AgentID == "" || w.ResumeToken != w.AgentID || w.Pos != [3]int{0, 65, 0} || w.TuningDigest != "abc" {
		t.Fatalf("welcome: got %+v", w)
	}

	if err := conn.WriteJSON(protocol.PlanMsg{Type: protocol.TypePlan, ProtocolVersion: protocol.Version, ReqID: "P1", Radius: 2, WallHeight: 3}); err != nil {
		t.Fatalf("send PLAN: %v", err)
	}
	var pr protocol.PlanResultMsg
	readType(t, conn, protocol.TypePlanResult, &pr)
	if pr.ReqID != "P1" || pr.Radius != 2 || pr.Center != [3]int{0, 64, 0} || pr.Cells == 0 || pr.Missing != pr.Cells-8*pr.Radius {
		t.Fatalf("plan result: got %+v", pr)
	}
}

func TestResumeTokenReattaches(t *testing.T) {
	ts, _ := newTestServer(t)
	first := hello(t, dial(t, ts), "")
	again := hello(t, dial(t, ts), first.ResumeToken)
	if again.AgentID != first.AgentID || !again.Resumed {
		t.Fatalf("reattach: got %+v want agent %s", again, first.AgentID)
	}
	fresh := hello(t, dial(t, ts), "A999")
	if fresh.AgentID == first.AgentID || fresh.Resumed {
		t.Fatalf("unknown token should join fresh: got %+v", fresh)
	}
}

func TestRejectsInvalidMessages(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)
	hello(t, conn, "")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BUILD","protocol_version":"1.0","req_id":"R1","kind":"castle"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack protocol.AckMsg
	readType(t, conn, protocol.TypeAck, &ack)
	if ack.Accepted || ack.AckFor != "R1" || ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("ack: got %+v", ack)
	}

	if err := conn.WriteJSON(protocol.ControlMsg{Type: protocol.TypeControl, ProtocolVersion: protocol.Version, ReqID: "C1", Action: protocol.ActionPause}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, conn, protocol.TypeAck, &ack)
	if ack.Accepted || ack.AckFor != "C1" || ack.Code != protocol.ErrNoSession {
		t.Fatalf("control ack: got %+v", ack)
	}
}

func TestBuildStreamsToResult(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)
	hello(t, conn, "")

	if err := conn.WriteJSON(protocol.BuildMsg{Type: protocol.TypeBuild, ProtocolVersion: protocol.Version, ReqID: "R1", Kind: "hovel", Radius: 2, WallHeight: 3, Door: "south"}); err != nil {
		t.Fatalf("send BUILD: %v", err)
	}
	var ack protocol.AckMsg
	readType(t, conn, protocol.TypeAck, &ack)
	if !ack.Accepted || ack.SessionID == "" {
		t.Fatalf("ack: got %+v", ack)
	}
	var res protocol.ResultMsg
	readType(t, conn, protocol.TypeResult, &res)
	if res.SessionID != ack.SessionID || !res.Success || res.Message != "Hovel complete!" {
		t.Fatalf("result: got %+v", res)
	}
	if res.Counters.Placed == 0 {
		t.Fatalf("counters: got %+v", res.Counters)
	}
}

func TestHandshakeRejectsOldVersion(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO","protocol_version":"0.9","agent_name":"old"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read: got %v want policy violation close", err)
	}
}
