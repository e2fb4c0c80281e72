package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelshelter.ai/internal/protocol"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "agent name")
		kind        = flag.String("kind", "hovel", "build kind: hovel or burrow")
		radius      = flag.Int("radius", 0, "hovel radius (0: server default)")
		height      = flag.Int("height", 0, "wall height (0: server default)")
		door        = flag.String("door", "", "door side: north, south, east or west")
		resume      = flag.Bool("resume", false, "resume saved progress")
		resumeToken = flag.String("resume_token", "", "reattach to an existing agent")
		spawn       = flag.String("spawn", "", "spawn position x,y,z")
		planOnly    = flag.Bool("plan", false, "only preview the plan")
		pauseAfter  = flag.Duration("pause_after", 0, "send PAUSE after this long")
		cancelAfter = flag.Duration("cancel_after", 0, "send CANCEL after this long")
		verbose     = flag.Bool("v", false, "print build events")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		ResumeToken:     *resumeToken,
	}
	if *spawn != "" {
		p, err := parsePos(*spawn)
		if err != nil {
			logger.Fatalf("spawn: %v", err)
		}
		hello.Spawn = &p
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		writeMu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("connection closed: %v", err)
			os.Exit(1)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME agent_id=%s resumed=%v pos=%v seed=%d terrain=%s", w.AgentID, w.Resumed, w.Pos, w.World.Seed, w.World.Terrain)
			if *planOnly {
				send(conn, logger, protocol.PlanMsg{
					Type:            protocol.TypePlan,
					ProtocolVersion: protocol.Version,
					ReqID:           "plan-1",
					Radius:          *radius,
					WallHeight:      *height,
					Door:            *door,
					Resume:          *resume,
				})
				continue
			}
			send(conn, logger, protocol.BuildMsg{
				Type:            protocol.TypeBuild,
				ProtocolVersion: protocol.Version,
				ReqID:           "build-1",
				Kind:            *kind,
				Radius:          *radius,
				WallHeight:      *height,
				Door:            *door,
				Resume:          *resume,
			})
			scheduleControl(conn, logger, *pauseAfter, protocol.ActionPause)
			scheduleControl(conn, logger, *cancelAfter, protocol.ActionCancel)

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if !a.Accepted {
				logger.Printf("REJECTED %s code=%s msg=%q", a.AckFor, a.Code, a.Message)
				if a.AckFor == "build-1" || a.AckFor == "plan-1" {
					os.Exit(1)
				}
				continue
			}
			logger.Printf("ACK %s session=%s", a.AckFor, a.SessionID)

		case protocol.TypeStatus:
			var s protocol.StatusMsg
			if err := json.Unmarshal(msg, &s); err == nil {
				logger.Printf("<%s> %s", *name, s.Text)
			}

		case protocol.TypeEvent:
			if !*verbose {
				continue
			}
			var e protocol.EventMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("EVENT %s phase=%s pos=%v ok=%v %s", e.Event.Kind, e.Event.Phase, fmtPos(e.Event.Pos), e.Event.OK, e.Event.Detail)
			}

		case protocol.TypePlanResult:
			var p protocol.PlanResultMsg
			if err := json.Unmarshal(msg, &p); err != nil {
				continue
			}
			logger.Printf("PLAN center=%v radius=%d height=%d door=%s cells=%d missing=%d",
				p.Center, p.Radius, p.WallHeight, p.Door, p.Cells, p.Missing)
			return

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			logger.Printf("RESULT %s success=%v resumed=%v manual_resume=%v msg=%q placed=%d mined=%d",
				r.Kind, r.Success, r.Resumed, r.ManualResume, r.Message, r.Counters.Placed, r.Counters.Mined)
			if !r.Success {
				os.Exit(1)
			}
			return
		}
	}
}

// gorilla/websocket allows one concurrent writer.
var writeMu sync.Mutex

func send(conn *websocket.Conn, logger *log.Logger, v any) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		logger.Fatalf("send: %v", err)
	}
}

func scheduleControl(conn *websocket.Conn, logger *log.Logger, after time.Duration, action string) {
	if after <= 0 {
		return
	}
	time.AfterFunc(after, func() {
		logger.Printf("sending %s", action)
		send(conn, logger, protocol.ControlMsg{
			Type:            protocol.TypeControl,
			ProtocolVersion: protocol.Version,
			ReqID:           strings.ToLower(action),
			Action:          action,
			Reason:          "bot timer",
		})
	})
}

func parsePos(s string) ([3]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("want x,y,z got %q", s)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, fmt.Errorf("bad coordinate %q", p)
		}
		out[i] = n
	}
	return out, nil
}

func fmtPos(p *[3]int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d,%d,%d", p[0], p[1], p[2])
}
