package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelshelter.ai/internal/protocol"
	"voxelshelter.ai/internal/runner"
	"voxelshelter.ai/internal/shelter"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/sim/voxel"
)

type Options struct {
	// Inventory is given to freshly joined agents that do not bring one.
	Inventory    map[string]int
	TuningDigest string
	// Sessions outlive connections under this context.
	BaseContext context.Context
}

type Server struct {
	world     *voxel.World
	runner    *runner.Manager
	validator *protocol.Validator
	log       *log.Logger
	opts      Options

	upgrader websocket.Upgrader
}

func NewServer(w *voxel.World, m *runner.Manager, v *protocol.Validator, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	return &Server{
		world:     w,
		runner:    m,
		validator: v,
		log:       logger,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID := s.handshake(conn)
		if agentID == "" {
			return
		}
		body := s.world.Handle(agentID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		c := &client{out: make(chan []byte, 256), done: ctx.Done()}

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.dispatch(c, body, msg)
		}

		// The agent stays in the world so a reconnect can resume; its build is paused.
		c.close()
		if err := s.runner.Pause(agentID, "client disconnected"); err == nil {
			s.log.Printf("WS_DISCONNECT_PAUSE agent=%s", agentID)
		}
	}
}

func (s *Server) dispatch(c *client, body *voxel.Handle, msg []byte) {
	base, err := s.validator.Validate(msg)
	if err != nil {
		var ve *protocol.ValidationError
		code := protocol.ErrProtoBadRequest
		if errors.As(err, &ve) {
			code = ve.Code
		}
		c.send(protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          reqID(msg),
			Accepted:        false,
			Code:            code,
			Message:         err.Error(),
		})
		return
	}

	switch base.Type {
	case protocol.TypeBuild:
		var m protocol.BuildMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		s.handleBuild(c, body, m)
	case protocol.TypePlan:
		var m protocol.PlanMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		s.handlePlan(c, body, m)
	case protocol.TypeControl:
		var m protocol.ControlMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return
		}
		s.handleControl(c, body.ID(), m)
	default:
		c.send(nack(reqID(msg), protocol.ErrProtoBadRequest, "unexpected "+base.Type))
	}
}

func (s *Server) handleBuild(c *client, body *voxel.Handle, m protocol.BuildMsg) {
	kind, err := runner.ParseKind(m.Kind)
	if err != nil {
		c.send(nack(m.ReqID, protocol.ErrBadRequest, err.Error()))
		return
	}
	req := runner.Request{
		Kind: kind,
		Shelter: shelter.Request{
			Radius:     m.Radius,
			WallHeight: m.WallHeight,
			Door:       m.Door,
			Resume:     m.Resume,
		},
	}
	sess, err := s.runner.Start(s.opts.BaseContext, body, req, c)
	if err != nil {
		code := protocol.ErrInternal
		if errors.Is(err, runner.ErrBusy) {
			code = protocol.ErrBusy
		}
		c.send(nack(m.ReqID, code, err.Error()))
		return
	}
	s.log.Printf("WS_BUILD agent=%s session=%s kind=%s req=%s", body.ID(), sess.ID, kind, m.ReqID)
	c.send(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          m.ReqID,
		Accepted:        true,
		SessionID:       sess.ID,
	})
}

func (s *Server) handlePlan(c *client, body *voxel.Handle, m protocol.PlanMsg) {
	plan, missing, err := s.runner.Plan(body, shelter.Request{
		Radius:     m.Radius,
		WallHeight: m.WallHeight,
		Door:       m.Door,
		Resume:     m.Resume,
	})
	if err != nil {
		c.send(nack(m.ReqID, protocol.ErrBadRequest, err.Error()))
		return
	}
	c.send(protocol.PlanResultMsg{
		Type:            protocol.TypePlanResult,
		ProtocolVersion: protocol.Version,
		ReqID:           m.ReqID,
		Center:          posArr(plan.Center),
		Radius:          plan.Radius,
		WallHeight:      plan.WallHeight,
		Door:            plan.Door.String(),
		Cells:           len(plan.Blueprint().All()),
		Missing:         missing,
	})
}

func (s *Server) handleControl(c *client, agentID string, m protocol.ControlMsg) {
	var err error
	sess, ok := s.runner.Active(agentID)
	switch m.Action {
	case protocol.ActionPause:
		err = s.runner.Pause(agentID, m.Reason)
	case protocol.ActionCancel:
		err = s.runner.Cancel(agentID)
	case protocol.ActionAscentOn, protocol.ActionAscentOff:
		err = s.runner.SetAscent(agentID, m.Action == protocol.ActionAscentOn)
	}
	if err != nil {
		code := protocol.ErrInternal
		switch {
		case errors.Is(err, runner.ErrNoSession):
			code = protocol.ErrNoSession
		case errors.Is(err, runner.ErrPaused):
			code = protocol.ErrPaused
		}
		c.send(nack(m.ReqID, code, err.Error()))
		return
	}
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: m.ReqID, Accepted: true}
	if ok {
		ack.SessionID = sess.ID
	}
	c.send(ack)
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := s.validator.Validate(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reason := "expected HELLO"
		if err != nil {
			reason = err.Error()
		}
		if len(reason) > 120 {
			reason = reason[:120]
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}

	agentID, resumed := "", false
	if tok := strings.TrimSpace(hello.ResumeToken); tok != "" && s.hasAgent(tok) {
		agentID, resumed = tok, true
	}
	if agentID == "" {
		spec := voxel.JoinSpec{Name: hello.AgentName, Inventory: hello.Inventory}
		if spec.Inventory == nil {
			spec.Inventory = s.opts.Inventory
		}
		if hello.Spawn != nil {
			p := geom.P(hello.Spawn[0], hello.Spawn[1], hello.Spawn[2])
			spec.Spawn = &p
		}
		agentID = s.world.Join(spec)
	}
	s.log.Printf("WS_HELLO agent=%s name=%s resumed=%v", agentID, hello.AgentName, resumed)

	cfg := s.world.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         agentID,
		ResumeToken:     agentID,
		Resumed:         resumed,
		Pos:             posArr(s.world.Handle(agentID).BlockPos()),
		World: protocol.WorldParams{
			Seed:         cfg.Seed,
			Terrain:      cfg.Terrain,
			Height:       cfg.Height,
			SurfaceY:     cfg.SurfaceY,
			TickDuration: int(cfg.TickDuration / time.Millisecond),
		},
		TuningDigest: s.opts.TuningDigest,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return agentID
}

func (s *Server) hasAgent(id string) bool {
	for _, a := range s.world.Agents() {
		if a == id {
			return true
		}
	}
	return false
}

// client is one connection; it observes the sessions it started.
type client struct {
	out  chan []byte
	done <-chan struct{}

	mu     sync.Mutex
	closed bool
}

// send queues v until the connection ends.
func (c *client) send(v any) { c.enqueue(v, false) }

// sendLossy drops v when the queue is full.
func (c *client) sendLossy(v any) { c.enqueue(v, true) }

func (c *client) enqueue(v any, lossy bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if lossy {
		select {
		case c.out <- b:
		default:
		}
		return
	}
	select {
	case c.out <- b:
	case <-c.done:
	}
}

func (c *client) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *client) Status(s *runner.Session, msg string) {
	c.send(protocol.StatusMsg{Type: protocol.TypeStatus, ProtocolVersion: protocol.Version, SessionID: s.ID, Text: msg})
}

func (c *client) Event(s *runner.Session, ev shelter.Event) {
	be := protocol.BuildEvent{
		Kind:   ev.Kind,
		Phase:  ev.Phase,
		OK:     ev.OK,
		Detail: ev.Detail,
		TimeMs: ev.Time.UnixMilli(),
	}
	if ev.Pos != nil {
		p := posArr(*ev.Pos)
		be.Pos = &p
	}
	c.sendLossy(protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, SessionID: s.ID, Event: be})
}

func (c *client) Finished(s *runner.Session, res shelter.Result) {
	k := res.Counters
	c.send(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		SessionID:       s.ID,
		Kind:            string(s.Kind),
		Success:         res.Success,
		Message:         res.Message,
		Resumed:         res.Resumed,
		ManualResume:    s.ManualResume(),
		PauseReason:     s.PauseReason(),
		Counters: protocol.Counters{
			Attempted:     k.Attempted,
			Placed:        k.Placed,
			ReachFailures: k.ReachFailures,
			NoMaterial:    k.NoMaterial,
			Mined:         k.Mined,
			MineFailures:  k.MineFailures,
			PillarBlocks:  k.PillarBlocks,
			PillarRemoved: k.PillarRemoved,
		},
	})
}

func nack(reqID, code, msg string) protocol.AckMsg {
	if code == "" || !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          reqID,
		Accepted:        false,
		Code:            code,
		Message:         msg,
	}
}

func reqID(msg []byte) string {
	var v struct {
		ReqID string `json:"req_id"`
	}
	_ = json.Unmarshal(msg, &v)
	return v.ReqID
}

func posArr(p geom.Pos) [3]int { return [3]int{p.X, p.Y, p.Z} }

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
