package protocol

// HELLO (client -> server). ResumeToken reattaches to an agent that is still
// in the world.
type HelloMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	AgentName       string         `json:"agent_name"`
	Spawn           *[3]int        `json:"spawn,omitempty"`
	Inventory       map[string]int `json:"inventory,omitempty"`
	ResumeToken     string         `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	ResumeToken     string      `json:"resume_token"`
	Resumed         bool        `json:"resumed,omitempty"`
	Pos             [3]int      `json:"pos"`
	World           WorldParams `json:"world"`
	TuningDigest    string      `json:"tuning_digest,omitempty"`
}

type WorldParams struct {
	Seed         int64  `json:"seed"`
	Terrain      string `json:"terrain"`
	Height       int    `json:"height"`
	SurfaceY     int    `json:"surface_y"`
	TickDuration int    `json:"tick_ms"`
}

// BUILD (client -> server) starts a hovel or burrow session.
type BuildMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Kind            string `json:"kind"`
	Radius          int    `json:"radius,omitempty"`
	WallHeight      int    `json:"wall_height,omitempty"`
	Door            string `json:"door,omitempty"`
	Resume          bool   `json:"resume,omitempty"`
}

// PLAN (client -> server) previews the hovel plan without building.
type PlanMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Radius          int    `json:"radius,omitempty"`
	WallHeight      int    `json:"wall_height,omitempty"`
	Door            string `json:"door,omitempty"`
	Resume          bool   `json:"resume,omitempty"`
}

// CONTROL (client -> server) acts on the active session.
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Action          string `json:"action"`
	Reason          string `json:"reason,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
}

// STATUS (server -> client): a chat line from the build.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Text            string `json:"text"`
}

type EventMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Event           BuildEvent `json:"event"`
}

type BuildEvent struct {
	Kind   string  `json:"kind"`
	Phase  string  `json:"phase,omitempty"`
	Pos    *[3]int `json:"pos,omitempty"`
	OK     bool    `json:"ok"`
	Detail string  `json:"detail,omitempty"`
	TimeMs int64   `json:"time_ms"`
}

type ResultMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Kind            string   `json:"kind"`
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	Resumed         bool     `json:"resumed,omitempty"`
	ManualResume    bool     `json:"manual_resume,omitempty"`
	PauseReason     string   `json:"pause_reason,omitempty"`
	Counters        Counters `json:"counters"`
}

type Counters struct {
	Attempted     int `json:"attempted"`
	Placed        int `json:"placed"`
	ReachFailures int `json:"reach_failures"`
	NoMaterial    int `json:"no_material"`
	Mined         int `json:"mined"`
	MineFailures  int `json:"mine_failures"`
	PillarBlocks  int `json:"pillar_blocks"`
	PillarRemoved int `json:"pillar_removed"`
}

type PlanResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Center          [3]int `json:"center"`
	Radius          int    `json:"radius"`
	WallHeight      int    `json:"wall_height"`
	Door            string `json:"door"`
	Cells           int    `json:"cells"`
	Missing         int    `json:"missing"`
}
