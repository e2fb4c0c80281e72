package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeBuild   = "BUILD"
	TypePlan    = "PLAN"
	TypeControl = "CONTROL"

	TypeAck        = "ACK"
	TypeStatus     = "STATUS"
	TypeEvent      = "EVENT"
	TypeResult     = "RESULT"
	TypePlanResult = "PLAN_RESULT"
)

// Control actions.
const (
	ActionPause     = "PAUSE"
	ActionCancel    = "CANCEL"
	ActionAscentOn  = "ASCENT_ON"
	ActionAscentOff = "ASCENT_OFF"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
