// Package shelter plans and builds enclosed shelters and underground burrows
// for an embodied agent using fallible, reach-limited mine and place primitives.
package shelter

import (
	"context"
	"io"
	"log"
	"time"

	"voxelshelter.ai/internal/shelter/buildstate"
	"voxelshelter.ai/internal/shelter/geom"
	"voxelshelter.ai/internal/shelter/terrain"
)

// World is the read-only view of the voxel grid.
type World interface {
	terrain.Reader
}

// Agent is the observable state of the building agent.
type Agent interface {
	ID() string
	Position() geom.Vec3
	EyePosition() geom.Vec3
	BlockPos() geom.Pos
	Velocity() geom.Vec3
	OnGround() bool
	Sneaking() bool
	Facing() geom.Direction
	InsideWall() bool
	// LastObstructed is the time of the latest suffocation-type damage, zero if none.
	LastObstructed() time.Time
	CountItems(ids ...string) int
}

// Controls are the primitives the agent can issue. All of them may fail.
type Controls interface {
	// Mine yields true once the block is gone.
	Mine(ctx context.Context, p geom.Pos) <-chan bool
	Place(ctx context.Context, p geom.Pos, face geom.Direction, items []string) bool
	// MoveTo is long-distance pathfinding; Step is a short direct move.
	MoveTo(ctx context.Context, dest geom.Pos) bool
	Step(ctx context.Context, dest geom.Pos) bool
	FaceTowards(p geom.Pos)
	Jump() bool
	Halt()
	SetSneaking(on bool)
	// Snap teleports the feet to p with zero velocity and fall distance.
	Snap(p geom.Pos)
}

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// TaskControl is the owning task's control surface.
type TaskControl interface {
	RequestPause(reason string)
	FlagManualResume()
	AscentMode() bool
}

// PauseError is a cancellation cause that turns a stop into a pause.
type PauseError struct{ Reason string }

func (e *PauseError) Error() string { return "pause requested: " + e.Reason }

// Messenger delivers status lines to whoever asked for the build.
type Messenger interface {
	Say(msg string)
}

// Env carries every collaborator of a build.
type Env struct {
	World     World
	Agent     Agent
	Controls  Controls
	Clock     Clock
	Tasks     TaskControl
	Messages  Messenger
	Bag       buildstate.Bag
	Events    EventSink
	Logger    *log.Logger
	Config    Config
	Emergency *EmergencyRegistry
}

type nopTasks struct{}

func (nopTasks) RequestPause(string) {}
func (nopTasks) FlagManualResume()   {}
func (nopTasks) AscentMode() bool    { return false }

type nopMessenger struct{}

func (nopMessenger) Say(string) {}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = log.New(io.Discard, "", 0)
	}
	if e.Tasks == nil {
		e.Tasks = nopTasks{}
	}
	if e.Messages == nil {
		e.Messages = nopMessenger{}
	}
	if e.Events == nil {
		e.Events = NopSink{}
	}
	if e.Bag == nil {
		e.Bag = buildstate.NewMemBag()
	}
	if e.Emergency == nil {
		e.Emergency = NewEmergencyRegistry()
	}
	e.Config = e.Config.withDefaults()
	return e
}

// Result is the outcome of a build invocation.
type Result struct {
	Success  bool
	Message  string
	Counters Counters
	// Resumed is set when persisted progress was restored.
	Resumed bool
}

// Counters tally primitive outcomes of one invocation.
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
