package buildstate

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"voxelshelter.ai/internal/shelter/geom"
)

// Kind separates the namespaces of different build sequences.
type Kind string

const (
	KindHovel  Kind = "hovel"
	KindBurrow Kind = "burrow"
)

// Version is written with every signature; records of another version never restore.
const Version = 1

// Phase is a build-kind specific step counter.
type Phase int

const (
	keyVersion     = "version"
	keyPhase       = "phase"
	keyCenter      = "build.center"
	keyRadius      = "build.radius"
	keyWallHeight  = "build.wallHeight"
	keyDoorSide    = "build.doorSide"
	keyAnchor      = "plan.center"
	keyAnchorDoor  = "plan.doorSide"
	keyUsedBases   = "scaffold.usedBasesXZ"
	keyPendingRoof = "roof.pendingPillars"
)

var ErrNoValue = errors.New("no value")

// Signature identifies a plan. A stored state only applies to the plan it
// was written for.
type Signature struct {
	Center     geom.Pos
	Radius     int
	WallHeight int
	Door       geom.Direction
}

func SignatureOf(p geom.BuildPlan) Signature {
	return Signature{Center: p.Center, Radius: p.Radius, WallHeight: p.WallHeight, Door: p.Door}
}

// Memory is the restored progress of a compatible state.
type Memory struct {
	Phase     Phase
	UsedBases []geom.Pos
	Pending   []RoofPillar
}

// Store reads and writes one agent's namespace of a Bag.
type Store struct {
	bag    Bag
	prefix string
	logger *log.Logger
}

func NewStore(bag Bag, kind Kind, agentID string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{bag: bag, prefix: Namespace(kind, agentID), logger: logger}
}

// Namespace is the key prefix for an agent and build kind.
func Namespace(kind Kind, agentID string) string {
	return "shelter." + string(kind) + "." + agentID + "."
}

func (s *Store) Prefix() string { return s.prefix }

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) GetString(k string) (string, bool) {
	v, ok, err := s.bag.Get(s.key(k))
	if err != nil {
		s.logger.Printf("STATE_READ_ERR key=%s err=%v", s.key(k), err)
		return "", false
	}
	return v, ok
}

func (s *Store) PutString(k, v string) error {
	if err := s.bag.Put(s.key(k), v); err != nil {
		return fmt.Errorf("put %s: %w", s.key(k), err)
	}
	return nil
}

// GetInt returns ErrNoValue when the key is absent and a parse error when
// the stored value is malformed.
func (s *Store) GetInt(k string) (int, error) {
	v, ok := s.GetString(k)
	if !ok {
		return 0, ErrNoValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.key(k), err)
	}
	return n, nil
}

func (s *Store) PutInt(k string, v int) error { return s.PutString(k, strconv.Itoa(v)) }

func (s *Store) GetPos(k string) (geom.Pos, error) {
	x, err := s.GetInt(k + ".x")
	if err != nil {
		return geom.Pos{}, err
	}
	y, err := s.GetInt(k + ".y")
	if err != nil {
		return geom.Pos{}, err
	}
	z, err := s.GetInt(k + ".z")
	if err != nil {
		return geom.Pos{}, err
	}
	return geom.P(x, y, z), nil
}

func (s *Store) PutPos(k string, p geom.Pos) error {
	if err := s.PutInt(k+".x", p.X); err != nil {
		return err
	}
	if err := s.PutInt(k+".y", p.Y); err != nil {
		return err
	}
	return s.PutInt(k+".z", p.Z)
}

// Phase returns the stored phase or 0.
func (s *Store) Phase() Phase {
	n, err := s.GetInt(keyPhase)
	if err != nil {
		return 0
	}
	return Phase(n)
}

func (s *Store) SetPhase(p Phase) error { return s.PutInt(keyPhase, int(p)) }

// Signature returns the stored plan signature, if a complete one exists.
func (s *Store) Signature() (Signature, bool) {
	var sig Signature
	c, err := s.GetPos(keyCenter)
	if err != nil {
		return sig, false
	}
	r, err := s.GetInt(keyRadius)
	if err != nil {
		return sig, false
	}
	h, err := s.GetInt(keyWallHeight)
	if err != nil {
		return sig, false
	}
	ds, ok := s.GetString(keyDoorSide)
	if !ok {
		return sig, false
	}
	d, err := geom.ParseDirection(ds)
	if err != nil {
		return sig, false
	}
	return Signature{Center: c, Radius: r, WallHeight: h, Door: d}, true
}

// Begin records the signature of plan. Progress keys are left alone.
func (s *Store) Begin(plan geom.BuildPlan) error {
	if err := s.PutInt(keyVersion, Version); err != nil {
		return err
	}
	if err := s.PutPos(keyCenter, plan.Center); err != nil {
		return err
	}
	if err := s.PutInt(keyRadius, plan.Radius); err != nil {
		return err
	}
	if err := s.PutInt(keyWallHeight, plan.WallHeight); err != nil {
		return err
	}
	return s.PutString(keyDoorSide, plan.Door.String())
}

// RestoreIfCompatible returns the stored progress when the stored signature
// matches plan exactly. Door sides compare case-insensitively.
func (s *Store) RestoreIfCompatible(plan geom.BuildPlan) (Memory, bool) {
	if v, err := s.GetInt(keyVersion); err == nil && v != Version {
		s.logger.Printf("STATE_VERSION_MISMATCH prefix=%s have=%d want=%d", s.prefix, v, Version)
		return Memory{}, false
	}
	sig, ok := s.Signature()
	if !ok {
		return Memory{}, false
	}
	if sig != SignatureOf(plan) {
		s.logger.Printf("STATE_SIGNATURE_MISMATCH prefix=%s stored=%+v plan=%+v", s.prefix, sig, SignatureOf(plan))
		return Memory{}, false
	}
	return Memory{
		Phase:     s.Phase(),
		UsedBases: s.UsedBases(),
		Pending:   s.PendingPillars(),
	}, true
}

func (s *Store) UsedBases() []geom.Pos {
	v, ok := s.GetString(keyUsedBases)
	if !ok {
		return nil
	}
	return decodeColumns(v)
}

func (s *Store) SetUsedBases(cols []geom.Pos) error {
	if len(cols) == 0 {
		return s.bag.Delete(s.key(keyUsedBases))
	}
	return s.PutString(keyUsedBases, encodeColumns(cols))
}

func (s *Store) PendingPillars() []RoofPillar {
	v, ok := s.GetString(keyPendingRoof)
	if !ok {
		return nil
	}
	return decodePillars(v)
}

func (s *Store) SetPendingPillars(ps []RoofPillar) error {
	if len(ps) == 0 {
		return s.bag.Delete(s.key(keyPendingRoof))
	}
	return s.PutString(keyPendingRoof, encodePillars(ps))
}

// SaveAnchor records where a plan was made so a requested resume can reuse it.
func (s *Store) SaveAnchor(center geom.Pos, door geom.Direction) error {
	if err := s.PutPos(keyAnchor, center); err != nil {
		return err
	}
	return s.PutString(keyAnchorDoor, door.String())
}

func (s *Store) Anchor() (geom.Pos, geom.Direction, bool) {
	c, err := s.GetPos(keyAnchor)
	if err != nil {
		return geom.Pos{}, geom.North, false
	}
	ds, ok := s.GetString(keyAnchorDoor)
	if !ok {
		return geom.Pos{}, geom.North, false
	}
	d, err := geom.ParseDirection(ds)
	if err != nil {
		return geom.Pos{}, geom.North, false
	}
	return c, d, true
}

// Clear removes every key of the namespace.
func (s *Store) Clear() error {
	keys, err := s.bag.Keys(s.prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.bag.Delete(keys...)
}
