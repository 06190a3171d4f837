// Package grid_world implements the box world environment: the grid state, the
// two-phase transition and reward model, and the box push heuristic.
package grid_world

import (
	"boxworld/models"
)

// Rewards
const (
	STEP_REWARD       = -1.0
	BREAK_REWARD      = -1000.0
	GOAL_REWARD       = 100.0
	FINAL_GOAL_REWARD = 150.0
)

// Environment is the narrow interface through which the training harness drives an episode.
type Environment interface {
	// Reset starts a new episode and returns the agent's start position.
	Reset() models.Coordinate
	// Step applies the action and returns the agent's position, the base reward, and whether
	// the phase-1 goal has been reached at any point in this episode.
	Step(action models.Action) (models.Coordinate, float64, bool, Info)
	// Render hands the current frame to the environment's renderer.
	Render()
	Close() error
}

// Info describes the side effects of a single step.
type Info struct {
	Phase            models.Phase
	BoxMoved         bool
	BoxBroken        bool
	FinalGoalReached bool
}

// Env is the single Environment implementation. The layout is fixed at construction;
// everything else is episode state restored by Reset.
type Env struct {
	layout   models.Layout
	renderer Renderer

	agent         models.Coordinate
	box           models.Box
	finalGoal     models.Coordinate
	phase         models.Phase
	boxInteracted bool
	boxMoveCount  int
	boxBreakCount int

	episode int
	steps   int
}

var _ Environment = &Env{}

// NewEnv validates the layout and returns an environment positioned at the start of its
// first episode. A nil renderer is replaced by a NopRenderer.
func NewEnv(layout models.Layout, renderer Renderer) (*Env, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}
	// Copy the walls so callers cannot mutate the set after construction.
	layout.Walls = models.NewWallSet(wallCells(layout.Walls)...)
	env := &Env{
		layout:   layout,
		renderer: renderer,
	}
	env.Reset()
	env.episode = 0
	return env, nil
}

// Reset restores the agent, the box, the phase and the per-episode counters.
// The layout and any learned values held by the caller are untouched.
func (env *Env) Reset() models.Coordinate {
	env.agent = env.layout.AgentStart
	env.box = models.IntactBox(env.layout.BoxStart)
	env.finalGoal = env.layout.BoxStart
	env.phase = models.SeekingGoal
	env.boxInteracted = false
	env.boxMoveCount = 0
	env.boxBreakCount = 0
	env.steps = 0
	env.episode++
	return env.agent
}

func (env *Env) Step(action models.Action) (models.Coordinate, float64, bool, Info) {
	env.steps++
	candidate := env.agent.Add(action.Delta()).Clamp(env.layout.Size)
	if env.phase == models.SeekingGoal {
		return env.stepSeekingGoal(candidate)
	}
	return env.stepSeekingBox(candidate)
}

// The agent may push the box while seeking the goal. A push the heuristic cannot place breaks the box.
func (env *Env) stepSeekingGoal(candidate models.Coordinate) (models.Coordinate, float64, bool, Info) {
	info := Info{}
	reward := STEP_REWARD
	switch {
	case env.layout.IsWall(candidate):
	case env.box.At(candidate):
		env.boxInteracted = true
		if target, ok := env.attemptPush(candidate); ok {
			env.box = models.IntactBox(target)
			env.boxInteracted = false
			env.boxMoveCount++
			env.agent = candidate
			info.BoxMoved = true
		} else {
			env.box = models.BrokenBox()
			env.boxBreakCount++
			reward = BREAK_REWARD
			info.BoxBroken = true
		}
	default:
		env.agent = candidate
	}

	if env.agent == env.layout.Goal {
		env.phase = models.SeekingBox
		reward += GOAL_REWARD
	}
	info.Phase = env.phase
	return env.agent, reward, env.phase >= models.SeekingBox, info
}

// Once the goal is reached the box is inert: the agent walks onto its cell rather than pushing it.
func (env *Env) stepSeekingBox(candidate models.Coordinate) (models.Coordinate, float64, bool, Info) {
	info := Info{}
	reward := STEP_REWARD
	if !env.layout.IsWall(candidate) {
		env.agent = candidate
		if env.box.At(env.agent) {
			env.phase = models.Done
			reward += FINAL_GOAL_REWARD
			info.FinalGoalReached = true
		}
	}
	info.Phase = env.phase
	return env.agent, reward, true, info
}

func (env *Env) Render() {
	env.renderer.Render(env.Snapshot())
}

// Close releases the renderer, if it holds anything.
func (env *Env) Close() error {
	if closer, ok := env.renderer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Snapshot copies the current episode state for renderers.
func (env *Env) Snapshot() models.Snapshot {
	return models.Snapshot{
		Layout:        &env.layout,
		Agent:         env.agent,
		Box:           env.box,
		FinalGoal:     env.finalGoal,
		Phase:         env.phase,
		BoxMoveCount:  env.boxMoveCount,
		BoxBreakCount: env.boxBreakCount,
		Episode:       env.episode,
		Step:          env.steps,
	}
}

func (env *Env) Layout() *models.Layout {
	return &env.layout
}

func (env *Env) Agent() models.Coordinate {
	return env.agent
}

func (env *Env) Box() models.Box {
	return env.box
}

// FinalGoal is the box's cell at the start of the episode.
func (env *Env) FinalGoal() models.Coordinate {
	return env.finalGoal
}

func (env *Env) Phase() models.Phase {
	return env.phase
}

// BoxInteracted reports whether the last push attempt left the box touched but unmoved,
// which is only the case after it broke.
func (env *Env) BoxInteracted() bool {
	return env.boxInteracted
}

// Counters returns the box move and break counts of the current episode.
func (env *Env) Counters() (moves, breaks int) {
	return env.boxMoveCount, env.boxBreakCount
}

func wallCells(walls models.WallSet) []models.Coordinate {
	cells := make([]models.Coordinate, 0, len(walls))
	for c := range walls {
		cells = append(cells, c)
	}
	return cells
}
