package reinforcement

/*
Tabular Q-style learning for the box world. An episode has two loops, one per phase: first the
agent seeks the goal, then it seeks the box. Every step updates the table entry of the
previous cell and the action taken, with a shaping bonus added outside the usual blend. The
shaping bonus decays with distance to the goal in the first phase and is a flat constant
in the second. Training is single threaded: a step, its reward and its update complete before
the next step begins.
*/

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"

	"boxworld/grid_world"
	"boxworld/models"
)

// Environment is what training needs from the world: the episode interface plus the layout,
// for the shaping term's goal, and the box counters, for reporting.
type Environment interface {
	grid_world.Environment
	Layout() *models.Layout
	Counters() (moves, breaks int)
}

// Shaper computes the additive shaping term of an update.
type Shaper struct {
	Coeff float64
	Gamma float64
}

// Shaping returns the bonus for a step taken in @phase that landed on @next:
// coeff * ((1-gamma)*gamma^d + 1) while seeking the goal, where d is the Manhattan distance
// from @next to @goal, and coeff alone afterward.
func (s Shaper) Shaping(phase models.Phase, next, goal models.Coordinate) float64 {
	if phase == models.SeekingGoal {
		d := float64(next.Manhattan(goal))
		return s.Coeff * ((1-s.Gamma)*math.Pow(s.Gamma, d) + 1)
	}
	return s.Coeff
}

// Policy selects actions from the table. It is greedy unless exploration is enabled.
type Policy struct {
	table   *ValueTable
	epsilon float64
	explore bool
	rng     *rand.Rand
}

func NewPolicy(table *ValueTable, cfg *TrainingConfig) *Policy {
	return &Policy{
		table:   table,
		epsilon: cfg.GetHyperParamOrDefault(EPSILON, DEFAULT_EPSILON),
		explore: cfg.Exploration,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (p *Policy) Act(c models.Coordinate) models.Action {
	if p.explore && p.rng.Float64() < p.epsilon {
		return models.Actions[p.rng.Intn(models.NUM_ACTIONS)]
	}
	return p.table.ArgMax(c)
}

// EpisodeStats summarizes one episode.
type EpisodeStats struct {
	Episode          int
	TotalReward      float64
	Steps            int
	BoxMoves         int
	BoxBreaks        int
	GoalReached      bool
	FinalGoalReached bool
	// Truncated is set when a phase hit the step cap.
	Truncated bool
}

// Summary holds every episode's stats and the run-wide box counters.
type Summary struct {
	Episodes  []EpisodeStats
	BoxMoves  int
	BoxBreaks int
}

// ProgressFunc is a callback by which training reports each finished episode.
// It is synchronous and should complete quickly.
type ProgressFunc func(context.Context, EpisodeStats)

type trainer struct {
	env      Environment
	table    *ValueTable
	policy   *Policy
	shaper   Shaper
	alpha    float64
	gamma    float64
	maxSteps int
}

// Train runs cfg.Episodes episodes against @env, updating @table in place. The table is
// never reset between episodes. Training stops early, returning the context's error, when
// @ctx is cancelled; stats of the interrupted episode are still reported.
func Train(
	ctx context.Context,
	env Environment,
	table *ValueTable,
	cfg *TrainingConfig,
	progressFn ProgressFunc,
) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if size := env.Layout().Size; table.Size() != size {
		return nil, fmt.Errorf("%w: value table covers a %dx%d grid, layout is %dx%d",
			ErrConfig, table.Size(), table.Size(), size, size)
	}
	gamma := cfg.GetHyperParamOrDefault(GAMMA, DEFAULT_GAMMA)
	tr := &trainer{
		env:    env,
		table:  table,
		policy: NewPolicy(table, cfg),
		shaper: Shaper{
			Coeff: cfg.GetHyperParamOrDefault(SHAPING_COEFF, DEFAULT_SHAPING_COEFF),
			Gamma: gamma,
		},
		alpha:    cfg.GetHyperParamOrDefault(ALPHA, DEFAULT_ALPHA),
		gamma:    gamma,
		maxSteps: cfg.MaxStepsPerPhase,
	}

	summary := &Summary{}
	for episode := 1; episode <= cfg.Episodes; episode++ {
		stats, err := tr.runEpisode(ctx, episode)
		summary.Episodes = append(summary.Episodes, stats)
		summary.BoxMoves += stats.BoxMoves
		summary.BoxBreaks += stats.BoxBreaks
		if progressFn != nil {
			progressFn(ctx, stats)
		}
		if err != nil {
			log.Printf("training stopped during episode %d: %v", episode, err)
			return summary, err
		}
	}

	log.Printf("training completed: box moved %d times, broken %d times", summary.BoxMoves, summary.BoxBreaks)
	return summary, nil
}

func (tr *trainer) runEpisode(ctx context.Context, episode int) (stats EpisodeStats, err error) {
	stats.Episode = episode
	state := tr.env.Reset()
	layout := tr.env.Layout()
	log.Printf("episode %d: agent at %v, box at %v, goal at %v", episode, state, layout.BoxStart, layout.Goal)
	defer func() {
		stats.BoxMoves, stats.BoxBreaks = tr.env.Counters()
	}()

	broken := false
	for steps := 0; !stats.GoalReached; steps++ {
		if err = ctx.Err(); err != nil {
			return
		}
		if tr.maxSteps > 0 && steps >= tr.maxSteps {
			stats.Truncated = true
			return
		}
		action := tr.policy.Act(state)
		next, reward, reached, info := tr.env.Step(action)
		shaped := tr.shaper.Shaping(models.SeekingGoal, next, layout.Goal)
		tr.table.Update(state, action, next, reward, shaped, tr.alpha, tr.gamma)

		stats.TotalReward += reward
		stats.Steps++
		stats.GoalReached = reached
		broken = broken || info.BoxBroken
		state = next
		tr.env.Render()
	}

	// Without the box there is nothing left to seek.
	for steps := 0; !stats.FinalGoalReached && !broken; steps++ {
		if err = ctx.Err(); err != nil {
			return
		}
		if tr.maxSteps > 0 && steps >= tr.maxSteps {
			stats.Truncated = true
			return
		}
		action := tr.policy.Act(state)
		next, reward, _, info := tr.env.Step(action)
		shaped := tr.shaper.Shaping(models.SeekingBox, next, layout.Goal)
		tr.table.Update(state, action, next, reward, shaped, tr.alpha, tr.gamma)

		stats.TotalReward += reward
		stats.Steps++
		stats.FinalGoalReached = info.FinalGoalReached
		state = next
		tr.env.Render()
	}
	return
}
