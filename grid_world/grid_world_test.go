package grid_world

import (
	"errors"
	"math/rand"
	"testing"

	"boxworld/models"

	. "github.com/smartystreets/goconvey/convey"
)

func c(x, y int) models.Coordinate {
	return models.Coordinate{X: x, Y: y}
}

// openLayout is the reference geometry without any walls.
func openLayout() models.Layout {
	layout := models.ReferenceLayout()
	layout.Walls = models.NewWallSet()
	return layout
}

// pushLayout opens (4,2) in the reference wall so the box can be pushed from above.
func pushLayout(extraWalls ...models.Coordinate) models.Layout {
	layout := models.ReferenceLayout()
	walls := append([]models.Coordinate{c(0, 2), c(1, 2), c(2, 2), c(3, 2)}, extraWalls...)
	layout.Walls = models.NewWallSet(walls...)
	return layout
}

func mustEnv(layout models.Layout) *Env {
	env, err := NewEnv(layout, nil)
	So(err, ShouldBeNil)
	return env
}

func TestReset(t *testing.T) {
	Convey("Given the reference layout", t, func() {
		env := mustEnv(models.ReferenceLayout())

		Convey("Reset places the agent and box at their start cells", func() {
			So(env.Reset(), ShouldResemble, c(0, 0))
			at, intact := env.Box().Intact()
			So(intact, ShouldBeTrue)
			So(at, ShouldResemble, c(5, 2))
			So(env.FinalGoal(), ShouldResemble, c(5, 2))
			So(env.Phase(), ShouldEqual, models.SeekingGoal)
		})

		Convey("Reset restores episode state after the box broke and the goal was reached", func() {
			env.agent = c(5, 1)
			env.box = models.BrokenBox()
			env.boxBreakCount = 1
			env.boxMoveCount = 3
			env.phase = models.SeekingBox

			So(env.Reset(), ShouldResemble, c(0, 0))
			So(env.Box().IsBroken(), ShouldBeFalse)
			So(env.Phase(), ShouldEqual, models.SeekingGoal)
			moves, breaks := env.Counters()
			So(moves, ShouldEqual, 0)
			So(breaks, ShouldEqual, 0)
			So(env.Layout().IsWall(c(0, 2)), ShouldBeTrue)
			So(env.Layout().Goal, ShouldResemble, c(0, 5))
		})
	})
}

func TestNewEnv(t *testing.T) {
	Convey("NewEnv rejects layouts that cannot hold the fixed cells", t, func() {
		mutations := []func(*models.Layout){
			func(l *models.Layout) { l.Size = 1 },
			func(l *models.Layout) { l.Goal = c(0, 6) },
			func(l *models.Layout) { l.BoxStart = c(4, 2) },
			func(l *models.Layout) { l.BoxStart = l.Goal },
			func(l *models.Layout) { l.Walls = models.NewWallSet(c(-1, 0)) },
			func(l *models.Layout) { l.AgentStart = l.BoxStart },
		}
		for _, mutate := range mutations {
			layout := models.ReferenceLayout()
			mutate(&layout)
			_, err := NewEnv(layout, nil)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, models.ErrInvalidLayout), ShouldBeTrue)
		}
	})

	Convey("The environment keeps its own copy of the walls", t, func() {
		layout := models.ReferenceLayout()
		env := mustEnv(layout)
		delete(layout.Walls, c(0, 2))
		So(env.Layout().IsWall(c(0, 2)), ShouldBeTrue)
	})
}

func TestStepSeekingGoal(t *testing.T) {
	Convey("Given an open grid with the reference goal", t, func() {
		env := mustEnv(openLayout())
		env.Reset()

		Convey("Five downs walk the agent to the goal, and the last step pays the goal bonus", func() {
			for i := 1; i <= 4; i++ {
				pos, reward, reached, _ := env.Step(models.Down)
				So(pos, ShouldResemble, c(0, i))
				So(reward, ShouldEqual, -1)
				So(reached, ShouldBeFalse)
			}
			pos, reward, reached, info := env.Step(models.Down)
			So(pos, ShouldResemble, c(0, 5))
			So(reward, ShouldEqual, 99)
			So(reached, ShouldBeTrue)
			So(info.Phase, ShouldEqual, models.SeekingBox)
		})

		Convey("Moves off the grid are clamped", func() {
			pos, reward, _, _ := env.Step(models.Left)
			So(pos, ShouldResemble, c(0, 0))
			So(reward, ShouldEqual, -1)
			pos, _, _, _ = env.Step(models.Up)
			So(pos, ShouldResemble, c(0, 0))
		})
	})

	Convey("Given the reference layout", t, func() {
		env := mustEnv(models.ReferenceLayout())
		env.Reset()

		Convey("Walking into a wall costs a step and leaves the agent in place", func() {
			env.Step(models.Down)
			pos, reward, reached, _ := env.Step(models.Down)
			So(pos, ShouldResemble, c(0, 1))
			So(reward, ShouldEqual, -1)
			So(reached, ShouldBeFalse)
		})

		Convey("Pushing the box down through the gap moves it toward the goal", func() {
			env.agent = c(5, 1)
			pos, reward, _, info := env.Step(models.Down)
			So(info.BoxMoved, ShouldBeTrue)
			So(pos, ShouldResemble, c(5, 2))
			So(reward, ShouldEqual, -1)
			at, _ := env.Box().Intact()
			So(at, ShouldResemble, c(5, 3))
			So(env.FinalGoal(), ShouldResemble, c(5, 2))
		})
	})

	Convey("Given the agent at (4,2) beside the box at (5,2)", t, func() {
		Convey("When a neighbor can hold the box", func() {
			env := mustEnv(pushLayout())
			env.Reset()
			env.agent = c(4, 2)

			pos, reward, reached, info := env.Step(models.Right)
			So(info.BoxMoved, ShouldBeTrue)
			So(info.BoxBroken, ShouldBeFalse)
			So(pos, ShouldResemble, c(5, 2))
			So(reward, ShouldEqual, -1)
			So(reached, ShouldBeFalse)
			at, intact := env.Box().Intact()
			So(intact, ShouldBeTrue)
			So(at, ShouldResemble, c(5, 3))
			moves, breaks := env.Counters()
			So(moves, ShouldEqual, 1)
			So(breaks, ShouldEqual, 0)
			So(env.BoxInteracted(), ShouldBeFalse)
		})

		Convey("When no neighbor can hold the box it breaks and the agent stays put", func() {
			env := mustEnv(pushLayout(c(5, 1), c(5, 3)))
			env.Reset()
			env.agent = c(4, 2)

			pos, reward, _, info := env.Step(models.Right)
			So(info.BoxBroken, ShouldBeTrue)
			So(pos, ShouldResemble, c(4, 2))
			So(reward, ShouldEqual, -1000)
			So(env.Box().IsBroken(), ShouldBeTrue)
			So(env.BoxInteracted(), ShouldBeTrue)
			moves, breaks := env.Counters()
			So(moves, ShouldEqual, 0)
			So(breaks, ShouldEqual, 1)

			Convey("The broken box no longer blocks its former cell", func() {
				pos, reward, _, info := env.Step(models.Right)
				So(pos, ShouldResemble, c(5, 2))
				So(reward, ShouldEqual, -1)
				So(info.BoxBroken, ShouldBeFalse)
				_, breaks := env.Counters()
				So(breaks, ShouldEqual, 1)
			})
		})
	})
}

func TestAttemptPush(t *testing.T) {
	tieLayout := func(walls ...models.Coordinate) models.Layout {
		return models.Layout{
			Size:       6,
			Walls:      models.NewWallSet(walls...),
			Goal:       c(3, 3),
			BoxStart:   c(2, 2),
			AgentStart: c(1, 2),
		}
	}

	Convey("Given equally close neighbors below and right of the box", t, func() {
		Convey("The box moves down, the earlier direction", func() {
			env := mustEnv(tieLayout())
			env.Step(models.Right)
			at, _ := env.Box().Intact()
			So(at, ShouldResemble, c(2, 3))
		})

		Convey("With the cell below walled off, the box moves right", func() {
			env := mustEnv(tieLayout(c(2, 3)))
			env.Step(models.Right)
			at, _ := env.Box().Intact()
			So(at, ShouldResemble, c(3, 2))
		})
	})

	Convey("The box is never pushed onto the goal", t, func() {
		layout := models.Layout{
			Size:       4,
			Walls:      models.NewWallSet(),
			Goal:       c(1, 2),
			BoxStart:   c(1, 1),
			AgentStart: c(0, 1),
		}
		env := mustEnv(layout)
		target, ok := env.attemptPush(c(1, 1))
		So(ok, ShouldBeTrue)
		So(target, ShouldNotResemble, layout.Goal)
		So(target, ShouldResemble, c(1, 0))
	})

	Convey("Cells left of or above the grid cannot hold the box", t, func() {
		layout := models.Layout{
			Size:       4,
			Walls:      models.NewWallSet(c(0, 0), c(0, 2)),
			Goal:       c(3, 3),
			BoxStart:   c(0, 1),
			AgentStart: c(1, 1),
		}
		env := mustEnv(layout)
		_, ok := env.attemptPush(c(0, 1))
		So(ok, ShouldBeFalse)

		_, reward, _, info := env.Step(models.Left)
		So(info.BoxBroken, ShouldBeTrue)
		So(reward, ShouldEqual, -1000)
	})

	Convey("A broken box cannot be pushed", t, func() {
		env := mustEnv(models.ReferenceLayout())
		env.box = models.BrokenBox()
		_, ok := env.attemptPush(c(5, 2))
		So(ok, ShouldBeFalse)
	})
}

func TestStepSeekingBox(t *testing.T) {
	layout := models.Layout{
		Size:       4,
		Walls:      models.NewWallSet(c(1, 1)),
		Goal:       c(0, 1),
		BoxStart:   c(0, 3),
		AgentStart: c(0, 0),
	}

	Convey("Given the goal has been reached", t, func() {
		env := mustEnv(layout)
		_, reward, reached, _ := env.Step(models.Down)
		So(reward, ShouldEqual, 99)
		So(reached, ShouldBeTrue)

		Convey("Walls still block the agent", func() {
			pos, reward, reached, _ := env.Step(models.Right)
			So(pos, ShouldResemble, c(0, 1))
			So(reward, ShouldEqual, -1)
			So(reached, ShouldBeTrue)
		})

		Convey("Walking onto the box completes the episode without pushing it", func() {
			_, reward, reached, info := env.Step(models.Down)
			So(reward, ShouldEqual, -1)
			So(reached, ShouldBeTrue)
			So(info.FinalGoalReached, ShouldBeFalse)

			pos, reward, reached, info := env.Step(models.Down)
			So(pos, ShouldResemble, c(0, 3))
			So(reward, ShouldEqual, 149)
			So(reached, ShouldBeTrue)
			So(info.FinalGoalReached, ShouldBeTrue)
			So(env.Phase(), ShouldEqual, models.Done)
			at, _ := env.Box().Intact()
			So(at, ShouldResemble, c(0, 3))
			moves, _ := env.Counters()
			So(moves, ShouldEqual, 0)
		})

		Convey("A box broken earlier can never be reached", func() {
			env.box = models.BrokenBox()
			env.Step(models.Down)
			pos, reward, _, info := env.Step(models.Down)
			So(pos, ShouldResemble, c(0, 3))
			So(reward, ShouldEqual, -1)
			So(info.FinalGoalReached, ShouldBeFalse)
			So(env.Phase(), ShouldEqual, models.SeekingBox)
		})
	})
}

func TestInvariants(t *testing.T) {
	Convey("Over long random walks on the reference layout", t, func() {
		env := mustEnv(models.ReferenceLayout())
		rng := rand.New(rand.NewSource(11))
		layout := env.Layout()

		for episode := 0; episode < 20; episode++ {
			env.Reset()
			lastPhase := env.Phase()
			wasBroken := false
			lastMoves, lastBreaks := 0, 0
			for step := 0; step < 100; step++ {
				pos, _, _, _ := env.Step(models.Actions[rng.Intn(models.NUM_ACTIONS)])

				So(pos.InBounds(layout.Size), ShouldBeTrue)
				So(layout.IsWall(pos), ShouldBeFalse)
				if at, intact := env.Box().Intact(); intact {
					So(layout.IsWall(at), ShouldBeFalse)
					So(at, ShouldNotResemble, layout.Goal)
					So(wasBroken, ShouldBeFalse)
				} else {
					wasBroken = true
					So(env.Phase(), ShouldNotEqual, models.Done)
				}
				So(int(env.Phase()), ShouldBeGreaterThanOrEqualTo, int(lastPhase))
				lastPhase = env.Phase()
				moves, breaks := env.Counters()
				So(moves, ShouldBeGreaterThanOrEqualTo, lastMoves)
				So(breaks, ShouldBeGreaterThanOrEqualTo, lastBreaks)
				lastMoves, lastBreaks = moves, breaks
			}
		}
	})
}
