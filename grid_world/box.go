package grid_world

import (
	"boxworld/models"
)

// pushDirections is the fixed order in which the cells around a pushed box are tried.
// Ties on distance to the goal keep the earliest direction.
var pushDirections = [4]models.Coordinate{
	{X: 0, Y: 1},
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: -1, Y: 0},
}

// attemptPush chooses where a box at @origin is relocated when the agent walks into it:
// the neighbor of @origin closest to the goal (Manhattan distance) that is on the grid, is not
// a wall, is not the agent's current cell, and is not the goal itself. It returns false when
// no neighbor qualifies. This is a greedy one-cell rule, not a path search.
func (env *Env) attemptPush(origin models.Coordinate) (target models.Coordinate, ok bool) {
	if env.box.IsBroken() {
		return
	}
	bestDistance := 0
	for _, dir := range pushDirections {
		next := origin.Add(dir)
		if !env.canHoldBox(next) {
			continue
		}
		distance := next.Manhattan(env.layout.Goal)
		if !ok || distance < bestDistance {
			target, bestDistance, ok = next, distance, true
		}
	}
	return
}

func (env *Env) canHoldBox(c models.Coordinate) bool {
	return c.InBounds(env.layout.Size) &&
		!env.layout.IsWall(c) &&
		c != env.agent &&
		c != env.layout.Goal
}
