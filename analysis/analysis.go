// Package analysis plots training progress.
package analysis

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"boxworld/reinforcement"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var ErrNoEpisodes = errors.New("no episodes to plot")

// RewardSeries returns the total reward of each episode as plot points.
func RewardSeries(episodes []reinforcement.EpisodeStats) plotter.XYs {
	points := make(plotter.XYs, len(episodes))
	for i, stats := range episodes {
		points[i] = plotter.XY{X: float64(stats.Episode), Y: stats.TotalReward}
	}
	return points
}

// BoxSeries returns the per-episode box move and break counts as plot points.
func BoxSeries(episodes []reinforcement.EpisodeStats) (moves, breaks plotter.XYs) {
	moves = make(plotter.XYs, len(episodes))
	breaks = make(plotter.XYs, len(episodes))
	for i, stats := range episodes {
		moves[i] = plotter.XY{X: float64(stats.Episode), Y: float64(stats.BoxMoves)}
		breaks[i] = plotter.XY{X: float64(stats.Episode), Y: float64(stats.BoxBreaks)}
	}
	return
}

// PlotRewards saves the reward curve at @path and the box interaction counts next to it,
// with a "_box" suffix before the extension.
// The image format follows the extension (png, svg, pdf...).
func PlotRewards(episodes []reinforcement.EpisodeStats, path string) (boxPath string, err error) {
	if len(episodes) == 0 {
		return "", ErrNoEpisodes
	}

	p := plot.New()
	p.Title.Text = "Reward per episode"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Total reward"
	if err = plotutil.AddLinePoints(p, "reward", RewardSeries(episodes)); err != nil {
		return "", fmt.Errorf("reward plot: %w", err)
	}
	if err = p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	moves, breaks := BoxSeries(episodes)
	bp := plot.New()
	bp.Title.Text = "Box interactions per episode"
	bp.X.Label.Text = "Episode"
	bp.Y.Label.Text = "Count"
	if err = plotutil.AddLines(bp, "moves", moves, "breaks", breaks); err != nil {
		return "", fmt.Errorf("box plot: %w", err)
	}
	boxPath = withSuffix(path, "_box")
	if err = bp.Save(8*vg.Inch, 5*vg.Inch, boxPath); err != nil {
		return "", fmt.Errorf("save %s: %w", boxPath, err)
	}
	return boxPath, nil
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
