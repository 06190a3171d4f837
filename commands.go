package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"boxworld/analysis"
	"boxworld/grid_world"
	"boxworld/models"
	"boxworld/reinforcement"
	"boxworld/server"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	RENDER_NONE    = "none"
	RENDER_CONSOLE = "console"
	RENDER_WEB     = "web"
)

type trainOptions struct {
	configPath string
	episodes   int
	maxSteps   int
	render     string
	delay      time.Duration
	addr       string
	plotPath   string
	checkpoint string
	resume     string
	colored    bool
}

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "boxworld",
		Short:         "Tabular reinforcement learning on a grid world with a breakable box",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.AddCommand(newTrainCommand())
	return rootCommand
}

func newTrainCommand() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on the reference layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runTraining(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Training config yaml; reference hyperparameters when empty")
	cmd.Flags().IntVarP(&opts.episodes, "episodes", "e", reinforcement.DEFAULT_EPISODES, "Number of episodes, overrides the config")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Cap on the steps of each episode phase, overrides the config; 0 is unbounded")
	cmd.Flags().StringVarP(&opts.render, "render", "r", RENDER_NONE, "Renderer: none, console, or web")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Pause after every rendered step")
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:8080", "Listen address of the web view")
	cmd.Flags().StringVar(&opts.plotPath, "plot", "", "Save a reward curve png to this path")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "Save the value table to this path after training")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Load the value table from this checkpoint before training")
	cmd.Flags().BoolVar(&opts.colored, "color", true, "Colour console output")
	return cmd
}

// loadConfig reads the config file, if any, and applies the flags the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *trainOptions) (cfg *reinforcement.TrainingConfig, err error) {
	cfg = reinforcement.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = reinforcement.FromYaml(opts.configPath); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("episodes") {
		cfg.Episodes = opts.episodes
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.MaxStepsPerPhase = opts.maxSteps
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTraining(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	cfg *reinforcement.TrainingConfig,
	opts *trainOptions,
) (err error) {
	runID := uuid.NewString()
	log.SetPrefix(fmt.Sprintf("[%s] ", runID[:8]))
	log.Printf("run %s starting %d episodes", runID, cfg.Episodes)

	appCtx, appCancel := context.WithCancel(ctx)
	defer appCancel()

	trainingCtx, trainingCancel, err := cfg.WithTrainingDeadline(appCtx)
	if err != nil {
		return err
	}
	defer trainingCancel()

	layout := models.ReferenceLayout()
	table, err := loadTable(opts.resume, layout.Size)
	if err != nil {
		return err
	}

	renderer, err := newRenderer(appCtx, out, opts)
	if err != nil {
		return err
	}
	env, err := grid_world.NewEnv(layout, renderer)
	if err != nil {
		return err
	}
	defer env.Close()

	go watchForQuit(in, func() {
		log.Println("stop requested")
		if cr, ok := renderer.(*grid_world.ConsoleRenderer); ok {
			cr.Stop()
		}
		trainingCancel()
	})

	progress := func(_ context.Context, stats reinforcement.EpisodeStats) {
		fmt.Fprintf(out, "Episode %d completed with total reward %.0f (steps %d, moves %d, breaks %d)\n",
			stats.Episode, stats.TotalReward, stats.Steps, stats.BoxMoves, stats.BoxBreaks)
	}

	var summary *reinforcement.Summary
	train := func() error {
		var trainErr error
		summary, trainErr = reinforcement.Train(trainingCtx, env, table, cfg, progress)
		if errors.Is(trainErr, context.Canceled) || errors.Is(trainErr, context.DeadlineExceeded) {
			log.Println("training interrupted:", trainErr)
			return nil
		}
		return trainErr
	}

	if cr, ok := renderer.(*grid_world.ChannelRenderer); ok {
		err = trainWithViews(appCtx, env, table, cr, opts.addr, train)
	} else {
		err = train()
	}
	if err != nil {
		return err
	}

	return report(out, summary, layout, table, runID, opts)
}

// trainWithViews serves the web view alongside training, and keeps serving the final values
// until the app context is cancelled.
func trainWithViews(
	ctx context.Context,
	env *grid_world.Env,
	table *reinforcement.ValueTable,
	cr *grid_world.ChannelRenderer,
	addr string,
	train func() error,
) error {
	srv, err := server.NewServer(ctx, addr, env.Snapshot(), cr.Frames(), table)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	group.Go(func() error {
		if err := train(); err != nil {
			return err
		}
		log.Printf("training finished, view still served at http://%s until interrupted", addr)
		<-groupCtx.Done()
		return nil
	})
	return group.Wait()
}

func newRenderer(ctx context.Context, out io.Writer, opts *trainOptions) (grid_world.Renderer, error) {
	switch opts.render {
	case RENDER_NONE:
		return grid_world.NopRenderer{}, nil
	case RENDER_CONSOLE:
		return grid_world.NewConsoleRenderer(out, opts.delay, opts.colored), nil
	case RENDER_WEB:
		return grid_world.NewChannelRenderer(ctx, opts.delay), nil
	}
	return nil, fmt.Errorf("unknown renderer %q: want none, console, or web", opts.render)
}

func loadTable(path string, size int) (*reinforcement.ValueTable, error) {
	if path == "" {
		return reinforcement.NewValueTable(size), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	defer f.Close()

	table, prevRun, err := reinforcement.LoadValueTable(f)
	if err != nil {
		return nil, err
	}
	if table.Size() != size {
		return nil, fmt.Errorf("resume: checkpoint grid size %d does not match layout size %d", table.Size(), size)
	}
	log.Printf("resumed values of run %s", prevRun)
	return table, nil
}

// watchForQuit calls stop once a line reading "q" arrives. End of input is not a stop request.
func watchForQuit(in io.Reader, stop func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "q" {
			stop()
			return
		}
	}
}

// report writes the learned policy to out and saves the optional plot and checkpoint.
func report(
	out io.Writer,
	summary *reinforcement.Summary,
	layout models.Layout,
	table *reinforcement.ValueTable,
	runID string,
	opts *trainOptions,
) error {
	if summary != nil {
		fmt.Fprintf(out, "Box moved %d times and broke %d times over %d episodes\n",
			summary.BoxMoves, summary.BoxBreaks, len(summary.Episodes))
	}
	values := table.Values()
	models.FprintPolicy(out, &layout, values)
	models.FprintMaxValues(out, &layout, values)

	if opts.plotPath != "" && summary != nil && len(summary.Episodes) > 0 {
		boxPath, err := analysis.PlotRewards(summary.Episodes, opts.plotPath)
		if err != nil {
			return err
		}
		log.Printf("plots saved to %s and %s", opts.plotPath, boxPath)
	}

	if opts.checkpoint != "" {
		f, err := os.Create(opts.checkpoint)
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		defer f.Close()
		if err := table.Save(f, runID); err != nil {
			return err
		}
		log.Printf("values saved to %s", opts.checkpoint)
	}
	return nil
}
