package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CONFIG_KIND identifies a training config document.
const CONFIG_KIND = "boxworld/training"

// OuterConfig is the envelope of every config document: a kind and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the training budget and the standard RL params: learning rate,
// discount, exploration rate, and the shaping coefficient.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperParams"`
	// Episodes is the number of episodes to train for.
	Episodes int `yaml:"episodes"`
	// MaxStepsPerPhase caps each phase of an episode. Zero means no cap, in which case an
	// episode whose greedy policy never reaches the phase's goal runs until cancelled.
	MaxStepsPerPhase int `yaml:"maxStepsPerPhase"`
	// Exploration enables epsilon-greedy action selection. When false the epsilon
	// hyperparameter is accepted but actions are always greedy.
	Exploration bool `yaml:"exploration"`
	// Seed seeds exploration.
	Seed int64 `yaml:"seed"`
	// TrainingDeadline is a fixed duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingDeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// Hyperparameter names and their reference values.
const (
	ALPHA         = "alpha"
	GAMMA         = "gamma"
	EPSILON       = "epsilon"
	SHAPING_COEFF = "shapingCoeff"

	DEFAULT_ALPHA         = 0.1
	DEFAULT_GAMMA         = 0.7
	DEFAULT_EPSILON       = 0.1
	DEFAULT_SHAPING_COEFF = 0.08
	DEFAULT_EPISODES      = 100
)

// DefaultConfig is the reference configuration: 100 greedy episodes, no step cap.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: ALPHA, Val: DEFAULT_ALPHA},
			{Key: GAMMA, Val: DEFAULT_GAMMA},
			{Key: EPSILON, Val: DEFAULT_EPSILON},
			{Key: SHAPING_COEFF, Val: DEFAULT_SHAPING_COEFF},
		},
		Episodes: DEFAULT_EPISODES,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// ErrConfig is wrapped by every configuration validation failure.
var ErrConfig = errors.New("invalid training config")

// Validate checks the budget and that the rates lie in their ranges.
func (cfg *TrainingConfig) Validate() error {
	if cfg.Episodes < 0 {
		return fmt.Errorf("%w: episodes must be non-negative, got %d", ErrConfig, cfg.Episodes)
	}
	if cfg.MaxStepsPerPhase < 0 {
		return fmt.Errorf("%w: maxStepsPerPhase must be non-negative, got %d", ErrConfig, cfg.MaxStepsPerPhase)
	}
	for _, key := range []string{ALPHA, GAMMA, EPSILON} {
		if val := cfg.GetHyperParamOrDefault(key, 0); val < 0 || val > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrConfig, key, val)
		}
	}
	return nil
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: training deadline: %v", ErrConfig, err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a training config document. The episode budget and seed may be overridden
// by the BOXWORLD_EPISODES and BOXWORLD_SEED environment variables.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.SetEnvPrefix("boxworld")
	if err := vp.BindEnv("episodes"); err != nil {
		return nil, err
	}
	if err := vp.BindEnv("seed"); err != nil {
		return nil, err
	}
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err := vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != CONFIG_KIND {
		return nil, fmt.Errorf("%w: kind %q, expected %q", ErrConfig, outerConfig.Kind, CONFIG_KIND)
	}

	defYaml, err := yaml.Marshal(outerConfig.Def)
	if err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	innerConfig.HyperParams = nil
	if err = yaml.Unmarshal(defYaml, innerConfig); err != nil {
		return nil, err
	}
	if vp.IsSet("episodes") {
		innerConfig.Episodes = vp.GetInt("episodes")
	}
	if vp.IsSet("seed") {
		innerConfig.Seed = vp.GetInt64("seed")
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}
