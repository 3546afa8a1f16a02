package interpreter

import (
	"fmt"

	"tasknerd/internal/articulation"
	"tasknerd/internal/config"
	"tasknerd/internal/executor"
	"tasknerd/internal/logging"
	"tasknerd/internal/perception"
	"tasknerd/internal/planner"
	"tasknerd/internal/resolve"
	"tasknerd/internal/session"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

// Stack is a fully wired interpreter together with the components that
// take live config updates.
type Stack struct {
	*Interpreter

	Resolver    *resolve.Resolver
	Extractor   *perception.Extractor
	Synthesizer *articulation.Synthesizer
}

// NewStack builds every stage from cfg over st. client may be nil, in
// which case only fast paths are understood and task generation fails.
func NewStack(cfg *config.Config, st *store.LocalStore, client types.LLMClient) (*Stack, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "NewStack")
	defer timer.Stop()

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("interpreter timezone: %w", err)
	}

	ropts := resolve.DefaultOptions()
	ropts.Location = loc
	if cfg.Interpreter.FuzzyMinDistance > 0 {
		ropts.MinDistance = cfg.Interpreter.FuzzyMinDistance
	}
	if cfg.Interpreter.FuzzyDistanceRatio > 0 {
		ropts.DistanceRatio = cfg.Interpreter.FuzzyDistanceRatio
	}
	res := resolve.New(st, ropts)

	ext := perception.NewExtractor(client, perception.ExtractorOptions{
		Timeout:   cfg.GetLLMTimeout(),
		FastPaths: cfg.Interpreter.FastPaths,
	})

	var drafter executor.Drafter
	if client != nil {
		drafter = perception.NewDrafter(client, cfg.GetLLMTimeout())
	}

	synth := articulation.New(articulation.Options{
		Client:   client,
		Rephrase: cfg.Articulation.Rephrase && client != nil,
		Timeout:  cfg.GetLLMTimeout(),
	})

	topts := session.Options{TTL: cfg.GetSessionTTL()}
	if cfg.Session.RecordTurns {
		topts.Recorder = session.StoreRecorder{Store: st}
	}

	in := New(Deps{
		Tracker:     session.NewTracker(topts),
		Extractor:   ext,
		Planner:     planner.New(res, planner.Options{ListLimit: cfg.Interpreter.ListLimit}),
		Executor:    executor.New(st, drafter, executor.Options{SampleSize: cfg.Interpreter.SampleSize}),
		Synthesizer: synth,
	})

	logging.Boot("interpreter ready (llm=%t, fast_paths=%t, rephrase=%t, tz=%s)",
		client != nil, cfg.Interpreter.FastPaths, cfg.Articulation.Rephrase, loc)

	return &Stack{Interpreter: in, Resolver: res, Extractor: ext, Synthesizer: synth}, nil
}

// Apply pushes the reloadable parts of cfg into the running stack. Store,
// transport and model settings need a restart.
func (s *Stack) Apply(cfg *config.Config) {
	if err := cfg.ValidateOffline(); err != nil {
		logging.Get(logging.CategoryConfig).Warn("config reload ignored: %v", err)
		return
	}
	if err := logging.SetLevel(cfg.Logging.Level); err != nil {
		logging.Get(logging.CategoryBoot).Warn("config reload: %v", err)
	}
	def := resolve.DefaultOptions()
	minDist, ratio := cfg.Interpreter.FuzzyMinDistance, cfg.Interpreter.FuzzyDistanceRatio
	if minDist <= 0 {
		minDist = def.MinDistance
	}
	if ratio <= 0 {
		ratio = def.DistanceRatio
	}
	s.Resolver.SetThresholds(minDist, ratio)
	s.Extractor.SetFastPaths(cfg.Interpreter.FastPaths)
	s.Synthesizer.SetRephrase(cfg.Articulation.Rephrase)
	logging.Boot("config reloaded (fast_paths=%t, rephrase=%t)", cfg.Interpreter.FastPaths, cfg.Articulation.Rephrase)
}
