package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/sar"
	"github.com/banshee-data/sarsim/internal/timeutil"
	"github.com/banshee-data/sarsim/internal/units"
)

var logf = monitoring.Component("Pipeline")

// Phase is a state of the run state machine:
//
//	Start → ModeSelect → {Simulate | Process} → PostProcessing → Finalize → Persisted
//
// An unknown mode, a failed acquisition or any failed stage ends in Aborted.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseModeSelect
	PhaseSimulate
	PhaseProcess
	PhasePostProcessing
	PhaseFinalize
	PhasePersisted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseModeSelect:
		return "mode_select"
	case PhaseSimulate:
		return "simulate"
	case PhaseProcess:
		return "process"
	case PhasePostProcessing:
		return "post_processing"
	case PhaseFinalize:
		return "finalize"
	case PhasePersisted:
		return "persisted"
	case PhaseAborted:
		return "aborted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Config holds the dependencies of a Pipeline.
type Config struct {
	Radar   *config.RadarConfig
	Options config.Options
	Stages  Stages

	Observer StageObserver  // Optional: receives every stage record
	Clock    timeutil.Clock // Optional: defaults to timeutil.RealClock
	// Out receives operator-facing progress lines such as the compressed
	// pulse resolution. Defaults to io.Discard.
	Out io.Writer
}

// Pipeline executes SAR runs. A Pipeline may run more than once; each Run
// gets a fresh working state.
type Pipeline struct {
	cfg Config
}

// Result summarizes a run. It is returned even when Run fails.
type Result struct {
	// Phase is the last phase reached: PhasePersisted on success,
	// PhaseAborted otherwise.
	Phase Phase
	// FailedIn is the phase that was executing when the run aborted.
	FailedIn Phase
	State    *sar.State
	// Artifacts is the number of post-header artifacts at finalize.
	Artifacts int
	// SummarySlots is the size of the header summary buffer.
	SummarySlots int
	Stages       []StageRecord
}

// New validates cfg and returns a Pipeline. Stages required by the
// selected mode and toggles must be present. An unknown mode is accepted
// here and rejected by Run, so the abort is observable as a run outcome.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Radar == nil {
		return nil, errors.New("radar config is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	s := cfg.Stages
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}

	switch cfg.Options.Mode {
	case config.ModeSimulate:
		need(s.Chirp != nil, "Chirp")
		need(s.MatchedChirp != nil, "MatchedChirp")
		need(s.FFT != nil, "FFT")
		need(s.PulseCompressor != nil, "PulseCompressor")
		need(s.Scene != nil, "Scene")
		need(s.Imager != nil, "Imager")
	case config.ModeProcess:
		need(s.Reader != nil, "Reader")
	default:
		return &Pipeline{cfg: cfg}, nil
	}
	if cfg.Options.Denoise {
		need(s.Denoiser != nil, "Denoiser")
	}
	if cfg.Options.ImagePulseCompression {
		need(s.ImageCompressor != nil, "ImageCompressor")
	}
	need(s.Backprojector != nil, "Backprojector")
	need(s.Spectrum != nil, "Spectrum")
	need(s.Persister != nil, "Persister")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing stages for %s mode: %v", cfg.Options.Mode, missing)
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes one run against store. The caller owns store and is
// responsible for releasing it; Run never releases it so results can be
// inspected after a failure.
//
// Persist is called exactly once on success and never on failure. The
// context is checked before each stage; cancellation aborts the run
// without persisting.
func (p *Pipeline) Run(ctx context.Context, store *artifact.Store) (*Result, error) {
	st := sar.NewState(p.cfg.Radar, p.cfg.Options)
	r := &run{
		Pipeline: p,
		ctx:      ctx,
		store:    store,
		st:       st,
		res:      &Result{Phase: PhaseStart, State: st},
	}

	if err := r.execute(); err != nil {
		r.res.FailedIn = r.res.Phase
		r.res.Phase = PhaseAborted
		logf("run aborted during %s: %v", r.res.FailedIn, err)
		return r.res, err
	}
	r.res.Phase = PhasePersisted
	logf("run persisted %d artifacts to %s", r.res.Artifacts, st.OutputPath)
	return r.res, nil
}

// run is the per-invocation state of Pipeline.Run.
type run struct {
	*Pipeline
	ctx   context.Context
	store *artifact.Store
	st    *sar.State
	res   *Result
}

func (r *run) execute() error {
	r.res.Phase = PhaseModeSelect
	var err error
	switch r.cfg.Options.Mode {
	case config.ModeSimulate:
		r.res.Phase = PhaseSimulate
		err = r.simulate()
	case config.ModeProcess:
		r.res.Phase = PhaseProcess
		err = r.acquire()
	default:
		return ErrUnknownMode
	}
	if err != nil {
		return err
	}

	r.res.Phase = PhasePostProcessing
	if err := r.postProcess(); err != nil {
		return err
	}

	r.res.Phase = PhaseFinalize
	return r.finalize()
}

// step runs fn as the named stage, timing it and reporting it to the
// observer. A failure is wrapped in a StageError of the given kind.
func (r *run) step(name string, kind error, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted before stage %s: %w", name, err)
	}

	start := r.cfg.Clock.Now()
	err := fn()
	rec := StageRecord{
		Seq:      len(r.res.Stages),
		Name:     name,
		Duration: r.cfg.Clock.Since(start),
		Err:      err,
	}
	r.observe(rec)

	if err != nil {
		return &StageError{Stage: name, Kind: kind, Err: err}
	}
	logf("stage %s completed in %v", name, rec.Duration)
	return nil
}

func (r *run) skip(name string) {
	r.observe(StageRecord{Seq: len(r.res.Stages), Name: name, Skipped: true})
	logf("stage %s skipped", name)
}

func (r *run) observe(rec StageRecord) {
	r.res.Stages = append(r.res.Stages, rec)
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveStage(rec)
	}
}

// produce runs a stage that yields a new artifact and appends it under name.
func (r *run) produce(stage, name string, fn func() (artifact.Matrix, error)) (*artifact.Artifact, error) {
	var a *artifact.Artifact
	err := r.step(stage, ErrAlgorithm, func() error {
		m, err := fn()
		if err != nil {
			return err
		}
		a, err = r.store.Append(name, m)
		return err
	})
	return a, err
}

func (r *run) simulate() error {
	s, radar, st := r.cfg.Stages, r.cfg.Radar, r.st

	chirp, err := r.produce(StageChirp, sar.Chirp, func() (artifact.Matrix, error) {
		return s.Chirp.GenerateChirp(radar, st)
	})
	if err != nil {
		return err
	}
	match, err := r.produce(StageMatchedChirp, sar.Match, func() (artifact.Matrix, error) {
		return s.MatchedChirp.GenerateMatchedChirp(radar, st)
	})
	if err != nil {
		return err
	}

	// Both spectra use the chirp's length.
	n := chirp.Rows
	if _, err := r.produce(StageChirpFFT, sar.ChirpFFT, r.fft(chirp, n)); err != nil {
		return err
	}
	if _, err := r.produce(StageMatchFFT, sar.MatchFFT, r.fft(match, n)); err != nil {
		return err
	}

	if _, err := r.produce(StagePulseCompress, sar.CompressedPulse, func() (artifact.Matrix, error) {
		pc, err := s.PulseCompressor.CompressPulse(chirp.Matrix(), match.Matrix(), st)
		if err != nil {
			return artifact.Matrix{}, err
		}
		st.RangeResolutionM = pc.ResolutionM
		return pc.Pulse, nil
	}); err != nil {
		return err
	}
	fmt.Fprintf(r.cfg.Out, "Compressed pulse resolution: %s\n",
		units.FormatDistance(st.RangeResolutionM, radar.GetResolutionUnits()))

	scene, err := r.produce(StageSceneInsertion, sar.Scene, func() (artifact.Matrix, error) {
		return s.Scene.BuildScene(chirp.Matrix(), radar, st)
	})
	if err != nil {
		return err
	}

	_, err = r.produce(StageRadarImager, sar.RadarImage, func() (artifact.Matrix, error) {
		return s.Imager.Image(scene.Matrix(), radar, st)
	})
	return err
}

func (r *run) fft(src *artifact.Artifact, n int) func() (artifact.Matrix, error) {
	return func() (artifact.Matrix, error) {
		out, err := r.cfg.Stages.FFT.FFT(src.Matrix(), n)
		if err != nil {
			return artifact.Matrix{}, err
		}
		if out.Len() != n {
			return artifact.Matrix{}, fmt.Errorf("fft of %q returned %d samples, want %d", src.Name(), out.Len(), n)
		}
		return out, nil
	}
}

func (r *run) acquire() error {
	return r.step(StageAcquire, ErrAcquisition, func() error {
		if err := r.cfg.Stages.Reader.Read(r.st.InputPath, r.store, r.st); err != nil {
			return err
		}
		if _, ok := r.store.Lookup(sar.RadarImage); !ok {
			return fmt.Errorf("%s contains no %q artifact", r.st.InputPath, sar.RadarImage)
		}
		return nil
	})
}

func (r *run) postProcess() error {
	s, radar, st, opts := r.cfg.Stages, r.cfg.Radar, r.st, r.cfg.Options

	img, err := r.store.MustLookup(sar.RadarImage)
	if err != nil {
		return &StageError{Stage: "post_processing", Kind: ErrAlgorithm, Err: err}
	}

	if opts.Denoise {
		fmt.Fprint(r.cfg.Out, "Running CinSnow filters ... ")
		if err := r.step(StageDenoise, ErrAlgorithm, func() error {
			if err := s.Denoiser.Denoise(img, radar, st); err != nil {
				return err
			}
			st.Denoised = true
			return nil
		}); err != nil {
			fmt.Fprintln(r.cfg.Out, "failed.")
			return err
		}
		fmt.Fprintln(r.cfg.Out, "done.")
	} else {
		r.skip(StageDenoise)
	}

	if opts.ImagePulseCompression {
		fmt.Fprint(r.cfg.Out, "Pulse-compressing image ... ")
		if err := r.step(StageImageCompress, ErrAlgorithm, func() error {
			match, err := r.matchedFilter()
			if err != nil {
				return err
			}
			if err := s.ImageCompressor.CompressImage(img, match, st); err != nil {
				return err
			}
			st.PulseCompressed = true
			return nil
		}); err != nil {
			fmt.Fprintln(r.cfg.Out, "failed.")
			return err
		}
		fmt.Fprintln(r.cfg.Out, "done.")
	} else {
		r.skip(StageImageCompress)
	}

	gbp, err := r.produce(StageBackprojection, sar.GBPImage, func() (artifact.Matrix, error) {
		return s.Backprojector.Backproject(img.Matrix(), radar, st)
	})
	if err != nil {
		return err
	}

	fmt.Fprint(r.cfg.Out, "Generating 2D FFT of GBP image ... ")
	if _, err := r.produce(StageSpectrum, sar.GBPFFT, func() (artifact.Matrix, error) {
		return s.Spectrum.Spectrum2D(gbp.Matrix())
	}); err != nil {
		fmt.Fprintln(r.cfg.Out, "failed.")
		return err
	}
	fmt.Fprintln(r.cfg.Out, "done.")
	return nil
}

// matchedFilter returns the stored matched filter. Acquisitions loaded
// without one get a transient filter from the MatchedChirpGenerator; it is
// not added to the store, and generating it leaves the restored chirp
// geometry in the run state untouched.
func (r *run) matchedFilter() (artifact.Matrix, error) {
	if a, ok := r.store.Lookup(sar.Match); ok && a.Len() > 0 {
		return a.Matrix(), nil
	}
	if r.cfg.Stages.MatchedChirp == nil {
		return artifact.Matrix{}, fmt.Errorf("no %q artifact and no matched chirp generator", sar.Match)
	}
	tmp := *r.st
	return r.cfg.Stages.MatchedChirp.GenerateMatchedChirp(r.cfg.Radar, &tmp)
}

func (r *run) finalize() error {
	if err := r.step(StageMetadata, ErrAlgorithm, func() error {
		slots, err := Aggregate(r.store)
		if err != nil {
			return err
		}
		r.res.SummarySlots = len(slots)
		return nil
	}); err != nil {
		return err
	}
	r.res.Artifacts = r.store.Count()

	return r.step(StagePersist, ErrPersist, func() error {
		return r.cfg.Stages.Persister.Persist(r.store, r.st)
	})
}
