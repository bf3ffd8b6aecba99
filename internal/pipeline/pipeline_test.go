package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/sar"
	"github.com/banshee-data/sarsim/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

const chirpLen = 8

var errBoom = errors.New("boom")

// fakeStages implements every stage interface with trivial matrices and
// counts calls per stage.
type fakeStages struct {
	calls  map[string]int
	failAt string

	readerArtifacts []string
	persistedSlots  []complex128
}

func newFakeStages() *fakeStages {
	return &fakeStages{
		calls:           make(map[string]int),
		readerArtifacts: []string{sar.Chirp, sar.Match, sar.RadarImage},
	}
}

func (f *fakeStages) hit(stage string) error {
	f.calls[stage]++
	if f.failAt == stage {
		return errBoom
	}
	return nil
}

func (f *fakeStages) GenerateChirp(*config.RadarConfig, *sar.State) (artifact.Matrix, error) {
	return artifact.Vector(make([]complex128, chirpLen)), f.hit(StageChirp)
}

func (f *fakeStages) GenerateMatchedChirp(*config.RadarConfig, *sar.State) (artifact.Matrix, error) {
	return artifact.Vector(make([]complex128, chirpLen)), f.hit(StageMatchedChirp)
}

func (f *fakeStages) FFT(w artifact.Matrix, n int) (artifact.Matrix, error) {
	return artifact.Vector(make([]complex128, n)), f.hit("fft")
}

func (f *fakeStages) CompressPulse(chirp, match artifact.Matrix, st *sar.State) (sar.PulseCompression, error) {
	return sar.PulseCompression{Pulse: artifact.Vector(make([]complex128, chirp.Rows)), ResolutionM: 1.5}, f.hit(StagePulseCompress)
}

func (f *fakeStages) BuildScene(chirp artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	return artifact.NewMatrix(4, 4), f.hit(StageSceneInsertion)
}

func (f *fakeStages) Image(scene artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	return artifact.NewMatrix(3, 5), f.hit(StageRadarImager)
}

func (f *fakeStages) Denoise(img *artifact.Artifact, cfg *config.RadarConfig, st *sar.State) error {
	return f.hit(StageDenoise)
}

func (f *fakeStages) CompressImage(img *artifact.Artifact, match artifact.Matrix, st *sar.State) error {
	if err := f.hit(StageImageCompress); err != nil {
		return err
	}
	return img.Replace(artifact.NewMatrix(img.Rows, img.Cols))
}

func (f *fakeStages) Backproject(img artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	return artifact.NewMatrix(4, 4), f.hit(StageBackprojection)
}

func (f *fakeStages) Spectrum2D(img artifact.Matrix) (artifact.Matrix, error) {
	return artifact.NewMatrix(img.Rows, img.Cols), f.hit(StageSpectrum)
}

func (f *fakeStages) Read(path string, store *artifact.Store, st *sar.State) error {
	if err := f.hit(StageAcquire); err != nil {
		return err
	}
	for _, name := range f.readerArtifacts {
		if _, err := store.Append(name, artifact.NewMatrix(3, 5)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStages) Persist(store *artifact.Store, st *sar.State) error {
	if err := f.hit(StagePersist); err != nil {
		return err
	}
	if err := store.FillSummary(); err != nil {
		return err
	}
	f.persistedSlots = append([]complex128(nil), store.Header().Data...)
	return nil
}

func (f *fakeStages) stages() Stages {
	return Stages{
		Chirp: f, MatchedChirp: f, FFT: f, PulseCompressor: f, Scene: f, Imager: f,
		Denoiser: f, ImageCompressor: f, Backprojector: f, Spectrum: f,
		Reader: f, Persister: f,
	}
}

func newTestPipeline(t *testing.T, f *fakeStages, opts config.Options) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	if opts.OutputPath == "" {
		opts.OutputPath = "out.dat"
	}
	var out bytes.Buffer
	p, err := New(Config{
		Radar:   config.EmptyRadarConfig(),
		Options: opts,
		Stages:  f.stages(),
		Out:     &out,
	})
	require.NoError(t, err)
	return p, &out
}

func TestRun_SimulateBothTogglesOff(t *testing.T) {
	f := newFakeStages()
	p, out := newTestPipeline(t, f, config.Options{Mode: config.ModeSimulate})

	store := artifact.NewStore()
	res, err := p.Run(context.Background(), store)
	require.NoError(t, err)

	want := []string{
		sar.Chirp, sar.Match, sar.ChirpFFT, sar.MatchFFT, sar.CompressedPulse,
		sar.Scene, sar.RadarImage, sar.GBPImage, sar.GBPFFT,
	}
	if diff := cmp.Diff(want, store.Names()); diff != "" {
		t.Errorf("artifact names mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, PhasePersisted, res.Phase)
	assert.Equal(t, 9, res.Artifacts)
	assert.Equal(t, 9, res.SummarySlots)
	assert.Equal(t, 1, f.calls[StagePersist], "persist runs exactly once")
	assert.Zero(t, f.calls[StageDenoise])
	assert.Zero(t, f.calls[StageImageCompress])

	header := store.Header()
	assert.Equal(t, 1, header.Rows)
	assert.Equal(t, 9, header.Cols)
	require.Len(t, f.persistedSlots, 9)
	assert.Equal(t, complex(float64(chirpLen), 1), f.persistedSlots[0])
	assert.Equal(t, complex(3, 5), f.persistedSlots[6], "radar_image slot")

	assert.InDelta(t, 1.5, res.State.RangeResolutionM, 1e-12)
	assert.Contains(t, out.String(), "Compressed pulse resolution: 1.500m")
	assert.Contains(t, out.String(), "Generating 2D FFT of GBP image ... done.")
	assert.NotContains(t, out.String(), "CinSnow")
}

func TestRun_SimulateBothTogglesOn(t *testing.T) {
	f := newFakeStages()
	p, out := newTestPipeline(t, f, config.Options{
		Mode:                  config.ModeSimulate,
		Denoise:               true,
		ImagePulseCompression: true,
	})

	store := artifact.NewStore()
	res, err := p.Run(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls[StageDenoise])
	assert.Equal(t, 1, f.calls[StageImageCompress])
	assert.Equal(t, 9, store.Count(), "in-place stages must not add artifacts")
	assert.True(t, res.State.Denoised)
	assert.True(t, res.State.PulseCompressed)
	assert.Contains(t, out.String(), "Running CinSnow filters ... done.")
	assert.Contains(t, out.String(), "Pulse-compressing image ... done.")
}

func TestRun_FFTLengthsMatchChirp(t *testing.T) {
	f := newFakeStages()
	p, _ := newTestPipeline(t, f, config.Options{Mode: config.ModeSimulate})

	store := artifact.NewStore()
	_, err := p.Run(context.Background(), store)
	require.NoError(t, err)

	chirp, ok := store.Lookup(sar.Chirp)
	require.True(t, ok)
	for _, name := range []string{sar.ChirpFFT, sar.MatchFFT} {
		a, ok := store.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, chirp.Rows, a.Len(), name)
	}
}

type shortFFT struct{ *fakeStages }

func (s shortFFT) FFT(w artifact.Matrix, n int) (artifact.Matrix, error) {
	return artifact.Vector(make([]complex128, n-1)), nil
}

func TestRun_FFTWrongLengthIsAlgorithmError(t *testing.T) {
	f := newFakeStages()
	stages := f.stages()
	stages.FFT = shortFFT{f}
	p, err := New(Config{
		Radar:   config.EmptyRadarConfig(),
		Options: config.Options{Mode: config.ModeSimulate, OutputPath: "out.dat"},
		Stages:  stages,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), artifact.NewStore())
	assert.ErrorIs(t, err, ErrAlgorithm)
	assert.Zero(t, f.calls[StagePersist])
}

func TestRun_UnknownModeLeavesStoreUntouched(t *testing.T) {
	f := newFakeStages()
	p, out := newTestPipeline(t, f, config.Options{Mode: config.ModeUnknown})

	store := artifact.NewStore()
	res, err := p.Run(context.Background(), store)

	require.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, PhaseAborted, res.Phase)
	assert.Equal(t, PhaseModeSelect, res.FailedIn)
	assert.Equal(t, 0, store.Count())
	assert.Nil(t, store.Header().Data)
	assert.Empty(t, f.calls)
	assert.Empty(t, out.String())
	assert.Equal(t, "Mode not recognized - exiting.", Diagnostic(err))
}

func TestRun_ProcessAcquisitionFailure(t *testing.T) {
	f := newFakeStages()
	f.failAt = StageAcquire
	p, _ := newTestPipeline(t, f, config.Options{Mode: config.ModeProcess, InputPath: "missing.dat", Denoise: true})

	store := artifact.NewStore()
	res, err := p.Run(context.Background(), store)

	require.ErrorIs(t, err, ErrAcquisition)
	require.ErrorIs(t, err, errBoom)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAcquire, se.Stage)

	assert.Equal(t, PhaseProcess, res.FailedIn)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, map[string]int{StageAcquire: 1}, f.calls, "no stage after a failed acquisition")
}

func TestRun_ProcessWithoutRadarImage(t *testing.T) {
	f := newFakeStages()
	f.readerArtifacts = []string{sar.Chirp}
	p, _ := newTestPipeline(t, f, config.Options{Mode: config.ModeProcess, InputPath: "in.dat"})

	_, err := p.Run(context.Background(), artifact.NewStore())
	assert.ErrorIs(t, err, ErrAcquisition)
	assert.Zero(t, f.calls[StageBackprojection])
}

func TestRun_ProcessFlow(t *testing.T) {
	f := newFakeStages()
	p, _ := newTestPipeline(t, f, config.Options{Mode: config.ModeProcess, InputPath: "in.dat"})

	store := artifact.NewStore()
	res, err := p.Run(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, []string{sar.Chirp, sar.Match, sar.RadarImage, sar.GBPImage, sar.GBPFFT}, store.Names())
	assert.Equal(t, 5, res.SummarySlots)
	assert.Zero(t, f.calls[StageChirp], "simulation stages do not run in process mode")
	assert.Equal(t, 1, f.calls[StagePersist])
}

func TestRun_ProcessCompressionWithoutStoredMatch(t *testing.T) {
	f := newFakeStages()
	f.readerArtifacts = []string{sar.RadarImage}
	p, _ := newTestPipeline(t, f, config.Options{
		Mode:                  config.ModeProcess,
		InputPath:             "in.dat",
		ImagePulseCompression: true,
	})

	store := artifact.NewStore()
	_, err := p.Run(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls[StageMatchedChirp], "transient matched filter generated")
	_, ok := store.Lookup(sar.Match)
	assert.False(t, ok, "transient matched filter is not stored")
	assert.Equal(t, 3, store.Count())
}

// restoringReader restores chirp geometry from the acquisition file the way
// sarfile.Reader does.
type restoringReader struct{ *fakeStages }

func (r restoringReader) Read(path string, store *artifact.Store, st *sar.State) error {
	st.ChirpSamples = 5
	st.SampleRateHz = 25e6
	st.BandwidthHz = 10e6
	return r.fakeStages.Read(path, store, st)
}

// overwritingMatch rewrites the chirp geometry from the radar config the way
// dsp.Processor does.
type overwritingMatch struct{ *fakeStages }

func (m overwritingMatch) GenerateMatchedChirp(cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	st.ChirpSamples = cfg.ChirpSamples()
	st.SampleRateHz = cfg.GetSampleRateHz()
	st.BandwidthHz = cfg.GetBandwidthHz()
	return m.fakeStages.GenerateMatchedChirp(cfg, st)
}

func TestRun_TransientMatchKeepsRestoredGeometry(t *testing.T) {
	f := newFakeStages()
	f.readerArtifacts = []string{sar.RadarImage}
	stages := f.stages()
	stages.Reader = restoringReader{f}
	stages.MatchedChirp = overwritingMatch{f}
	p, err := New(Config{
		Radar: config.EmptyRadarConfig(),
		Options: config.Options{
			Mode:                  config.ModeProcess,
			InputPath:             "in.dat",
			OutputPath:            "out.dat",
			ImagePulseCompression: true,
		},
		Stages: stages,
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), artifact.NewStore())
	require.NoError(t, err)
	require.Equal(t, 1, f.calls[StageMatchedChirp])
	assert.Equal(t, 5, res.State.ChirpSamples)
	assert.Equal(t, 25e6, res.State.SampleRateHz)
	assert.Equal(t, 10e6, res.State.BandwidthHz)
}

func TestRun_StageFailuresAreFatal(t *testing.T) {
	tests := []struct {
		failAt        string
		opts          config.Options
		wantKind      error
		wantArtifacts int
	}{
		{StageChirp, config.Options{Mode: config.ModeSimulate}, ErrAlgorithm, 0},
		{StagePulseCompress, config.Options{Mode: config.ModeSimulate}, ErrAlgorithm, 4},
		{StageRadarImager, config.Options{Mode: config.ModeSimulate}, ErrAlgorithm, 6},
		{StageDenoise, config.Options{Mode: config.ModeSimulate, Denoise: true}, ErrAlgorithm, 7},
		{StageImageCompress, config.Options{Mode: config.ModeSimulate, ImagePulseCompression: true}, ErrAlgorithm, 7},
		{StageBackprojection, config.Options{Mode: config.ModeSimulate}, ErrAlgorithm, 7},
		{StageSpectrum, config.Options{Mode: config.ModeSimulate}, ErrAlgorithm, 8},
		{StagePersist, config.Options{Mode: config.ModeSimulate}, ErrPersist, 9},
	}

	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			f := newFakeStages()
			f.failAt = tt.failAt
			p, _ := newTestPipeline(t, f, tt.opts)

			store := artifact.NewStore()
			res, err := p.Run(context.Background(), store)

			require.ErrorIs(t, err, tt.wantKind)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.failAt, se.Stage)
			assert.Equal(t, PhaseAborted, res.Phase)
			assert.Equal(t, tt.wantArtifacts, store.Count(), "no rollback of produced artifacts")
			assert.Equal(t, 1, f.calls[tt.failAt], "no retries")
			if tt.failAt != StagePersist {
				assert.Zero(t, f.calls[StagePersist])
			}
		})
	}
}

func TestRun_CancelledContextSkipsPersist(t *testing.T) {
	f := newFakeStages()
	p, _ := newTestPipeline(t, f, config.Options{Mode: config.ModeSimulate})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx, artifact.NewStore())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseAborted, res.Phase)
	assert.Zero(t, f.calls[StagePersist])
	assert.Equal(t, "Run interrupted, closing.", Diagnostic(err))
}

func TestRun_ObserverSeesEveryStage(t *testing.T) {
	f := newFakeStages()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	clock.SetAutoStep(time.Millisecond)

	var recs []StageRecord
	p, err := New(Config{
		Radar:    config.EmptyRadarConfig(),
		Options:  config.Options{Mode: config.ModeSimulate, OutputPath: "out.dat", Denoise: true},
		Stages:   f.stages(),
		Clock:    clock,
		Observer: StageObserverFunc(func(rec StageRecord) { recs = append(recs, rec) }),
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), artifact.NewStore())
	require.NoError(t, err)

	var names []string
	for i, rec := range recs {
		names = append(names, rec.Name)
		assert.Equal(t, i, rec.Seq)
		if rec.Skipped {
			assert.Zero(t, rec.Duration)
		} else {
			assert.Equal(t, time.Millisecond, rec.Duration)
		}
	}
	assert.Equal(t, []string{
		StageChirp, StageMatchedChirp, StageChirpFFT, StageMatchFFT, StagePulseCompress,
		StageSceneInsertion, StageRadarImager, StageDenoise, StageImageCompress,
		StageBackprojection, StageSpectrum, StageMetadata, StagePersist,
	}, names)
	assert.True(t, recs[8].Skipped, "image pulse compression skipped")
	assert.Equal(t, recs, res.Stages)
}

func TestNew_MissingStages(t *testing.T) {
	_, err := New(Config{Options: config.Options{Mode: config.ModeSimulate}})
	assert.Error(t, err, "radar config required")

	_, err = New(Config{
		Radar:   config.EmptyRadarConfig(),
		Options: config.Options{Mode: config.ModeProcess, Denoise: true},
		Stages:  Stages{Reader: newFakeStages()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Denoiser")
	assert.Contains(t, err.Error(), "Persister")

	// Unknown modes are rejected by Run, not New.
	_, err = New(Config{Radar: config.EmptyRadarConfig()})
	assert.NoError(t, err)
}

func TestAggregate(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		store := artifact.NewStore()
		slots, err := Aggregate(store)
		require.NoError(t, err)
		assert.Empty(t, slots)
		assert.Equal(t, 0, store.Header().Cols)
	})

	t.Run("one slot per artifact", func(t *testing.T) {
		store := artifact.NewStore()
		for _, n := range []string{"a", "b", "c"} {
			_, err := store.Append(n, artifact.NewMatrix(2, 3))
			require.NoError(t, err)
		}
		slots, err := Aggregate(store)
		require.NoError(t, err)
		assert.Len(t, slots, 3)
		assert.Equal(t, 3, store.Header().Len())

		require.NoError(t, store.FillSummary())
		assert.Equal(t, complex(2, 3), store.Header().Data[2])
	})
}

func TestDiagnostic(t *testing.T) {
	assert.Empty(t, Diagnostic(nil))
	assert.Equal(t, "Invalid input detected, closing.", Diagnostic(ErrInput))
	assert.Equal(t, "Failed to read radar data, closing.",
		Diagnostic(&StageError{Stage: StageAcquire, Kind: ErrAcquisition, Err: errBoom}))
	assert.Equal(t, "Processing failed, closing.",
		Diagnostic(&StageError{Stage: StageChirp, Kind: ErrAlgorithm, Err: errBoom}))
	assert.Equal(t, "Failed to write output, closing.",
		Diagnostic(&StageError{Stage: StagePersist, Kind: ErrPersist, Err: errBoom}))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "post_processing", PhasePostProcessing.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}
