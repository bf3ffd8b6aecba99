// Package pipeline orchestrates a SAR processing run.
//
// The pipeline selects a run mode, executes the fixed stage sequence for
// that mode, gates the optional post-processing stages on the operator's
// captured decisions, and finally aggregates run metadata and hands the
// artifact store to the persistence collaborator.
//
// This package is the composition root for stages: it owns ordering and
// naming, never the numerics. Every algorithm is reached through one of the
// interfaces below so implementations can be swapped or faked in tests.
package pipeline

import (
	"time"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// ---------------------------------------------------------------------------
// Stage interfaces. Each consumes named artifacts produced by strictly
// earlier stages; the orchestrator names whatever they return.
// ---------------------------------------------------------------------------

// ChirpGenerator synthesizes the transmitted waveform ("chirp").
type ChirpGenerator interface {
	GenerateChirp(cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error)
}

// MatchedChirpGenerator synthesizes the matched filter for the chirp ("match").
type MatchedChirpGenerator interface {
	GenerateMatchedChirp(cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error)
}

// Transformer computes an n-point discrete Fourier transform of a waveform.
type Transformer interface {
	FFT(waveform artifact.Matrix, n int) (artifact.Matrix, error)
}

// PulseCompressor correlates the chirp with its matched filter.
type PulseCompressor interface {
	CompressPulse(chirp, match artifact.Matrix, st *sar.State) (sar.PulseCompression, error)
}

// SceneBuilder builds the empty scene and embeds the uncompressed chirp at
// its center (scene insertion).
type SceneBuilder interface {
	BuildScene(chirp artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error)
}

// RadarImager simulates the scan trajectory over the scene and returns the
// raw radar image (scan positions x range bins).
type RadarImager interface {
	Image(scene artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error)
}

// Denoiser filters the radar image in place (CinSnow filter bank).
type Denoiser interface {
	Denoise(image *artifact.Artifact, cfg *config.RadarConfig, st *sar.State) error
}

// ImageCompressor replaces the radar image with its pulse-compressed form.
type ImageCompressor interface {
	CompressImage(image *artifact.Artifact, match artifact.Matrix, st *sar.State) error
}

// Backprojector reconstructs the scene from the radar image (GBP).
type Backprojector interface {
	Backproject(image artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error)
}

// SpectrumAnalyzer computes the 2-D spectrum of an image.
type SpectrumAnalyzer interface {
	Spectrum2D(image artifact.Matrix) (artifact.Matrix, error)
}

// RadarFileReader loads an acquisition from disk into the store.
type RadarFileReader interface {
	Read(path string, store *artifact.Store, st *sar.State) error
}

// Persister serializes every artifact in the store, header first.
type Persister interface {
	Persist(store *artifact.Store, st *sar.State) error
}

// Stages bundles every collaborator a run may call. Readers are only
// required in process mode; the simulation stages only in simulate mode.
type Stages struct {
	Chirp           ChirpGenerator
	MatchedChirp    MatchedChirpGenerator
	FFT             Transformer
	PulseCompressor PulseCompressor
	Scene           SceneBuilder
	Imager          RadarImager
	Denoiser        Denoiser
	ImageCompressor ImageCompressor
	Backprojector   Backprojector
	Spectrum        SpectrumAnalyzer
	Reader          RadarFileReader
	Persister       Persister
}

// StageRecord describes one stage of a run as seen by a StageObserver.
type StageRecord struct {
	Seq      int
	Name     string
	Duration time.Duration
	Skipped  bool
	Err      error
}

// StageObserver receives a record for every stage the run reaches,
// including skipped optional stages and the failing stage.
type StageObserver interface {
	ObserveStage(rec StageRecord)
}

// StageObserverFunc adapts a function to StageObserver.
type StageObserverFunc func(rec StageRecord)

// ObserveStage calls f(rec).
func (f StageObserverFunc) ObserveStage(rec StageRecord) { f(rec) }

// Stage names reported to observers.
const (
	StageAcquire        = "acquire"
	StageChirp          = "chirp"
	StageMatchedChirp   = "matched_chirp"
	StageChirpFFT       = "chirp_fft"
	StageMatchFFT       = "match_fft"
	StagePulseCompress  = "pulse_compress"
	StageSceneInsertion = "scene_insertion"
	StageRadarImager    = "radar_imager"
	StageDenoise        = "denoise"
	StageImageCompress  = "image_pulse_compress"
	StageBackprojection = "backprojection"
	StageSpectrum       = "spectrum_2d"
	StageMetadata       = "metadata"
	StagePersist        = "persist"
)
