package sar

import "github.com/banshee-data/sarsim/internal/artifact"

// Artifact names produced by the pipeline. HeaderName is reserved by the
// artifact store itself.
const (
	HeaderName      = artifact.HeaderName
	Chirp           = "chirp"
	Match           = "match"
	ChirpFFT        = "chirp_fft"
	MatchFFT        = "match_fft"
	CompressedPulse = "compressed_pulse"
	Scene           = "scene"
	RadarImage      = "radar_image"
	GBPImage        = "gbp_image"
	GBPFFT          = "gbp_fft"
)

// AcquisitionNames lists the artifacts a raw data file contributes in
// process mode, in the order they are appended.
var AcquisitionNames = []string{Chirp, Match, RadarImage}

// PulseCompression is the output of the single-pulse compressor.
type PulseCompression struct {
	Pulse artifact.Matrix
	// ResolutionM is the range resolution derived from the compressed
	// pulse's main lobe.
	ResolutionM float64
}
