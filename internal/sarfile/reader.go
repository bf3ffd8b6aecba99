package sarfile

import (
	"fmt"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/fsutil"
	"github.com/banshee-data/sarsim/internal/sar"
)

// Reader loads a previously written run file as the acquisition of a
// process-mode run.
type Reader struct {
	FS fsutil.FileSystem
}

// NewReader returns a Reader using fs, or the OS filesystem when fs is nil.
func NewReader(fs fsutil.FileSystem) *Reader {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Reader{FS: fs}
}

// Load reads and decodes the run file at path.
func (r *Reader) Load(path string) (*File, error) {
	data, err := r.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return f, nil
}

// Read appends the acquisition artifacts found in the file at path
// (chirp and match when present, radar_image always) to store and
// restores the geometry they were recorded with into st. Derived
// artifacts in the file are ignored; the run recomputes them.
func (r *Reader) Read(path string, store *artifact.Store, st *sar.State) error {
	f, err := r.Load(path)
	if err != nil {
		return err
	}

	img, ok := f.Record(sar.RadarImage)
	if !ok || img.Matrix.Len() == 0 {
		return fmt.Errorf("%s has no %s", path, sar.RadarImage)
	}

	for _, name := range sar.AcquisitionNames {
		rec, ok := f.Record(name)
		if !ok {
			continue
		}
		if _, err := store.Append(name, rec.Matrix); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	restoreState(st, &f.State)
	st.ScanPositions = img.Matrix.Rows
	st.RangeBins = img.Matrix.Cols
	if chirp, ok := f.Record(sar.Chirp); ok && chirp.Matrix.Len() > 0 {
		st.ChirpSamples = chirp.Matrix.Len()
	}

	logf("loaded %s: %dx%d radar image written by %s", path, img.Matrix.Rows, img.Matrix.Cols, producerName(f))
	return nil
}

// restoreState copies the recorded geometry into st. Mode and paths belong
// to the current run and are left alone.
func restoreState(st, rec *sar.State) {
	st.SceneRows = rec.SceneRows
	st.SceneCols = rec.SceneCols
	st.SceneSpacingM = rec.SceneSpacingM
	st.ChirpSamples = rec.ChirpSamples
	st.SampleRateHz = rec.SampleRateHz
	st.BandwidthHz = rec.BandwidthHz
	st.AltitudeM = rec.AltitudeM
	st.ScanSpacingM = rec.ScanSpacingM
	st.NearRangeM = rec.NearRangeM
	st.RangeResolutionM = rec.RangeResolutionM
	st.Denoised = rec.Denoised
	st.PulseCompressed = rec.PulseCompressed
}

func producerName(f *File) string {
	if f.Producer == "" {
		return "an unknown build"
	}
	return "sarsim " + f.Producer
}
