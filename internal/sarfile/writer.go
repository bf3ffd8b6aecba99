package sarfile

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/fsutil"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/sar"
	"github.com/banshee-data/sarsim/internal/version"
)

var logf = monitoring.Component("SARFile")

// tempSuffix marks a run file that is still being written.
const tempSuffix = ".partial"

// Writer persists a run's artifact store to st.OutputPath.
type Writer struct {
	FS fsutil.FileSystem
}

// NewWriter returns a Writer using fs, or the OS filesystem when fs is nil.
func NewWriter(fs fsutil.FileSystem) *Writer {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Writer{FS: fs}
}

// Persist fills the header summary and writes the whole store. The file is
// written under a temporary name and renamed into place, so a failed write
// never leaves a truncated run file at the output path.
func (w *Writer) Persist(store *artifact.Store, st *sar.State) error {
	if st.OutputPath == "" {
		return errors.New("no output path")
	}
	if err := store.FillSummary(); err != nil {
		return fmt.Errorf("failed to fill header summary: %w", err)
	}
	data := Encode(store, st, version.Version)

	if dir := filepath.Dir(st.OutputPath); dir != "." {
		if err := w.FS.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := st.OutputPath + tempSuffix
	if err := w.write(tmp, data); err != nil {
		_ = w.FS.Remove(tmp)
		return err
	}
	if err := w.FS.Rename(tmp, st.OutputPath); err != nil {
		_ = w.FS.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}

	logf("wrote %d artifacts (%d bytes) to %s", store.Count()+1, len(data), st.OutputPath)
	return nil
}

func (w *Writer) write(path string, data []byte) error {
	f, err := w.FS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
