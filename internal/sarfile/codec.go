// Package sarfile reads and writes SAR run files.
//
// A run file starts with a fixed magic followed by a protobuf-wire encoded
// body (see encoding/protowire). The body carries the format version, the
// producing build, a snapshot of the working state and one record per
// artifact in store order, header first. Each artifact record holds the
// name, the dimensions and the samples as packed little-endian float64
// (real, imag) pairs.
package sarfile

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// Magic identifies a run file.
var Magic = []byte("SARSIM\x00")

// FormatVersion is the body layout written by Encode.
const FormatVersion = 1

var (
	// ErrNotRunFile is returned for data that does not start with Magic.
	ErrNotRunFile = errors.New("not a sarsim run file")
	// ErrUnsupportedVersion is returned for a newer body layout.
	ErrUnsupportedVersion = errors.New("unsupported run file version")
	// ErrMalformed is returned for a body that cannot be decoded.
	ErrMalformed = errors.New("malformed run file")
)

// Body field numbers.
const (
	fieldVersion  protowire.Number = 1
	fieldProducer protowire.Number = 2
	fieldState    protowire.Number = 3
	fieldArtifact protowire.Number = 4
)

// Artifact record field numbers.
const (
	fieldName protowire.Number = 1
	fieldRows protowire.Number = 2
	fieldCols protowire.Number = 3
	fieldData protowire.Number = 4
)

// State field numbers.
const (
	fieldMode             protowire.Number = 1
	fieldSceneRows        protowire.Number = 2
	fieldSceneCols        protowire.Number = 3
	fieldSceneSpacingM    protowire.Number = 4
	fieldChirpSamples     protowire.Number = 5
	fieldSampleRateHz     protowire.Number = 6
	fieldBandwidthHz      protowire.Number = 7
	fieldAltitudeM        protowire.Number = 8
	fieldScanPositions    protowire.Number = 9
	fieldScanSpacingM     protowire.Number = 10
	fieldRangeBins        protowire.Number = 11
	fieldNearRangeM       protowire.Number = 12
	fieldRangeResolutionM protowire.Number = 13
	fieldDenoised         protowire.Number = 14
	fieldPulseCompressed  protowire.Number = 15
)

// Record is one decoded artifact.
type Record struct {
	Name   string
	Matrix artifact.Matrix
}

// File is a decoded run file.
type File struct {
	Version  uint64
	Producer string
	State    sar.State
	Records  []Record
}

// Record returns the artifact record called name.
func (f *File) Record(name string) (Record, bool) {
	for _, r := range f.Records {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

// Encode serializes the store, header first, with a snapshot of st.
func Encode(store *artifact.Store, st *sar.State, producer string) []byte {
	b := append([]byte(nil), Magic...)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FormatVersion)
	b = protowire.AppendTag(b, fieldProducer, protowire.BytesType)
	b = protowire.AppendString(b, producer)
	b = protowire.AppendTag(b, fieldState, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeState(st))

	b = appendArtifact(b, store.Header())
	for _, a := range store.Artifacts() {
		b = appendArtifact(b, a)
	}
	return b
}

func appendArtifact(b []byte, a *artifact.Artifact) []byte {
	var rec []byte
	rec = protowire.AppendTag(rec, fieldName, protowire.BytesType)
	rec = protowire.AppendString(rec, a.Name())
	rec = appendInt(rec, fieldRows, a.Rows)
	rec = appendInt(rec, fieldCols, a.Cols)

	samples := make([]byte, 0, 16*a.Len())
	for _, v := range a.Data {
		samples = protowire.AppendFixed64(samples, math.Float64bits(real(v)))
		samples = protowire.AppendFixed64(samples, math.Float64bits(imag(v)))
	}
	rec = protowire.AppendTag(rec, fieldData, protowire.BytesType)
	rec = protowire.AppendBytes(rec, samples)

	b = protowire.AppendTag(b, fieldArtifact, protowire.BytesType)
	return protowire.AppendBytes(b, rec)
}

func encodeState(st *sar.State) []byte {
	var b []byte
	b = appendInt(b, fieldMode, int(st.Mode))
	b = appendInt(b, fieldSceneRows, st.SceneRows)
	b = appendInt(b, fieldSceneCols, st.SceneCols)
	b = appendFloat(b, fieldSceneSpacingM, st.SceneSpacingM)
	b = appendInt(b, fieldChirpSamples, st.ChirpSamples)
	b = appendFloat(b, fieldSampleRateHz, st.SampleRateHz)
	b = appendFloat(b, fieldBandwidthHz, st.BandwidthHz)
	b = appendFloat(b, fieldAltitudeM, st.AltitudeM)
	b = appendInt(b, fieldScanPositions, st.ScanPositions)
	b = appendFloat(b, fieldScanSpacingM, st.ScanSpacingM)
	b = appendInt(b, fieldRangeBins, st.RangeBins)
	b = appendFloat(b, fieldNearRangeM, st.NearRangeM)
	b = appendFloat(b, fieldRangeResolutionM, st.RangeResolutionM)
	b = appendBool(b, fieldDenoised, st.Denoised)
	b = appendBool(b, fieldPulseCompressed, st.PulseCompressed)
	return b
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendFloat(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// Decode parses a run file.
func Decode(data []byte) (*File, error) {
	if !bytes.HasPrefix(data, Magic) {
		return nil, ErrNotRunFile
	}

	f := &File{}
	err := consumeFields(data[len(Magic):], func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Version = v
			return n, nil
		case num == fieldProducer && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.Producer = v
			return n, nil
		case num == fieldState && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, decodeState(v, &f.State)
		case num == fieldArtifact && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			rec, err := decodeArtifact(v)
			if err != nil {
				return n, err
			}
			f.Records = append(f.Records, rec)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}

	if f.Version == 0 {
		return nil, fmt.Errorf("%w: missing format version", ErrMalformed)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}
	return f, nil
}

func decodeArtifact(b []byte) (Record, error) {
	var rec Record
	var samples []byte
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			rec.Name = v
			return n, nil
		case num == fieldRows && typ == protowire.VarintType:
			return consumeInt(b, &rec.Matrix.Rows), nil
		case num == fieldCols && typ == protowire.VarintType:
			return consumeInt(b, &rec.Matrix.Cols), nil
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			samples = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Record{}, err
	}

	if rec.Name == "" {
		return Record{}, fmt.Errorf("%w: artifact without a name", ErrMalformed)
	}
	if len(samples)%16 != 0 {
		return Record{}, fmt.Errorf("%w: artifact %q has a partial sample", ErrMalformed, rec.Name)
	}
	if len(samples) > 0 {
		rec.Matrix.Data = make([]complex128, len(samples)/16)
		for i := range rec.Matrix.Data {
			re, _ := protowire.ConsumeFixed64(samples[16*i:])
			im, _ := protowire.ConsumeFixed64(samples[16*i+8:])
			rec.Matrix.Data[i] = complex(math.Float64frombits(re), math.Float64frombits(im))
		}
	}
	if err := rec.Matrix.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: artifact %q: %v", ErrMalformed, rec.Name, err)
	}
	return rec, nil
}

func decodeState(b []byte, st *sar.State) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.VarintType {
			switch num {
			case fieldMode:
				var m int
				n := consumeInt(b, &m)
				st.Mode = config.Mode(m)
				return n, nil
			case fieldSceneRows:
				return consumeInt(b, &st.SceneRows), nil
			case fieldSceneCols:
				return consumeInt(b, &st.SceneCols), nil
			case fieldChirpSamples:
				return consumeInt(b, &st.ChirpSamples), nil
			case fieldScanPositions:
				return consumeInt(b, &st.ScanPositions), nil
			case fieldRangeBins:
				return consumeInt(b, &st.RangeBins), nil
			case fieldDenoised:
				return consumeBool(b, &st.Denoised), nil
			case fieldPulseCompressed:
				return consumeBool(b, &st.PulseCompressed), nil
			}
		}
		if typ == protowire.Fixed64Type {
			switch num {
			case fieldSceneSpacingM:
				return consumeFloat(b, &st.SceneSpacingM), nil
			case fieldSampleRateHz:
				return consumeFloat(b, &st.SampleRateHz), nil
			case fieldBandwidthHz:
				return consumeFloat(b, &st.BandwidthHz), nil
			case fieldAltitudeM:
				return consumeFloat(b, &st.AltitudeM), nil
			case fieldScanSpacingM:
				return consumeFloat(b, &st.ScanSpacingM), nil
			case fieldNearRangeM:
				return consumeFloat(b, &st.NearRangeM), nil
			case fieldRangeResolutionM:
				return consumeFloat(b, &st.RangeResolutionM), nil
			}
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// consumeFields walks the fields of b. fn receives the bytes following each
// tag and returns how many it consumed, or a negative protowire code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func consumeInt(b []byte, dst *int) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int(protowire.DecodeZigZag(v))
	}
	return n
}

func consumeFloat(b []byte, dst *float64) int {
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

func consumeBool(b []byte, dst *bool) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}
