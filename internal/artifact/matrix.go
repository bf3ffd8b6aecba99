package artifact

import (
	"fmt"
	"math/cmplx"
)

// Matrix is a row-major complex matrix. It is the unit of exchange between
// the orchestrator and its collaborators.
type Matrix struct {
	Rows int
	Cols int
	Data []complex128
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// Vector wraps samples as a len(data) x 1 column matrix.
func Vector(data []complex128) Matrix {
	return Matrix{Rows: len(data), Cols: 1, Data: data}
}

// Len returns the number of samples.
func (m Matrix) Len() int { return len(m.Data) }

// At returns the sample at row r, column c.
func (m Matrix) At(r, c int) complex128 { return m.Data[r*m.Cols+c] }

// Set stores v at row r, column c.
func (m Matrix) Set(r, c int, v complex128) { m.Data[r*m.Cols+c] = v }

// Row returns row r as a slice sharing the matrix storage.
func (m Matrix) Row(r int) []complex128 { return m.Data[r*m.Cols : (r+1)*m.Cols] }

// Validate checks dimensions against the buffer. A nil buffer is valid for
// any non-negative shape.
func (m Matrix) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrShapeMismatch, m.Rows, m.Cols)
	}
	// Compared by division so a huge Rows*Cols cannot wrap around to len.
	if n := len(m.Data); n > 0 && (m.Cols == 0 || n%m.Cols != 0 || n/m.Cols != m.Rows) {
		return fmt.Errorf("%w: %dx%d != %d", ErrShapeMismatch, m.Rows, m.Cols, n)
	}
	return nil
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := Matrix{Rows: m.Rows, Cols: m.Cols}
	if m.Data != nil {
		out.Data = make([]complex128, len(m.Data))
		copy(out.Data, m.Data)
	}
	return out
}

// Peak returns the largest sample magnitude and its flat index, or (0, -1)
// for an empty matrix.
func (m Matrix) Peak() (float64, int) {
	best, idx := 0.0, -1
	for i, v := range m.Data {
		if a := cmplx.Abs(v); idx < 0 || a > best {
			best, idx = a, i
		}
	}
	return best, idx
}

// Energy returns the sum of squared magnitudes.
func (m Matrix) Energy() float64 {
	var e float64
	for _, v := range m.Data {
		e += real(v)*real(v) + imag(v)*imag(v)
	}
	return e
}
