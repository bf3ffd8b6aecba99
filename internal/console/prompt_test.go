package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sarsim/internal/config"
)

func TestReadYesNo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y", true},
		{"no", "n\n", false},
		{"leftover newline", "\ny", true},
		{"junk then yes", "abcY?y", true},
		{"junk then no", "x1 \tn", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)
			got, err := p.ReadYesNo("Continue")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Continue (y/n)? ", out.String())
		})
	}
}

func TestReadYesNo_EOFIsInputError(t *testing.T) {
	p := NewPrompter(strings.NewReader("abc"), nil)
	_, err := p.ReadYesNo("Continue")
	assert.ErrorIs(t, err, config.ErrInput)
}

func TestReadMode(t *testing.T) {
	p := NewPrompter(strings.NewReader("  \n s"), nil)
	c, err := p.ReadMode()
	require.NoError(t, err)
	assert.Equal(t, byte('s'), c)

	p = NewPrompter(strings.NewReader(""), nil)
	_, err = p.ReadMode()
	assert.ErrorIs(t, err, config.ErrInput)
}

func TestReadFilename(t *testing.T) {
	p := NewPrompter(strings.NewReader("\n raw_data.dat trailing"), nil)
	name, err := p.ReadFilename()
	require.NoError(t, err)
	assert.Equal(t, "raw_data.dat", name)

	p = NewPrompter(strings.NewReader("last.dat"), nil)
	name, err = p.ReadFilename()
	require.NoError(t, err)
	assert.Equal(t, "last.dat", name)

	p = NewPrompter(strings.NewReader("   "), nil)
	_, err = p.ReadFilename()
	assert.ErrorIs(t, err, config.ErrInput)
}

func TestCollectOptions(t *testing.T) {
	defaults := config.Options{OutputPath: "out.dat"}

	tests := []struct {
		name    string
		input   string
		want    config.Options
		wantErr error
	}{
		{
			name:  "simulate no toggles",
			input: "s\nn\nn\n",
			want:  config.Options{Mode: config.ModeSimulate, OutputPath: "out.dat"},
		},
		{
			name:  "process with toggles",
			input: "p\nraw.dat\ny\ny\n",
			want: config.Options{
				Mode: config.ModeProcess, InputPath: "raw.dat", OutputPath: "out.dat",
				Denoise: true, ImagePulseCompression: true,
			},
		},
		{
			name:  "invalid answers re-read",
			input: "s\nabc\ny\nq\nn\n",
			want:  config.Options{Mode: config.ModeSimulate, OutputPath: "out.dat", Denoise: true},
		},
		{
			name:    "unknown mode",
			input:   "x\ny\ny\n",
			wantErr: config.ErrUnknownMode,
		},
		{
			name:    "missing filename",
			input:   "p\n",
			wantErr: config.ErrInput,
		},
		{
			name:    "input ends before toggles",
			input:   "s\ny\n",
			wantErr: config.ErrInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompter(strings.NewReader(tt.input), nil)
			got, err := p.CollectOptions(defaults)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
