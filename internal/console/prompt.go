// Package console reads operator decisions from an interactive terminal.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/banshee-data/sarsim/internal/config"
)

// Prompt texts shown to the operator.
const (
	ModePrompt         = "Do you wish to simulate or process radar data? (s/p): "
	FilenamePrompt     = "Please enter file name of raw data: "
	DenoiseQuestion    = "Do you want to employ CinSnow filtering to radar image"
	CompressQuestion   = "Do you want to enable pulse compression"
	yesNoPromptPostfix = " (y/n)? "
)

// Prompter reads single characters and tokens from an input stream and
// writes prompts to an output stream.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a Prompter reading from r and prompting on w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	if w == nil {
		w = io.Discard
	}
	return &Prompter{in: bufio.NewReader(r), out: w}
}

func (p *Prompter) readRune() (rune, error) {
	c, _, err := p.in.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: unexpected end of input", config.ErrInput)
		}
		return 0, fmt.Errorf("%w: %v", config.ErrInput, err)
	}
	return c, nil
}

func (p *Prompter) skipSpace() (rune, error) {
	for {
		c, err := p.readRune()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(c) {
			return c, nil
		}
	}
}

// ReadMode reads the next non-whitespace character.
func (p *Prompter) ReadMode() (byte, error) {
	fmt.Fprint(p.out, ModePrompt)
	c, err := p.skipSpace()
	if err != nil {
		return 0, err
	}
	if c > unicode.MaxASCII {
		return '?', nil
	}
	return byte(c), nil
}

// ReadFilename reads one whitespace-delimited token.
func (p *Prompter) ReadFilename() (string, error) {
	fmt.Fprint(p.out, FilenamePrompt)
	c, err := p.skipSpace()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteRune(c)
	for {
		c, _, err := p.in.ReadRune()
		if err != nil || unicode.IsSpace(c) {
			// A token ended by EOF is still a complete token.
			return b.String(), nil
		}
		b.WriteRune(c)
	}
}

// ReadYesNo asks question and reads characters until it sees 'y' or 'n'.
// Every other character, including newlines left over from earlier
// prompts, is discarded.
func (p *Prompter) ReadYesNo(question string) (bool, error) {
	fmt.Fprint(p.out, question+yesNoPromptPostfix)
	for {
		c, err := p.readRune()
		if err != nil {
			return false, err
		}
		switch c {
		case 'y':
			return true, nil
		case 'n':
			return false, nil
		}
	}
}

// CollectOptions captures every operator decision before the run starts:
// mode, then the input file in process mode, then the two post-processing
// toggles. OutputPath is carried over from defaults.
func (p *Prompter) CollectOptions(defaults config.Options) (config.Options, error) {
	opts := defaults

	c, err := p.ReadMode()
	if err != nil {
		return opts, err
	}
	opts.Mode, err = config.ParseMode(c)
	if err != nil {
		return opts, err
	}

	if opts.Mode == config.ModeProcess {
		if opts.InputPath, err = p.ReadFilename(); err != nil {
			return opts, err
		}
	}

	if opts.Denoise, err = p.ReadYesNo(DenoiseQuestion); err != nil {
		return opts, err
	}
	if opts.ImagePulseCompression, err = p.ReadYesNo(CompressQuestion); err != nil {
		return opts, err
	}
	return opts, nil
}
