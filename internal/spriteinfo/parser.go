package spriteinfo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads SPRTINFO text into a new table.
//
//	Sprite PLAY
//	{
//		Frame A
//		{
//			XPivot = 16
//			YPivot = 40
//			RotAxis = X
//		}
//	}
func Parse(r io.Reader) (*Table, error) {
	t := NewTable()
	if err := t.Load(r); err != nil {
		return nil, err
	}
	return t, nil
}

// Load parses SPRTINFO text and merges it into t. Later definitions of the
// same frame win.
func (t *Table) Load(r io.Reader) error {
	toks, err := tokenize(r)
	if err != nil {
		return err
	}
	p := &parser{toks: toks}
	for !p.done() {
		kw := p.next()
		if !strings.EqualFold(kw.text, "sprite") {
			return p.errorf(kw, "expected Sprite, got %q", kw.text)
		}
		name := p.next()
		if name.text == "" || name.text == "{" {
			return p.errorf(name, "missing sprite name")
		}
		if err := p.expect("{"); err != nil {
			return err
		}
		if err := p.sprite(t.info(name.text)); err != nil {
			return err
		}
	}
	return nil
}

type token struct {
	text string
	line int
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) next() token {
	if p.done() {
		line := 0
		if len(p.toks) > 0 {
			line = p.toks[len(p.toks)-1].line
		}
		return token{line: line}
	}
	tok := p.toks[p.pos]
	p.pos++
	return tok
}

func (p *parser) expect(text string) error {
	tok := p.next()
	if tok.text != text {
		return p.errorf(tok, "expected %q, got %q", text, tok.text)
	}
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("spriteinfo: line %d: %s", tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) sprite(in *Info) error {
	for {
		tok := p.next()
		switch {
		case tok.text == "}":
			return nil
		case tok.text == "":
			return p.errorf(tok, "unterminated sprite block")
		case strings.EqualFold(tok.text, "frame"):
			sel := p.next()
			frame, err := FrameIndex(sel.text)
			if err != nil {
				return fmt.Errorf("spriteinfo: line %d: %w", sel.line, err)
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			pivot, err := p.frame()
			if err != nil {
				return err
			}
			if err := in.SetPivot(frame, pivot); err != nil {
				return err
			}
		default:
			return p.errorf(tok, "expected Frame, got %q", tok.text)
		}
	}
}

func (p *parser) frame() (FramePivot, error) {
	var fp FramePivot
	for {
		key := p.next()
		if key.text == "}" {
			return fp, nil
		}
		if key.text == "" {
			return fp, p.errorf(key, "unterminated frame block")
		}
		if err := p.expect("="); err != nil {
			return fp, err
		}
		val := p.next()
		switch strings.ToLower(key.text) {
		case "xpivot", "ypivot":
			n, err := strconv.Atoi(val.text)
			if err != nil {
				return fp, fmt.Errorf("spriteinfo: line %d: %w: %s = %q", val.line, ErrInvalidPivot, key.text, val.text)
			}
			if strings.EqualFold(key.text, "xpivot") {
				fp.X = n
			} else {
				fp.Y = n
			}
		case "rotaxis":
			axis, err := ParseAxis(val.text)
			if err != nil {
				return fp, fmt.Errorf("spriteinfo: line %d: %w", val.line, err)
			}
			fp.Axis = axis
		default:
			return fp, p.errorf(key, "unknown frame field %q", key.text)
		}
	}
}

// tokenize splits the input into words and the punctuation { } =, dropping
// // and /* */ comments.
func tokenize(r io.Reader) ([]token, error) {
	br := bufio.NewReader(r)
	var (
		toks    []token
		word    strings.Builder
		line    = 1
		comment bool
	)
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, token{text: word.String(), line: line})
			word.Reset()
		}
	}
	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("spriteinfo: read: %w", err)
		}
		if comment {
			if c == '\n' {
				line++
			}
			if c == '*' {
				if nx, _, err := br.ReadRune(); err == nil {
					if nx == '/' {
						comment = false
					} else {
						_ = br.UnreadRune()
					}
				}
			}
			continue
		}
		switch {
		case c == '/':
			nx, _, err := br.ReadRune()
			switch {
			case err == nil && nx == '/':
				flush()
				if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
					return nil, fmt.Errorf("spriteinfo: read: %w", err)
				}
				line++
			case err == nil && nx == '*':
				flush()
				comment = true
			default:
				if err == nil {
					_ = br.UnreadRune()
				}
				word.WriteRune(c)
			}
		case c == '{' || c == '}' || c == '=':
			flush()
			toks = append(toks, token{text: string(c), line: line})
		case c == '\n':
			flush()
			line++
		case unicode.IsSpace(c):
			flush()
		default:
			word.WriteRune(c)
		}
	}
	if comment {
		return nil, fmt.Errorf("spriteinfo: line %d: unterminated comment", line)
	}
	flush()
	return toks, nil
}
