package editor

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.llib.dev/frameless/pkg/errorkit"

	"go.llib.dev/sharedrt/pkg/lazy"
)

const ErrOutOfRange errorkit.Error = "editor: position out of range"

// Loader reads the initial content of a document.
type Loader func(ctx context.Context, path string) (string, error)

// Document is a shared text buffer.
// Its content is loaded only when first read or edited.
type Document struct {
	Path string

	content *lazy.Handle[*buffer]
}

type buffer struct {
	m    sync.Mutex
	text []rune
}

func Open(path string, load Loader) *Document {
	return &Document{
		Path: path,
		content: lazy.New(func(ctx context.Context) (*buffer, error) {
			text, err := load(ctx, path)
			if err != nil {
				return nil, err
			}
			return &buffer{text: []rune(text)}, nil
		}),
	}
}

// Loaded tells whether the content was already read.
func (d *Document) Loaded() bool { return d.content.Constructed() }

func (d *Document) Text(ctx context.Context) (string, error) {
	buf, err := d.content.Get(ctx)
	if err != nil {
		return "", err
	}
	buf.m.Lock()
	defer buf.m.Unlock()
	return string(buf.text), nil
}

func (d *Document) insert(ctx context.Context, pos int, text string) error {
	buf, err := d.content.Get(ctx)
	if err != nil {
		return err
	}
	buf.m.Lock()
	defer buf.m.Unlock()
	if pos < 0 || len(buf.text) < pos {
		return ErrOutOfRange.F("insert at %d into %d characters", pos, len(buf.text))
	}
	ins := []rune(text)
	out := make([]rune, 0, len(buf.text)+len(ins))
	out = append(out, buf.text[:pos]...)
	out = append(out, ins...)
	out = append(out, buf.text[pos:]...)
	buf.text = out
	return nil
}

func (d *Document) delete(ctx context.Context, pos, n int) (string, error) {
	buf, err := d.content.Get(ctx)
	if err != nil {
		return "", err
	}
	buf.m.Lock()
	defer buf.m.Unlock()
	if pos < 0 || n < 0 || len(buf.text) < pos+n {
		return "", ErrOutOfRange.F("delete %d at %d from %d characters", n, pos, len(buf.text))
	}
	removed := string(buf.text[pos : pos+n])
	buf.text = append(buf.text[:pos:pos], buf.text[pos+n:]...)
	return removed, nil
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
