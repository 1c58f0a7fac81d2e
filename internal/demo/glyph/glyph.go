// Package glyph is a text rendering demo on top of the interning store.
// Every distinct character style is rendered once and shared by all the text using it.
package glyph

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.llib.dev/frameless/pkg/errorkit"

	"go.llib.dev/sharedrt/pkg/intern"
)

const ErrInvalidKey errorkit.Error = "glyph: invalid key"

// Key identifies a glyph, it is the intrinsic state shared between the text positions.
type Key struct {
	Symbol rune
	Family string
	Size   int
	Color  string
}

// String formats the key as "a_Arial_12_Black".
func (k Key) String() string {
	return fmt.Sprintf("%c_%s_%d_%s", k.Symbol, k.Family, k.Size, k.Color)
}

// ParseKey is the inverse of Key.String.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, "_")
	if len(parts) < 4 {
		return Key{}, ErrInvalidKey.F("%q", raw)
	}
	// the symbol itself may be an underscore
	n := len(parts)
	symbol := strings.Join(parts[:n-3], "_")
	if utf8.RuneCountInString(symbol) != 1 {
		return Key{}, ErrInvalidKey.F("symbol of %q", raw)
	}
	size, err := strconv.Atoi(parts[n-2])
	if err != nil || size <= 0 {
		return Key{}, ErrInvalidKey.F("size of %q", raw)
	}
	r, _ := utf8.DecodeRuneInString(symbol)
	return Key{Symbol: r, Family: parts[n-3], Size: size, Color: parts[n-1]}, nil
}

// Font is the style applied to every symbol of a text.
type Font struct {
	Family string
	Size   int
	Color  string
}

func (f Font) Key(symbol rune) Key {
	return Key{Symbol: symbol, Family: f.Family, Size: f.Size, Color: f.Color}
}

// Glyph is an immutable rendered symbol.
type Glyph struct {
	key    Key
	bitmap []byte
}

// Render draws the glyph of key.
func Render(key Key) *Glyph {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], key.Symbol)
	bitmap := make([]byte, 0, key.Size*n)
	for i := 0; i < key.Size; i++ {
		bitmap = append(bitmap, buf[:n]...)
	}
	return &Glyph{key: key, bitmap: bitmap}
}

func (g *Glyph) Key() Key { return g.key }

// Bitmap returns a copy of the rendered pixels.
func (g *Glyph) Bitmap() []byte { return append([]byte(nil), g.bitmap...) }

// Store is the shared glyph cache.
type Store = intern.Store[Key, *Glyph]

// Line is typeset text: one glyph reference per symbol position.
type Line struct {
	Text   string
	Glyphs []*intern.Ref[Key, *Glyph]
}

// Release gives back every glyph reference of the line.
func (l Line) Release() {
	for _, g := range l.Glyphs {
		g.Release()
	}
}

// Typeset looks up a glyph for every symbol of text.
// Repeated symbols share the same Glyph, and a glyph is rendered only for its first use.
func Typeset(ctx context.Context, store *Store, text string, font Font) (Line, error) {
	line := Line{Text: text, Glyphs: make([]*intern.Ref[Key, *Glyph], 0, utf8.RuneCountInString(text))}
	for _, r := range text {
		key := font.Key(r)
		ref, err := store.GetOrCreate(ctx, key, func(ctx context.Context) (*Glyph, error) {
			return Render(key), nil
		})
		if err != nil {
			line.Release()
			return Line{}, err
		}
		line.Glyphs = append(line.Glyphs, ref)
	}
	return line, nil
}
