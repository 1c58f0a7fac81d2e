// Package editor is a collaborative text editor demo.
//
// Documents are interned by path, so every session edits the same buffer,
// while each session undoes only its own edits.
// Edits pass the read-only guard before they reach the document.
package editor

import (
	"context"
	"fmt"
	"strings"

	"go.llib.dev/sharedrt"
	"go.llib.dev/sharedrt/pkg/chain"
	"go.llib.dev/sharedrt/pkg/intern"
	"go.llib.dev/sharedrt/pkg/ledger"
)

type Runtime = sharedrt.Runtime[string, *Document]

// Editor is a single user's editing session.
type Editor struct {
	session *sharedrt.Session[string, *Document]
	load    Loader
	open    map[string]*intern.Ref[string, *Document]
}

func New(rt *Runtime, load Loader) *Editor {
	return &Editor{
		session: rt.NewSession(),
		load:    load,
		open:    make(map[string]*intern.Ref[string, *Document]),
	}
}

// Open returns the shared document of path.
// The content is not loaded until the document is read or edited.
func (e *Editor) Open(ctx context.Context, path string) (*Document, error) {
	if ref, ok := e.open[path]; ok {
		return ref.Value(), nil
	}
	ref, err := e.session.Acquire(ctx, path, func(ctx context.Context) (*Document, error) {
		return Open(path, e.load), nil
	})
	if err != nil {
		return nil, err
	}
	e.open[path] = ref
	return ref.Value(), nil
}

// Close gives back the documents opened by this editor.
func (e *Editor) Close() {
	for path, ref := range e.open {
		ref.Release()
		delete(e.open, path)
	}
}

func (e *Editor) Insert(ctx context.Context, doc *Document, pos int, text string) error {
	cmd := ledger.Func(fmt.Sprintf("insert %q at %d", text, pos),
		func(ctx context.Context) error { return doc.insert(ctx, pos, text) },
		func(ctx context.Context) error {
			_, err := doc.delete(ctx, pos, runeLen(text))
			return err
		})
	return e.session.Apply(ctx, sharedrt.Request[string]{Key: doc.Path, Operation: "insert"}, cmd)
}

func (e *Editor) Delete(ctx context.Context, doc *Document, pos, n int) error {
	var removed string
	cmd := ledger.Func(fmt.Sprintf("delete %d at %d", n, pos),
		func(ctx context.Context) (err error) {
			removed, err = doc.delete(ctx, pos, n)
			return err
		},
		func(ctx context.Context) error { return doc.insert(ctx, pos, removed) })
	return e.session.Apply(ctx, sharedrt.Request[string]{Key: doc.Path, Operation: "delete"}, cmd)
}

func (e *Editor) Undo(ctx context.Context) (bool, error) { return e.session.Undo(ctx) }

func (e *Editor) Redo(ctx context.Context) (bool, error) { return e.session.Redo(ctx) }

// History lists the undoable edits of this editor, oldest first.
func (e *Editor) History() []ledger.Entry { return e.session.History() }

// ReadOnly is a guard that denies every edit under the given path prefixes.
func ReadOnly(prefixes ...string) chain.Link[sharedrt.Request[string], sharedrt.Verdict] {
	return chain.Link[sharedrt.Request[string], sharedrt.Verdict]{
		Name: "read-only",
		Claims: func(ctx context.Context, req sharedrt.Request[string]) bool {
			for _, p := range prefixes {
				if strings.HasPrefix(req.Key, p) {
					return true
				}
			}
			return false
		},
		Do: func(ctx context.Context, req sharedrt.Request[string]) (sharedrt.Verdict, error) {
			return sharedrt.Verdict{Reason: fmt.Sprintf("%s is read-only", req.Key)}, nil
		},
	}
}
