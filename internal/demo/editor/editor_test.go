package editor_test

import (
	"context"
	"testing"

	"go.llib.dev/testcase"
	"go.llib.dev/testcase/let"

	"go.llib.dev/sharedrt"
	"go.llib.dev/sharedrt/internal/demo/editor"
	"go.llib.dev/sharedrt/pkg/chain"
	"go.llib.dev/sharedrt/pkg/lazy"
)

func TestEditor(t *testing.T) {
	s := testcase.NewSpec(t)

	var (
		ctx     = let.Context(s)
		loads   = testcase.LetValue(s, 0)
		loadErr = testcase.Let(s, func(t *testcase.T) error { return nil })
		loader  = testcase.Let(s, func(t *testcase.T) editor.Loader {
			return func(ctx context.Context, path string) (string, error) {
				loads.Set(t, loads.Get(t)+1)
				if err := loadErr.Get(t); err != nil {
					return "", err
				}
				return "hello world", nil
			}
		})
		runtime = testcase.Let(s, func(t *testcase.T) *editor.Runtime {
			rt := sharedrt.New[string, *editor.Document](sharedrt.Config{})
			rt.Guards = chain.New[sharedrt.Request[string], sharedrt.Verdict](editor.ReadOnly("/etc/"))
			t.Defer(func() { _ = rt.Close(context.Background()) })
			return rt
		})
		alice = testcase.Let(s, func(t *testcase.T) *editor.Editor {
			e := editor.New(runtime.Get(t), loader.Get(t))
			t.Defer(e.Close)
			return e
		})
		bob = testcase.Let(s, func(t *testcase.T) *editor.Editor {
			e := editor.New(runtime.Get(t), loader.Get(t))
			t.Defer(e.Close)
			return e
		})
	)

	open := func(t *testcase.T, e *editor.Editor, path string) *editor.Document {
		doc, err := e.Open(ctx.Get(t), path)
		t.Must.NoError(err)
		return doc
	}
	text := func(t *testcase.T, doc *editor.Document) string {
		got, err := doc.Text(ctx.Get(t))
		t.Must.NoError(err)
		return got
	}

	s.Test("opening a document does not load it yet", func(t *testcase.T) {
		doc := open(t, alice.Get(t), "/home/notes.txt")
		t.Must.False(doc.Loaded())
		t.Must.Equal(0, loads.Get(t))

		t.Must.Equal("hello world", text(t, doc))
		t.Must.True(doc.Loaded())
		t.Must.Equal(1, loads.Get(t))
	})

	s.Test("editors share the document of a path", func(t *testcase.T) {
		a := open(t, alice.Get(t), "/home/notes.txt")
		b := open(t, bob.Get(t), "/home/notes.txt")
		t.Must.True(a == b)

		t.Must.NoError(alice.Get(t).Insert(ctx.Get(t), a, 5, ","))
		t.Must.Equal("hello, world", text(t, b))
		t.Must.Equal(1, loads.Get(t))
	})

	s.Test("edits are undone and redone in order", func(t *testcase.T) {
		e := alice.Get(t)
		doc := open(t, e, "/home/notes.txt")

		t.Must.NoError(e.Insert(ctx.Get(t), doc, 11, "!"))
		t.Must.NoError(e.Delete(ctx.Get(t), doc, 0, 6))
		t.Must.Equal("world!", text(t, doc))
		t.Must.Equal(2, len(e.History()))

		undone, err := e.Undo(ctx.Get(t))
		t.Must.NoError(err)
		t.Must.True(undone)
		t.Must.Equal("hello world!", text(t, doc))

		_, err = e.Undo(ctx.Get(t))
		t.Must.NoError(err)
		t.Must.Equal("hello world", text(t, doc))

		undone, err = e.Undo(ctx.Get(t))
		t.Must.NoError(err)
		t.Must.False(undone)

		redone, err := e.Redo(ctx.Get(t))
		t.Must.NoError(err)
		t.Must.True(redone)
		t.Must.Equal("hello world!", text(t, doc))
	})

	s.Test("each editor undoes only its own edits", func(t *testcase.T) {
		doc := open(t, alice.Get(t), "/home/notes.txt")
		_ = open(t, bob.Get(t), "/home/notes.txt")

		t.Must.NoError(alice.Get(t).Insert(ctx.Get(t), doc, 0, ">"))
		t.Must.NoError(bob.Get(t).Insert(ctx.Get(t), doc, 12, "<"))
		t.Must.Equal(">hello world<", text(t, doc))

		undone, err := bob.Get(t).Undo(ctx.Get(t))
		t.Must.NoError(err)
		t.Must.True(undone)
		t.Must.Equal(">hello world", text(t, doc))
	})

	s.Test("an invalid edit is not recorded", func(t *testcase.T) {
		e := alice.Get(t)
		doc := open(t, e, "/home/notes.txt")

		t.Must.ErrorIs(editor.ErrOutOfRange, e.Delete(ctx.Get(t), doc, 5, 100))
		t.Must.ErrorIs(editor.ErrOutOfRange, e.Insert(ctx.Get(t), doc, -1, "x"))
		t.Must.Empty(e.History())
		t.Must.Equal("hello world", text(t, doc))
	})

	s.Test("read-only documents refuse edits", func(t *testcase.T) {
		e := alice.Get(t)
		doc := open(t, e, "/etc/hosts")

		err := e.Insert(ctx.Get(t), doc, 0, "# ")
		t.Must.ErrorIs(sharedrt.ErrDenied, err)
		t.Must.Contain(err.Error(), "/etc/hosts is read-only")
		t.Must.Empty(e.History())
		t.Must.False(doc.Loaded())
	})

	s.When("the document can't be loaded", func(s *testcase.Spec) {
		expErr := let.Error(s)
		s.Before(func(t *testcase.T) {
			loadErr.Set(t, expErr.Get(t))
		})

		s.Then("reading fails with the cause, and a later read retries", func(t *testcase.T) {
			doc := open(t, alice.Get(t), "/home/notes.txt")
			_, err := doc.Text(ctx.Get(t))
			t.Must.ErrorIs(lazy.ErrConstructionFailure, err)
			t.Must.ErrorIs(expErr.Get(t), err)

			loadErr.Set(t, nil)
			t.Must.Equal("hello world", text(t, doc))
			t.Must.Equal(2, loads.Get(t))
		})

		s.Then("editing fails without recording the edit", func(t *testcase.T) {
			e := alice.Get(t)
			doc := open(t, e, "/home/notes.txt")
			t.Must.ErrorIs(expErr.Get(t), e.Insert(ctx.Get(t), doc, 0, "x"))
			t.Must.Empty(e.History())
		})
	})
}
