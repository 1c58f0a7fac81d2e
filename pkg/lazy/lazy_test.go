package lazy_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.llib.dev/sharedrt/pkg/lazy"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
	"go.llib.dev/testcase/random"
)

func TestMake(t *testing.T) {
	s := testcase.NewSpec(t)

	var (
		initWasCalled = testcase.LetValue(s, false)
		initFunc      = testcase.Let(s, func(t *testcase.T) func() int {
			return func() int {
				initWasCalled.Set(t, true)
				return t.Random.Int()
			}
		})
	)
	act := func(t *testcase.T) func() int {
		return lazy.Make(initFunc.Get(t))
	}

	s.Then(`calling lazy loaded value multiple times return the same result`, func(t *testcase.T) {
		llv := act(t)
		t.Must.Equal(llv(), llv())
	})

	s.Then(`before calling lazy loaded value, init block is not used`, func(t *testcase.T) {
		llv := act(t)
		t.Must.False(initWasCalled.Get(t))
		llv()
		t.Must.True(initWasCalled.Get(t))
	})

	s.Test(`safe for concurrent use`, func(t *testcase.T) {
		llv := act(t)
		testcase.Race(
			func() { llv() },
			func() { llv() },
		)
	})
}

func TestMake_withPointerType(t *testing.T) {
	v := lazy.Make(func() *int {
		var n int = 42
		return &n
	})
	ptr := v()
	expected := random.New(random.CryptoSeed{}).Int()
	*(v()) = expected
	assert.Equal(t, expected, *ptr)
}

type expensive struct{ ID int }

func TestHandle(t *testing.T) {
	s := testcase.NewSpec(t)

	var (
		calls   = testcase.Let(s, func(t *testcase.T) *int32 { return new(int32) })
		failing = testcase.LetValue(s, false)
		expErr  = testcase.Let(s, func(t *testcase.T) error { return t.Random.Error() })
	)

	subject := testcase.Let(s, func(t *testcase.T) *lazy.Handle[*expensive] {
		return lazy.New(func(ctx context.Context) (*expensive, error) {
			atomic.AddInt32(calls.Get(t), 1)
			if failing.Get(t) {
				return nil, expErr.Get(t)
			}
			return &expensive{ID: t.Random.Int()}, nil
		})
	})

	s.Describe(".Get", func(s *testcase.Spec) {
		act := func(t *testcase.T) (*expensive, error) {
			return subject.Get(t).Get(context.Background())
		}

		s.Then("the recipe is not called before the first Get", func(t *testcase.T) {
			_ = subject.Get(t)
			t.Must.Equal(int32(0), atomic.LoadInt32(calls.Get(t)))
			t.Must.False(subject.Get(t).Constructed())
		})

		s.Then("N calls invoke the recipe exactly once and yield the same object", func(t *testcase.T) {
			first, err := act(t)
			t.Must.NoError(err)

			t.Random.Repeat(3, 7, func() {
				got, err := act(t)
				t.Must.NoError(err)
				t.Must.True(first == got, "expected the very same instance")
			})

			t.Must.Equal(int32(1), atomic.LoadInt32(calls.Get(t)))
			t.Must.True(subject.Get(t).Constructed())
		})

		s.Test("concurrent first calls still construct once", func(t *testcase.T) {
			var (
				results [4]*expensive
				errs    [4]error
			)
			h := subject.Get(t)
			get := func(i int) func() {
				return func() { results[i], errs[i] = h.Get(context.Background()) }
			}
			testcase.Race(get(0), get(1), get(2), get(3))

			t.Must.Equal(int32(1), atomic.LoadInt32(calls.Get(t)))
			for i, v := range results {
				t.Must.NoError(errs[i])
				t.Must.True(results[0] == v)
			}
		})

		s.When("the recipe fails", func(s *testcase.Spec) {
			failing.LetValue(s, true)

			s.Then("the construction failure is reported with its cause", func(t *testcase.T) {
				_, err := act(t)
				t.Must.ErrorIs(lazy.ErrConstructionFailure, err)
				t.Must.ErrorIs(expErr.Get(t), err)
			})

			s.Then("the handle stays unconstructed and can be retried", func(t *testcase.T) {
				_, err := act(t)
				t.Must.Error(err)
				t.Must.False(subject.Get(t).Constructed())

				failing.Set(t, false)
				v, err := act(t)
				t.Must.NoError(err)
				t.Must.NotNil(v)
				t.Must.Equal(int32(2), atomic.LoadInt32(calls.Get(t)))
			})
		})
	})

	s.Describe(".Peek", func(s *testcase.Spec) {
		s.Then("it does not trigger construction", func(t *testcase.T) {
			_, ok := subject.Get(t).Peek()
			t.Must.False(ok)
			t.Must.Equal(int32(0), atomic.LoadInt32(calls.Get(t)))
		})

		s.Then("after Get it returns the constructed value", func(t *testcase.T) {
			v, err := subject.Get(t).Get(context.Background())
			t.Must.NoError(err)
			got, ok := subject.Get(t).Peek()
			t.Must.True(ok)
			t.Must.True(v == got)
		})
	})
}

func TestHandle_zeroValue(t *testing.T) {
	var h lazy.Handle[int]
	_, err := h.Get(context.Background())
	assert.True(t, errors.Is(err, lazy.ErrConstructionFailure))
}

func TestOf(t *testing.T) {
	h := lazy.Of(func() string { return "loaded" })
	v, err := h.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "loaded", v)
}
