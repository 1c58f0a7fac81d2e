package keylock_test

import (
	"context"
	"testing"
	"time"

	"go.llib.dev/sharedrt/internal/keylock"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
	"go.llib.dev/testcase/let"
)

const timeout = time.Second / 25

func TestFactory(t *testing.T) {
	s := testcase.NewSpec(t)

	subject := testcase.Let(s, func(t *testcase.T) *keylock.Factory[string] {
		return &keylock.Factory[string]{}
	})

	s.Then("locking and unlocking works", func(t *testcase.T) {
		assert.Within(t, timeout, func(ctx context.Context) {
			unlock := subject.Get(t).Lock(t.Random.String())
			unlock()
		})
	})

	s.Then("unlocking twice panics", func(t *testcase.T) {
		unlock := subject.Get(t).Lock(t.Random.String())
		unlock()
		assert.Panic(t, unlock)
	})

	s.Then("keys are forgotten when nobody uses them", func(t *testcase.T) {
		unlock := subject.Get(t).Lock(t.Random.String())
		t.Must.Equal(1, subject.Get(t).Len())
		unlock()
		t.Must.Equal(0, subject.Get(t).Len())
	})

	s.Then("concurrent locking of the same key is serialised", func(t *testcase.T) {
		var (
			key = t.Random.String()
			n   int
		)
		inc := func() {
			unlock := subject.Get(t).Lock(key)
			defer unlock()
			n++
		}
		testcase.Race(inc, inc, inc, inc)
		t.Must.Equal(4, n)
		t.Must.Equal(0, subject.Get(t).Len())
	})

	s.When("a key is locked", func(s *testcase.Spec) {
		key := let.String(s)

		s.Before(func(t *testcase.T) {
			unlock := subject.Get(t).Lock(key.Get(t))
			t.Defer(unlock)
		})

		s.Then("locking the same key hangs", func(t *testcase.T) {
			assert.NotWithin(t, timeout, func(ctx context.Context) {
				unlock := subject.Get(t).Lock(key.Get(t))
				unlock()
			})
		})

		s.Then("TryLock on the same key fails", func(t *testcase.T) {
			_, ok := subject.Get(t).TryLock(key.Get(t))
			t.Must.False(ok)
			t.Must.Equal(1, subject.Get(t).Len())
		})

		s.Context("but for another key", func(s *testcase.Spec) {
			othKey := let.String(s)

			s.Then("locking is possible", func(t *testcase.T) {
				assert.Within(t, timeout, func(ctx context.Context) {
					unlock := subject.Get(t).Lock(othKey.Get(t))
					unlock()
				})
			})

			s.Then("TryLock succeeds", func(t *testcase.T) {
				unlock, ok := subject.Get(t).TryLock(othKey.Get(t))
				t.Must.True(ok)
				unlock()
			})
		})
	})
}
