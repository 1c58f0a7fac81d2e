package chain_test

import (
	"context"
	"fmt"

	"go.llib.dev/sharedrt/pkg/chain"
)

func ExampleBuilder() {
	var b chain.Builder[int, string]
	b.AppendFunc("negative",
		func(ctx context.Context, n int) bool { return n < 0 },
		func(ctx context.Context, n int) (string, error) { return "below zero", nil })
	b.AppendFunc("small",
		func(ctx context.Context, n int) bool { return n < 10 },
		func(ctx context.Context, n int) (string, error) { return "a digit", nil })
	c := b.Build()

	for _, n := range []int{-5, 7, 42} {
		out, _ := c.Handle(context.Background(), n)
		fmt.Printf("%d %t %q %q\n", n, out.Handled, out.Handler, out.Result)
	}
	// Output:
	// -5 true "negative" "below zero"
	// 7 true "small" "a digit"
	// 42 false "" ""
}
