package lazy_test

import (
	"context"
	"fmt"

	"go.llib.dev/sharedrt/pkg/lazy"
)

func ExampleNew() {
	h := lazy.New(func(ctx context.Context) ([]string, error) {
		fmt.Println("loading")
		return []string{"a", "b"}, nil
	})
	fmt.Println(h.Constructed())

	v1, _ := h.Get(context.Background())
	v2, _ := h.Get(context.Background())
	fmt.Println(v1, v2, h.Constructed())
	// Output:
	// false
	// loading
	// [a b] [a b] true
}
