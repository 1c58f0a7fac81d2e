package main

import (
	"os"

	"go.llib.dev/sharedrt/cmd/sharedrt-demo/commands"
)

func main() {
	if err := commands.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
