package main

import (
	"github.com/pixanchor/pixanchor/cmd/pixanchor/cmd"
)

func main() {
	cmd.Execute()
}
