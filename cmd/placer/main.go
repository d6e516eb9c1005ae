package main

import "github.com/rzbill/placer/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
