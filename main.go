// Package main is the entry point for the chimera application
package main

import (
	"github.com/chimeradata/chimera/cmd"
)

func main() {
	cmd.Execute()
}
