// main package for luxcov command-line tool
// Package main is the entry point for the luxcov CLI.
package main

import "luxcov.dev/pkg/luxcov/cmd"

func main() {
	cmd.Execute()
}
