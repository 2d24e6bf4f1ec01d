// ./main.go
package main

import (
	"github.com/xkilldash9x/waypoint-cli/cmd"
)

// main is the entry point for the waypoint CLI application.
func main() {
	// Command-line parsing, configuration, and execution all live in cmd.
	cmd.Execute()
}
