// marshal supervises fleets of containerized coding agents: kill switch,
// violation scanning, and stuck-agent detection.
package main

import (
	"os"

	"github.com/steveyegge/marshal/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
