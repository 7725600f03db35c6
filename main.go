// Quaydev orchestrates building and testing the registry: an incremental,
// file-dependency-driven build of the web assets, plus test suites run
// against ephemeral database containers that are provisioned, health
// checked, and always torn down.
package main

import (
	"github.com/akashkj/quay/cmd/quaydev"
)

func main() {
	quaydev.Execute()
}
