// Executable key transparency test client. See README for
// usage instructions.
package main

import (
	"github.com/keytrans-sys/keytrans-go/cli"
	"github.com/keytrans-sys/keytrans-go/cli/ktclient/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
