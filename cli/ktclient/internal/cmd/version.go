package cmd

import (
	"github.com/keytrans-sys/keytrans-go/cli"
)

var versionCmd = cli.NewVersionCommand("ktclient")

func init() {
	RootCmd.AddCommand(versionCmd)
}
