package cmd

import (
	"github.com/keytrans-sys/keytrans-go/cli"
)

// RootCmd represents the base "ktclient" command when called without any
// subcommands (search, monitor, ...).
var RootCmd = cli.NewRootCommand("ktclient",
	"Key transparency test client in Go",
	`
 ___   _  _______
|   | | ||       |
|   |_| ||_     _|
|      _|  |   |
|     |_   |   |
|    _  |  |   |
|___| |_|  |___|
`)
