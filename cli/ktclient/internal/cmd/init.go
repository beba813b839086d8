package cmd

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/keytrans-sys/keytrans-go/application/client"
	"github.com/keytrans-sys/keytrans-go/cli"
)

var initCmd = cli.NewInitCommand("key transparency test client", mkConfigOrExit)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".",
		"Location of directory for storing generated files")
	initCmd.Flags().StringP("addr", "a", "tcp://127.0.0.1:3000",
		"Address of the key transparency directory")
}

func mkConfigOrExit(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	addr := cmd.Flag("addr").Value.String()
	file := path.Join(dir, "config.toml")

	conf := client.NewConfig(file, "toml", "directory.pub", addr,
		path.Join(dir, "ktclient.db"))

	if err := conf.Save(); err != nil {
		fmt.Println("Couldn't save config. Error message: [" +
			err.Error() + "]")
		os.Exit(-1)
	}
}
