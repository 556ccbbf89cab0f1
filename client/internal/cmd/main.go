package main

import (
	"nexdb/client/internal/cmdutil"
	"nexdb/client/pkg/cmd"
	"os"
)

func main() {
	if err := cmd.New(cmdutil.DefaultFactory).Execute(); err != nil {
		cmdutil.PrintE(err.Error())
		os.Exit(1)
	}
}
