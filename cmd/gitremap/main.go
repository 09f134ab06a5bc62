package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootCmd struct {
	*cobra.Command
}

func newRootCmd() *rootCmd {
	c := &rootCmd{
		Command: &cobra.Command{
			Use:   "gitremap",
			Short: "rewrite the full history of a git repo through a tree policy",
			Args:  cobra.NoArgs,
		},
	}

	c.AddCommand(newDir2ModCmd().Command)

	return c
}
