package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/mdkroki/internal/preprocess"
)

// mdbook probes "mdbook-kroki supports <renderer>" before each build and
// reads the answer from the exit code.
var supportsCmd = &cobra.Command{
	Use:   "supports RENDERER",
	Short: "Report whether a renderer is supported (mdbook handshake)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := preprocess.New(log)
		if !p.Supports(args[0]) {
			os.Exit(1)
		}
	},
}
