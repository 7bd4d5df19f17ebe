// Command ppuexec drives the PPU execution core from the command
// line: loading a flat guest memory image, calling into it at a given
// entry point, and inspecting the object cache.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
