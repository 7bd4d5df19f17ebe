package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cellcore/ppuexec/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "ppuexec",
	Short: "Drive the PPU execution core: load, call, and inspect the JIT object cache",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML configuration file (§6 Environment)")
	rootCmd.AddCommand(runCmd, compileCmd, cacheStatsCmd, cacheClearCmd)
}

func loadConfig() config.Config {
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}
