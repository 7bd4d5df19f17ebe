package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "report file count and total size of the object cache",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "cache-clear",
	Short: "delete the object cache directory",
	RunE:  runCacheClear,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	var files int
	var bytes int64
	err := filepath.WalkDir(cfg.CachePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d object(s), %d bytes\n", cfg.CachePath, files, bytes)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := os.RemoveAll(cfg.CachePath); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cfg.CachePath)
	return nil
}
