package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cellcore/ppuexec/internal/rtlog"
	"github.com/cellcore/ppuexec/ppu"
	"github.com/cellcore/ppuexec/ppu/jitmem"
	"github.com/cellcore/ppuexec/ppu/objcache"
	"github.com/cellcore/ppuexec/ppu/recompiler"
)

// functionChunkSize is the granularity compile splits a flat memory
// image into for partitioning, standing in for the real function
// boundaries a production build would recover from symbol information
// (§6 "function record"). Arbitrary but fixed, so re-running compile
// against the same image reproduces the same module shape and exercises
// the object cache's content-addressing (Testable Property 7).
const functionChunkSize = 4096

var compileCmd = &cobra.Command{
	Use:   "compile <memory-image>",
	Short: "partition and recompile a flat guest memory image, publishing compiled entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := rtlog.New(os.Stdout, cfg.Debug, nil)

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read memory image: %w", err)
	}

	mem := ppu.NewFlatMemory(uint32(len(image)))
	mem.StoreBytes(0, image)

	rt := ppu.NewRuntime(mem, stubDecoder{}, true, log, nil)

	arena, err := jitmem.NewArena()
	if err != nil {
		return fmt.Errorf("reserve code arena: %w", err)
	}

	cache := objcache.New(cfg.CachePath)
	driver := recompiler.NewDriver(rt, arena, cache, cliBackend{}, nil, cfg.IRLog)
	defer driver.Close()
	defer arena.Teardown()

	mod := moduleFromImage(filepath.Base(args[0]), image)
	if err := driver.CompileModule(context.Background(), mod); err != nil {
		return fmt.Errorf("compile module: %w", err)
	}

	log.Logger.Info("compiled module", "name", mod.Name, "functions", len(mod.Functions), "cache", cfg.CachePath)
	return nil
}

// moduleFromImage splits a flat image into fixed-size function records
// in address order, the input shape Partition (§4.3) and the object
// cache's per-function hashing expect.
func moduleFromImage(name string, image []byte) recompiler.Module {
	mod := recompiler.Module{Name: name}
	for addr := uint32(0); addr < uint32(len(image)); addr += functionChunkSize {
		end := addr + functionChunkSize
		if end > uint32(len(image)) {
			end = uint32(len(image))
		}
		body := image[addr:end]
		mod.Functions = append(mod.Functions, recompiler.Function{
			Addr:   addr,
			Size:   end - addr,
			Blocks: [][]byte{body},
			Body:   body,
		})
	}
	return mod
}
