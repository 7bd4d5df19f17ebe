package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"golang.org/x/term"

	"github.com/cellcore/ppuexec/internal/rtlog"
	"github.com/cellcore/ppuexec/ppu"
	"github.com/cellcore/ppuexec/ppu/jitmem"
	"github.com/cellcore/ppuexec/ppu/objcache"
	"github.com/cellcore/ppuexec/ppu/recompiler"
)

var runCmd = &cobra.Command{
	Use:   "run <memory-image>",
	Short: "load a flat guest memory image and call into it at --entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("entry", "0x0", "guest entry point address (hex)")
	runCmd.Flags().Bool("interactive", false, "enable single-key breakpoint stepping before the call")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	log := rtlog.New(os.Stdout, cfg.Debug, nil)

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read memory image: %w", err)
	}

	mem := ppu.NewFlatMemory(uint32(len(image)))
	mem.StoreBytes(0, image)

	rt := ppu.NewRuntime(mem, stubDecoder{}, cfg.Decoder == ppu.DecoderLLVM, log, nil)

	arena, err := jitmem.NewArena()
	if err != nil {
		return fmt.Errorf("reserve code arena: %w", err)
	}
	atexit.Register(func() {
		if err := arena.Teardown(); err != nil {
			log.Warnf("arena teardown: %v", err)
		}
	})

	cache := objcache.New(cfg.CachePath)
	if cfg.Decoder == ppu.DecoderLLVM {
		driver := recompiler.NewDriver(rt, arena, cache, cliBackend{}, nil, cfg.IRLog)
		atexit.Register(driver.Close)
		mod := moduleFromImage(filepath.Base(args[0]), image)
		if err := driver.CompileModule(cmd.Context(), mod); err != nil {
			return fmt.Errorf("compile module before run: %w", err)
		}
		log.Logger.Info("precompiled module", "name", mod.Name, "functions", len(mod.Functions))
	}

	entryStr, _ := cmd.Flags().GetString("entry")
	entry, err := strconv.ParseUint(strings.TrimPrefix(entryStr, "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("parse --entry: %w", err)
	}

	th := ppu.NewThread(rt, 0, 64)
	alloc := ppu.NewBumpStackAllocator(mem.Size())
	if err := th.Initialize(alloc, ppu.MinStackSize); err != nil {
		return fmt.Errorf("initialize guest thread: %w", err)
	}
	th.Resume()

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive {
		rt.SetBreakpoint(uint32(entry))
		if err := runInteractiveConsole(rt, th); err != nil {
			log.Warnf("interactive console: %v", err)
		}
	}

	rt.FastCall(th, uint32(entry), 0)
	log.Logger.Info("guest entry point returned", "pc", fmt.Sprintf("%#x", th.CIA))
	return nil
}

// runInteractiveConsole puts the terminal into raw mode and reads
// single keystrokes to step or continue past the entry breakpoint,
// generalizing the teacher's line-buffered debug_commands.go monitor
// to single-key raw-mode stepping.
func runInteractiveConsole(rt *ppu.Runtime, th *ppu.Thread) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	fmt.Fprint(os.Stdout, "\r\ninteractive mode: [s]tep [c]ontinue [q]uit\r\n")
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return err
		}
		switch buf[0] {
		case 's', 'S':
			rt.Dispatch(th, th.CIA)
			fmt.Fprintf(os.Stdout, "\r\nstepped to %#x\r\n", th.CIA)
		case 'c', 'C':
			fmt.Fprint(os.Stdout, "\r\ncontinuing\r\n")
			rt.ClearBreakpoint(th.CIA)
			return nil
		case 'q', 'Q':
			return fmt.Errorf("aborted by operator")
		}
	}
}
