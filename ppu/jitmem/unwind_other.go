//go:build !windows

package jitmem

// UnwindRegistrar is a no-op off Windows: unwind-table registration is
// Windows-only (§4.6 "On each loaded object (Windows only)").
type UnwindRegistrar struct{}

func NewUnwindRegistrar(*Arena) *UnwindRegistrar { return &UnwindRegistrar{} }

func (*UnwindRegistrar) Register(sectionBase uint32, raw []RuntimeFunction, relocs []PDataRelocation) error {
	return nil
}

func (*UnwindRegistrar) Teardown() {}
