package jitmem

// RuntimeFunction mirrors one IMAGE_RUNTIME_FUNCTION_ENTRY record from
// a loaded object's .pdata section (§4.6), in section-relative form
// before relocation.
type RuntimeFunction struct {
	BeginAddress uint32
	EndAddress   uint32
	UnwindData   uint32
}

// PDataRelocation is one relocation entry the driver reports alongside
// an object's raw .pdata bytes.
type PDataRelocation struct {
	Offset uint32
	Type   uint16
}

// relocTypeAddr32NB is the only relocation type this registrar honors.
// The original design silently ignored every other type; §9's Open
// Questions calls that undefined behavior out and asks for it to be
// rejected instead.
const relocTypeAddr32NB = 3
