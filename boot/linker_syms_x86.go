//go:build x86

package boot

import _ "unsafe" // for go:linkname

// Linker-provided section boundaries: a custom linker script
// (board/x86/kernel.ld, not part of this module's Go source) defines
// these symbols, and linker_syms_x86.s exposes each one's address as a
// zero-argument func.

//go:linkname linkerTextStart linker_text_start
//go:nosplit
func linkerTextStart() uintptr

//go:linkname linkerTextEnd linker_text_end
//go:nosplit
func linkerTextEnd() uintptr

//go:linkname linkerRodataStart linker_rodata_start
//go:nosplit
func linkerRodataStart() uintptr

//go:linkname linkerRodataEnd linker_rodata_end
//go:nosplit
func linkerRodataEnd() uintptr

//go:linkname linkerDataStart linker_data_start
//go:nosplit
func linkerDataStart() uintptr

//go:linkname linkerDataEnd linker_data_end
//go:nosplit
func linkerDataEnd() uintptr

//go:linkname linkerBssStart linker_bss_start
//go:nosplit
func linkerBssStart() uintptr

//go:linkname linkerKernelEnd linker_kernel_end
//go:nosplit
func linkerKernelEnd() uintptr
