//go:build native

// Command host runs the kernel core on the host board: a small sanity
// program demonstrating the two equal-priority threads seed scenario, the
// way a board's default application would.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/RIOT-OS/RIOT-sub019/arch/native"
	"github.com/RIOT-OS/RIOT-sub019/boot"
	"github.com/RIOT-OS/RIOT-sub019/internal/config"
	"github.com/RIOT-OS/RIOT-sub019/kernel/thread"
)

func main() {
	native.SetHaltFn(os.Exit)

	if restore, err := native.EnableRawTerminal(int(os.Stdin.Fd())); err == nil {
		defer restore()
	}

	boot.NativeBoot(mainThread, nil, "main")
}

func mainThread(arg unsafe.Pointer) {
	peerStack := make([]byte, 64<<10)
	thread.Create(&native.Port{}, unsafe.Pointer(&peerStack[0]), uintptr(len(peerStack)),
		config.PriorityMain, thread.CreateWoutYield, peerThread, nil, "peer")

	for {
		fmt.Println("thread #1")
		thread.Yield()
	}
}

func peerThread(arg unsafe.Pointer) {
	for {
		fmt.Println("thread #2")
		thread.Yield()
	}
}
