//go:build linux

package vespadet

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

// SetCPUAffinity sets the CPU Affinity mask of the calling OS thread to run
// on the specified cores.  The goroutine is locked to its thread first so
// the mask stays with the worker calling it.
func SetCPUAffinity(mask uintptr) error {

	if mask == 0 {
		return fmt.Errorf("empty CPU affinity mask")
	}

	runtime.LockOSThread()

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		runtime.UnlockOSThread()
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// GetCPUAffinity gets the current CPU Affinity mask the thread is running on
func GetCPUAffinity() (uintptr, error) {

	var mask uintptr

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_GETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return 0, fmt.Errorf("failed to get CPU affinity: %w", err)
	}

	return mask, nil
}
