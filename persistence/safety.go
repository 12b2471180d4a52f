package persistence

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// index.vidx stores float32 and uint32 slices as raw little-endian memory,
// so the package refuses to load on hosts where that layout differs.
var (
	ErrUnsupportedArchitecture = errors.New("persistence: only amd64 and arm64 are supported")
	ErrBigEndian               = errors.New("persistence: big-endian hosts are not supported")
	ErrUnalignedAccess         = errors.New("persistence: unaligned slice")
)

func init() {
	if err := hostLayout(); err != nil {
		panic(err)
	}
}

func hostLayout() error {
	switch runtime.GOARCH {
	case "amd64", "arm64":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, runtime.GOARCH)
	}
	probe := uint16(1)
	if *(*byte)(unsafe.Pointer(&probe)) != 1 {
		return ErrBigEndian
	}
	return nil
}

func checkAlignment(p unsafe.Pointer, size uintptr, kind string) error {
	if addr := uintptr(p); addr%size != 0 {
		return fmt.Errorf("%w: %s at 0x%x", ErrUnalignedAccess, kind, addr)
	}
	return nil
}
