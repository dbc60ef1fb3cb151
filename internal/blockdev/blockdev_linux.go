//go:build linux

package blockdev

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

var sysClassBlock = "/sys/class/block"

func deviceSize(f *os.File) (int64, error) {
	var size uint64
	_, _, e := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if e != 0 {
		return 0, e
	}
	return int64(size), nil
}

func sectorSize(f *os.File) (int, error) {
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err == nil {
		return size, nil
	}

	data, readErr := os.ReadFile(filepath.Join(sysClassBlock, filepath.Base(f.Name()), "queue", "logical_block_size"))
	if readErr != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func unmount(target string) error {
	return unix.Unmount(target, 0)
}
