package blockdev

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Unknown is returned when no filesystem signature matches.
const Unknown = "unknown"

type signature struct {
	Name   string
	Magic  []byte
	Offset int64
}

var signatures = []signature{
	{Name: "crypto_LUKS", Magic: []byte{'L', 'U', 'K', 'S', 0xba, 0xbe}, Offset: 0},
	{Name: "squashfs", Magic: []byte("hsqs"), Offset: 0},
	{Name: "cramfs", Magic: []byte{0x45, 0x3d, 0xcd, 0x28}, Offset: 0},
	{Name: "romfs", Magic: []byte("-rom1fs-"), Offset: 0},
	{Name: "ubifs", Magic: []byte{0x31, 0x18, 0x10, 0x06}, Offset: 0},
	{Name: "jffs2", Magic: []byte{0x85, 0x19}, Offset: 0},
	{Name: "xfs", Magic: []byte("XFSB"), Offset: 0},
	{Name: "exfat", Magic: []byte("EXFAT   "), Offset: 3},
	{Name: "ntfs", Magic: []byte("NTFS    "), Offset: 3},
	{Name: "vfat", Magic: []byte("FAT32   "), Offset: 0x52},
	{Name: "vfat", Magic: []byte("FAT16   "), Offset: 0x36},
	{Name: "vfat", Magic: []byte("FAT12   "), Offset: 0x36},
	{Name: "btrfs", Magic: []byte("_BHRfS_M"), Offset: 0x10040},
	{Name: "f2fs", Magic: []byte{0x10, 0x20, 0xf5, 0xf2}, Offset: 0x400},
	{Name: "erofs", Magic: []byte{0xe2, 0xe1, 0xf5, 0xe0}, Offset: 0x400},
	{Name: "swap", Magic: []byte("SWAPSPACE2"), Offset: 0xff6},
	{Name: "LVM2_member", Magic: []byte("LABELONE"), Offset: 0x200},
	{Name: "iso9660", Magic: []byte("CD001"), Offset: 0x8001},
}

// probeWindow covers every signature offset and the ext superblock.
var probeWindow = func() int64 {
	n := int64(extSuperblock + 0x68)
	for _, s := range signatures {
		if end := s.Offset + int64(len(s.Magic)); end > n {
			n = end
		}
	}
	return n
}()

const (
	extSuperblock = 0x400
	extMagic      = 0xEF53

	extCompatHasJournal = 0x4
	extIncompatExtents  = 0x40
	extIncompat64Bit    = 0x80
)

// DetectFilesystem names the filesystem that starts at offset in r, or
// returns Unknown.
func DetectFilesystem(r io.ReaderAt, offset int64) string {
	buf := make([]byte, probeWindow)
	n, err := r.ReadAt(buf, offset)
	if n == 0 && err != nil {
		return Unknown
	}
	buf = buf[:n]

	for _, s := range signatures {
		end := s.Offset + int64(len(s.Magic))
		if end <= int64(len(buf)) && bytes.Equal(buf[s.Offset:end], s.Magic) {
			return s.Name
		}
	}
	return detectExt(buf)
}

// detectExt tells ext2, ext3 and ext4 apart by their feature flags.
func detectExt(buf []byte) string {
	if len(buf) < extSuperblock+0x64 {
		return Unknown
	}
	sb := buf[extSuperblock:]
	if binary.LittleEndian.Uint16(sb[0x38:0x3a]) != extMagic {
		return Unknown
	}
	compat := binary.LittleEndian.Uint32(sb[0x5c:0x60])
	incompat := binary.LittleEndian.Uint32(sb[0x60:0x64])

	switch {
	case incompat&(extIncompatExtents|extIncompat64Bit) != 0:
		return "ext4"
	case compat&extCompatHasJournal != 0:
		return "ext3"
	}
	return "ext2"
}
