package probe

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(sectors int) []byte {
	return make([]byte, sectors*SectorSize)
}

func setBootSignature(disk []byte, lba int) {
	disk[lba*SectorSize+510] = 0x55
	disk[lba*SectorSize+511] = 0xAA
}

func setMBREntry(disk []byte, lba, i int, typ byte, first, count uint32) {
	e := disk[lba*SectorSize+446+16*i:]
	e[4] = typ
	binary.LittleEndian.PutUint32(e[8:], first)
	binary.LittleEndian.PutUint32(e[12:], count)
}

// mbrDisk returns a disk with disk signature 04030201 and a Linux partition
// in the first slot.
func mbrDisk() []byte {
	disk := newDisk(64)
	setBootSignature(disk, 0)
	copy(disk[440:], []byte{0x01, 0x02, 0x03, 0x04})
	setMBREntry(disk, 0, 0, 0x83, 2048, 4096)
	return disk
}

type gptTestEntry struct {
	index  int
	typ    [16]byte
	unique [16]byte
	first  uint64
	last   uint64
	name   string
}

// gptDisk writes a protective MBR, a header in sector 1 and count entries
// of entrySize bytes from sector 2.
func gptDisk(count, entrySize uint32, entries ...gptTestEntry) []byte {
	disk := newDisk(64)
	setBootSignature(disk, 0)
	setMBREntry(disk, 0, 0, protectiveType, 1, 63)

	table := disk[2*SectorSize : 2*SectorSize+int(count*entrySize)]
	for _, e := range entries {
		raw := table[(e.index-1)*int(entrySize):]
		copy(raw[0:], e.typ[:])
		copy(raw[16:], e.unique[:])
		binary.LittleEndian.PutUint64(raw[32:], e.first)
		binary.LittleEndian.PutUint64(raw[40:], e.last)
		for i, c := range utf16.Encode([]rune(e.name)) {
			binary.LittleEndian.PutUint16(raw[56+2*i:], c)
		}
	}

	h := disk[SectorSize:]
	copy(h, "EFI PART")
	binary.LittleEndian.PutUint32(h[8:], 0x00010000)
	binary.LittleEndian.PutUint32(h[12:], gptHeaderMinSize)
	binary.LittleEndian.PutUint64(h[24:], 1)
	binary.LittleEndian.PutUint64(h[72:], 2)
	binary.LittleEndian.PutUint32(h[80:], count)
	binary.LittleEndian.PutUint32(h[84:], entrySize)
	binary.LittleEndian.PutUint32(h[88:], crc32.ChecksumIEEE(table))
	binary.LittleEndian.PutUint32(h[16:], crc32.ChecksumIEEE(h[:gptHeaderMinSize]))
	return disk
}

var (
	linuxFS = [16]byte{0xaf, 0x3d, 0xc6, 0x0f, 0x83, 0x84, 0x72, 0x47, 0x8e, 0x79, 0x3d, 0x69, 0xd8, 0x47, 0x7d, 0xe4}
	uniqueA = [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	uniqueB = [16]byte{0xde, 0xad, 0xbe, 0xef, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x11, 0x22, 0x33, 0x44}
)

func standardGPT() []byte {
	return gptDisk(4, 128,
		gptTestEntry{index: 1, typ: linuxFS, unique: uniqueA, first: 34, last: 2081, name: "boot"},
		gptTestEntry{index: 3, typ: linuxFS, unique: uniqueB, first: 4096, last: 8191, name: "rootfs"},
	)
}

func nullLog() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		dev   string
		index int
		want  string
	}{
		{"/dev/sda", 1, "/dev/sda1"},
		{"/dev/sdb", 12, "/dev/sdb12"},
		{"/dev/mmcblk0", 1, "/dev/mmcblk0p1"},
		{"/dev/nvme0n1", 3, "/dev/nvme0n1p3"},
		{"/dev/vda", 2, "/dev/vda2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PartitionPath(tt.dev, tt.index))
	}
}

func TestParseMBR(t *testing.T) {
	parts, err := ParseMBR(bytes.NewReader(mbrDisk()), "/dev/sda")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, Partition{
		Path:     "/dev/sda1",
		ID:       "04030201-01",
		Disk:     "/dev/sda",
		Index:    1,
		Scheme:   SchemeMBR,
		Type:     "0x83",
		StartLBA: 2048,
		Sectors:  4096,
	}, parts[0])
	assert.Equal(t, uint64(4096*SectorSize), parts[0].Size())
	assert.Equal(t, int64(2048*SectorSize), parts[0].Offset())

	parts, err = ParseMBR(bytes.NewReader(mbrDisk()), "/dev/mmcblk0")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "/dev/mmcblk0p1", parts[0].Path)
	assert.Equal(t, "04030201-01", parts[0].ID)
}

func TestParseMBRSparseEntries(t *testing.T) {
	disk := mbrDisk()
	setMBREntry(disk, 0, 0, 0, 0, 0)
	setMBREntry(disk, 0, 1, 0x0c, 1, 10)
	setMBREntry(disk, 0, 3, 0x83, 20, 10)

	parts, err := ParseMBR(bytes.NewReader(disk), "/dev/mmcblk1")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "/dev/mmcblk1p2", parts[0].Path)
	assert.Equal(t, "04030201-02", parts[0].ID)
	assert.Equal(t, "0x0c", parts[0].Type)
	assert.Equal(t, "/dev/mmcblk1p4", parts[1].Path)
	assert.Equal(t, "04030201-04", parts[1].ID)
}

func TestParseMBRRejects(t *testing.T) {
	disk := mbrDisk()
	disk[511] = 0
	_, err := ParseMBR(bytes.NewReader(disk), "/dev/sda")
	assert.ErrorIs(t, err, ErrNoBootSignature)

	_, err = ParseMBR(bytes.NewReader(standardGPT()), "/dev/sda")
	assert.ErrorIs(t, err, ErrProtectiveMBR)

	_, err = ParseMBR(bytes.NewReader(make([]byte, 100)), "/dev/sda")
	assert.Error(t, err)
}

func TestParseGPT(t *testing.T) {
	parts, err := ParseGPT(bytes.NewReader(standardGPT()), "/dev/mmcblk0")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, Partition{
		Path:     "/dev/mmcblk0p1",
		ID:       "04030201-0605-0807-090a-0b0c0d0e0f10",
		Disk:     "/dev/mmcblk0",
		Index:    1,
		Scheme:   SchemeGPT,
		Type:     "0fc63daf-8483-4772-8e79-3d69d8477de4",
		StartLBA: 34,
		Sectors:  2048,
		Name:     "boot",
	}, parts[0])

	assert.Equal(t, "/dev/mmcblk0p3", parts[1].Path)
	assert.Equal(t, "efbeadde-3412-7856-9abc-def011223344", parts[1].ID)
	assert.Equal(t, "rootfs", parts[1].Name)
}

func TestParseGPTLargeEntries(t *testing.T) {
	disk := gptDisk(2, 256, gptTestEntry{index: 2, typ: linuxFS, unique: uniqueA, first: 100, last: 199})
	parts, err := ParseGPT(bytes.NewReader(disk), "/dev/sda")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "/dev/sda2", parts[0].Path)
	assert.Equal(t, uint64(100), parts[0].Sectors)
}

func TestParseGPTRequiresProtectiveMBR(t *testing.T) {
	disk := standardGPT()
	setMBREntry(disk, 0, 0, 0x83, 1, 63)
	_, err := ParseGPT(bytes.NewReader(disk), "/dev/sda")
	assert.ErrorIs(t, err, ErrNoProtectiveMBR)

	disk = standardGPT()
	disk[510] = 0
	_, err = ParseGPT(bytes.NewReader(disk), "/dev/sda")
	assert.ErrorIs(t, err, ErrNoBootSignature)
}

func TestParseGPTRejectsHeader(t *testing.T) {
	disk := standardGPT()
	copy(disk[SectorSize:], "EFI_PART")
	_, err := ParseGPT(bytes.NewReader(disk), "/dev/sda")
	assert.ErrorIs(t, err, ErrNoGPTHeader)

	tests := []struct {
		count, size uint32
		want        error
	}{
		{257, 128, ErrTooManyEntries},
		{4, 0, ErrBadEntrySize},
		{4, 64, ErrBadEntrySize},
		{4, 8192, ErrBadEntrySize},
	}
	for _, tt := range tests {
		disk := standardGPT()
		binary.LittleEndian.PutUint32(disk[SectorSize+80:], tt.count)
		binary.LittleEndian.PutUint32(disk[SectorSize+84:], tt.size)
		_, err := ParseGPT(bytes.NewReader(disk), "/dev/sda")
		assert.True(t, errors.Is(err, tt.want), "count %d size %d: %v", tt.count, tt.size, err)
	}
}

func TestParseGPTTruncatedEntryArray(t *testing.T) {
	disk := gptDisk(128, 128, gptTestEntry{index: 1, typ: linuxFS, unique: uniqueA, first: 34, last: 2081})
	_, err := ParseGPT(bytes.NewReader(disk[:3*SectorSize]), "/dev/sda")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseGPTChecksumMismatchWarns(t *testing.T) {
	disk := standardGPT()
	disk[2*SectorSize+200] ^= 0xff // inside an unused entry

	log, hook := nullLog()
	parts, err := parseGPT(bytes.NewReader(disk), "/dev/sda", log)
	require.NoError(t, err)
	assert.Len(t, parts, 2)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "entry CRC")

	hook.Reset()
	_, err = parseGPT(bytes.NewReader(standardGPT()), "/dev/sda", log)
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())
}

func TestParseExtended(t *testing.T) {
	disk := mbrDisk()
	setMBREntry(disk, 0, 1, 0x05, 10, 30)
	setBootSignature(disk, 10)
	setMBREntry(disk, 10, 0, 0x83, 1, 5)
	setMBREntry(disk, 10, 1, 0x05, 10, 10)
	setBootSignature(disk, 20)
	setMBREntry(disk, 20, 0, 0x0b, 1, 4)

	primary, err := ParseMBR(bytes.NewReader(disk), "/dev/sda")
	require.NoError(t, err)
	require.Len(t, primary, 2)
	ext := primary[1]
	require.True(t, IsExtended(ext.Type))

	logical, err := ParseExtended(bytes.NewReader(disk), ext)
	require.NoError(t, err)
	require.Len(t, logical, 2)
	assert.Equal(t, "/dev/sda5", logical[0].Path)
	assert.Equal(t, "04030201-05", logical[0].ID)
	assert.Equal(t, uint64(11), logical[0].StartLBA)
	assert.Equal(t, uint64(5), logical[0].Sectors)
	assert.Equal(t, "/dev/sda6", logical[1].Path)
	assert.Equal(t, uint64(21), logical[1].StartLBA)
	assert.Equal(t, "0x0b", logical[1].Type)

	_, err = ParseExtended(bytes.NewReader(disk), primary[0])
	assert.ErrorIs(t, err, ErrNotExtended)
}

// fakeSystem lays out a /sys/block and /dev pair under a temporary
// directory.
func fakeSystem(t *testing.T, devices map[string][]byte, sysOnly ...string) *Prober {
	t.Helper()
	root := t.TempDir()
	sys := filepath.Join(root, "sys", "block")
	dev := filepath.Join(root, "dev")
	require.NoError(t, os.MkdirAll(sys, 0o755))
	require.NoError(t, os.MkdirAll(dev, 0o755))

	for name, image := range devices {
		require.NoError(t, os.Mkdir(filepath.Join(sys, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dev, name), image, 0o644))
	}
	for _, name := range sysOnly {
		require.NoError(t, os.Mkdir(filepath.Join(sys, name), 0o755))
	}

	log, _ := nullLog()
	return &Prober{SysBlockDir: sys, DevDir: dev, Log: log}
}

func TestProbe(t *testing.T) {
	p := fakeSystem(t, map[string][]byte{
		"sda":     mbrDisk(),
		"mmcblk0": standardGPT(),
		"loop0":   mbrDisk(),
		"sdb":     newDisk(4),
		".hidden": mbrDisk(),
	}, "sr0")
	p.Exclude = []string{"loop"}

	parts := p.Probe()
	require.Len(t, parts, 3)

	gptDev := filepath.Join(p.DevDir, "mmcblk0")
	assert.Equal(t, gptDev+"p1", parts[0].Path)
	assert.Equal(t, SchemeGPT, parts[0].Scheme)
	assert.Equal(t, gptDev+"p3", parts[1].Path)

	assert.Equal(t, filepath.Join(p.DevDir, "sda1"), parts[2].Path)
	assert.Equal(t, "04030201-01", parts[2].ID)
}

func TestProbeGPTPrecedence(t *testing.T) {
	p := fakeSystem(t, map[string][]byte{"sda": standardGPT()})
	parts, err := p.ProbeDevice(filepath.Join(p.DevDir, "sda"))
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for _, part := range parts {
		assert.Equal(t, SchemeGPT, part.Scheme)
		assert.Len(t, part.ID, 36)
	}
}

func TestProbeMissingRegistry(t *testing.T) {
	log, _ := nullLog()
	p := &Prober{SysBlockDir: filepath.Join(t.TempDir(), "none"), Log: log}
	assert.Empty(t, p.Probe())
}

func TestFind(t *testing.T) {
	parts := append(
		mustParse(t, ParseMBR, mbrDisk(), "/dev/sda"),
		mustParse(t, ParseGPT, standardGPT(), "/dev/mmcblk0")...,
	)

	part, ok := Find(parts, "PARTUUID=04030201-01")
	require.True(t, ok)
	assert.Equal(t, "/dev/sda1", part.Path)

	part, ok = Find(parts, "04030201-0605-0807-090A-0B0C0D0E0F10")
	require.True(t, ok)
	assert.Equal(t, "/dev/mmcblk0p1", part.Path)

	part, ok = Find(parts, "/dev/mmcblk0p3")
	require.True(t, ok)
	assert.Equal(t, "rootfs", part.Name)

	_, ok = Find(parts, "PARTUUID=ffffffff-01")
	assert.False(t, ok)
}

func mustParse(t *testing.T, parse func(io.ReaderAt, string) ([]Partition, error), image []byte, dev string) []Partition {
	t.Helper()
	parts, err := parse(bytes.NewReader(image), dev)
	require.NoError(t, err)
	return parts
}
