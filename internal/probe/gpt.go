package probe

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoProtectiveMBR = errors.New("no protective MBR")
	ErrNoGPTHeader     = errors.New("no EFI PART header")
	ErrTooManyEntries  = errors.New("too many partition entries")
	ErrBadEntrySize    = errors.New("invalid partition entry size")
)

// guidString formats an on-disk GUID. The first three fields are stored
// little endian, the last two in display order.
func guidString(b []byte) string {
	var swapped [16]byte
	copy(swapped[:], b)
	swapped[0], swapped[1], swapped[2], swapped[3] = b[3], b[2], b[1], b[0]
	swapped[4], swapped[5] = b[5], b[4]
	swapped[6], swapped[7] = b[7], b[6]
	id, err := uuid.FromBytes(swapped[:])
	if err != nil {
		return ""
	}
	return id.String()
}

func decodeUTF16LE(b []byte) string {
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i : i+2])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// headerCRCOK checks the header checksum, computed with the CRC field
// zeroed.
func headerCRCOK(sector []byte, h *gptHeader) bool {
	size := int(h.HeaderSize)
	if size < gptHeaderMinSize || size > len(sector) {
		return false
	}
	tmp := make([]byte, size)
	copy(tmp, sector[:size])
	copy(tmp[16:20], []byte{0, 0, 0, 0})
	return crc32.ChecksumIEEE(tmp) == h.CRC32
}

// ParseGPT decodes a GUID partition table. It requires a protective MBR in
// sector 0 and the header in sector 1; the entry array is read from
// sector 2.
func ParseGPT(r io.ReaderAt, devPath string) ([]Partition, error) {
	return parseGPT(r, devPath, logrus.WithField("component", "probe"))
}

func parseGPT(r io.ReaderAt, devPath string, log *logrus.Entry) ([]Partition, error) {
	mbr, err := readMBR(r, 0)
	if err != nil {
		return nil, err
	}
	if mbr.Partitions[0].Type != protectiveType {
		return nil, ErrNoProtectiveMBR
	}

	sector := make([]byte, SectorSize)
	if err := readFull(r, sector, SectorSize); err != nil {
		return nil, err
	}
	var h gptHeader
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "decoding GPT header")
	}
	if h.Signature != gptSignature {
		return nil, ErrNoGPTHeader
	}
	if h.NumPartEntries > maxGPTEntries {
		return nil, errors.Wrapf(ErrTooManyEntries, "%d", h.NumPartEntries)
	}
	if h.PartEntrySize < minGPTEntrySize || h.PartEntrySize > maxGPTEntrySize {
		return nil, errors.Wrapf(ErrBadEntrySize, "%d", h.PartEntrySize)
	}
	if !headerCRCOK(sector, &h) {
		log.Warnf("GPT header CRC mismatch on %s", devPath)
	}

	size := int(h.PartEntrySize)
	table := make([]byte, int(h.NumPartEntries)*size)
	if err := readFull(r, table, 2*SectorSize); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(table) != h.PartEntryArrayCRC32 {
		log.Warnf("GPT partition entry CRC mismatch on %s", devPath)
	}

	var parts []Partition
	for i := 0; i < int(h.NumPartEntries); i++ {
		raw := table[i*size : (i+1)*size]
		if isAllZero(raw[:16]) {
			continue
		}
		var e gptEntry
		if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e); err != nil {
			return nil, errors.Wrapf(err, "decoding GPT entry %d", i+1)
		}
		var sectors uint64
		if e.LastLBA >= e.FirstLBA {
			sectors = e.LastLBA - e.FirstLBA + 1
		}
		parts = append(parts, Partition{
			Path:     PartitionPath(devPath, i+1),
			ID:       guidString(e.UniqueGUID[:]),
			Disk:     devPath,
			Index:    i + 1,
			Scheme:   SchemeGPT,
			Type:     guidString(e.TypeGUID[:]),
			StartLBA: e.FirstLBA,
			Sectors:  sectors,
			Name:     decodeUTF16LE(e.PartitionName[:]),
		})
	}
	return parts, nil
}
