package probe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
)

var (
	ErrNoBootSignature = errors.New("no boot signature")
	ErrProtectiveMBR   = errors.New("protective MBR, disk uses GPT")
	ErrNotExtended     = errors.New("not an extended partition")
)

// readFull reads exactly len(buf) bytes at off.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "reading %d bytes at offset %d", len(buf), off)
}

func readMBR(r io.ReaderAt, off int64) (*mbrSector, error) {
	buf := make([]byte, SectorSize)
	if err := readFull(r, buf, off); err != nil {
		return nil, err
	}
	var mbr mbrSector
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &mbr); err != nil {
		return nil, errors.Wrap(err, "decoding MBR")
	}
	if mbr.Signature != bootSignature {
		return nil, ErrNoBootSignature
	}
	return &mbr, nil
}

// PartitionPath returns the device node of partition index on devPath.
// Names ending in a digit take a "p" before the index (mmcblk0p1), others
// do not (sda1).
func PartitionPath(devPath string, index int) string {
	sep := ""
	if base := filepath.Base(devPath); base != "" {
		if c := base[len(base)-1]; c >= '0' && c <= '9' {
			sep = "p"
		}
	}
	return fmt.Sprintf("%s%s%d", devPath, sep, index)
}

func mbrID(diskSignature uint32, index int) string {
	return fmt.Sprintf("%08x-%02x", diskSignature, index)
}

func mbrPartition(devPath string, diskSignature uint32, index int, e mbrEntry, start uint64) Partition {
	return Partition{
		Path:     PartitionPath(devPath, index),
		ID:       mbrID(diskSignature, index),
		Disk:     devPath,
		Index:    index,
		Scheme:   SchemeMBR,
		Type:     fmt.Sprintf("0x%02x", e.Type),
		StartLBA: start,
		Sectors:  uint64(e.Sectors),
	}
}

// ParseMBR decodes the four primary entries of a legacy partition table.
// A disk whose first entry is the GPT protective type is rejected so the
// caller can try ParseGPT.
func ParseMBR(r io.ReaderAt, devPath string) ([]Partition, error) {
	mbr, err := readMBR(r, 0)
	if err != nil {
		return nil, err
	}
	if mbr.Partitions[0].Type == protectiveType {
		return nil, ErrProtectiveMBR
	}

	var parts []Partition
	for i, e := range mbr.Partitions {
		if e.Type == 0 {
			continue
		}
		parts = append(parts, mbrPartition(devPath, mbr.DiskSignature, i+1, e, uint64(e.FirstSector)))
	}
	return parts, nil
}

// IsExtended reports whether an MBR partition type code is an extended
// partition container.
func IsExtended(typ string) bool {
	switch typ {
	case "0x05", "0x0f", "0x85":
		return true
	}
	return false
}

// maxEBRHops bounds the logical partition chain.
const maxEBRHops = 128

// ParseExtended follows the extended boot record chain of ext and returns
// its logical partitions, numbered from 5.
func ParseExtended(r io.ReaderAt, ext Partition) ([]Partition, error) {
	if ext.Scheme != SchemeMBR || !IsExtended(ext.Type) {
		return nil, errors.Wrapf(ErrNotExtended, "%s", ext.Path)
	}
	mbr, err := readMBR(r, 0)
	if err != nil {
		return nil, err
	}

	var parts []Partition
	next := ext.StartLBA
	for hops := 0; hops < maxEBRHops; hops++ {
		ebr, err := readMBR(r, int64(next)*SectorSize)
		if err != nil {
			return parts, errors.Wrapf(err, "EBR at LBA %d", next)
		}

		logical, link := ebr.Partitions[0], ebr.Partitions[1]
		if logical.Type != 0 && logical.Sectors != 0 {
			index := 5 + len(parts)
			start := next + uint64(logical.FirstSector)
			parts = append(parts, mbrPartition(ext.Disk, mbr.DiskSignature, index, logical, start))
		}

		if link.Type == 0 || link.Sectors == 0 || !IsExtended(fmt.Sprintf("0x%02x", link.Type)) {
			break
		}
		next = ext.StartLBA + uint64(link.FirstSector)
	}
	return parts, nil
}
