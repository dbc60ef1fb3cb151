package probe

// SectorSize is the logical block size assumed for partition tables.
const SectorSize = 512

const (
	bootSignature    = 0xAA55
	protectiveType   = 0xEE
	maxGPTEntries    = 256
	minGPTEntrySize  = 128
	maxGPTEntrySize  = 4096
	gptHeaderMinSize = 92
)

var gptSignature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

type mbrEntry struct {
	Status      uint8
	_           [3]byte
	Type        uint8
	_           [3]byte
	FirstSector uint32
	Sectors     uint32
}

type mbrSector struct {
	_             [440]byte
	DiskSignature uint32
	_             [2]byte
	Partitions    [4]mbrEntry
	Signature     uint16
}

type gptHeader struct {
	Signature           [8]byte
	Revision            [4]byte
	HeaderSize          uint32
	CRC32               uint32
	_                   [4]byte
	CurrentLBA          uint64
	BackupLBA           uint64
	FirstUsableLBA      uint64
	LastUsableLBA       uint64
	DiskGUID            [16]byte
	PartitionEntryLBA   uint64
	NumPartEntries      uint32
	PartEntrySize       uint32
	PartEntryArrayCRC32 uint32
}

// gptEntry is the first 128 bytes of a partition entry. Larger entries
// carry reserved bytes after it.
type gptEntry struct {
	TypeGUID       [16]byte
	UniqueGUID     [16]byte
	FirstLBA       uint64
	LastLBA        uint64
	AttributeFlags uint64
	PartitionName  [72]byte
}

// Scheme names the partition table a partition was found in.
type Scheme string

const (
	SchemeMBR Scheme = "mbr"
	SchemeGPT Scheme = "gpt"
)

// Partition is one discovered partition.
type Partition struct {
	// Path is the partition's device node, e.g. /dev/mmcblk0p1.
	Path string
	// ID is the PARTUUID: the unique GUID for GPT, or the disk signature
	// and index for MBR.
	ID string
	// Disk is the device node of the whole disk.
	Disk     string
	Index    int
	Scheme   Scheme
	Type     string
	StartLBA uint64
	Sectors  uint64
	// Name is the GPT partition label, empty for MBR.
	Name string
}

// Size returns the partition size in bytes.
func (p Partition) Size() uint64 {
	return p.Sectors * SectorSize
}

// Offset returns the byte offset of the partition on its disk.
func (p Partition) Offset() int64 {
	return int64(p.StartLBA * SectorSize)
}
