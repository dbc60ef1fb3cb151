// Package probe discovers partitions by reading MBR and GPT tables from the
// block devices listed in /sys/block.
package probe

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Prober scans the kernel block device registry.
type Prober struct {
	// SysBlockDir lists one entry per whole disk. Defaults to /sys/block.
	SysBlockDir string
	// DevDir holds the device nodes. Defaults to /dev.
	DevDir string
	// Exclude skips devices whose name starts with one of the prefixes.
	Exclude []string
	Log     *logrus.Entry
}

// NewProber returns a Prober over the live system.
func NewProber() *Prober {
	return &Prober{SysBlockDir: "/sys/block", DevDir: "/dev"}
}

func (p *Prober) log() *logrus.Entry {
	if p.Log != nil {
		return p.Log
	}
	return logrus.WithField("component", "probe")
}

func (p *Prober) excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, prefix := range p.Exclude {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Probe returns the partitions of every readable disk. Devices that cannot
// be opened or hold no recognizable table are skipped.
func (p *Prober) Probe() []Partition {
	sysDir, devDir := p.SysBlockDir, p.DevDir
	if sysDir == "" {
		sysDir = "/sys/block"
	}
	if devDir == "" {
		devDir = "/dev"
	}

	entries, err := os.ReadDir(sysDir)
	if err != nil {
		p.log().WithError(err).Debugf("Could not list %s", sysDir)
		return nil
	}

	var parts []Partition
	for _, entry := range entries {
		name := entry.Name()
		if p.excluded(name) {
			continue
		}
		found, err := p.ProbeDevice(filepath.Join(devDir, name))
		if err != nil {
			p.log().WithError(err).Debugf("Skipping %s", name)
			continue
		}
		parts = append(parts, found...)
	}
	return parts
}

// ProbeDevice reads the partition table of one device node, trying MBR
// first and GPT second.
func (p *Prober) ProbeDevice(devPath string) ([]Partition, error) {
	f, err := os.Open(devPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parts, mbrErr := ParseMBR(f, devPath)
	if mbrErr == nil {
		return parts, nil
	}
	parts, err = parseGPT(f, devPath, p.log())
	if err != nil {
		p.log().WithError(mbrErr).Debugf("No MBR on %s", devPath)
		return nil, err
	}
	return parts, nil
}

// Find returns the partition matching key: "PARTUUID=<id>", a bare id
// compared without regard to case, or a device path.
func Find(parts []Partition, key string) (Partition, bool) {
	id := key
	if v, ok := strings.CutPrefix(key, "PARTUUID="); ok {
		id = v
	}
	for _, part := range parts {
		if strings.EqualFold(part.ID, id) {
			return part, true
		}
	}
	for _, part := range parts {
		if part.Path == key {
			return part, true
		}
	}
	return Partition{}, false
}
