package script

import (
	"fmt"
	"io"
	"os"

	"bootenvtool/internal/blockdev"
)

// Script variables shared with the environment built-ins.
const (
	VarEnvPath     = "uboot_env.path"
	VarEnvStart    = "uboot_env.start"
	VarEnvCount    = "uboot_env.count"
	VarEnvLoaded   = "uboot_env.loaded"
	VarEnvModified = "uboot_env.modified"
)

// BlockSize is the unit of uboot_env.start and uboot_env.count.
const BlockSize = 512

// MaxEnvBlocks bounds uboot_env.count to a 1 MiB environment.
const MaxEnvBlocks = 2048

// envRegion reads the location of the environment block from the script
// variables. ok is false when the location is unusable.
func (s *Session) envRegion() (path string, offset int64, size int, ok bool) {
	path = s.VariableString(VarEnvPath)
	start := s.VariableNumber(VarEnvStart)
	count := s.VariableNumber(VarEnvCount)

	if start < 0 || count <= 0 || count > MaxEnvBlocks {
		s.log.Warnf("Invalid environment location: start block %d, %d blocks", start, count)
		return path, 0, 0, false
	}
	return path, int64(start) * BlockSize, int(count) * BlockSize, true
}

// regionFits reports whether size bytes at offset lie inside f.
func (s *Session) regionFits(f *os.File, path string, offset int64, size int) bool {
	total, err := blockdev.Size(f)
	if err != nil {
		s.log.WithError(err).Warnf("Could not determine the size of '%s'", path)
		return false
	}
	if offset+int64(size) > total {
		s.log.Warnf("Environment at byte offset %d (%d bytes) lies past the end of '%s' (%d bytes)",
			offset, size, path, total)
		return false
	}
	return true
}

func env(s *Session, _ []*Term) (*Term, error) {
	for _, v := range s.env.Vars() {
		fmt.Fprintf(s.out, "%s=%s\n", v.Name, v.Value)
	}
	return nil, nil
}

// loadEnv reads the block described by the uboot_env.* variables. I/O
// problems are reported and leave the previous state in place.
func loadEnv(s *Session, _ []*Term) (*Term, error) {
	path, offset, size, ok := s.envRegion()
	if !ok {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		s.log.Warnf("Could not open '%s'", path)
		return nil, nil
	}
	defer f.Close()
	if !s.regionFits(f, path, offset, size) {
		return nil, nil
	}
	s.env.Size = size

	buffer := make([]byte, size)
	if _, err := f.ReadAt(buffer, offset); err != nil {
		s.log.WithError(err).Warnf("Could not read %d blocks (%d bytes) at byte offset %d from '%s'",
			size/BlockSize, size, offset, path)
		return nil, nil
	}

	s.SetBoolean(VarEnvLoaded, false)
	s.SetBoolean(VarEnvModified, false)

	if err := s.env.Read(buffer); err != nil {
		s.log.WithError(err).Warnf("Could not parse the environment in '%s'", path)
		return nil, nil
	}

	s.SetBoolean(VarEnvLoaded, true)
	return nil, nil
}

func setEnv(s *Session, args []*Term) (*Term, error) {
	name, err := s.ToString(args[0])
	if err != nil {
		return nil, err
	}
	value, err := s.ToString(args[1])
	if err != nil {
		return nil, err
	}

	if err := s.env.Set(name, value); err != nil {
		s.log.WithError(err).Warnf("Error setting uboot environment variable '%s' to '%s'", name, value)
	} else {
		s.SetBoolean(VarEnvModified, true)
	}
	return s.NewString(value), nil
}

func getEnv(s *Session, args []*Term) (*Term, error) {
	name, err := s.ToString(args[0])
	if err != nil {
		return nil, err
	}
	value, _ := s.env.Get(name)
	return s.NewString(value), nil
}

// saveEnv writes the environment back to the block it was loaded from.
func saveEnv(s *Session, _ []*Term) (*Term, error) {
	path, offset, size, ok := s.envRegion()
	if !ok {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		s.log.Warnf("Could not open '%s'", path)
		return nil, nil
	}
	defer f.Close()
	if !s.regionFits(f, path, offset, size) {
		return nil, nil
	}
	s.env.Size = size

	buffer := make([]byte, size)
	if err := s.env.Write(buffer); err != nil {
		s.log.WithError(err).Warnf("Could not serialize the environment for '%s'", path)
		return nil, nil
	}

	n, err := f.WriteAt(buffer, offset)
	if err == nil && n != size {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		s.log.WithError(err).Warnf("Could not write %d blocks (%d bytes) to '%s'", size/BlockSize, size, path)
		return nil, nil
	}

	s.SetBoolean(VarEnvModified, false)
	return nil, nil
}
