package ubootenv

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBlock(t *testing.T, size int, entries string) []byte {
	t.Helper()
	buf := make([]byte, size)
	copy(buf[4:], entries)
	binary.LittleEndian.PutUint32(buf, crc32.ChecksumIEEE(buf[4:]))
	return buf
}

func TestReadBlock(t *testing.T) {
	buf := makeBlock(t, 512, "bootcmd=run boot\x00nerves_fw_active=a\x00\x00")

	env := New(512)
	require.NoError(t, env.Read(buf))
	assert.Equal(t, []Var{
		{Name: "bootcmd", Value: "run boot"},
		{Name: "nerves_fw_active", Value: "a"},
	}, env.Vars())

	v, ok := env.Get("nerves_fw_active")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = env.Get("missing")
	assert.False(t, ok)
}

func TestReadEmptyBlock(t *testing.T) {
	env := New(64)
	require.NoError(t, env.Read(makeBlock(t, 64, "")))
	assert.Equal(t, 0, env.Len())
}

func TestReadBadCRC(t *testing.T) {
	buf := makeBlock(t, 128, "a=1\x00\x00")
	buf[0] ^= 0xff

	env := New(128)
	err := env.Read(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadCRC))
}

func TestReadMalformed(t *testing.T) {
	env := New(64)
	err := env.Read(makeBlock(t, 64, "novalue\x00\x00"))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestReadTooSmall(t *testing.T) {
	env := New(4)
	assert.True(t, errors.Is(env.Read(make([]byte, 4)), ErrTooSmall))
}

func TestWriteRoundTrip(t *testing.T) {
	env := New(256)
	require.NoError(t, env.Set("a", "1"))
	require.NoError(t, env.Set("b", "two"))
	require.NoError(t, env.Set("a", "one"))

	buf := make([]byte, 256)
	require.NoError(t, env.Write(buf))
	assert.Equal(t, "a=one\x00b=two\x00\x00", string(buf[4:17]))

	loaded := New(256)
	require.NoError(t, loaded.Read(buf))
	assert.Equal(t, env.Vars(), loaded.Vars())
}

func TestRedundantLayout(t *testing.T) {
	env := &Env{Size: 64, Redundant: true, Flags: 3}
	require.NoError(t, env.Set("x", "y"))

	buf := make([]byte, 64)
	require.NoError(t, env.Write(buf))
	assert.Equal(t, byte(3), buf[4])
	assert.Equal(t, "x=y\x00", string(buf[5:9]))
	assert.Equal(t, crc32.ChecksumIEEE(buf[5:]), binary.LittleEndian.Uint32(buf))

	loaded := &Env{Redundant: true}
	require.NoError(t, loaded.Read(buf))
	assert.Equal(t, byte(3), loaded.Flags)
	v, _ := loaded.Get("x")
	assert.Equal(t, "y", v)
}

func TestSetDeletes(t *testing.T) {
	env := New(0)
	require.NoError(t, env.Set("a", "1"))
	require.NoError(t, env.Set("b", "2"))
	require.NoError(t, env.Set("a", ""))

	assert.Equal(t, []Var{{Name: "b", Value: "2"}}, env.Vars())
}

func TestSetInvalidName(t *testing.T) {
	env := New(0)
	for _, name := range []string{"", "a=b", "nul\x00"} {
		assert.True(t, errors.Is(env.Set(name, "v"), ErrInvalidName), name)
	}
}

func TestSetNoSpace(t *testing.T) {
	// 4 byte CRC leaves 12 data bytes: "k=12345678\0" is 11, plus the final NUL.
	env := New(16)
	require.NoError(t, env.Set("k", "12345678"))

	err := env.Set("k", "123456789")
	assert.True(t, errors.Is(err, ErrNoSpace))
	v, _ := env.Get("k")
	assert.Equal(t, "12345678", v, "failed set must keep the previous value")

	assert.True(t, errors.Is(env.Set("z", "1"), ErrNoSpace))
	assert.Equal(t, 1, env.Len())
}

func TestWriteNoSpace(t *testing.T) {
	env := New(0)
	require.NoError(t, env.Set("long", "value that does not fit"))
	assert.True(t, errors.Is(env.Write(make([]byte, 16)), ErrNoSpace))
}
