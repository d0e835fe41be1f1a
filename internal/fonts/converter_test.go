package fonts

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

func fontFixture(t *testing.T) (config.FontsConfig, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "fonts")
	src := filepath.Join(root, "go", "Go-Regular.ttf")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o750))
	require.NoError(t, os.WriteFile(src, goregular.TTF, 0o600))
	return config.FontsConfig{
		Source:     root,
		Extensions: []string{".ttf"},
		Formats:    []string{FormatWOFF, FormatWOFF2},
	}, src
}

// tablesOf maps tag name to table data for the source font.
func tablesOf(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	f, err := parseFont(data)
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, tb := range f.tables {
		out[tb.name()] = tb.data
	}
	return out
}

func decodeWOFF(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	require.Equal(t, uint32(woffSignature), binary.BigEndian.Uint32(data))
	require.Equal(t, uint32(len(data)), binary.BigEndian.Uint32(data[8:]))
	n := int(binary.BigEndian.Uint16(data[12:]))
	out := map[string][]byte{}
	for i := 0; i < n; i++ {
		e := data[woffHeaderSize+woffEntrySize*i:]
		tag := tagString(binary.BigEndian.Uint32(e))
		off := binary.BigEndian.Uint32(e[4:])
		comp := binary.BigEndian.Uint32(e[8:])
		orig := binary.BigEndian.Uint32(e[12:])
		require.Zero(t, off%4, "table %s must be 4-byte aligned", tag)
		blob := data[off : off+comp]
		if comp == orig {
			out[tag] = blob
			continue
		}
		zr, err := zlib.NewReader(bytes.NewReader(blob))
		require.NoError(t, err)
		raw, err := io.ReadAll(zr)
		require.NoError(t, err)
		require.Len(t, raw, int(orig))
		out[tag] = raw
	}
	return out
}

func readUIntBase128(t *testing.T, b []byte) (uint32, int) {
	t.Helper()
	var v uint32
	for i := 0; i < 5; i++ {
		v = v<<7 | uint32(b[i]&0x7f)
		if b[i]&0x80 == 0 {
			return v, i + 1
		}
	}
	t.Fatal("UIntBase128 longer than 5 bytes")
	return 0, 0
}

func decodeWOFF2(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	require.Equal(t, uint32(woff2Signature), binary.BigEndian.Uint32(data))
	require.Equal(t, uint32(len(data)), binary.BigEndian.Uint32(data[8:]))
	require.Zero(t, len(data)%4)
	n := int(binary.BigEndian.Uint16(data[12:]))
	compressedSize := int(binary.BigEndian.Uint32(data[20:]))

	type entry struct {
		tag    string
		length uint32
	}
	pos := woff2HeaderSize
	entries := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		flags := data[pos]
		pos++
		var tag string
		if idx := flags & 0x3f; idx == woff2ArbitraryTag {
			tag = tagString(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
		} else {
			tag = woff2KnownTags[idx]
		}
		if tag == "glyf" || tag == "loca" {
			require.Equal(t, byte(3), flags>>6, "%s uses the null transform", tag)
		} else {
			require.Equal(t, byte(0), flags>>6, tag)
		}
		length, k := readUIntBase128(t, data[pos:])
		pos += k
		entries = append(entries, entry{tag: tag, length: length})
	}

	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data[pos : pos+compressedSize])))
	require.NoError(t, err)
	out := map[string][]byte{}
	off := uint32(0)
	for _, e := range entries {
		out[e.tag] = raw[off : off+e.length]
		off += e.length
	}
	require.Equal(t, uint32(len(raw)), off)
	return out
}

func TestConvert_RoundTripsTables(t *testing.T) {
	cfg, src := fontFixture(t)

	rep, err := New(cfg).Convert(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{src}, rep.Sources)
	base := src[:len(src)-len(".ttf")]
	assert.Equal(t, []string{base + ".woff", base + ".woff2"}, rep.Written)

	want := tablesOf(t, goregular.TTF)

	woff, err := os.ReadFile(base + ".woff")
	require.NoError(t, err)
	assert.Equal(t, want, decodeWOFF(t, woff))
	assert.Less(t, len(woff), len(goregular.TTF))

	woff2, err := os.ReadFile(base + ".woff2")
	require.NoError(t, err)
	assert.Equal(t, want, decodeWOFF2(t, woff2))
	assert.Less(t, len(woff2), len(woff))
}

func TestConvert_Idempotent(t *testing.T) {
	cfg, src := fontFixture(t)
	c := New(cfg)
	base := src[:len(src)-len(".ttf")]

	_, err := c.Convert(context.Background())
	require.NoError(t, err)
	woff1, _ := os.ReadFile(base + ".woff")
	woff21, _ := os.ReadFile(base + ".woff2")

	rep, err := c.Convert(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Sources, 1, "converted outputs are never sources")
	woff2nd, _ := os.ReadFile(base + ".woff")
	woff22nd, _ := os.ReadFile(base + ".woff2")
	assert.Equal(t, woff1, woff2nd)
	assert.Equal(t, woff21, woff22nd)

	entries, err := os.ReadDir(filepath.Dir(src))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestConvert_SingleFormat(t *testing.T) {
	cfg, src := fontFixture(t)
	cfg.Formats = []string{FormatWOFF2}

	rep, err := New(cfg).Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Written, 1)
	_, err = os.Stat(src[:len(src)-len(".ttf")] + ".woff")
	assert.True(t, os.IsNotExist(err))
}

func TestConvert_InvalidFont(t *testing.T) {
	cfg, src := fontFixture(t)
	require.NoError(t, os.WriteFile(src, []byte("definitely not a font, just text"), 0o600))

	_, err := New(cfg).Convert(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
}

func TestConvert_MissingRootIsNoop(t *testing.T) {
	rep, err := New(config.FontsConfig{Source: filepath.Join(t.TempDir(), "none"), Extensions: []string{".ttf"}}).
		Convert(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Sources)
}

func TestParseFont_RejectsCollections(t *testing.T) {
	data := append([]byte("ttcf"), make([]byte, 16)...)
	_, err := parseFont(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collections")
}

func TestUIntBase128(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16383, 16384, 1 << 28, 0xFFFFFFFF} {
		b := appendUIntBase128(nil, v)
		got, n := readUIntBase128(t, b)
		assert.Equal(t, v, got)
		assert.Equal(t, len(b), n)
	}
	assert.Equal(t, []byte{0x81, 0x00}, appendUIntBase128(nil, 128))
}
