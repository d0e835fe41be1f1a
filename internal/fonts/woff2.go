package fonts

import (
	"bytes"
	"encoding/binary"

	"github.com/andybalholm/brotli"
)

const (
	woff2Signature  = 0x774F4632 // 'wOF2'
	woff2HeaderSize = 48
)

// woff2KnownTags are the tags with a one-byte directory encoding, by index.
var woff2KnownTags = []string{
	"cmap", "head", "hhea", "hmtx", "maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca", "prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern", "LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS", "GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL", "SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar", "fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar", "mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat", "Gloc", "Feat", "Sill",
}

var woff2TagIndex = func() map[string]byte {
	m := make(map[string]byte, len(woff2KnownTags))
	for i, t := range woff2KnownTags {
		m[t] = byte(i)
	}
	return m
}()

const woff2ArbitraryTag = 63

// encodeWOFF2 wraps f as WOFF 2.0. No table transforms are applied: glyf and loca use
// the null transform (version 3) and every other table version 0. All tables share one
// Brotli stream.
func encodeWOFF2(f *font) ([]byte, error) {
	var dir []byte
	var stream bytes.Buffer
	for _, t := range f.tables {
		name := t.name()
		var flags byte
		idx, known := woff2TagIndex[name]
		if known {
			flags = idx
		} else {
			flags = woff2ArbitraryTag
		}
		if name == "glyf" || name == "loca" {
			flags |= 3 << 6
		}
		dir = append(dir, flags)
		if !known {
			dir = binary.BigEndian.AppendUint32(dir, t.tag)
		}
		dir = appendUIntBase128(dir, uint32(len(t.data)))
		stream.Write(t.data)
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(stream.Bytes()); err != nil {
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}

	total := pad4(woff2HeaderSize + len(dir) + compressed.Len())

	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, woff2Signature)
	out = binary.BigEndian.AppendUint32(out, f.flavor)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = binary.BigEndian.AppendUint16(out, uint16(len(f.tables)))
	out = binary.BigEndian.AppendUint16(out, 0) // reserved
	out = binary.BigEndian.AppendUint32(out, f.sfntSize())
	out = binary.BigEndian.AppendUint32(out, uint32(compressed.Len()))
	out = binary.BigEndian.AppendUint16(out, uint16(f.revision>>16))
	out = binary.BigEndian.AppendUint16(out, uint16(f.revision))
	out = append(out, make([]byte, 20)...) // no metadata, no private block
	out = append(out, dir...)
	out = append(out, compressed.Bytes()...)
	return append(out, make([]byte, total-len(out))...), nil
}

// appendUIntBase128 writes v as big-endian 7-bit groups, high bit set on all but the last.
func appendUIntBase128(b []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(b, tmp[i:]...)
}
