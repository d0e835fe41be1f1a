package fonts

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
)

const (
	woffSignature  = 0x774F4646 // 'wOFF'
	woffHeaderSize = 44
	woffEntrySize  = 20
)

// encodeWOFF wraps f as WOFF 1.0 with every table zlib compressed. Tables that do not
// shrink are stored uncompressed.
func encodeWOFF(f *font) ([]byte, error) {
	n := len(f.tables)
	blobs := make([][]byte, n)
	for i, t := range f.tables {
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(t.data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		if buf.Len() < len(t.data) {
			blobs[i] = buf.Bytes()
		} else {
			blobs[i] = t.data
		}
	}

	offset := woffHeaderSize + woffEntrySize*n
	dir := make([]byte, 0, woffEntrySize*n)
	for i, t := range f.tables {
		dir = binary.BigEndian.AppendUint32(dir, t.tag)
		dir = binary.BigEndian.AppendUint32(dir, uint32(offset))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(blobs[i])))
		dir = binary.BigEndian.AppendUint32(dir, uint32(len(t.data)))
		dir = binary.BigEndian.AppendUint32(dir, t.checksum)
		offset += pad4(len(blobs[i]))
	}
	total := offset

	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, woffSignature)
	out = binary.BigEndian.AppendUint32(out, f.flavor)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = binary.BigEndian.AppendUint16(out, uint16(n))
	out = binary.BigEndian.AppendUint16(out, 0) // reserved
	out = binary.BigEndian.AppendUint32(out, f.sfntSize())
	out = binary.BigEndian.AppendUint16(out, uint16(f.revision>>16))
	out = binary.BigEndian.AppendUint16(out, uint16(f.revision))
	out = append(out, make([]byte, 20)...) // no metadata, no private block
	out = append(out, dir...)
	for _, b := range blobs {
		out = append(out, b...)
		out = append(out, make([]byte, pad4(len(b))-len(b))...)
	}
	return out, nil
}
