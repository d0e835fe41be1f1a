package fonts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/image/font/sfnt"
)

const (
	flavorTrueType = 0x00010000
	flavorOpenType = 0x4F54544F // 'OTTO'
	flavorApple    = 0x74727565 // 'true'
	flavorCollect  = 0x74746366 // 'ttcf'
)

// table is one sfnt table with the checksum recorded in the source directory.
type table struct {
	tag      uint32
	checksum uint32
	data     []byte
}

func (t table) name() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], t.tag)
	return string(b[:])
}

// font is a parsed single-font sfnt file.
type font struct {
	flavor   uint32
	revision uint32 // head.fontRevision, 16.16
	tables   []table // sorted by tag
}

// parseFont validates data as an outline font and splits it into tables.
func parseFont(data []byte) (*font, error) {
	if len(data) < 12 {
		return nil, errors.New("file too short for an sfnt header")
	}
	flavor := binary.BigEndian.Uint32(data)
	switch flavor {
	case flavorTrueType, flavorOpenType, flavorApple:
	case flavorCollect:
		return nil, errors.New("font collections are not supported")
	default:
		return nil, fmt.Errorf("unknown sfnt version 0x%08x", flavor)
	}
	if _, err := sfnt.Parse(data); err != nil {
		return nil, err
	}

	n := int(binary.BigEndian.Uint16(data[4:]))
	if len(data) < 12+16*n {
		return nil, errors.New("truncated table directory")
	}
	f := &font{flavor: flavor, tables: make([]table, 0, n)}
	seen := make(map[uint32]bool, n)
	for i := 0; i < n; i++ {
		rec := data[12+16*i:]
		tag := binary.BigEndian.Uint32(rec)
		off := binary.BigEndian.Uint32(rec[8:])
		length := binary.BigEndian.Uint32(rec[12:])
		if uint64(off)+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("table %q exceeds file bounds", tagString(tag))
		}
		if seen[tag] {
			return nil, fmt.Errorf("duplicate table %q", tagString(tag))
		}
		seen[tag] = true
		t := table{tag: tag, checksum: binary.BigEndian.Uint32(rec[4:]), data: data[off : off+length]}
		if t.name() == "head" && len(t.data) >= 8 {
			f.revision = binary.BigEndian.Uint32(t.data[4:])
		}
		f.tables = append(f.tables, t)
	}
	sort.Slice(f.tables, func(i, j int) bool { return f.tables[i].tag < f.tables[j].tag })
	return f, nil
}

// sfntSize is the size of the font reassembled as a plain sfnt file.
func (f *font) sfntSize() uint32 {
	size := 12 + 16*len(f.tables)
	for _, t := range f.tables {
		size += pad4(len(t.data))
	}
	return uint32(size)
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

func tagString(tag uint32) string {
	return table{tag: tag}.name()
}
