// Package blockstore stores sorted rows on disk as a sequence of blocks and
// reads them back as a join.Side.
//
// Block file format:
//
//	[Header: magic(4) | version(4) | width(4) | join_columns(4) | row_count(8) | block_count(8) | index_offset(8)]
//	[Frame per block: row_count(4) | raw_len(4) | data_len(4) | crc32(4) | snappy(data)]
//	[Index: per block, frame offset(8) | row_count(4)]
//
// The header is little endian and rewritten on Close; frames and the index
// are big endian. Each frame decodes to row_count*width values of 8 bytes.
package blockstore

import (
	"encoding/binary"
)

const (
	FileMagic   = 0x4D4A424B // "MJBK"
	FileVersion = 1

	// DefaultBlockRows is the number of rows per block written by Append.
	DefaultBlockRows = 1024

	frameHeaderSize = 16
	indexEntrySize  = 12
	valueSize       = 8
)

// FileHeader is the fixed-size header at the start of a block file.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Width       uint32
	JoinColumns uint32
	RowCount    uint64
	BlockCount  uint64
	IndexOffset uint64
}

var headerSize = binary.Size(FileHeader{})

// indexEntry locates one frame.
type indexEntry struct {
	Offset uint64
	Rows   uint32
}

// frameHeader precedes the compressed rows of one block.
type frameHeader struct {
	Rows    uint32
	RawLen  uint32
	DataLen uint32
	CRC     uint32
}

func decodeFrameHeader(b []byte) frameHeader {
	return frameHeader{
		Rows:    binary.BigEndian.Uint32(b[0:4]),
		RawLen:  binary.BigEndian.Uint32(b[4:8]),
		DataLen: binary.BigEndian.Uint32(b[8:12]),
		CRC:     binary.BigEndian.Uint32(b[12:16]),
	}
}
