package blockstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/pools"
)

// Reader is a memory-mapped block file. Blocks are decompressed on demand;
// a Reader is safe for concurrent use.
type Reader struct {
	path   string
	mmap   *mmap.ReaderAt
	header FileHeader
	index  []indexEntry

	decompressions atomic.Int64
	closed         atomic.Bool
}

// Open opens a block file using memory-mapped I/O.
func Open(path string) (*Reader, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, storeErr("open", path, -1, err)
	}
	r := &Reader{path: path, mmap: reader}
	if err := r.load(); err != nil {
		_ = reader.Close()
		return nil, storeErr("open", path, -1, err)
	}
	return r, nil
}

// load reads the header and the index.
func (r *Reader) load() error {
	size := int64(r.mmap.Len())
	if size < int64(headerSize) {
		return errors.Wrapf(ErrBadMagic, "file of %d bytes has no header", size)
	}
	headerBuf := make([]byte, headerSize)
	if _, err := r.mmap.ReadAt(headerBuf, 0); err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(headerBuf), binary.LittleEndian, &r.header); err != nil {
		return err
	}
	if r.header.Magic != FileMagic {
		return errors.Wrapf(ErrBadMagic, "magic %x", r.header.Magic)
	}
	if r.header.Version != FileVersion {
		return errors.Newf("unsupported block file version %d", r.header.Version)
	}
	if r.header.Width == 0 || r.header.JoinColumns == 0 || r.header.JoinColumns > r.header.Width {
		return corruptf("invalid row shape: width %d, join columns %d", r.header.Width, r.header.JoinColumns)
	}

	indexLen := int64(r.header.BlockCount) * indexEntrySize
	if r.header.IndexOffset < uint64(headerSize) || int64(r.header.IndexOffset)+indexLen != size {
		return corruptf("index of %d blocks at offset %d does not fit file of %d bytes",
			r.header.BlockCount, r.header.IndexOffset, size)
	}
	buf := make([]byte, indexLen)
	if _, err := r.mmap.ReadAt(buf, int64(r.header.IndexOffset)); err != nil {
		return err
	}
	r.index = make([]indexEntry, r.header.BlockCount)
	var rows uint64
	for i := range r.index {
		e := buf[i*indexEntrySize:]
		r.index[i] = indexEntry{
			Offset: binary.BigEndian.Uint64(e[0:8]),
			Rows:   binary.BigEndian.Uint32(e[8:12]),
		}
		rows += uint64(r.index[i].Rows)
	}
	if rows != r.header.RowCount {
		return corruptf("index holds %d rows, header says %d", rows, r.header.RowCount)
	}
	return nil
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Width returns the number of values per row.
func (r *Reader) Width() int { return int(r.header.Width) }

// JoinColumns returns the number of leading columns the rows are sorted on.
func (r *Reader) JoinColumns() int { return int(r.header.JoinColumns) }

// NumBlocks returns the number of blocks, empty ones included.
func (r *Reader) NumBlocks() int { return len(r.index) }

// NumRows returns the total number of rows.
func (r *Reader) NumRows() int { return int(r.header.RowCount) }

// Decompressions returns how many blocks have been decoded so far.
func (r *Reader) Decompressions() int64 {
	return r.decompressions.Load()
}

// ReadBlock decodes block i. The returned rows share one freshly allocated
// backing array and stay valid after Close.
func (r *Reader) ReadBlock(i int) (join.Block[join.Row], error) {
	if r.closed.Load() {
		return nil, storeErr("read", r.path, i, ErrClosed)
	}
	if i < 0 || i >= len(r.index) {
		return nil, storeErr("read", r.path, i, errors.Newf("block %d out of range [0, %d)", i, len(r.index)))
	}
	blk, err := r.readBlock(r.index[i])
	if err != nil {
		return nil, storeErr("read", r.path, i, err)
	}
	r.decompressions.Add(1)
	return blk, nil
}

func (r *Reader) readBlock(e indexEntry) (join.Block[join.Row], error) {
	var hdrBuf [frameHeaderSize]byte
	if _, err := r.mmap.ReadAt(hdrBuf[:], int64(e.Offset)); err != nil {
		return nil, err
	}
	fh := decodeFrameHeader(hdrBuf[:])
	width := int(r.header.Width)

	if fh.Rows != e.Rows {
		return nil, corruptf("frame holds %d rows, index says %d", fh.Rows, e.Rows)
	}
	if uint64(fh.RawLen) != uint64(fh.Rows)*uint64(width)*valueSize {
		return nil, corruptf("frame of %d rows has %d raw bytes", fh.Rows, fh.RawLen)
	}
	dataStart := int64(e.Offset) + frameHeaderSize
	if dataStart+int64(fh.DataLen) > int64(r.header.IndexOffset) {
		return nil, corruptf("frame data of %d bytes runs past the index", fh.DataLen)
	}

	data := pools.GetBytesSized(int(fh.DataLen))
	defer pools.PutBytes(data)
	if _, err := r.mmap.ReadAt(data, dataStart); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(data) != fh.CRC {
		return nil, corruptf("checksum mismatch")
	}

	raw := pools.GetBytesSized(int(fh.RawLen))
	defer pools.PutBytes(raw)
	raw, err := snappy.Decode(raw, data)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decompressing"), ErrCorruptBlock)
	}
	if len(raw) != int(fh.RawLen) {
		return nil, corruptf("decompressed %d bytes, expected %d", len(raw), fh.RawLen)
	}

	values := make([]join.Value, int(fh.Rows)*width)
	for i := range values {
		values[i] = join.Value(int64(binary.BigEndian.Uint64(raw[i*valueSize:])))
	}
	blk := make(join.Block[join.Row], fh.Rows)
	for i := range blk {
		blk[i] = values[i*width : (i+1)*width : (i+1)*width]
	}
	return blk, nil
}

// Side returns a new cursor over all blocks of the file. Each call starts
// from the first block.
func (r *Reader) Side() *BlockSide {
	return &BlockSide{r: r}
}

// Close unmaps the file. Blocks already read stay valid.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.mmap.Close()
}

// BlockSide yields the blocks of a Reader one at a time, decompressing each
// only when it is requested.
type BlockSide struct {
	r    *Reader
	next int
}

// Next implements join.Side.
func (s *BlockSide) Next(ctx context.Context) (join.Block[join.Row], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= s.r.NumBlocks() {
		return nil, io.EOF
	}
	blk, err := s.r.ReadBlock(s.next)
	if err != nil {
		return nil, err
	}
	s.next++
	return blk, nil
}

// Position returns the number of blocks handed out so far.
func (s *BlockSide) Position() int {
	return s.next
}

var _ join.Side[join.Row] = (*BlockSide)(nil)
var _ io.Closer = (*Reader)(nil)
