package blockstore

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/pools"
	"github.com/dd0wney/cluso-mergejoin/pkg/validation"
)

// WriterOptions describes the rows of a block file.
type WriterOptions struct {
	// Width is the number of values per row, join columns included.
	Width int `validate:"min=1,max=64,gtefield=JoinColumns"`
	// JoinColumns is the number of leading columns rows are sorted on.
	JoinColumns int `validate:"min=1,max=4"`
	// BlockRows is the number of rows per block written by Append.
	BlockRows int `validate:"omitempty,min=1"`
}

// Writer writes sorted rows to a block file. Rows are checked for width and
// for order on the join columns; UNDEF sorts first.
type Writer struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	opts   WriterOptions
	header FileHeader

	pending []join.Row
	last    join.Row
	index   []indexEntry
	offset  uint64

	raw    *pools.BufferBuilder
	frame  *pools.BufferBuilder
	closed bool
}

// Create creates a block file at path, truncating any existing file.
func Create(path string, opts WriterOptions) (*Writer, error) {
	opts.BlockRows = validation.DefaultOrInt(opts.BlockRows, DefaultBlockRows)
	if err := validation.Struct(&opts); err != nil {
		return nil, storeErr("create", path, -1, err)
	}
	if err := validation.ValidateBlockRows(opts.BlockRows); err != nil {
		return nil, storeErr("create", path, -1, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, storeErr("create", path, -1, err)
	}
	w := &Writer{
		path: path,
		file: file,
		w:    bufio.NewWriter(file),
		opts: opts,
		header: FileHeader{
			Magic:       FileMagic,
			Version:     FileVersion,
			Width:       uint32(opts.Width),
			JoinColumns: uint32(opts.JoinColumns),
		},
		pending: make([]join.Row, 0, opts.BlockRows),
		raw:     pools.NewBufferBuilder(opts.BlockRows * opts.Width * valueSize),
		frame:   pools.NewBufferBuilder(pools.MediumFrame),
	}

	// Header placeholder, rewritten on Close.
	if err := binary.Write(w.w, binary.LittleEndian, &w.header); err != nil {
		_ = file.Close()
		return nil, storeErr("create", path, -1, err)
	}
	w.offset = uint64(headerSize)
	return w, nil
}

// Append adds one row. A block is written every BlockRows rows.
func (w *Writer) Append(row join.Row) error {
	if err := w.accept(row); err != nil {
		return storeErr("append", w.path, len(w.index), err)
	}
	w.pending = append(w.pending, row.Clone())
	if len(w.pending) == w.opts.BlockRows {
		return w.flushPending()
	}
	return nil
}

// AppendBlock writes rows as exactly one block after flushing any rows added
// by Append. An empty rows slice writes an empty block.
func (w *Writer) AppendBlock(rows []join.Row) error {
	if err := w.flushPending(); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.accept(row); err != nil {
			return storeErr("append", w.path, len(w.index), err)
		}
	}
	if err := w.writeBlock(rows); err != nil {
		return storeErr("write", w.path, len(w.index), err)
	}
	return nil
}

// accept checks row against the file shape and the previous row.
func (w *Writer) accept(row join.Row) error {
	if w.closed {
		return ErrClosed
	}
	if len(row) != w.opts.Width {
		return errors.Wrapf(ErrRowWidth, "row %v has %d values, file has %d", row, len(row), w.opts.Width)
	}
	if w.last != nil && join.CompareRows(w.last, row, w.opts.JoinColumns) > 0 {
		return errors.Wrapf(ErrUnsorted, "row %v follows %v", row, w.last)
	}
	w.last = append(w.last[:0], row...)
	return nil
}

func (w *Writer) flushPending() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.writeBlock(w.pending); err != nil {
		return storeErr("write", w.path, len(w.index), err)
	}
	w.pending = w.pending[:0]
	return nil
}

// writeBlock encodes, compresses and writes one frame.
func (w *Writer) writeBlock(rows []join.Row) error {
	w.raw.Reset()
	for _, row := range rows {
		for _, v := range row {
			w.raw.WriteInt64sBE(int64(v))
		}
	}
	raw := w.raw.Bytes()

	data := snappy.Encode(pools.GetBytesSized(snappy.MaxEncodedLen(len(raw))), raw)
	defer pools.PutBytes(data)

	w.frame.Reset()
	w.frame.WriteUint32BE(uint32(len(rows)))
	w.frame.WriteUint32BE(uint32(len(raw)))
	w.frame.WriteUint32BE(uint32(len(data)))
	w.frame.WriteUint32BE(crc32.ChecksumIEEE(data))
	w.frame.Write(data)

	if _, err := w.w.Write(w.frame.Bytes()); err != nil {
		return err
	}
	w.index = append(w.index, indexEntry{Offset: w.offset, Rows: uint32(len(rows))})
	w.offset += uint64(w.frame.Len())
	w.header.RowCount += uint64(len(rows))
	w.header.BlockCount++
	return nil
}

// Close writes the remaining rows, the index and the final header, and syncs
// the file. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.finish()
	w.closed = true
	w.raw.Release()
	w.frame.Release()
	if cerr := w.file.Close(); err == nil && cerr != nil {
		err = storeErr("close", w.path, -1, cerr)
	}
	return err
}

func (w *Writer) finish() error {
	if err := w.flushPending(); err != nil {
		return err
	}

	w.header.IndexOffset = w.offset
	w.frame.Reset()
	for _, e := range w.index {
		w.frame.WriteUint64BE(e.Offset)
		w.frame.WriteUint32BE(e.Rows)
	}
	if _, err := w.w.Write(w.frame.Bytes()); err != nil {
		return storeErr("write index", w.path, -1, err)
	}
	if err := w.w.Flush(); err != nil {
		return storeErr("flush", w.path, -1, err)
	}

	// Update header with counts and index offset
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return storeErr("write header", w.path, -1, err)
	}
	if err := binary.Write(w.file, binary.LittleEndian, &w.header); err != nil {
		return storeErr("write header", w.path, -1, err)
	}
	if err := w.file.Sync(); err != nil {
		return storeErr("sync", w.path, -1, err)
	}
	return nil
}

// Rows returns the number of rows written so far, pending ones included.
func (w *Writer) Rows() int {
	return int(w.header.RowCount) + len(w.pending)
}

// WriteFile writes rows to a new block file in one go.
func WriteFile(path string, rows []join.Row, opts WriterOptions) error {
	w, err := Create(path, opts)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Append(row); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
