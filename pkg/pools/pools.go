// Package pools provides object pooling for reducing GC pressure.
//
// This package contains the pools used on the join and block file paths:
//
//   - IndexPool: Pooling for row index slices passed to join adders
//   - BytePool: Size-class based byte slice pooling for block frames
//   - BufferBuilder: Efficient block frame construction with pooling
package pools
