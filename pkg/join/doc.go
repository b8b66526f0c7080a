// Package join implements merge joins over block-chunked, pre-sorted row
// streams with UNDEF (unbound) wildcard semantics.
//
// Both inputs are Sides: pull cursors that hand out one sorted Block at a
// time. The join core keeps only cursor state and the rows of the current
// equal-key run, so a Side backed by an expensive producer (for example a
// block file that decompresses on demand) is never read further than the
// join needs.
//
// Three entry points are provided:
//
//   - Zipper: inner or optional (left outer) merge join for inputs without
//     UNDEF values, over arbitrary element and key types.
//   - UndefJoin: the same merge extended so that rows carrying UNDEF in a
//     join column match every compatible row of the other side, whichever
//     side carries the UNDEF.
//   - SpecialOptionalJoin: an optional join where the last join column of
//     the left input may be UNDEF, meaning "every right row sharing the
//     remaining join columns".
//
// Results are reported through a caller supplied RowAdder. Inputs must be
// sorted; violations of that and the other preconditions panic with a
// *ContractViolation (see CatchContractViolation).
package join
