// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package x12 implements a segment-level model for ANSI X12 EDI transaction
// sets together with typed codecs for the transaction sets exchanged with
// trading partners:
//
//   - 850 Purchase Order
//   - 856 Ship Notice/Manifest
//   - 997 Functional Acknowledgment
//
// # Segment Model
//
// A [Segment] is a three-letter identifier followed by ordered element
// values. Element positions are 1-based, matching X12 documentation
// conventions (PO102 is element 2 of a PO1 segment). A position beyond the
// end of a segment reads as the empty string.
//
// A [TransactionSet] frames data segments between an ST header and an SE
// trailer. The trailer's segment count covers the ST and SE themselves, so
// a valid set satisfies count == 2 + len(Segments), and the trailer control
// number must match the header's.
//
// Interchange (ISA/IEA) and functional group (GS/GE) envelopes are out of
// scope; callers hand this package the already-unwrapped transaction set.
//
// # Parsing and Generation
//
// [Parse] dispatches on the set code in ST01 to a codec for that
// transaction set. Parsing never fails on malformed input: errors accumulate
// as [ParseError] values and a best-effort partial document is returned.
// The single exception is a missing mandatory header segment (BEG for an
// 850, BSN for an 856, AK1/AK9 for a 997), which yields no document and
// exactly one fatal error.
//
// [Generate] is the structural inverse: it is lossless for every field the
// typed documents define and emits segments in a deterministic order.
package x12
