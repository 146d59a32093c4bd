package x12

import (
	"fmt"
	"strconv"
)

// Segment is one X12 record: a segment identifier and its ordered elements.
type Segment struct {
	// ID is the segment identifier, e.g. "BEG", "N1", "PO1".
	ID string
	// Elements holds the element values in order. Elements[0] is element 1.
	Elements []string
}

// NewSegment creates a segment with the given identifier and elements.
func NewSegment(id string, elements ...string) Segment {
	return Segment{ID: id, Elements: elements}
}

// Element returns the element at the given 1-based position. Positions
// before 1 or beyond the last element return the empty string.
func (s Segment) Element(pos int) string {
	if pos < 1 || pos > len(s.Elements) {
		return ""
	}
	return s.Elements[pos-1]
}

// trimTrailingEmpty drops trailing empty elements so generated segments
// do not carry empty positions the document model never set.
func trimTrailingEmpty(elements []string) []string {
	end := len(elements)
	for end > 0 && elements[end-1] == "" {
		end--
	}
	return elements[:end]
}

// TransactionSet is one logical business document: an ST header, ordered
// data segments, and an SE trailer.
type TransactionSet struct {
	Header   Segment // ST
	Segments []Segment
	Trailer  Segment // SE
}

// NewTransactionSet builds a transaction set around the given data
// segments, computing the trailer segment count as 2 + len(segments) to
// cover the ST and SE segments themselves.
func NewTransactionSet(code, controlNumber string, segments []Segment) TransactionSet {
	return TransactionSet{
		Header:   NewSegment("ST", code, controlNumber),
		Segments: segments,
		Trailer:  NewSegment("SE", strconv.Itoa(2+len(segments)), controlNumber),
	}
}

// Code returns the transaction set identifier code (ST01), e.g. "850".
func (ts TransactionSet) Code() string {
	return ts.Header.Element(1)
}

// ControlNumber returns the transaction set control number (ST02).
func (ts TransactionSet) ControlNumber() string {
	return ts.Header.Element(2)
}

// Validate checks the envelope invariants: the header must be an ST and the
// trailer an SE, the trailer segment count must equal 2 plus the number of
// data segments, and the trailer control number must match the header's.
// Violations are returned as recoverable parse errors, never panics.
func (ts TransactionSet) Validate() []ParseError {
	var errs []ParseError
	if ts.Header.ID != "ST" {
		errs = append(errs, ParseError{
			Code:      ErrCodeMissingHeader,
			Message:   fmt.Sprintf("expected ST header segment, got %q", ts.Header.ID),
			SegmentID: "ST",
			Severity:  SeverityError,
		})
	}
	if ts.Trailer.ID != "SE" {
		errs = append(errs, ParseError{
			Code:      ErrCodeMissingTrailer,
			Message:   fmt.Sprintf("expected SE trailer segment, got %q", ts.Trailer.ID),
			SegmentID: "SE",
			Severity:  SeverityError,
		})
		return errs
	}
	if count, err := strconv.Atoi(ts.Trailer.Element(1)); err != nil || count != 2+len(ts.Segments) {
		errs = append(errs, ParseError{
			Code: ErrCodeSegmentCount,
			Message: fmt.Sprintf("SE01 segment count %q does not match %d segments plus envelope",
				ts.Trailer.Element(1), len(ts.Segments)),
			SegmentID: "SE",
			Severity:  SeverityError,
		})
	}
	if ts.Trailer.Element(2) != ts.Header.Element(2) {
		errs = append(errs, ParseError{
			Code: ErrCodeControlMismatch,
			Message: fmt.Sprintf("SE02 control number %q does not match ST02 %q",
				ts.Trailer.Element(2), ts.Header.Element(2)),
			SegmentID: "SE",
			Severity:  SeverityError,
		})
	}
	return errs
}
