package x12

import "fmt"

// Severity classifies how badly a parse error damages the result.
type Severity string

const (
	// SeverityWarning marks content the parser skipped without data loss
	// in the typed model, e.g. an unrecognized segment.
	SeverityWarning Severity = "warning"
	// SeverityError marks content that could not be captured faithfully;
	// the returned document is partial.
	SeverityError Severity = "error"
	// SeverityFatal marks input the parser could not produce a document
	// for at all, e.g. a missing mandatory header segment.
	SeverityFatal Severity = "fatal"
)

// Parse error codes.
const (
	ErrCodeMissingHeader   = "MISSING_HEADER_SEGMENT"
	ErrCodeMissingTrailer  = "MISSING_TRAILER_SEGMENT"
	ErrCodeSegmentCount    = "SEGMENT_COUNT_MISMATCH"
	ErrCodeControlMismatch = "CONTROL_NUMBER_MISMATCH"
	ErrCodeUnexpectedSeg   = "UNEXPECTED_SEGMENT"
	ErrCodeUnknownSeg      = "UNKNOWN_SEGMENT"
	ErrCodeInvalidNumeric  = "INVALID_NUMERIC"
	ErrCodeUnsupportedSet  = "UNSUPPORTED_TRANSACTION_SET"
	ErrCodeOrphanLoop      = "ORPHAN_LOOP_SEGMENT"
)

// ParseError describes one problem found while parsing a transaction set.
// Parse errors are data, not control flow: parsers accumulate them and keep
// going wherever a best-effort partial document is still possible.
type ParseError struct {
	Code      string
	Message   string
	SegmentID string
	Severity  Severity
}

// Error implements the error interface.
func (e ParseError) Error() string {
	return fmt.Sprintf("%s [%s/%s]: %s", e.Code, e.SegmentID, e.Severity, e.Message)
}

// HasFatal reports whether any of the errors is fatal.
func HasFatal(errs []ParseError) bool {
	for _, e := range errs {
		if e.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

func fatalMissing(segmentID, setCode string) ParseError {
	return ParseError{
		Code:      ErrCodeMissingHeader,
		Message:   fmt.Sprintf("mandatory %s segment missing from %s transaction set", segmentID, setCode),
		SegmentID: segmentID,
		Severity:  SeverityFatal,
	}
}

func warnUnknown(seg Segment) ParseError {
	return ParseError{
		Code:      ErrCodeUnknownSeg,
		Message:   fmt.Sprintf("segment %s not part of the supported subset, skipped", seg.ID),
		SegmentID: seg.ID,
		Severity:  SeverityWarning,
	}
}

func errNumeric(segmentID, element, value string) ParseError {
	return ParseError{
		Code:      ErrCodeInvalidNumeric,
		Message:   fmt.Sprintf("%s is not a valid numeric value for %s", value, element),
		SegmentID: segmentID,
		Severity:  SeverityError,
	}
}

func errWrongDocType(code string, doc Document) error {
	return fmt.Errorf("codec %s cannot generate a %T document", code, doc)
}

func errOrphan(seg Segment, wants string) ParseError {
	return ParseError{
		Code:      ErrCodeOrphanLoop,
		Message:   fmt.Sprintf("%s segment outside an open %s loop", seg.ID, wants),
		SegmentID: seg.ID,
		Severity:  SeverityError,
	}
}
