package x12

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentElement(t *testing.T) {
	seg := NewSegment("BEG", "00", "SA", "PO-1001")

	assert.Equal(t, "00", seg.Element(1))
	assert.Equal(t, "PO-1001", seg.Element(3))
	assert.Equal(t, "", seg.Element(4), "missing position normalizes to empty string")
	assert.Equal(t, "", seg.Element(0))
	assert.Equal(t, "", seg.Element(-1))
}

func TestNewTransactionSetTrailerCount(t *testing.T) {
	segments := []Segment{
		NewSegment("BEG", "00", "SA", "PO-1"),
		NewSegment("CTT", "0"),
	}
	ts := NewTransactionSet("850", "0001", segments)

	assert.Equal(t, "850", ts.Code())
	assert.Equal(t, "0001", ts.ControlNumber())
	assert.Equal(t, "4", ts.Trailer.Element(1), "SE01 covers ST and SE plus data segments")
	assert.Equal(t, "0001", ts.Trailer.Element(2))
	assert.Empty(t, ts.Validate())
}

func TestValidateSegmentCountMismatch(t *testing.T) {
	ts := NewTransactionSet("850", "0001", []Segment{NewSegment("BEG", "00")})
	ts.Trailer = NewSegment("SE", "99", "0001")

	errs := ts.Validate()
	if assert.Len(t, errs, 1) {
		assert.Equal(t, ErrCodeSegmentCount, errs[0].Code)
		assert.Equal(t, SeverityError, errs[0].Severity)
	}
}

func TestValidateControlNumberMismatch(t *testing.T) {
	ts := NewTransactionSet("850", "0001", []Segment{NewSegment("BEG", "00")})
	ts.Trailer = NewSegment("SE", "3", "9999")

	errs := ts.Validate()
	if assert.Len(t, errs, 1) {
		assert.Equal(t, ErrCodeControlMismatch, errs[0].Code)
	}
}

func TestTrimTrailingEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "", "b"}, trimTrailingEmpty([]string{"a", "", "b", "", ""}))
	assert.Empty(t, trimTrailingEmpty([]string{"", ""}))
}
