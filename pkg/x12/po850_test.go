package x12

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePO850() TransactionSet {
	return NewTransactionSet("850", "0001", []Segment{
		NewSegment("BEG", "00", "SA", "PO-1001", "", "20240115"),
		NewSegment("CUR", "BY", "USD"),
		NewSegment("REF", "DP", "038"),
		NewSegment("DTM", "002", "20240131"),
		NewSegment("N1", "ST", "Acme Warehouse", "92", "0042"),
		NewSegment("N3", "100 Industrial Way"),
		NewSegment("N4", "Springfield", "IL", "62704", "US"),
		NewSegment("N1", "BT", "Acme Corp"),
		NewSegment("PO1", "1", "10", "EA", "9.95", "PE", "VP", "WID-100", "UP", "012345678905"),
		NewSegment("PID", "F", "", "", "", "Widget, blue"),
		NewSegment("PO1", "2", "3", "CA", "120", "PE", "VP", "GAD-7"),
		NewSegment("CTT", "2"),
	})
}

func TestParse850(t *testing.T) {
	doc, errs := Parse(samplePO850())
	require.NotNil(t, doc)
	assert.Empty(t, errs)

	po, ok := doc.(PurchaseOrder)
	require.True(t, ok)

	assert.Equal(t, "0001", po.ControlNumber)
	assert.Equal(t, "00", po.PurposeCode)
	assert.Equal(t, "SA", po.TypeCode)
	assert.Equal(t, "PO-1001", po.OrderNumber)
	assert.Equal(t, "20240115", po.OrderDate)
	assert.Equal(t, "USD", po.Currency)
	assert.Equal(t, []Reference{{Qualifier: "DP", Value: "038"}}, po.References)
	assert.Equal(t, []DateReference{{Qualifier: "002", Date: "20240131"}}, po.Dates)

	require.Len(t, po.Parties, 2)
	shipTo := po.Parties[0]
	assert.Equal(t, "ST", shipTo.EntityCode)
	assert.Equal(t, "Acme Warehouse", shipTo.Name)
	assert.Equal(t, []string{"100 Industrial Way"}, shipTo.AddressLines)
	assert.Equal(t, "Springfield", shipTo.City)
	assert.Equal(t, "US", shipTo.Country)

	require.Len(t, po.Items, 2)
	item := po.Items[0]
	assert.Equal(t, "1", item.LineNumber)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "EA", item.Unit)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("9.95")))
	assert.Equal(t, []ProductID{
		{Qualifier: "VP", ID: "WID-100"},
		{Qualifier: "UP", ID: "012345678905"},
	}, item.ProductIDs)
	assert.Equal(t, []string{"Widget, blue"}, item.Descriptions)

	assert.Equal(t, 2, po.LineItemTotal)
}

func TestParse850MissingBEG(t *testing.T) {
	ts := NewTransactionSet("850", "0001", []Segment{
		NewSegment("PO1", "1", "10", "EA", "9.95"),
		NewSegment("CTT", "1"),
	})

	doc, errs := Parse(ts)
	assert.Nil(t, doc)
	require.Len(t, errs, 1, "missing mandatory header yields exactly one fatal error")
	assert.Equal(t, SeverityFatal, errs[0].Severity)
	assert.Equal(t, "BEG", errs[0].SegmentID)
}

func TestParse850BadNumeric(t *testing.T) {
	ts := NewTransactionSet("850", "0001", []Segment{
		NewSegment("BEG", "00", "SA", "PO-1"),
		NewSegment("PO1", "1", "ten", "EA", "9.95"),
		NewSegment("CTT", "1"),
	})

	doc, errs := Parse(ts)
	require.NotNil(t, doc, "numeric errors are recoverable")

	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, ErrCodeInvalidNumeric)

	po := doc.(PurchaseOrder)
	require.Len(t, po.Items, 1, "the partial item is still captured")
	assert.Equal(t, "EA", po.Items[0].Unit)
}

func TestParse850OrphanSegments(t *testing.T) {
	ts := NewTransactionSet("850", "0001", []Segment{
		NewSegment("BEG", "00", "SA", "PO-1"),
		NewSegment("N4", "Springfield", "IL"),
		NewSegment("PID", "F", "", "", "", "stray description"),
		NewSegment("CTT", "0"),
	})

	doc, errs := Parse(ts)
	require.NotNil(t, doc)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, ErrCodeOrphanLoop, e.Code)
	}
}

func TestRoundTrip850(t *testing.T) {
	original := samplePO850()

	doc, errs := Parse(original)
	require.NotNil(t, doc)
	require.Empty(t, errs)

	regenerated, err := Generate(doc)
	require.NoError(t, err)
	assert.Empty(t, regenerated.Validate())

	doc2, errs2 := Parse(regenerated)
	require.NotNil(t, doc2)
	assert.Empty(t, errs2)
	assert.Equal(t, doc, doc2, "round-trip preserves every typed field")
}

func TestGenerate850DeterministicOrder(t *testing.T) {
	doc, _ := Parse(samplePO850())
	a, err := Generate(doc)
	require.NoError(t, err)
	b, err := Generate(doc)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.Equal(t, "BEG", a.Segments[0].ID, "header segment leads")
	assert.Equal(t, "CTT", a.Segments[len(a.Segments)-1].ID, "summary closes")
}
