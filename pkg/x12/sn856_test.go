package x12

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSN856() TransactionSet {
	return NewTransactionSet("856", "0002", []Segment{
		NewSegment("BSN", "00", "SHIP-01", "20240120", "1430", "0001"),
		NewSegment("DTM", "011", "20240120"),
		NewSegment("HL", "1", "", "S"),
		NewSegment("TD1", "CTN25", "4", "", "", "", "", "120.5", "LB"),
		NewSegment("TD5", "", "2", "UPSN", "M", "UPS GROUND"),
		NewSegment("REF", "BM", "BOL-778"),
		NewSegment("N1", "ST", "Acme Warehouse", "92", "0042"),
		NewSegment("N4", "Springfield", "IL", "62704", "US"),
		NewSegment("HL", "2", "1", "O"),
		NewSegment("PRF", "PO-1001"),
		NewSegment("HL", "3", "2", "P"),
		NewSegment("MAN", "GM", "00123456789012345675"),
		NewSegment("HL", "4", "3", "I"),
		NewSegment("LIN", "1", "VP", "WID-100"),
		NewSegment("SN1", "", "10", "EA"),
		NewSegment("HL", "5", "2", "I"),
		NewSegment("LIN", "2", "VP", "GAD-7"),
		NewSegment("SN1", "", "3", "CA"),
		NewSegment("CTT", "5"),
	})
}

func TestParse856(t *testing.T) {
	doc, errs := Parse(sampleSN856())
	require.NotNil(t, doc)
	assert.Empty(t, errs)

	sn, ok := doc.(ShipNotice)
	require.True(t, ok)

	assert.Equal(t, "SHIP-01", sn.ShipmentID)
	assert.Equal(t, "20240120", sn.ShipmentDate)
	assert.Equal(t, "1430", sn.ShipmentTime)
	assert.Equal(t, "0001", sn.StructureCode)
	assert.Equal(t, []DateReference{{Qualifier: "011", Date: "20240120"}}, sn.Dates)

	require.Len(t, sn.Shipments, 1)
	shipment := sn.Shipments[0]
	assert.Equal(t, "CTN25", shipment.PackagingCode)
	assert.Equal(t, 4, shipment.LadingQuantity)
	assert.True(t, shipment.Weight.Equal(decimal.RequireFromString("120.5")))
	assert.Equal(t, "LB", shipment.WeightUnit)
	assert.Equal(t, "UPSN", shipment.CarrierCode)
	assert.Equal(t, "UPS GROUND", shipment.Routing)
	assert.Equal(t, []Reference{{Qualifier: "BM", Value: "BOL-778"}}, shipment.References)
	require.Len(t, shipment.Parties, 1)
	assert.Equal(t, "Acme Warehouse", shipment.Parties[0].Name)

	require.Len(t, shipment.Orders, 1)
	order := shipment.Orders[0]
	assert.Equal(t, "PO-1001", order.PurchaseOrderNumber)

	require.Len(t, order.Packs, 1)
	pack := order.Packs[0]
	assert.Equal(t, "GM", pack.MarkQualifier)
	require.Len(t, pack.Items, 1)
	assert.Equal(t, "1", pack.Items[0].LineNumber)
	assert.True(t, pack.Items[0].ShippedQuantity.Equal(decimal.NewFromInt(10)))

	require.Len(t, order.Items, 1, "the second item hangs directly off the order level")
	assert.Equal(t, "2", order.Items[0].LineNumber)
	assert.Equal(t, "CA", order.Items[0].Unit)
}

func TestParse856MissingBSN(t *testing.T) {
	ts := NewTransactionSet("856", "0002", []Segment{
		NewSegment("HL", "1", "", "S"),
	})

	doc, errs := Parse(ts)
	assert.Nil(t, doc)
	require.Len(t, errs, 1)
	assert.Equal(t, SeverityFatal, errs[0].Severity)
	assert.Equal(t, "BSN", errs[0].SegmentID)
}

func TestParse856OrphanLevels(t *testing.T) {
	ts := NewTransactionSet("856", "0002", []Segment{
		NewSegment("BSN", "00", "SHIP-02", "20240121", "0900"),
		NewSegment("HL", "1", "", "P"),
		NewSegment("HL", "2", "", "O"),
	})

	doc, errs := Parse(ts)
	require.NotNil(t, doc)

	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, ErrCodeOrphanLoop)

	sn := doc.(ShipNotice)
	require.Len(t, sn.Shipments, 1, "an orphan order level gets a synthetic shipment")
	assert.Len(t, sn.Shipments[0].Orders, 1)
}

func TestRoundTrip856(t *testing.T) {
	doc, errs := Parse(sampleSN856())
	require.NotNil(t, doc)
	require.Empty(t, errs)

	regenerated, err := Generate(doc)
	require.NoError(t, err)
	assert.Empty(t, regenerated.Validate())

	doc2, errs2 := Parse(regenerated)
	require.NotNil(t, doc2)
	assert.Empty(t, errs2)
	assert.Equal(t, doc, doc2)
}

func TestGenerate856HLNumbering(t *testing.T) {
	doc, _ := Parse(sampleSN856())
	ts, err := Generate(doc)
	require.NoError(t, err)

	var hls []Segment
	for _, seg := range ts.Segments {
		if seg.ID == "HL" {
			hls = append(hls, seg)
		}
	}
	require.Len(t, hls, 5)
	assert.Equal(t, []string{"1", "", "S"}, hls[0].Elements)
	assert.Equal(t, []string{"2", "1", "O"}, hls[1].Elements)
	assert.Equal(t, []string{"3", "2", "P"}, hls[2].Elements)
	assert.Equal(t, []string{"4", "3", "I"}, hls[3].Elements)
	assert.Equal(t, []string{"5", "2", "I"}, hls[4].Elements, "order-level item parents the order, not the pack")
}
