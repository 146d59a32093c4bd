package x12

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.Equal(t, []string{"850", "856", "997"}, Supported())
}

func TestGeneratePointerDocument(t *testing.T) {
	po := &PurchaseOrder{
		ControlNumber: "0001",
		PurposeCode:   "00",
		TypeCode:      "SA",
		OrderNumber:   "PO-2001",
		OrderDate:     "20240115",
		Items: []OrderItem{{
			LineNumber: "1",
			Quantity:   decimal.NewFromInt(5),
			Unit:       "EA",
			UnitPrice:  decimal.RequireFromString("2.50"),
		}},
	}

	ts, err := Generate(po)
	require.NoError(t, err)
	assert.Empty(t, ts.Validate())

	parsed, errs := Parse(ts)
	require.NotNil(t, parsed)
	require.Empty(t, errs)

	// Parse always returns the value form.
	back, ok := parsed.(PurchaseOrder)
	require.True(t, ok)
	assert.Equal(t, "PO-2001", back.OrderNumber)
	require.Len(t, back.Items, 1)
	assert.True(t, back.Items[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, back.Items[0].UnitPrice.Equal(decimal.RequireFromString("2.50")))
}

func TestGenerateNilDocuments(t *testing.T) {
	_, err := Generate(nil)
	assert.Error(t, err)

	_, err = Generate((*PurchaseOrder)(nil))
	assert.Error(t, err)

	_, err = Generate((*ShipNotice)(nil))
	assert.Error(t, err)
}

func TestGeneratePointerShipNotice(t *testing.T) {
	sn := &ShipNotice{ControlNumber: "0002", PurposeCode: "00", ShipmentID: "S1"}
	ts, err := Generate(sn)
	require.NoError(t, err)
	assert.Equal(t, "856", ts.Code())
}
