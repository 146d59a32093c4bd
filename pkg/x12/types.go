package x12

import "github.com/shopspring/decimal"

// Document is the closed set of typed transaction set documents this
// package can parse and generate. Implementations are produced once by a
// codec and are not mutated afterwards.
type Document interface {
	// SetCode returns the X12 transaction set code, e.g. "850".
	SetCode() string

	isDocument()
}

// Reference is a REF segment: a qualifier and the referenced value.
type Reference struct {
	Qualifier string // REF01
	Value     string // REF02
}

// DateReference is a DTM segment: a date/time qualifier and its date.
type DateReference struct {
	Qualifier string // DTM01
	Date      string // DTM02, CCYYMMDD
}

// ProductID is one qualifier/identifier pair from a PO1 or LIN segment.
type ProductID struct {
	Qualifier string // e.g. "VP" vendor part, "BP" buyer part, "UP" UPC
	ID        string
}

// Party is an N1 name loop: the entity, its identification, and address.
type Party struct {
	EntityCode   string   // N101, e.g. "ST" ship-to, "BT" bill-to
	Name         string   // N102
	IDQualifier  string   // N103
	ID           string   // N104
	AddressLines []string // N3 segments, up to two values each
	City         string   // N401
	State        string   // N402
	PostalCode   string   // N403
	Country      string   // N404
}

// PurchaseOrder is a typed 850 transaction set.
type PurchaseOrder struct {
	ControlNumber string

	PurposeCode string // BEG01
	TypeCode    string // BEG02
	OrderNumber string // BEG03
	ReleaseNum  string // BEG04
	OrderDate   string // BEG05, CCYYMMDD

	Currency   string // CUR02
	References []Reference
	Dates      []DateReference
	Parties    []Party
	Items      []OrderItem

	// LineItemTotal is CTT01 as transmitted. Generation recomputes it from
	// len(Items); parsing preserves whatever the sender claimed.
	LineItemTotal int
}

// OrderItem is one PO1 baseline item loop of an 850.
type OrderItem struct {
	LineNumber   string          // PO101
	Quantity     decimal.Decimal // PO102
	Unit         string          // PO103, e.g. "EA"
	UnitPrice    decimal.Decimal // PO104
	PriceBasis   string          // PO105
	ProductIDs   []ProductID     // PO106/07 pairs onward
	Descriptions []string        // PID05 per PID segment in the loop
}

func (PurchaseOrder) SetCode() string { return "850" }
func (PurchaseOrder) isDocument()     {}

// ShipNotice is a typed 856 transaction set. The HL hierarchy is rebuilt
// into nested shipment, order, pack, and item levels.
type ShipNotice struct {
	ControlNumber string

	PurposeCode   string // BSN01
	ShipmentID    string // BSN02
	ShipmentDate  string // BSN03, CCYYMMDD
	ShipmentTime  string // BSN04, HHMM
	StructureCode string // BSN05, e.g. "0001" shipment/order/pack/item

	Dates     []DateReference
	Shipments []Shipment
}

// Shipment is an HL shipment level (HL03 = "S").
type Shipment struct {
	// TD1 packaging detail.
	PackagingCode  string          // TD101
	LadingQuantity int             // TD102
	Weight         decimal.Decimal // TD107
	WeightUnit     string          // TD108

	// TD5 carrier routing.
	CarrierQualifier string // TD502
	CarrierCode      string // TD503
	TransportMethod  string // TD504
	Routing          string // TD505

	References []Reference
	Parties    []Party
	Orders     []ShipOrder
}

// ShipOrder is an HL order level (HL03 = "O").
type ShipOrder struct {
	PurchaseOrderNumber string // PRF01
	ReleaseNumber       string // PRF03
	References          []Reference
	Packs               []Pack
	// Items holds line items attached directly to the order when the
	// sender ships without a pack level.
	Items []ShipItem
}

// Pack is an HL pack level (HL03 = "P").
type Pack struct {
	MarkQualifier string // MAN01, e.g. "GM" SSCC-18
	Marks         string // MAN02
	Items         []ShipItem
}

// ShipItem is an HL item level (HL03 = "I").
type ShipItem struct {
	LineNumber      string          // LIN01
	ProductIDs      []ProductID     // LIN02/03 pairs onward
	ShippedQuantity decimal.Decimal // SN102
	Unit            string          // SN103
}

func (ShipNotice) SetCode() string { return "856" }
func (ShipNotice) isDocument()     {}

// FunctionalAck is a typed 997 transaction set acknowledging one
// functional group.
type FunctionalAck struct {
	ControlNumber string

	GroupCode          string // AK101, functional identifier code of the group
	GroupControlNumber string // AK102

	Responses []TransactionResponse

	AckCode       string // AK901: A accepted, E accepted w/ errors, R rejected
	IncludedCount int    // AK902
	ReceivedCount int    // AK903
	AcceptedCount int    // AK904
}

// TransactionResponse is one AK2/AK5 loop acknowledging a transaction set.
type TransactionResponse struct {
	SetCode          string   // AK201
	SetControlNumber string   // AK202
	AckCode          string   // AK501
	ErrorCodes       []string // AK502-AK506
}

func (FunctionalAck) SetCode() string { return "997" }
func (FunctionalAck) isDocument()     {}
