package x12

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// sn856 is the codec for the 856 Ship Notice/Manifest transaction set.
//
// The 856 flattens a shipment -> order -> pack -> item tree into HL
// segments: HL01 is the node id, HL02 the parent id, HL03 the level code.
// Parsing rebuilds the tree in a single forward pass, keeping one open
// node per level; a new HL closes every deeper level.
type sn856 struct{}

func (sn856) setCode() string { return "856" }

// HL level codes.
const (
	hlShipment = "S"
	hlOrder    = "O"
	hlPack     = "P"
	hlItem     = "I"
)

func (sn856) parse(ts TransactionSet) (Document, []ParseError) {
	var errs []ParseError

	doc := &ShipNotice{ControlNumber: ts.ControlNumber()}

	var shipment *Shipment
	var order *ShipOrder
	var pack *Pack
	var item *ShipItem
	var party *Party
	level := ""

	// HL01 ids of the currently open levels, used to resolve which level an
	// item's HL02 parent pointer refers to.
	var orderHL, packHL string
	itemInPack := false

	closeItem := func() {
		if item == nil {
			return
		}
		switch {
		case itemInPack && pack != nil:
			pack.Items = append(pack.Items, *item)
		case order != nil:
			order.Items = append(order.Items, *item)
		case pack != nil:
			pack.Items = append(pack.Items, *item)
		}
		item = nil
	}
	closePack := func() {
		closeItem()
		if pack != nil && order != nil {
			order.Packs = append(order.Packs, *pack)
		}
		pack = nil
	}
	closeOrder := func() {
		closePack()
		if order != nil && shipment != nil {
			shipment.Orders = append(shipment.Orders, *order)
		}
		order = nil
	}
	closeParty := func() {
		if party != nil && shipment != nil {
			shipment.Parties = append(shipment.Parties, *party)
		}
		party = nil
	}
	closeShipment := func() {
		closeParty()
		closeOrder()
		if shipment != nil {
			doc.Shipments = append(doc.Shipments, *shipment)
		}
		shipment = nil
	}

	bsnSeen := false
	for _, seg := range ts.Segments {
		switch seg.ID {
		case "BSN":
			bsnSeen = true
			doc.PurposeCode = seg.Element(1)
			doc.ShipmentID = seg.Element(2)
			doc.ShipmentDate = seg.Element(3)
			doc.ShipmentTime = seg.Element(4)
			doc.StructureCode = seg.Element(5)

		case "DTM":
			if shipment == nil {
				doc.Dates = append(doc.Dates, DateReference{
					Qualifier: seg.Element(1),
					Date:      seg.Element(2),
				})
			}

		case "HL":
			level = seg.Element(3)
			switch level {
			case hlShipment:
				closeShipment()
				shipment = &Shipment{}
				orderHL, packHL = "", ""
			case hlOrder:
				closeParty()
				closeOrder()
				if shipment == nil {
					// Best effort: an order without a shipment level still
					// gets captured under a synthetic shipment.
					errs = append(errs, errOrphan(seg, "HL*S"))
					shipment = &Shipment{}
				}
				order = &ShipOrder{}
				orderHL, packHL = seg.Element(1), ""
			case hlPack:
				closePack()
				if order == nil {
					errs = append(errs, errOrphan(seg, "HL*O"))
					continue
				}
				pack = &Pack{}
				packHL = seg.Element(1)
			case hlItem:
				closeItem()
				if order == nil && pack == nil {
					errs = append(errs, errOrphan(seg, "HL*O"))
					continue
				}
				item = &ShipItem{}
				// HL02 decides whether the item belongs to the open pack or
				// directly to the order.
				switch seg.Element(2) {
				case packHL:
					itemInPack = pack != nil
				case orderHL:
					itemInPack = false
				default:
					itemInPack = pack != nil
				}
			default:
				errs = append(errs, ParseError{
					Code:      ErrCodeUnexpectedSeg,
					Message:   fmt.Sprintf("unknown HL level code %q", level),
					SegmentID: "HL",
					Severity:  SeverityError,
				})
			}

		case "TD1":
			if shipment == nil {
				errs = append(errs, errOrphan(seg, "HL*S"))
				continue
			}
			shipment.PackagingCode = seg.Element(1)
			if n, err := strconv.Atoi(seg.Element(2)); err == nil {
				shipment.LadingQuantity = n
			} else if seg.Element(2) != "" {
				errs = append(errs, errNumeric("TD1", "TD102", seg.Element(2)))
			}
			if w, err := decimal.NewFromString(seg.Element(7)); err == nil {
				shipment.Weight = w
			} else if seg.Element(7) != "" {
				errs = append(errs, errNumeric("TD1", "TD107", seg.Element(7)))
			}
			shipment.WeightUnit = seg.Element(8)

		case "TD5":
			if shipment == nil {
				errs = append(errs, errOrphan(seg, "HL*S"))
				continue
			}
			shipment.CarrierQualifier = seg.Element(2)
			shipment.CarrierCode = seg.Element(3)
			shipment.TransportMethod = seg.Element(4)
			shipment.Routing = seg.Element(5)

		case "REF":
			ref := Reference{Qualifier: seg.Element(1), Value: seg.Element(2)}
			switch {
			case order != nil:
				order.References = append(order.References, ref)
			case shipment != nil:
				shipment.References = append(shipment.References, ref)
			default:
				errs = append(errs, errOrphan(seg, "HL"))
			}

		case "PRF":
			if order == nil {
				errs = append(errs, errOrphan(seg, "HL*O"))
				continue
			}
			order.PurchaseOrderNumber = seg.Element(1)
			order.ReleaseNumber = seg.Element(3)

		case "MAN":
			if pack == nil {
				errs = append(errs, errOrphan(seg, "HL*P"))
				continue
			}
			pack.MarkQualifier = seg.Element(1)
			pack.Marks = seg.Element(2)

		case "LIN":
			if item == nil {
				errs = append(errs, errOrphan(seg, "HL*I"))
				continue
			}
			item.LineNumber = seg.Element(1)
			for pos := 2; seg.Element(pos) != ""; pos += 2 {
				item.ProductIDs = append(item.ProductIDs, ProductID{
					Qualifier: seg.Element(pos),
					ID:        seg.Element(pos + 1),
				})
			}

		case "SN1":
			if item == nil {
				errs = append(errs, errOrphan(seg, "HL*I"))
				continue
			}
			if qty, err := decimal.NewFromString(seg.Element(2)); err == nil {
				item.ShippedQuantity = qty
			} else if seg.Element(2) != "" {
				errs = append(errs, errNumeric("SN1", "SN102", seg.Element(2)))
			}
			item.Unit = seg.Element(3)

		case "N1":
			if shipment == nil {
				errs = append(errs, errOrphan(seg, "HL*S"))
				continue
			}
			closeParty()
			party = &Party{
				EntityCode:  seg.Element(1),
				Name:        seg.Element(2),
				IDQualifier: seg.Element(3),
				ID:          seg.Element(4),
			}

		case "N3":
			if party == nil {
				errs = append(errs, errOrphan(seg, "N1"))
				continue
			}
			party.AddressLines = append(party.AddressLines, seg.Element(1))
			if seg.Element(2) != "" {
				party.AddressLines = append(party.AddressLines, seg.Element(2))
			}

		case "N4":
			if party == nil {
				errs = append(errs, errOrphan(seg, "N1"))
				continue
			}
			party.City = seg.Element(1)
			party.State = seg.Element(2)
			party.PostalCode = seg.Element(3)
			party.Country = seg.Element(4)

		case "CTT":
			// Optional summary; the HL tree itself is authoritative.

		default:
			errs = append(errs, warnUnknown(seg))
		}
	}
	closeShipment()

	if !bsnSeen {
		return nil, append(errs, fatalMissing("BSN", "856"))
	}
	return *doc, errs
}

func (sn856) generate(doc Document) (TransactionSet, error) {
	sn, ok := doc.(ShipNotice)
	if !ok {
		return TransactionSet{}, errWrongDocType("856", doc)
	}

	var segments []Segment
	segments = append(segments, NewSegment("BSN", trimTrailingEmpty([]string{
		sn.PurposeCode, sn.ShipmentID, sn.ShipmentDate, sn.ShipmentTime, sn.StructureCode,
	})...))
	for _, dtm := range sn.Dates {
		segments = append(segments, NewSegment("DTM", dtm.Qualifier, dtm.Date))
	}

	hlID := 0
	nextHL := func(parent int, level string) Segment {
		hlID++
		parentStr := ""
		if parent > 0 {
			parentStr = strconv.Itoa(parent)
		}
		return NewSegment("HL", trimTrailingEmpty([]string{strconv.Itoa(hlID), parentStr, level})...)
	}

	emitItem := func(parent int, item ShipItem) {
		segments = append(segments, nextHL(parent, hlItem))
		elems := []string{item.LineNumber}
		for _, pid := range item.ProductIDs {
			elems = append(elems, pid.Qualifier, pid.ID)
		}
		segments = append(segments, NewSegment("LIN", trimTrailingEmpty(elems)...))
		segments = append(segments, NewSegment("SN1", trimTrailingEmpty([]string{
			"", item.ShippedQuantity.String(), item.Unit,
		})...))
	}

	for _, shipment := range sn.Shipments {
		segments = append(segments, nextHL(0, hlShipment))
		shipmentID := hlID
		if shipment.PackagingCode != "" || shipment.LadingQuantity != 0 || !shipment.Weight.IsZero() {
			lading := ""
			if shipment.LadingQuantity != 0 {
				lading = strconv.Itoa(shipment.LadingQuantity)
			}
			weight := ""
			if !shipment.Weight.IsZero() {
				weight = shipment.Weight.String()
			}
			segments = append(segments, NewSegment("TD1", trimTrailingEmpty([]string{
				shipment.PackagingCode, lading, "", "", "", "", weight, shipment.WeightUnit,
			})...))
		}
		if shipment.CarrierCode != "" || shipment.Routing != "" {
			segments = append(segments, NewSegment("TD5", trimTrailingEmpty([]string{
				"", shipment.CarrierQualifier, shipment.CarrierCode, shipment.TransportMethod, shipment.Routing,
			})...))
		}
		for _, ref := range shipment.References {
			segments = append(segments, NewSegment("REF", ref.Qualifier, ref.Value))
		}
		for _, p := range shipment.Parties {
			segments = append(segments, generateParty(p)...)
		}
		for _, order := range shipment.Orders {
			segments = append(segments, nextHL(shipmentID, hlOrder))
			orderID := hlID
			if order.PurchaseOrderNumber != "" || order.ReleaseNumber != "" {
				segments = append(segments, NewSegment("PRF", trimTrailingEmpty([]string{
					order.PurchaseOrderNumber, "", order.ReleaseNumber,
				})...))
			}
			for _, ref := range order.References {
				segments = append(segments, NewSegment("REF", ref.Qualifier, ref.Value))
			}
			for _, pack := range order.Packs {
				segments = append(segments, nextHL(orderID, hlPack))
				packID := hlID
				if pack.MarkQualifier != "" || pack.Marks != "" {
					segments = append(segments, NewSegment("MAN", pack.MarkQualifier, pack.Marks))
				}
				for _, item := range pack.Items {
					emitItem(packID, item)
				}
			}
			for _, item := range order.Items {
				emitItem(orderID, item)
			}
		}
	}
	segments = append(segments, NewSegment("CTT", strconv.Itoa(hlID)))

	return NewTransactionSet("856", sn.ControlNumber, segments), nil
}
