package x12

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// po850 is the codec for the 850 Purchase Order transaction set.
type po850 struct{}

func (po850) setCode() string { return "850" }

// parse850 loop state. The N1 and PO1 loops are tracked explicitly: an N1
// opens a party loop closed by the next N1, a PO1, or CTT; a PO1 opens an
// item loop closed by the next PO1 or CTT.
type po850State int

const (
	po850Heading po850State = iota
	po850InParty
	po850InItem
	po850Summary
)

func (po850) parse(ts TransactionSet) (Document, []ParseError) {
	var errs []ParseError

	doc := &PurchaseOrder{ControlNumber: ts.ControlNumber()}

	state := po850Heading
	var party *Party
	var item *OrderItem

	closeParty := func() {
		if party != nil {
			doc.Parties = append(doc.Parties, *party)
			party = nil
		}
	}
	closeItem := func() {
		if item != nil {
			doc.Items = append(doc.Items, *item)
			item = nil
		}
	}

	begSeen := false
	for _, seg := range ts.Segments {
		switch seg.ID {
		case "BEG":
			begSeen = true
			doc.PurposeCode = seg.Element(1)
			doc.TypeCode = seg.Element(2)
			doc.OrderNumber = seg.Element(3)
			doc.ReleaseNum = seg.Element(4)
			doc.OrderDate = seg.Element(5)

		case "CUR":
			doc.Currency = seg.Element(2)

		case "REF":
			doc.References = append(doc.References, Reference{
				Qualifier: seg.Element(1),
				Value:     seg.Element(2),
			})

		case "DTM":
			doc.Dates = append(doc.Dates, DateReference{
				Qualifier: seg.Element(1),
				Date:      seg.Element(2),
			})

		case "N1":
			closeItem()
			closeParty()
			state = po850InParty
			party = &Party{
				EntityCode:  seg.Element(1),
				Name:        seg.Element(2),
				IDQualifier: seg.Element(3),
				ID:          seg.Element(4),
			}

		case "N3":
			if state != po850InParty || party == nil {
				errs = append(errs, errOrphan(seg, "N1"))
				continue
			}
			party.AddressLines = append(party.AddressLines, seg.Element(1))
			if seg.Element(2) != "" {
				party.AddressLines = append(party.AddressLines, seg.Element(2))
			}

		case "N4":
			if state != po850InParty || party == nil {
				errs = append(errs, errOrphan(seg, "N1"))
				continue
			}
			party.City = seg.Element(1)
			party.State = seg.Element(2)
			party.PostalCode = seg.Element(3)
			party.Country = seg.Element(4)

		case "PO1":
			closeParty()
			closeItem()
			state = po850InItem
			item = &OrderItem{
				LineNumber: seg.Element(1),
				Unit:       seg.Element(3),
				PriceBasis: seg.Element(5),
			}
			if qty, err := decimal.NewFromString(seg.Element(2)); err == nil {
				item.Quantity = qty
			} else if seg.Element(2) != "" {
				errs = append(errs, errNumeric("PO1", "PO102", seg.Element(2)))
			}
			if price, err := decimal.NewFromString(seg.Element(4)); err == nil {
				item.UnitPrice = price
			} else if seg.Element(4) != "" {
				errs = append(errs, errNumeric("PO1", "PO104", seg.Element(4)))
			}
			// Qualifier/identifier pairs start at PO106.
			for pos := 6; seg.Element(pos) != ""; pos += 2 {
				item.ProductIDs = append(item.ProductIDs, ProductID{
					Qualifier: seg.Element(pos),
					ID:        seg.Element(pos + 1),
				})
			}

		case "PID":
			if state != po850InItem || item == nil {
				errs = append(errs, errOrphan(seg, "PO1"))
				continue
			}
			item.Descriptions = append(item.Descriptions, seg.Element(5))

		case "CTT":
			closeParty()
			closeItem()
			state = po850Summary
			if n, err := strconv.Atoi(seg.Element(1)); err == nil {
				doc.LineItemTotal = n
			} else if seg.Element(1) != "" {
				errs = append(errs, errNumeric("CTT", "CTT01", seg.Element(1)))
			}

		default:
			errs = append(errs, warnUnknown(seg))
		}
	}
	closeParty()
	closeItem()

	if !begSeen {
		return nil, append(errs, fatalMissing("BEG", "850"))
	}
	return *doc, errs
}

func (po850) generate(doc Document) (TransactionSet, error) {
	po, ok := doc.(PurchaseOrder)
	if !ok {
		return TransactionSet{}, errWrongDocType("850", doc)
	}

	var segments []Segment
	segments = append(segments, NewSegment("BEG", trimTrailingEmpty([]string{
		po.PurposeCode, po.TypeCode, po.OrderNumber, po.ReleaseNum, po.OrderDate,
	})...))

	if po.Currency != "" {
		segments = append(segments, NewSegment("CUR", "BY", po.Currency))
	}
	for _, ref := range po.References {
		segments = append(segments, NewSegment("REF", ref.Qualifier, ref.Value))
	}
	for _, dtm := range po.Dates {
		segments = append(segments, NewSegment("DTM", dtm.Qualifier, dtm.Date))
	}
	for _, p := range po.Parties {
		segments = append(segments, generateParty(p)...)
	}
	for _, item := range po.Items {
		elems := []string{
			item.LineNumber,
			item.Quantity.String(),
			item.Unit,
			item.UnitPrice.String(),
			item.PriceBasis,
		}
		for _, pid := range item.ProductIDs {
			elems = append(elems, pid.Qualifier, pid.ID)
		}
		segments = append(segments, NewSegment("PO1", trimTrailingEmpty(elems)...))
		for _, desc := range item.Descriptions {
			segments = append(segments, NewSegment("PID", "F", "", "", "", desc))
		}
	}
	segments = append(segments, NewSegment("CTT", strconv.Itoa(len(po.Items))))

	return NewTransactionSet("850", po.ControlNumber, segments), nil
}

// generateParty emits an N1 loop: N1, N3 address lines in pairs, and N4.
func generateParty(p Party) []Segment {
	segments := []Segment{NewSegment("N1", trimTrailingEmpty([]string{
		p.EntityCode, p.Name, p.IDQualifier, p.ID,
	})...)}
	for i := 0; i < len(p.AddressLines); i += 2 {
		elems := []string{p.AddressLines[i]}
		if i+1 < len(p.AddressLines) {
			elems = append(elems, p.AddressLines[i+1])
		}
		segments = append(segments, NewSegment("N3", elems...))
	}
	if p.City != "" || p.State != "" || p.PostalCode != "" || p.Country != "" {
		segments = append(segments, NewSegment("N4", trimTrailingEmpty([]string{
			p.City, p.State, p.PostalCode, p.Country,
		})...))
	}
	return segments
}
