package x12

import "strconv"

// fa997 is the codec for the 997 Functional Acknowledgment transaction set.
type fa997 struct{}

func (fa997) setCode() string { return "997" }

func (fa997) parse(ts TransactionSet) (Document, []ParseError) {
	var errs []ParseError

	doc := &FunctionalAck{ControlNumber: ts.ControlNumber()}

	var resp *TransactionResponse
	closeResp := func() {
		if resp != nil {
			doc.Responses = append(doc.Responses, *resp)
			resp = nil
		}
	}

	ak1Seen := false
	ak9Seen := false
	for _, seg := range ts.Segments {
		switch seg.ID {
		case "AK1":
			ak1Seen = true
			doc.GroupCode = seg.Element(1)
			doc.GroupControlNumber = seg.Element(2)

		case "AK2":
			closeResp()
			resp = &TransactionResponse{
				SetCode:          seg.Element(1),
				SetControlNumber: seg.Element(2),
			}

		case "AK5":
			if resp == nil {
				errs = append(errs, errOrphan(seg, "AK2"))
				continue
			}
			resp.AckCode = seg.Element(1)
			for pos := 2; pos <= 6 && seg.Element(pos) != ""; pos++ {
				resp.ErrorCodes = append(resp.ErrorCodes, seg.Element(pos))
			}
			closeResp()

		case "AK9":
			closeResp()
			ak9Seen = true
			doc.AckCode = seg.Element(1)
			for pos, dst := range map[int]*int{
				2: &doc.IncludedCount,
				3: &doc.ReceivedCount,
				4: &doc.AcceptedCount,
			} {
				if seg.Element(pos) == "" {
					continue
				}
				if n, err := strconv.Atoi(seg.Element(pos)); err == nil {
					*dst = n
				} else {
					errs = append(errs, errNumeric("AK9", "AK90"+strconv.Itoa(pos), seg.Element(pos)))
				}
			}

		default:
			errs = append(errs, warnUnknown(seg))
		}
	}
	closeResp()

	if !ak1Seen {
		return nil, append(errs, fatalMissing("AK1", "997"))
	}
	if !ak9Seen {
		return nil, append(errs, fatalMissing("AK9", "997"))
	}
	return *doc, errs
}

func (fa997) generate(doc Document) (TransactionSet, error) {
	fa, ok := doc.(FunctionalAck)
	if !ok {
		return TransactionSet{}, errWrongDocType("997", doc)
	}

	var segments []Segment
	segments = append(segments, NewSegment("AK1", fa.GroupCode, fa.GroupControlNumber))
	for _, resp := range fa.Responses {
		segments = append(segments, NewSegment("AK2", resp.SetCode, resp.SetControlNumber))
		elems := append([]string{resp.AckCode}, resp.ErrorCodes...)
		segments = append(segments, NewSegment("AK5", trimTrailingEmpty(elems)...))
	}
	segments = append(segments, NewSegment("AK9", trimTrailingEmpty([]string{
		fa.AckCode,
		strconv.Itoa(fa.IncludedCount),
		strconv.Itoa(fa.ReceivedCount),
		strconv.Itoa(fa.AcceptedCount),
	})...))

	return NewTransactionSet("997", fa.ControlNumber, segments), nil
}

// SetResult reports the parse outcome of one transaction set within a
// functional group, for acknowledgment purposes.
type SetResult struct {
	SetCode       string
	ControlNumber string
	Errors        []ParseError
}

// Acknowledge builds a 997 for a received functional group. Each result
// acknowledges one transaction set; sets with no fatal parse errors are
// accepted, others rejected. The group-level code is "A" when everything
// was accepted, "P" for a partial accept, "R" when nothing was.
func Acknowledge(controlNumber, groupCode, groupControl string, results []SetResult) FunctionalAck {
	fa := FunctionalAck{
		ControlNumber:      controlNumber,
		GroupCode:          groupCode,
		GroupControlNumber: groupControl,
	}
	accepted := 0
	for _, r := range results {
		resp := TransactionResponse{
			SetCode:          r.SetCode,
			SetControlNumber: r.ControlNumber,
		}
		if HasFatal(r.Errors) {
			resp.AckCode = "R"
		} else {
			resp.AckCode = "A"
			accepted++
		}
		fa.Responses = append(fa.Responses, resp)
	}
	fa.IncludedCount = len(results)
	fa.ReceivedCount = len(results)
	fa.AcceptedCount = accepted
	switch {
	case accepted == len(results):
		fa.AckCode = "A"
	case accepted == 0:
		fa.AckCode = "R"
	default:
		fa.AckCode = "P"
	}
	return fa
}
