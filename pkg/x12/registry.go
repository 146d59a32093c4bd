package x12

import (
	"fmt"
	"sort"
)

// codec converts between the generic segment model and one typed document
// variant. One codec exists per supported transaction set code.
type codec interface {
	setCode() string
	parse(ts TransactionSet) (Document, []ParseError)
	generate(doc Document) (TransactionSet, error)
}

// codecs is the closed code -> implementation table. Dispatch happens only
// through this table so the set of document variants stays a tagged union.
var codecs = map[string]codec{
	"850": po850{},
	"856": sn856{},
	"997": fa997{},
}

// Supported returns the transaction set codes this package can parse and
// generate, sorted.
func Supported() []string {
	out := make([]string, 0, len(codecs))
	for code := range codecs {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Parse converts a transaction set into its typed document. Envelope
// violations and content problems accumulate as parse errors alongside a
// best-effort partial document. A missing mandatory header segment or an
// unsupported set code yields a nil document and a single fatal error.
func Parse(ts TransactionSet) (Document, []ParseError) {
	c, ok := codecs[ts.Code()]
	if !ok {
		return nil, []ParseError{{
			Code:      ErrCodeUnsupportedSet,
			Message:   fmt.Sprintf("transaction set %q is not supported", ts.Code()),
			SegmentID: "ST",
			Severity:  SeverityFatal,
		}}
	}

	errs := ts.Validate()
	doc, perrs := c.parse(ts)
	errs = append(errs, perrs...)
	if doc == nil {
		// Envelope warnings are noise once parsing is fatal; keep only the
		// fatal error so callers see exactly one cause.
		for _, e := range perrs {
			if e.Severity == SeverityFatal {
				return nil, []ParseError{e}
			}
		}
	}
	return doc, errs
}

// Generate converts a typed document back into a transaction set. It is
// lossless for every field the document types define: header first, loops
// in document order, trailer count computed as 2 + data segment count.
// Documents may be passed by value or by pointer.
func Generate(doc Document) (TransactionSet, error) {
	doc = indirect(doc)
	if doc == nil {
		return TransactionSet{}, fmt.Errorf("nil document")
	}
	c, ok := codecs[doc.SetCode()]
	if !ok {
		return TransactionSet{}, fmt.Errorf("transaction set %q is not supported", doc.SetCode())
	}
	return c.generate(doc)
}

// indirect reduces pointer documents to the value forms the codecs
// dispatch on. Nil pointers reduce to a nil document.
func indirect(doc Document) Document {
	switch d := doc.(type) {
	case *PurchaseOrder:
		if d == nil {
			return nil
		}
		return *d
	case *ShipNotice:
		if d == nil {
			return nil
		}
		return *d
	case *FunctionalAck:
		if d == nil {
			return nil
		}
		return *d
	}
	return doc
}
