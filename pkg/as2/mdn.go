package as2

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// MDN is a message disposition notification: the AS2 receipt confirming
// receipt and integrity of a transmitted document.
type MDN struct {
	// OriginalMessageID correlates the receipt to the outbound message.
	OriginalMessageID string
	// Disposition is the machine-readable outcome, e.g.
	// "automatic-action/MDN-sent-automatically; processed".
	Disposition string
	// ReceivedMIC is the Received-Content-MIC reported by the receiver,
	// in the same "digest, algorithm" form CalculateMIC produces.
	ReceivedMIC string
	// ReportingUA identifies the receiving agent.
	ReportingUA string
	// Text is the human-readable first part of the report.
	Text string
}

const dispositionProcessed = "automatic-action/MDN-sent-automatically; processed"

// Processed reports whether the disposition indicates successful
// processing without error or warning modifiers.
func (m *MDN) Processed() bool {
	parts := strings.SplitN(m.Disposition, ";", 2)
	if len(parts) != 2 {
		return false
	}
	return strings.TrimSpace(strings.ToLower(parts[1])) == "processed"
}

// ContentTypeMDN is the outer content type of a serialized MDN, minus the
// boundary parameter.
const ContentTypeMDN = "multipart/report"

// Serialize renders the MDN as a multipart/report body. It returns the
// body and the full Content-Type header value including the boundary.
func (m *MDN) Serialize() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	text := m.Text
	if text == "" {
		text = fmt.Sprintf("The message with ID %s was processed.", m.OriginalMessageID)
	}
	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, "", fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(part, text); err != nil {
		return nil, "", fmt.Errorf("writing text part: %w", err)
	}

	dispHeader := textproto.MIMEHeader{}
	dispHeader.Set("Content-Type", "message/disposition-notification")
	part, err = w.CreatePart(dispHeader)
	if err != nil {
		return nil, "", fmt.Errorf("creating disposition part: %w", err)
	}
	var fields strings.Builder
	fmt.Fprintf(&fields, "Reporting-UA: %s\r\n", m.ReportingUA)
	fmt.Fprintf(&fields, "Original-Message-ID: %s\r\n", m.OriginalMessageID)
	fmt.Fprintf(&fields, "Disposition: %s\r\n", m.Disposition)
	if m.ReceivedMIC != "" {
		fmt.Fprintf(&fields, "Received-Content-MIC: %s\r\n", m.ReceivedMIC)
	}
	if _, err := io.WriteString(part, fields.String()); err != nil {
		return nil, "", fmt.Errorf("writing disposition part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	contentType := fmt.Sprintf("%s; report-type=disposition-notification; boundary=%q",
		ContentTypeMDN, w.Boundary())
	return buf.Bytes(), contentType, nil
}

// IsMDNContentType reports whether an inbound Content-Type announces an
// MDN rather than a business document.
func IsMDNContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == ContentTypeMDN || mediaType == "message/disposition-notification"
}

// ParseMDN parses a multipart/report body into an MDN. The boundary is
// taken from the Content-Type parameters, never guessed from the body, so
// payloads containing boundary-like byte runs cannot confuse the parser.
func ParseMDN(body []byte, contentType string) (*MDN, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parsing MDN content type: %w", err)
	}

	// A bare disposition-notification part without the multipart wrapper
	// is accepted for interoperability.
	if mediaType == "message/disposition-notification" {
		return parseDispositionFields(body)
	}
	if mediaType != ContentTypeMDN {
		return nil, fmt.Errorf("unexpected MDN media type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, &ValidationError{Field: "Content-Type", Message: "multipart/report without boundary"}
	}

	mdn := &MDN{}
	found := false
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading MDN part: %w", err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("reading MDN part body: %w", err)
		}
		switch partType {
		case "message/disposition-notification":
			parsed, err := parseDispositionFields(data)
			if err != nil {
				return nil, err
			}
			parsed.Text = mdn.Text
			mdn = parsed
			found = true
		case "text/plain":
			mdn.Text = strings.TrimSpace(string(data))
		}
	}
	if !found {
		return nil, &ValidationError{Field: "body", Message: "report carries no disposition-notification part"}
	}
	return mdn, nil
}

// parseDispositionFields reads the RFC 3798 machine-readable fields.
func parseDispositionFields(data []byte) (*MDN, error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(append(data, '\r', '\n', '\r', '\n'))))
	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing disposition fields: %w", err)
	}
	return &MDN{
		OriginalMessageID: header.Get("Original-Message-Id"),
		Disposition:       header.Get("Disposition"),
		ReceivedMIC:       header.Get("Received-Content-Mic"),
		ReportingUA:       header.Get("Reporting-Ua"),
	}, nil
}
