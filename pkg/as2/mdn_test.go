package as2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMDNSerializeParseRoundTrip(t *testing.T) {
	original := &MDN{
		OriginalMessageID: "<abc-123@edi.example.com>",
		Disposition:       dispositionProcessed,
		ReceivedMIC:       "q2hlY2s=, sha256",
		ReportingUA:       "go-edi/1.0",
		Text:              "The message was processed.",
	}

	body, contentType, err := original.Serialize()
	require.NoError(t, err)
	assert.True(t, IsMDNContentType(contentType))

	parsed, err := ParseMDN(body, contentType)
	require.NoError(t, err)
	assert.Equal(t, original.OriginalMessageID, parsed.OriginalMessageID)
	assert.Equal(t, original.Disposition, parsed.Disposition)
	assert.Equal(t, original.ReceivedMIC, parsed.ReceivedMIC)
	assert.Equal(t, original.ReportingUA, parsed.ReportingUA)
	assert.Equal(t, original.Text, parsed.Text)
	assert.True(t, parsed.Processed())
}

func TestParseMDNBareDispositionPart(t *testing.T) {
	raw := []byte("Reporting-UA: partner-agent/2.0\r\n" +
		"Original-Message-ID: <m1@partner.example>\r\n" +
		"Disposition: automatic-action/MDN-sent-automatically; processed\r\n" +
		"Received-Content-MIC: ZGlnZXN0, sha256\r\n")

	mdn, err := ParseMDN(raw, "message/disposition-notification")
	require.NoError(t, err)
	assert.Equal(t, "<m1@partner.example>", mdn.OriginalMessageID)
	assert.True(t, mdn.Processed())
}

func TestParseMDNFailureDisposition(t *testing.T) {
	mdn := &MDN{
		OriginalMessageID: "<m2@x>",
		Disposition:       "automatic-action/MDN-sent-automatically; processed/error: authentication-failed",
	}
	body, contentType, err := mdn.Serialize()
	require.NoError(t, err)

	parsed, err := ParseMDN(body, contentType)
	require.NoError(t, err)
	assert.False(t, parsed.Processed())
}

func TestParseMDNBoundaryCollisionSafe(t *testing.T) {
	// A text part containing boundary-like byte runs must not confuse the
	// parser: the boundary comes from the Content-Type, not a body scan.
	mdn := &MDN{
		OriginalMessageID: "<m3@x>",
		Disposition:       dispositionProcessed,
		Text:              "looks like a boundary: --deadbeef--\r\n--deadbeef",
	}
	body, contentType, err := mdn.Serialize()
	require.NoError(t, err)

	parsed, err := ParseMDN(body, contentType)
	require.NoError(t, err)
	assert.Equal(t, "<m3@x>", parsed.OriginalMessageID)
}

func TestParseMDNRejectsMissingBoundary(t *testing.T) {
	_, err := ParseMDN([]byte("x"), "multipart/report")
	assert.Error(t, err)
}

func TestParseMDNRejectsWrongMediaType(t *testing.T) {
	_, err := ParseMDN([]byte("x"), "application/edi-x12")
	assert.Error(t, err)
}

func TestIsMDNContentType(t *testing.T) {
	assert.True(t, IsMDNContentType(`multipart/report; report-type=disposition-notification; boundary="b"`))
	assert.True(t, IsMDNContentType("message/disposition-notification"))
	assert.False(t, IsMDNContentType("application/edi-x12"))
	assert.False(t, IsMDNContentType(""))
}
