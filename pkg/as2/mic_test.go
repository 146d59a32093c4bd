package as2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMICDeterministic(t *testing.T) {
	data := []byte("ST*850*0001~BEG*00*SA*PO-1001~SE*4*0001~")

	first, err := CalculateMIC(data, "sha256")
	require.NoError(t, err)
	second, err := CalculateMIC(data, "sha256")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasSuffix(first, ", sha256"))
}

func TestCalculateMICAlgorithms(t *testing.T) {
	data := []byte("payload")
	for _, alg := range []string{"sha1", "sha256", "sha512", "md5", "SHA-256"} {
		mic, err := CalculateMIC(data, alg)
		require.NoError(t, err, alg)
		assert.NotEmpty(t, mic)
	}

	_, err := CalculateMIC(data, "crc32")
	assert.Error(t, err)
}

func TestCalculateMICDefaultsToSHA256(t *testing.T) {
	mic, err := CalculateMIC([]byte("x"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(mic, ", sha256"))
}

func TestVerifyMIC(t *testing.T) {
	data := []byte("the quick brown fox")
	mic, err := CalculateMIC(data, "sha256")
	require.NoError(t, err)

	assert.True(t, VerifyMIC(data, mic, "sha256"))
	assert.False(t, VerifyMIC([]byte("the quick brown fax"), mic, "sha256"), "tampered content")
	assert.False(t, VerifyMIC(data, mic[:len(mic)-10]+"A, sha256", "sha256"), "tampered digest")
	assert.False(t, VerifyMIC(data, mic, "sha1"), "algorithm mismatch")
	assert.False(t, VerifyMIC(data, mic, "crc32"), "unknown algorithm")
}
