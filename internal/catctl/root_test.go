package catctl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

const testKey = "d67afc830dab717fd163bfcb0b8b88423e9a1a3b"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(keyEnv, "")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncodeDecodeID(t *testing.T) {
	encoded, err := run(t, "encode", "id", "33#44", "--key", testKey)
	require.NoError(t, err)

	want, err := cat.NewCodec(testKey).EncodeID("33#44")
	require.NoError(t, err)
	assert.Equal(t, want, encoded)

	decoded, err := run(t, "decode", "id", encoded, "--key", testKey)
	require.NoError(t, err)
	assert.Equal(t, "33#44", decoded)
}

func TestEncodeTxnRoundTrip(t *testing.T) {
	encoded, err := run(t, "encode", "txn", "--guid", "0123456789abcdef", "--trip", "fedcba9876543210", "--path-hash", "0a1b2c3d", "-k", testKey)
	require.NoError(t, err)

	h, err := cat.NewCodec(testKey).DecodeTxnHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, cat.TxnHeader{GUID: "0123456789abcdef", TripID: "fedcba9876543210", PathHash: "0a1b2c3d"}, h)

	out, err := run(t, "decode", "txn", encoded, "-k", testKey, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"TripID": "fedcba9876543210"`)
}

func TestEncodeAppData(t *testing.T) {
	encoded, err := run(t, "encode", "appdata", "--cpid", "55#66", "--name", "WebTransaction/Go/GET /items", "--response-time", "0.25", "-k", testKey)
	require.NoError(t, err)

	a, err := cat.NewCodec(testKey).DecodeAppData(encoded)
	require.NoError(t, err)
	assert.Equal(t, "55#66", a.CrossProcessID)
	assert.Equal(t, "WebTransaction/Go/GET /items", a.TransactionName)
	assert.Equal(t, 0.25, a.ResponseTime)
	assert.Equal(t, int64(-1), a.ContentLength)

	out, err := run(t, "decode", "appdata", encoded, "-k", testKey, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "55#66")
}

func TestPathHash(t *testing.T) {
	out, err := run(t, "pathhash", "My App", "WebTransaction/Go/GET /items")
	require.NoError(t, err)
	assert.Equal(t, cat.PathHash("My App;WebTransaction/Go/GET /items", ""), out)
	assert.Len(t, out, 8)

	seeded, err := run(t, "pathhash", "My App", "WebTransaction/Go/GET /items", "--referring", out)
	require.NoError(t, err)
	assert.NotEqual(t, out, seeded)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing key", []string{"encode", "id", "33#44"}},
		{"invalid cross process id", []string{"encode", "id", "not valid", "-k", testKey}},
		{"unknown header kind", []string{"decode", "cookie", "abc", "-k", testKey}},
		{"malformed value", []string{"decode", "txn", "%%%", "-k", testKey}},
		{"unknown format", []string{"pathhash", "a", "b", "-o", "xml"}},
		{"missing required flag", []string{"encode", "txn", "-k", testKey}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestKeyFromEnvironment(t *testing.T) {
	t.Setenv(keyEnv, testKey)
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"encode", "id", "1#2"})
	require.NoError(t, cmd.Execute())
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}
