package cat

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "d67afc830dab717fd163bfcb0b8b88423e9a1a3b"

func TestObfuscateRoundTrip(t *testing.T) {
	plain := []byte(`["a",1]`)

	enc, err := Obfuscate(plain, []byte(testKey))
	require.NoError(t, err)
	assert.NotEqual(t, string(plain), enc)

	dec, err := Deobfuscate(enc, []byte(testKey))
	require.NoError(t, err)
	assert.Equal(t, plain, dec)

	_, err = Obfuscate(plain, nil)
	assert.ErrorIs(t, err, ErrNoEncodingKey)
	_, err = Deobfuscate(enc, nil)
	assert.ErrorIs(t, err, ErrNoEncodingKey)
	_, err = Deobfuscate("%%%", []byte(testKey))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidCrossProcessID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"1#2", true},
		{"12345#67890", true},
		{"1.2", true},
		{"abc#def", true},
		{"", false},
		{"1#", false},
		{"#2", false},
		{"12", false},
		{"1#2#3", false},
		{"1 #2", false},
		{"not-valid", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidCrossProcessID(tt.id))
		})
	}
}

func TestAccountID(t *testing.T) {
	acct, ok := AccountID("123#456")
	require.True(t, ok)
	assert.Equal(t, "123", acct)

	acct, ok = AccountID("77.8")
	require.True(t, ok)
	assert.Equal(t, "77", acct)

	_, ok = AccountID("bogus")
	assert.False(t, ok)
}

func TestIDRoundTrip(t *testing.T) {
	c := NewCodec(testKey)

	enc, err := c.EncodeID("1#2")
	require.NoError(t, err)

	id, err := c.DecodeID(enc)
	require.NoError(t, err)
	assert.Equal(t, "1#2", id)

	_, err = c.EncodeID("nope")
	assert.ErrorIs(t, err, ErrInvalidCrossProcessID)

	bad, err := Obfuscate([]byte("nope"), []byte(testKey))
	require.NoError(t, err)
	_, err = c.DecodeID(bad)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTxnHeaderRoundTrip(t *testing.T) {
	c := NewCodec(testKey)
	in := TxnHeader{GUID: "0123456789abcdef", TripID: "fedcba9876543210", PathHash: "1a2b3c4d"}

	enc, err := c.EncodeTxnHeader(in)
	require.NoError(t, err)

	out, err := c.DecodeTxnHeader(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeTxnHeaderOptionalElements(t *testing.T) {
	c := NewCodec(testKey)

	enc, err := Obfuscate([]byte(`["0123456789abcdef",false]`), []byte(testKey))
	require.NoError(t, err)

	out, err := c.DecodeTxnHeader(enc)
	require.NoError(t, err)
	assert.Equal(t, TxnHeader{GUID: "0123456789abcdef"}, out)
}

func TestAppDataRoundTrip(t *testing.T) {
	c := NewCodec(testKey)
	in := AppData{
		CrossProcessID:  "1#2",
		TransactionName: "WebTransaction/Go/users",
		QueueTime:       0.01,
		ResponseTime:    0.25,
		ContentLength:   512,
		TransactionGUID: "fedcba9876543210",
	}

	enc, err := c.EncodeAppData(in)
	require.NoError(t, err)

	out, err := c.DecodeAppData(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeMalformedPayloads(t *testing.T) {
	c := NewCodec(testKey)

	payloads := map[string]string{
		"not json":        `hello`,
		"object":          `{"a":1}`,
		"null":            `null`,
		"short":           `["1#2","name",0,0,1]`,
		"wrong cpid type": `[1,"name",0,0,1,"guid"]`,
		"wrong name":      `["1#2",false,0,0,1,"guid"]`,
		"string queue":    `["1#2","name","0",0,1,"guid"]`,
		"string response": `["1#2","name",0,"0",1,"guid"]`,
		"string length":   `["1#2","name",0,0,"1","guid"]`,
		"numeric guid":    `["1#2","name",0,0,1,7]`,
		"huge length":     `["1#2","name",0,0,1e300,"guid"]`,
		"length 2^63":     `["1#2","name",0,0,9223372036854775808,"guid"]`,
		"truncated":       `["1#2","name",0,`,
	}

	for name, raw := range payloads {
		t.Run(name, func(t *testing.T) {
			enc, err := Obfuscate([]byte(raw), []byte(testKey))
			require.NoError(t, err)

			_, err = c.DecodeAppData(enc)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	txnPayloads := []string{`[]`, `["guid"]`, `[1,false]`, `["guid","no"]`, `["guid",false,3]`, `["guid",false,"trip",4]`}
	for _, raw := range txnPayloads {
		enc, err := Obfuscate([]byte(raw), []byte(testKey))
		require.NoError(t, err)
		_, err = c.DecodeTxnHeader(enc)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestDecodeRejectsOversizedAndEmpty(t *testing.T) {
	c := NewCodec(testKey)

	_, err := c.DecodeAppData("")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.DecodeAppData(strings.Repeat("A", 5000))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodecWithoutKey(t *testing.T) {
	c := NewCodec("")
	assert.False(t, c.Enabled())

	_, err := c.EncodeAppData(AppData{})
	assert.True(t, errors.Is(err, ErrNoEncodingKey))

	_, err = c.DecodeAppData("anything")
	assert.True(t, errors.Is(err, ErrNoEncodingKey))

	var nilCodec *Codec
	assert.False(t, nilCodec.Enabled())
}

func TestDecodeIsTotal(t *testing.T) {
	c := NewCodec(testKey)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		buf := make([]byte, rng.Intn(96))
		rng.Read(buf)

		inputs := []string{string(buf)}
		if enc, err := Obfuscate(buf, []byte(testKey)); err == nil {
			inputs = append(inputs, enc)
		}

		for _, in := range inputs {
			assert.NotPanics(t, func() {
				a, err := c.DecodeAppData(in)
				if err != nil {
					assert.Equal(t, AppData{}, a)
				}
				_, _ = c.DecodeTxnHeader(in)
				_, _ = c.DecodeID(in)
			})
		}
	}
}

func TestPathHash(t *testing.T) {
	first := PathHash("test app", "")
	assert.Len(t, first, 8)
	assert.Equal(t, first, PathHash("test app", "garbage"))
	assert.Equal(t, first, PathHash("test app", "0"))

	second := PathHash("other app", first)
	assert.Len(t, second, 8)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, PathHash("other app", first))
}
