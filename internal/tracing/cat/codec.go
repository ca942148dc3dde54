package cat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/apmtrace/internal/shared/utils"
)

var (
	// ErrMalformed is wrapped by every decode failure.
	ErrMalformed = errors.New("cat: malformed header")
	// ErrNoEncodingKey means the codec cannot obfuscate or deobfuscate.
	ErrNoEncodingKey = errors.New("cat: encoding key not configured")
	// ErrInvalidCrossProcessID means an id failed the syntax check.
	ErrInvalidCrossProcessID = errors.New("cat: invalid cross process id")
)

// crossProcessIDPattern is "<account>#<application>"; a dot separator is also accepted
var crossProcessIDPattern = regexp.MustCompile(`^[0-9A-Za-z]+[#.][0-9A-Za-z]+$`)

// ValidCrossProcessID reports whether id has the expected two-part syntax.
func ValidCrossProcessID(id string) bool {
	return crossProcessIDPattern.MatchString(id)
}

// AccountID returns the account half of a cross process id.
func AccountID(crossProcessID string) (string, bool) {
	if !ValidCrossProcessID(crossProcessID) {
		return "", false
	}
	i := strings.IndexAny(crossProcessID, "#.")
	return crossProcessID[:i], true
}

// TxnHeader is the payload of HeaderTransaction.
type TxnHeader struct {
	GUID     string
	RecordTT bool
	TripID   string
	PathHash string
}

// AppData is the payload of HeaderAppData.
type AppData struct {
	CrossProcessID  string
	TransactionName string
	QueueTime       float64 // seconds
	ResponseTime    float64 // seconds
	ContentLength   int64
	TransactionGUID string
}

// Codec encodes and decodes CAT headers with one encoding key.
type Codec struct {
	key       []byte
	validator *utils.HeaderValidator
}

// NewCodec creates a codec for the given encoding key.
func NewCodec(encodingKey string) *Codec {
	return &Codec{
		key:       []byte(encodingKey),
		validator: utils.DefaultHeaderValidator(),
	}
}

// Enabled reports whether the codec has a key to work with.
func (c *Codec) Enabled() bool {
	return c != nil && len(c.key) > 0
}

// Obfuscate XORs plain with key and base64-encodes the result.
func Obfuscate(plain, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrNoEncodingKey
	}
	out := make([]byte, len(plain))
	for i, b := range plain {
		out[i] = b ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(encoded string, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrNoEncodingKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range raw {
		raw[i] ^= key[i%len(key)]
	}
	return raw, nil
}

// EncodeID obfuscates a cross process id for HeaderID.
func (c *Codec) EncodeID(crossProcessID string) (string, error) {
	if !ValidCrossProcessID(crossProcessID) {
		return "", ErrInvalidCrossProcessID
	}
	return Obfuscate([]byte(crossProcessID), c.key)
}

// DecodeID recovers and validates the cross process id from HeaderID.
func (c *Codec) DecodeID(header string) (string, error) {
	plain, err := c.open(HeaderID, header)
	if err != nil {
		return "", err
	}
	id := string(plain)
	if !ValidCrossProcessID(id) {
		return "", fmt.Errorf("%w: %w", ErrMalformed, ErrInvalidCrossProcessID)
	}
	return id, nil
}

// EncodeTxnHeader obfuscates h for HeaderTransaction.
func (c *Codec) EncodeTxnHeader(h TxnHeader) (string, error) {
	return c.seal([]any{h.GUID, h.RecordTT, h.TripID, h.PathHash})
}

// DecodeTxnHeader parses HeaderTransaction. The trip id and path hash
// elements are optional.
func (c *Codec) DecodeTxnHeader(header string) (h TxnHeader, err error) {
	fields, err := c.openArray(HeaderTransaction, header)
	if err != nil {
		return TxnHeader{}, err
	}
	if len(fields) < 2 {
		return TxnHeader{}, fmt.Errorf("%w: transaction header has %d elements", ErrMalformed, len(fields))
	}

	var ok bool
	if h.GUID, ok = fields[0].(string); !ok {
		return TxnHeader{}, fmt.Errorf("%w: guid is not a string", ErrMalformed)
	}
	if h.RecordTT, ok = fields[1].(bool); !ok {
		return TxnHeader{}, fmt.Errorf("%w: record flag is not a boolean", ErrMalformed)
	}
	if len(fields) > 2 {
		if h.TripID, ok = fields[2].(string); !ok {
			return TxnHeader{}, fmt.Errorf("%w: trip id is not a string", ErrMalformed)
		}
	}
	if len(fields) > 3 {
		if h.PathHash, ok = fields[3].(string); !ok {
			return TxnHeader{}, fmt.Errorf("%w: path hash is not a string", ErrMalformed)
		}
	}
	return h, nil
}

// EncodeAppData obfuscates a for HeaderAppData.
func (c *Codec) EncodeAppData(a AppData) (string, error) {
	return c.seal([]any{
		a.CrossProcessID,
		a.TransactionName,
		a.QueueTime,
		a.ResponseTime,
		a.ContentLength,
		a.TransactionGUID,
		false,
	})
}

// DecodeAppData parses HeaderAppData. Only the shape is checked; callers
// validate the cross process id.
func (c *Codec) DecodeAppData(header string) (AppData, error) {
	fields, err := c.openArray(HeaderAppData, header)
	if err != nil {
		return AppData{}, err
	}
	if len(fields) < 6 {
		return AppData{}, fmt.Errorf("%w: app data has %d elements", ErrMalformed, len(fields))
	}

	var a AppData
	var ok bool
	if a.CrossProcessID, ok = fields[0].(string); !ok {
		return AppData{}, fmt.Errorf("%w: cross process id is not a string", ErrMalformed)
	}
	if a.TransactionName, ok = fields[1].(string); !ok {
		return AppData{}, fmt.Errorf("%w: transaction name is not a string", ErrMalformed)
	}
	if a.QueueTime, ok = number(fields[2]); !ok {
		return AppData{}, fmt.Errorf("%w: queue time is not a number", ErrMalformed)
	}
	if a.ResponseTime, ok = number(fields[3]); !ok {
		return AppData{}, fmt.Errorf("%w: response time is not a number", ErrMalformed)
	}
	length, ok := number(fields[4])
	if !ok || length >= math.MaxInt64 || length < math.MinInt64 {
		return AppData{}, fmt.Errorf("%w: content length is not a number", ErrMalformed)
	}
	a.ContentLength = int64(length)
	if a.TransactionGUID, ok = fields[5].(string); !ok {
		return AppData{}, fmt.Errorf("%w: guid is not a string", ErrMalformed)
	}
	return a, nil
}

func (c *Codec) seal(fields []any) (string, error) {
	if !c.Enabled() {
		return "", ErrNoEncodingKey
	}
	raw, err := sonic.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("cat: failed to marshal header: %w", err)
	}
	return Obfuscate(raw, c.key)
}

func (c *Codec) open(name, header string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNoEncodingKey
	}
	if err := c.validator.Validate(name, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Deobfuscate(header, c.key)
}

func (c *Codec) openArray(name, header string) (fields []any, err error) {
	plain, err := c.open(name, header)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			fields, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if err := sonic.Unmarshal(plain, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fields, nil
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// PathHash computes this application's path hash given the caller's.
func PathHash(appName, referringPathHash string) string {
	seed, _ := utils.ParseHash32(referringPathHash)
	return utils.FormatHash32(utils.DefaultHasher().PathHash(appName, seed))
}
