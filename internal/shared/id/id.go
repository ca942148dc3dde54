// Package id provides identifier generation for transactions and segments.
//
// Two formats are in use:
//   - Segment IDs are prefixed ULIDs ("seg_01H..."), k-sortable so trace
//     dumps list segments in creation order
//   - Transaction GUIDs are 16 lowercase hex digits, the width the
//     cross-application header payloads carry on the wire
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Typed IDs
// ============================================================================

// SegmentID identifies a segment within the process
type SegmentID string

// TransactionGUID identifies a transaction across processes
type TransactionGUID string

const (
	SegmentPrefix = "seg"

	// GUIDLength is the number of hex digits in a TransactionGUID
	GUIDLength = 16
)

func (id SegmentID) String() string       { return string(id) }
func (id TransactionGUID) String() string { return string(id) }

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs from an entropy source
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests pass a deterministic reader.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSegmentID generates a new segment ID
func NewSegmentID() SegmentID {
	return SegmentID(Default().GenerateWithPrefix(SegmentPrefix))
}

// ============================================================================
// Transaction GUIDs
// ============================================================================

// NewTransactionGUID returns 16 random lowercase hex digits. The random half of
// a ULID is used if the uuid source fails.
func NewTransactionGUID() TransactionGUID {
	u, err := uuid.NewRandom()
	if err != nil {
		fallback := Default().Generate()
		return TransactionGUID(hex.EncodeToString(fallback[8:16]))
	}
	return TransactionGUID(hex.EncodeToString(u[:GUIDLength/2]))
}

// IsValidGUID reports whether s has the shape of a TransactionGUID
func IsValidGUID(s string) bool {
	if len(s) != GUIDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsValid checks if a string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the creation time from a ULID string
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
