package metrics

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
)

// maxPayloadSize bounds DecodePayload's decompressed output
const maxPayloadSize = 32 * 1024 * 1024

// PayloadEntry is the wire form of one metric bucket.
type PayloadEntry struct {
	Name             string  `json:"name"`
	Scope            string  `json:"scope,omitempty"`
	CallCount        int64   `json:"call_count"`
	TotalSeconds     float64 `json:"total_call_time"`
	ExclusiveSeconds float64 `json:"total_exclusive_time"`
	MinSeconds       float64 `json:"min_call_time"`
	MaxSeconds       float64 `json:"max_call_time"`
	SumSquares       float64 `json:"sum_of_squares"`
}

// Payload is a harvested metric set.
type Payload struct {
	AppName string         `json:"app_name"`
	Start   int64          `json:"start_unix"`
	End     int64          `json:"end_unix"`
	Metrics []PayloadEntry `json:"metrics"`
}

// NewPayload converts a snapshot into a payload sorted by name then scope.
func NewPayload(appName string, start, end time.Time, snapshot map[Key]Stats) Payload {
	entries := make([]PayloadEntry, 0, len(snapshot))
	for k, s := range snapshot {
		entries = append(entries, PayloadEntry{
			Name:             k.Name,
			Scope:            k.Scope,
			CallCount:        s.CallCount,
			TotalSeconds:     s.Total.Seconds(),
			ExclusiveSeconds: s.Exclusive.Seconds(),
			MinSeconds:       s.Min.Seconds(),
			MaxSeconds:       s.Max.Seconds(),
			SumSquares:       s.SumSquares,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Scope < entries[j].Scope
	})

	return Payload{
		AppName: appName,
		Start:   start.Unix(),
		End:     end.Unix(),
		Metrics: entries,
	}
}

// EncodePayload serializes p as gzip-compressed JSON.
func EncodePayload(p Payload) ([]byte, error) {
	raw, err := sonic.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePayload reverses EncodePayload.
func DecodePayload(data []byte) (Payload, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return Payload{}, fmt.Errorf("failed to open payload: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxPayloadSize))
	if err != nil {
		return Payload{}, fmt.Errorf("failed to decompress payload: %w", err)
	}

	var p Payload
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p, nil
}
