package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// Key layout for ordered key-value backends:
//
//	S:<metric>\x00<timestamp:8><seq:8> -> <value:8><contact>
//	M:seq                              -> <last seq:8>
var (
	prefixSample = []byte("S:")
	keyMetaSeq   = []byte("M:seq")
)

const keySeparator = 0x00

// makeSampleKey builds the key of a sample. Timestamps are stored as
// nanoseconds offset so that pre-1970 instants still sort correctly.
func makeSampleKey(metric string, ts time.Time, seq uint64) []byte {
	key := make([]byte, 0, len(prefixSample)+len(metric)+1+16)
	key = append(key, prefixSample...)
	key = append(key, metric...)
	key = append(key, keySeparator)
	key = binary.BigEndian.AppendUint64(key, encodeTimestamp(ts))
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

// metricPrefix returns the key prefix of all samples of a metric, or of
// all samples when metric is empty.
func metricPrefix(metric string) []byte {
	if metric == "" {
		return append([]byte(nil), prefixSample...)
	}
	key := make([]byte, 0, len(prefixSample)+len(metric)+1)
	key = append(key, prefixSample...)
	key = append(key, metric...)
	key = append(key, keySeparator)
	return key
}

// timeBound returns the first key at or after ts for a metric.
func timeBound(metric string, ts time.Time) []byte {
	return binary.BigEndian.AppendUint64(metricPrefix(metric), encodeTimestamp(ts))
}

func makeSampleValue(s types.Sample) []byte {
	value := make([]byte, 8, 8+len(s.ContactID))
	binary.BigEndian.PutUint64(value, math.Float64bits(s.Value))
	return append(value, s.ContactID...)
}

// decodeRecord parses a sample key and value.
func decodeRecord(key, value []byte) (record, error) {
	if !bytes.HasPrefix(key, prefixSample) {
		return record{}, fmt.Errorf("%w: bad prefix", ErrCorruptRecord)
	}
	rest := key[len(prefixSample):]
	sep := bytes.IndexByte(rest, keySeparator)
	if sep < 0 || len(rest)-sep-1 != 16 {
		return record{}, fmt.Errorf("%w: bad key length", ErrCorruptRecord)
	}
	if len(value) < 8 {
		return record{}, fmt.Errorf("%w: bad value length", ErrCorruptRecord)
	}

	tail := rest[sep+1:]
	return record{
		sample: types.Sample{
			Metric:    string(rest[:sep]),
			Timestamp: decodeTimestamp(binary.BigEndian.Uint64(tail[:8])),
			Value:     math.Float64frombits(binary.BigEndian.Uint64(value[:8])),
			ContactID: string(value[8:]),
		},
		seq: binary.BigEndian.Uint64(tail[8:]),
	}, nil
}

// encodeTimestamp flips the sign bit so signed nanoseconds sort as
// unsigned big-endian bytes.
func encodeTimestamp(ts time.Time) uint64 {
	return uint64(ts.UnixNano()) ^ (1 << 63)
}

func decodeTimestamp(v uint64) time.Time {
	return time.Unix(0, int64(v^(1<<63))).UTC()
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeUint64(data []byte) uint64 {
	if len(data) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}
