package metric

import (
	"math"
	"sort"
	"time"

	"github.com/thomasdelaet/kad-telemetry/types"
)

// LatencyReference is the mean latency, in milliseconds, scored 0.5.
const LatencyReference = 100.0

// Summary aggregates a series of samples.
type Summary struct {
	Count int
	Mean  float64
	Min   float64
	Max   float64

	// First and Last are the values of the earliest and latest samples.
	First float64
	Last  float64

	Since time.Time
	Until time.Time
}

// Summarize aggregates samples. Samples need not be ordered.
func Summarize(samples []types.Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(samples),
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
	}

	sum := 0.0
	for i, sample := range samples {
		sum += sample.Value
		s.Min = math.Min(s.Min, sample.Value)
		s.Max = math.Max(s.Max, sample.Value)

		if i == 0 || sample.Timestamp.Before(s.Since) {
			s.Since = sample.Timestamp
			s.First = sample.Value
		}
		if i == 0 || !sample.Timestamp.Before(s.Until) {
			s.Until = sample.Timestamp
			s.Last = sample.Value
		}
	}
	s.Mean = sum / float64(len(samples))
	return s
}

// SummarizeByContact aggregates samples per contact key.
func SummarizeByContact(samples []types.Sample) map[string]Summary {
	groups := make(map[string][]types.Sample)
	for _, sample := range samples {
		groups[sample.ContactID] = append(groups[sample.ContactID], sample)
	}

	out := make(map[string]Summary, len(groups))
	for contact, group := range groups {
		out[contact] = Summarize(group)
	}
	return out
}

// Score maps a summary of the named metric into [0, 1], higher is better.
// Latency scores LatencyReference/(LatencyReference+mean); ratio metrics
// score their mean. Unknown metrics and empty summaries score 0.
func Score(name string, s Summary) float64 {
	if s.Count == 0 {
		return 0
	}

	switch name {
	case LatencyName:
		if s.Mean <= 0 {
			return 1
		}
		return LatencyReference / (LatencyReference + s.Mean)
	case AvailabilityName, ReliabilityName:
		return clamp(s.Mean)
	default:
		return 0
	}
}

// RankContacts orders contact keys by descending score for a metric.
func RankContacts(name string, byContact map[string]Summary) []string {
	keys := make([]string, 0, len(byContact))
	for k := range byContact {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		si, sj := Score(name, byContact[keys[i]]), Score(name, byContact[keys[j]])
		if si != sj {
			return si > sj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
