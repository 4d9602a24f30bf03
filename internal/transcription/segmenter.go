package transcription

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultSegmentSeconds is the synthetic duration of each standard segment.
const DefaultSegmentSeconds = 5

// DefaultFallbackWindowSeconds bounds the single fallback segment emitted
// when a visual response cannot be parsed as JSON.
const DefaultFallbackWindowSeconds = 30

// SegmentTranscript splits a transcript into sentence units and assigns each
// a fixed-duration bucket: unit i spans [i*secs, (i+1)*secs). The timing is
// an even-cadence approximation; the gateway returns no word timing, so this
// is the best available alignment.
//
// Units end at a run of sentence terminators (. ! ?), terminators retained.
// Text without any terminator becomes a single unit. Empty units after
// trimming are dropped.
func SegmentTranscript(text string, secs int) []TranscriptSegment {
	if secs <= 0 {
		secs = DefaultSegmentSeconds
	}

	units := splitSentences(text)

	segments := make([]TranscriptSegment, 0, len(units))
	for _, unit := range units {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		i := float64(len(segments))
		segments = append(segments, TranscriptSegment{
			Text:  unit,
			Start: i * float64(secs),
			End:   (i + 1) * float64(secs),
		})
	}
	return segments
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// splitSentences yields maximal runs of non-terminator characters followed
// by their run of terminators. Trailing text without a terminator is
// discarded unless nothing matched at all, in which case the whole input is
// one unit.
func splitSentences(text string) []string {
	var units []string
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		// Consume the sentence body
		for i < len(runes) && !isTerminator(runes[i]) {
			i++
		}
		if i == len(runes) {
			break
		}
		// Consume the terminator run
		for i < len(runes) && isTerminator(runes[i]) {
			i++
		}
		units = append(units, string(runes[start:i]))
		start = i
	}
	if len(units) == 0 {
		return []string{text}
	}
	return units
}

// visualElement accepts arbitrary JSON for each field so that one malformed
// field does not reject the whole array.
type visualElement struct {
	Timestamp         json.RawMessage `json:"timestamp"`
	EndTime           json.RawMessage `json:"endTime"`
	Text              json.RawMessage `json:"text"`
	VisualDescription json.RawMessage `json:"visualDescription"`
}

// parseSeq disambiguates segment id nonces between parses that land in the
// same millisecond.
var parseSeq atomic.Uint64

// ParseVisualSegments converts raw model output into visual segments. It is
// a total function: any input yields at least one segment.
//
// The span from the first '[' to the last ']' is parsed as a JSON array;
// elements get per-index timing defaults (i*secs, (i+1)*secs) when fields
// are missing or non-numeric, and a fresh unique id. Elements that are not
// JSON objects degrade individually to full per-index defaults; only a span
// that is not a JSON array at all triggers the fallback, where the whole
// response becomes a single segment over [0, fallbackSecs) with markdown
// code fences stripped.
//
// Segments are emitted in provider order and never re-sorted; overlapping or
// out-of-order timestamps from the model are passed through as-is.
func ParseVisualSegments(content string, secs, fallbackSecs int) []VisualSegment {
	if secs <= 0 {
		secs = DefaultSegmentSeconds
	}
	if fallbackSecs <= 0 {
		fallbackSecs = DefaultFallbackWindowSeconds
	}

	nonce := fmt.Sprintf("%d%d", time.Now().UnixMilli(), parseSeq.Add(1))

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		var raws []json.RawMessage
		if err := json.Unmarshal([]byte(content[start:end+1]), &raws); err == nil {
			segments := make([]VisualSegment, len(raws))
			for i, raw := range raws {
				// One bad element never rejects the rest: a non-object
				// decodes to nothing and takes full per-index defaults
				var el visualElement
				_ = json.Unmarshal(raw, &el)
				segments[i] = VisualSegment{
					ID:                fmt.Sprintf("seg-%d-%s", i, nonce),
					Timestamp:         numberOr(el.Timestamp, float64(i*secs)),
					EndTime:           numberOr(el.EndTime, float64((i+1)*secs)),
					Text:              stringOr(el.Text, ""),
					VisualDescription: stringOr(el.VisualDescription, ""),
				}
			}
			return segments
		}
	}

	// Fallback: the whole response as one segment
	text := strings.NewReplacer("```json", "", "```", "").Replace(content)
	return []VisualSegment{{
		ID:                fmt.Sprintf("seg-0-%s", nonce),
		Timestamp:         0,
		EndTime:           float64(fallbackSecs),
		Text:              strings.TrimSpace(text),
		VisualDescription: "Video content analyzed",
	}}
}

func numberOr(raw json.RawMessage, fallback float64) float64 {
	if len(raw) == 0 {
		return fallback
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	return n
}

func stringOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	return s
}
