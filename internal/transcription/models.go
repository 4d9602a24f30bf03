// Package transcription builds gateway requests for speech and visual
// analysis and turns raw model output into timed segments.
package transcription

// TranscriptSegment is a sentence-level slice of a standard transcript with
// synthetic timing. Start and End are seconds from the beginning of the
// media; the timing is an even-cadence estimate, not aligned to the audio.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VisualSegment is one timed unit of a visual analysis: transcribed speech
// plus a description of what is on screen. ThumbnailURL is always null;
// populating it would require a frame extraction service.
type VisualSegment struct {
	ID                string  `json:"id"`
	Timestamp         float64 `json:"timestamp"`
	EndTime           float64 `json:"endTime"`
	Text              string  `json:"text"`
	VisualDescription string  `json:"visualDescription"`
	ThumbnailURL      *string `json:"thumbnailUrl"`
}

// Result is the outcome of a standard transcription
type Result struct {
	Transcript string
	Language   string
	Segments   []TranscriptSegment
}

// VisualResult is the outcome of a visual transcription
type VisualResult struct {
	Segments []VisualSegment
}
