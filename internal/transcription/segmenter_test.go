package transcription

import (
	"strings"
	"testing"
)

func TestSegmentTranscriptSentences(t *testing.T) {
	segments := SegmentTranscript("Hello there. How are you? Fine!", 5)
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}

	wantTexts := []string{"Hello there.", "How are you?", "Fine!"}
	wantStarts := []float64{0, 5, 10}
	for i, seg := range segments {
		if seg.Text != wantTexts[i] {
			t.Errorf("segment %d text = %q, want %q", i, seg.Text, wantTexts[i])
		}
		if seg.Start != wantStarts[i] {
			t.Errorf("segment %d start = %v, want %v", i, seg.Start, wantStarts[i])
		}
		if seg.End != wantStarts[i]+5 {
			t.Errorf("segment %d end = %v, want %v", i, seg.End, wantStarts[i]+5)
		}
	}
}

func TestSegmentTranscriptNoTerminator(t *testing.T) {
	segments := SegmentTranscript("a transcript with no sentence terminators at all", 5)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].Start != 0 || segments[0].End != 5 {
		t.Errorf("segment spans [%v, %v), want [0, 5)", segments[0].Start, segments[0].End)
	}
}

func TestSegmentTranscriptEllipsisAndRuns(t *testing.T) {
	// Terminator runs stay attached to their sentence
	segments := SegmentTranscript("Wait... What?! Done.", 5)
	wantTexts := []string{"Wait...", "What?!", "Done."}
	if len(segments) != len(wantTexts) {
		t.Fatalf("got %d segments, want %d", len(segments), len(wantTexts))
	}
	for i, seg := range segments {
		if seg.Text != wantTexts[i] {
			t.Errorf("segment %d text = %q, want %q", i, seg.Text, wantTexts[i])
		}
	}
}

func TestSegmentTranscriptDropsEmptyUnits(t *testing.T) {
	segments := SegmentTranscript("First.   . Second.", 5)
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			t.Errorf("empty segment survived: %+v", seg)
		}
	}
	// Bucket indices must be contiguous after dropping empties
	for i, seg := range segments {
		if seg.Start != float64(i*5) {
			t.Errorf("segment %d start = %v, want %v", i, seg.Start, i*5)
		}
	}
}

func TestSegmentTranscriptEmptyInput(t *testing.T) {
	if segments := SegmentTranscript("", 5); len(segments) != 0 {
		t.Errorf("got %d segments for empty input, want 0", len(segments))
	}
	if segments := SegmentTranscript("   \n  ", 5); len(segments) != 0 {
		t.Errorf("got %d segments for whitespace input, want 0", len(segments))
	}
}

func TestParseVisualSegmentsJSON(t *testing.T) {
	content := "```json\n[\n" +
		`{"timestamp": 0, "endTime": 4, "text": "Hello.", "visualDescription": "A desk."},` + "\n" +
		`{"timestamp": 4, "endTime": 8, "text": "World.", "visualDescription": "A screen."}` + "\n]\n```"

	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "Hello." || segments[0].VisualDescription != "A desk." {
		t.Errorf("segment 0 = %+v", segments[0])
	}
	if segments[1].Timestamp != 4 || segments[1].EndTime != 8 {
		t.Errorf("segment 1 timing = [%v, %v), want [4, 8)", segments[1].Timestamp, segments[1].EndTime)
	}
	for i, seg := range segments {
		if !strings.HasPrefix(seg.ID, "seg-") {
			t.Errorf("segment %d id = %q", i, seg.ID)
		}
		if seg.ThumbnailURL != nil {
			t.Errorf("segment %d has a thumbnail URL", i)
		}
	}
	if segments[0].ID == segments[1].ID {
		t.Error("segment ids are not unique")
	}
}

func TestParseVisualSegmentsDefaults(t *testing.T) {
	content := `[{"text": "a"}, {"timestamp": "soon", "endTime": null, "visualDescription": 7}]`
	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Timestamp != 0 || segments[0].EndTime != 5 {
		t.Errorf("segment 0 timing = [%v, %v), want [0, 5)", segments[0].Timestamp, segments[0].EndTime)
	}
	// Non-numeric timing and non-string fields fall back per index
	if segments[1].Timestamp != 5 || segments[1].EndTime != 10 {
		t.Errorf("segment 1 timing = [%v, %v), want [5, 10)", segments[1].Timestamp, segments[1].EndTime)
	}
	if segments[1].Text != "" || segments[1].VisualDescription != "" {
		t.Errorf("segment 1 fields = %+v, want empty strings", segments[1])
	}
}

func TestParseVisualSegmentsNonObjectElements(t *testing.T) {
	// A valid array of non-objects still yields one segment per element
	segments := ParseVisualSegments("[1, 2]", 5, 30)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	for i, seg := range segments {
		if seg.Timestamp != float64(i*5) || seg.EndTime != float64((i+1)*5) {
			t.Errorf("segment %d timing = [%v, %v), want [%d, %d)", i, seg.Timestamp, seg.EndTime, i*5, (i+1)*5)
		}
		if seg.Text != "" || seg.VisualDescription != "" {
			t.Errorf("segment %d fields = %+v, want empty strings", i, seg)
		}
	}
}

func TestParseVisualSegmentsMixedElements(t *testing.T) {
	// One stray element must not drag valid neighbors into the fallback
	content := `[{"timestamp": 2, "endTime": 4, "text": "a", "visualDescription": "d"}, "note"]`
	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Timestamp != 2 || segments[0].EndTime != 4 || segments[0].Text != "a" {
		t.Errorf("segment 0 = %+v, want parsed values", segments[0])
	}
	if segments[1].Timestamp != 5 || segments[1].EndTime != 10 {
		t.Errorf("segment 1 timing = [%v, %v), want [5, 10)", segments[1].Timestamp, segments[1].EndTime)
	}
	if segments[1].Text != "" || segments[1].VisualDescription != "" {
		t.Errorf("segment 1 fields = %+v, want empty strings", segments[1])
	}
}

func TestParseVisualSegmentsUniqueIDsAcrossParses(t *testing.T) {
	content := `[{"timestamp": 1, "endTime": 6, "text": "x"}]`
	a := ParseVisualSegments(content, 5, 30)
	b := ParseVisualSegments(content, 5, 30)
	if a[0].ID == b[0].ID {
		t.Errorf("consecutive parses produced the same id %q", a[0].ID)
	}
}

func TestParseVisualSegmentsProseFallback(t *testing.T) {
	content := "```json\nThe video shows a person talking about Go.\n```"
	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	seg := segments[0]
	if seg.Timestamp != 0 || seg.EndTime != 30 {
		t.Errorf("fallback spans [%v, %v), want [0, 30)", seg.Timestamp, seg.EndTime)
	}
	if seg.Text != "The video shows a person talking about Go." {
		t.Errorf("fallback text = %q (fences should be stripped)", seg.Text)
	}
	if seg.VisualDescription != "Video content analyzed" {
		t.Errorf("fallback description = %q", seg.VisualDescription)
	}
}

func TestParseVisualSegmentsMalformedArrayFallsBack(t *testing.T) {
	content := `[{"timestamp": 0, "endTime": 4, "text": "broken`
	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].VisualDescription != "Video content analyzed" {
		t.Errorf("expected fallback segment, got %+v", segments[0])
	}
}

func TestParseVisualSegmentsOrderPreserved(t *testing.T) {
	// Out-of-order provider timestamps are passed through untouched
	content := `[{"timestamp": 10, "endTime": 15, "text": "b"}, {"timestamp": 0, "endTime": 5, "text": "a"}]`
	segments := ParseVisualSegments(content, 5, 30)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "b" || segments[1].Text != "a" {
		t.Error("segments were re-ordered")
	}
}

func TestParseVisualSegmentsIdempotentModuloIDs(t *testing.T) {
	content := `[{"timestamp": 1, "endTime": 6, "text": "x", "visualDescription": "y"}]`
	a := ParseVisualSegments(content, 5, 30)
	b := ParseVisualSegments(content, 5, 30)
	if len(a) != len(b) {
		t.Fatalf("segment counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		a[i].ID, b[i].ID = "", ""
		if a[i] != b[i] {
			t.Errorf("segment %d differs between parses: %+v vs %+v", i, a[i], b[i])
		}
	}
}
