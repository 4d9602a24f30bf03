package transcription

import (
	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/internal/media"
)

// languageNames maps ISO 639-1 codes to the names used in the language
// instruction. Codes outside the table pass through verbatim so the model
// still sees the hint.
var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"pt": "Portuguese",
	"ru": "Russian",
	"ar": "Arabic",
}

// LanguageName resolves a language code to its display name
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

const standardUserText = "Please transcribe all the speech in this audio/video file. Provide a clean, accurate transcription."

// The example array in the visual system prompt materially affects parse
// success; models anchored on it return bare JSON far more reliably.
const visualSystemPrompt = `You are an expert video analyst that provides both transcription and visual descriptions.

Your task is to analyze the video and provide a structured output with:
1. Transcribed speech from the audio
2. Visual descriptions of what's happening on screen

Output your analysis as a JSON array of segments. Each segment should have:
- "timestamp": number (seconds from start)
- "endTime": number (seconds when segment ends)
- "text": string (transcribed speech, or empty if no speech)
- "visualDescription": string (description of what's visible on screen)

Create segments every 3-5 seconds, or when there's a significant scene change.
Keep visual descriptions concise but informative (1-2 sentences).
Format speech naturally without filler words.

Example output format:
[
  {"timestamp": 0, "endTime": 4, "text": "Hello and welcome to this tutorial.", "visualDescription": "A person sits at a desk with a computer, facing the camera in a well-lit office."},
  {"timestamp": 4, "endTime": 8, "text": "Today we'll learn about video editing.", "visualDescription": "The speaker gestures toward the screen where editing software is visible."}
]

IMPORTANT: Return ONLY the JSON array, no other text.`

const visualUserText = "Analyze this video. Transcribe all speech and describe the visual content for each segment. Return the result as a JSON array."

// BuildStandardRequest constructs the message pair for a standard speech
// transcription: a system instruction (with an optional language hint) and a
// multimodal user message embedding the media as a data URL.
func BuildStandardRequest(b64, mimeType, languageHint string) []ai.ChatMessage {
	languageInstruction := ""
	if languageHint != "" && languageHint != "auto" {
		languageInstruction = "The audio is in " + LanguageName(languageHint) + ". "
	}

	systemPrompt := `You are an expert audio transcriber. Your task is to transcribe speech from audio/video files with high accuracy.
` + languageInstruction + `
Transcribe all spoken words exactly as they are said. Include natural speech patterns, but clean up filler words like "um" and "uh" unless they are significant.
Format the transcription as natural sentences and paragraphs.
If there are multiple speakers, try to indicate speaker changes.
Do not add any commentary, just provide the transcription.`

	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Parts: []ai.ContentPart{
			ai.TextPart(standardUserText),
			ai.MediaPart(media.DataURL(mimeType, b64)),
		}},
	}
}

// BuildVisualRequest constructs the message pair for a combined speech and
// visual analysis that must come back as a JSON array of segments.
func BuildVisualRequest(b64, mimeType string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{Role: "system", Content: visualSystemPrompt},
		{Role: "user", Parts: []ai.ContentPart{
			ai.TextPart(visualUserText),
			ai.MediaPart(media.DataURL(mimeType, b64)),
		}},
	}
}
