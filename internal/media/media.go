// Package media handles base64 payload codecs and MIME type resolution for
// uploaded video and audio files.
package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultChunkSize is the number of base64 characters decoded per chunk.
const DefaultChunkSize = 32768

// ErrDecode wraps any base64 decode failure so callers can distinguish
// malformed payloads from other errors.
var ErrDecode = fmt.Errorf("media: invalid base64 payload")

// mimeTypes maps lowercase file extensions (without dot) to MIME types.
// Unknown extensions resolve to video/mp4, which multimodal gateways accept
// for most containers.
var mimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"m4v":  "video/x-m4v",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
}

// defaultMIMEType is returned for unknown or missing extensions.
const defaultMIMEType = "video/mp4"

// EncodeChunked encodes raw bytes as standard base64. The name mirrors
// DecodeChunked; encoding does not need chunking but keeps the pairing
// obvious at call sites.
func EncodeChunked(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeChunked decodes a base64 string in fixed-size character chunks and
// concatenates the results in order. Large uploads arrive as a single base64
// string; decoding in chunks bounds the working set of the decoder.
//
// chunkSize must be a positive multiple of 4 so that chunk boundaries fall on
// base64 quantum boundaries; otherwise every chunk after the first would be
// misaligned and decode garbage.
func DecodeChunked(s string, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 || chunkSize%4 != 0 {
		return nil, fmt.Errorf("media: chunk size %d is not a positive multiple of 4", chunkSize)
	}

	decoded := make([]byte, 0, base64.StdEncoding.DecodedLen(len(s)))
	for off := 0; off < len(s); off += chunkSize {
		end := off + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunk, err := base64.StdEncoding.DecodeString(s[off:end])
		if err != nil {
			return nil, fmt.Errorf("%w: chunk at offset %d: %v", ErrDecode, off, err)
		}
		decoded = append(decoded, chunk...)
	}
	return decoded, nil
}

// ResolveMIMEType returns the MIME type for a file extension. The extension
// is matched case-insensitively, with or without a leading dot. Unknown
// extensions return video/mp4.
func ResolveMIMEType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return defaultMIMEType
}

// MIMETypeForFilename infers the MIME type from a filename's extension
// (the part after the last dot). Filenames without an extension resolve to
// the default.
func MIMETypeForFilename(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return defaultMIMEType
	}
	return ResolveMIMEType(name[idx+1:])
}

// DataURL builds a data: URL embedding base64 content with the given MIME
// type, the inline media format expected by chat-completions image_url parts.
func DataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
