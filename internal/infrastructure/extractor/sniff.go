package extractor

import (
	"bytes"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

var (
	sigPDF       = []byte("%PDF-")
	sigPNG       = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	sigJPEG      = []byte{0xff, 0xd8, 0xff}
	sigTIFFIntel = []byte{'I', 'I', 0x2a, 0x00}
	sigTIFFMoto  = []byte{'M', 'M', 0x00, 0x2a}
)

// Sniff detects the payload format from its leading bytes. Caller supplied
// content types are never consulted.
func Sniff(payload []byte) domain.PayloadFormat {
	switch {
	case bytes.HasPrefix(payload, sigPDF):
		return domain.FormatPDF
	case bytes.HasPrefix(payload, sigPNG):
		return domain.FormatPNG
	case bytes.HasPrefix(payload, sigJPEG):
		return domain.FormatJPEG
	case bytes.HasPrefix(payload, sigTIFFIntel), bytes.HasPrefix(payload, sigTIFFMoto):
		return domain.FormatTIFF
	default:
		return domain.FormatUnknown
	}
}
