package parser

import (
	"bytes"
	"path/filepath"
	"strings"

	"budgetledger/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

const bom = "\ufeff"

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SupportedExtensions lists the file extensions accepted for import.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls"}

// DetectFormat picks a decoder from the file name and its leading bytes.
// Container signatures win over the extension, so a text export saved with
// an .xls name is still read as delimited text.
func DetectFormat(name string, head []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return FormatXLS, nil
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt", ".tsv", "", ".xls", ".xlsx":
		if bytes.IndexByte(head, 0) >= 0 {
			return "", core.Parsef("%s is not a text file", name)
		}
		return FormatCSV, nil
	default:
		return "", core.Parsef("unsupported file type %q (expected one of %s)", ext, strings.Join(SupportedExtensions, ", "))
	}
}
