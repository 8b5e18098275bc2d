package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Format selects a document encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCBOR     Format = "cbor"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var extensions = map[string]Format{
	".json": FormatJSON,
	".cbor": FormatCBOR,
	".txt":  FormatText,
	".md":   FormatMarkdown,
	".html": FormatHTML,
}

// FormatForPath picks the format from the output file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported output extension %q (want .json, .cbor, .txt, .md or .html)", ext)
}

// ParseFormat accepts the Format names.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCBOR, FormatText, FormatMarkdown, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// Binary reports whether the format is unfit for a terminal.
func (f Format) Binary() bool { return f == FormatCBOR }

// cborEnc uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// document always produces identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("export: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode writes doc to w in format f.
func Encode(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	case FormatCBOR:
		return cborEnc.NewEncoder(w).Encode(doc)
	case FormatText:
		return WriteText(w, doc)
	case FormatMarkdown:
		return WriteMarkdown(w, doc)
	case FormatHTML:
		return WriteHTML(w, doc)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// Marshal is Encode into a byte slice.
func Marshal(doc *Document, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a JSON or CBOR document.
func Decode(r io.Reader, f Format) (*Document, error) {
	var doc Document
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json document: %w", err)
		}
	case FormatCBOR:
		if err := cborDec.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode cbor document: %w", err)
		}
	default:
		return nil, fmt.Errorf("format %q cannot be decoded", f)
	}
	return &doc, nil
}
