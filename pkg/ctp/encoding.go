package ctp

import (
	"bytes"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// DecodeText converts a GB18030 byte field from the engine into UTF-8.
// Fields are fixed-width and NUL-padded on the wire, so decoding stops at the
// first NUL. Undecodable input falls back to the raw bytes as a string rather
// than failing the callback.
func DecodeText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) == 0 {
		return ""
	}
	out, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// EncodeText converts UTF-8 into GB18030 bytes for fields sent to the engine.
func EncodeText(s string) []byte {
	if s == "" {
		return nil
	}
	out, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
