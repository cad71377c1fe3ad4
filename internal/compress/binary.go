package compress

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"io"
)

// BinaryEncoder deflates then URL-safe base64 encodes; Decode reverses.
// Reversible and terminal — no stage may run after it in a pipeline.
type BinaryEncoder struct{}

func (BinaryEncoder) Name() string     { return "binary_encoder" }
func (BinaryEncoder) Reversible() bool { return true }

func (BinaryEncoder) Encode(s string) string {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return s
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return s
	}
	if err := w.Close(); err != nil {
		return s
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes())
}

func (BinaryEncoder) Decode(s string) string {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return s
	}
	return string(out)
}
