package document

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// manifest is the on-disk shape of document.toml / document.json.
type manifest struct {
	FormatVersion int         `toml:"format_version" json:"format_version"`
	Name          string      `toml:"name" json:"name"`
	Canvas        canvasSpec  `toml:"canvas" json:"canvas"`
	Layers        []layerSpec `toml:"layers" json:"layers"`
}

type canvasSpec struct {
	Width      int    `toml:"width" json:"width"`
	Height     int    `toml:"height" json:"height"`
	Background string `toml:"background" json:"background"`
	Composite  string `toml:"composite" json:"composite"`
}

type layerSpec struct {
	Name      string         `toml:"name" json:"name"`
	Kind      string         `toml:"kind" json:"kind"`
	Bounds    []float64      `toml:"bounds" json:"bounds"`
	Visible   *bool          `toml:"visible" json:"visible"`
	Opacity   *float64       `toml:"opacity" json:"opacity"`
	Source    string         `toml:"source" json:"source"`
	Fill      string         `toml:"fill" json:"fill"`
	Children  []layerSpec    `toml:"children" json:"children"`
	Content   *contentSpec   `toml:"content" json:"content"`
	Placement *placementSpec `toml:"placement" json:"placement"`
}

type contentSpec struct {
	Width  int    `toml:"width" json:"width"`
	Height int    `toml:"height" json:"height"`
	Source string `toml:"source" json:"source"`
	Linked bool   `toml:"linked" json:"linked"`
}

type placementSpec struct {
	Version int         `toml:"version" json:"version"`
	Quad    [][]float64 `toml:"quad" json:"quad"`
	Warp    *warpSpec   `toml:"warp" json:"warp"`
}

type warpSpec struct {
	Version       int         `toml:"version" json:"version"`
	Enabled       *bool       `toml:"enabled" json:"enabled"`
	Style         string      `toml:"style" json:"style"`
	Rows          int         `toml:"rows" json:"rows"`
	Cols          int         `toml:"cols" json:"cols"`
	Displacements [][]float64 `toml:"displacements" json:"displacements"`
}

// decodeManifest decodes raw as JSON when it looks like a JSON object or
// when the file name says so, and as TOML otherwise. Unknown TOML keys are
// returned as warnings.
func decodeManifest(file string, raw []byte) (*manifest, []string, error) {
	var m manifest
	trimmed := bytes.TrimLeft(raw, " \t\r\n\ufeff")

	if strings.HasSuffix(file, ".json") || (!strings.HasSuffix(file, ".toml") && bytes.HasPrefix(trimmed, []byte("{"))) {
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, nil, jsonError(file, trimmed, err)
		}
		return &m, nil, nil
	}

	md, err := toml.Decode(string(raw), &m)
	if err != nil {
		var perr toml.ParseError
		if stderrors.As(err, &perr) {
			return nil, nil, errors.Wrap(errors.ErrCodeMalformedDocument, err,
				"%s:%d: %s", file, perr.Position.Line, perr.Message)
		}
		return nil, nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s: decode manifest", file)
	}

	var warnings []string
	for _, key := range md.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("%s: unknown key %q ignored", file, key.String()))
	}
	return &m, warnings, nil
}

func jsonError(file string, data []byte, err error) error {
	var offset int64 = -1
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syn):
		offset = syn.Offset
	case stderrors.As(err, &typ):
		offset = typ.Offset
	}
	if offset < 0 {
		return errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s: decode manifest", file)
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line := 1 + bytes.Count(data[:offset], []byte("\n"))
	return errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s:%d: decode manifest", file, line)
}

// parseColor accepts #rgb, #rrggbb, #rrggbbaa and "transparent".
func parseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "transparent" || s == "none" {
		return color.NRGBA{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
