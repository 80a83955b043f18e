package fiducial

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// chilitagsHeader opens every OpenCV FileStorage document. It is not a valid YAML directive,
// so it is written and stripped by hand.
const chilitagsHeader = "%YAML:1.0\n"

// LayoutParams describes a grid of square markers, in millimeters.
type LayoutParams struct {
	FirstTagID     int
	Count          int
	PerLine        int
	Size           int
	Padding        int
	FirstX         int
	FirstY         int
	RotationDegree [3]int
}

// DefaultLayoutParams describes the 3x5 grid of tags 700 to 714 printed on the sandtray.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		FirstTagID:     700,
		Count:          15,
		PerLine:        5,
		Size:           80,
		Padding:        20,
		FirstX:         60,
		FirstY:         25,
		RotationDegree: [3]int{180, 0, 0},
	}
}

// A Marker is one tag of the layout, placed relative to the sandtray origin.
type Marker struct {
	TagID       int
	SizeMM      int
	Translation [3]int
	Rotation    [3]int
	Keep        int
}

// Layout is the ordered list of markers that together make up the sandtray object.
type Layout []Marker

// DefaultLayout is the layout of the physical sandtray.
func DefaultLayout() Layout {
	return GenerateLayout(DefaultLayoutParams())
}

// GenerateLayout lays markers out in rows of PerLine. The y axis is negated and every
// marker is rotated to match how the sandtray is mounted.
func GenerateLayout(params LayoutParams) Layout {
	if params.PerLine <= 0 {
		params.PerLine = 1
	}
	step := params.Size + params.Padding
	layout := make(Layout, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		x := params.FirstX + (i%params.PerLine)*step
		y := params.FirstY + (i/params.PerLine)*step
		layout = append(layout, Marker{
			TagID:       params.FirstTagID + i,
			SizeMM:      params.Size,
			Translation: [3]int{x, -y, 0},
			Rotation:    params.RotationDegree,
		})
	}
	return layout
}

type chilitagsMarker struct {
	Tag         int   `yaml:"tag"`
	Size        int   `yaml:"size"`
	Translation []int `yaml:"translation,flow"`
	Rotation    []int `yaml:"rotation,flow"`
	Keep        int   `yaml:"keep"`
}

type chilitagsConfig struct {
	Markers []chilitagsMarker `yaml:"markers"`
}

// MarshalChilitags renders the layout as a chilitags object configuration.
func (l Layout) MarshalChilitags() ([]byte, error) {
	cfg := chilitagsConfig{Markers: make([]chilitagsMarker, 0, len(l))}
	for _, m := range l {
		m := m
		cfg.Markers = append(cfg.Markers, chilitagsMarker{
			Tag:         m.TagID,
			Size:        m.SizeMM,
			Translation: m.Translation[:],
			Rotation:    m.Rotation[:],
			Keep:        m.Keep,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(chilitagsHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "encoding marker layout")
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseChilitags reads a chilitags object configuration back into a layout.
func ParseChilitags(data []byte) (Layout, error) {
	data = bytes.TrimPrefix(data, []byte(chilitagsHeader))
	var cfg chilitagsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding marker layout")
	}
	layout := make(Layout, 0, len(cfg.Markers))
	for idx, m := range cfg.Markers {
		if len(m.Translation) != 3 || len(m.Rotation) != 3 {
			return nil, fmt.Errorf("markers.%d: translation and rotation need 3 values", idx)
		}
		marker := Marker{TagID: m.Tag, SizeMM: m.Size, Keep: m.Keep}
		copy(marker.Translation[:], m.Translation)
		copy(marker.Rotation[:], m.Rotation)
		layout = append(layout, marker)
	}
	return layout, nil
}
