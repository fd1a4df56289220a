// Package pipeline loads a YAML pipeline descriptor and resolves it into a
// pcm.Descriptor tree the compositor (pcm.Build) can open. The core package
// itself stays unaware of YAML; this package is the only place
// gopkg.in/yaml.v3 is imported.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/doismellburning/pcmcore/pcm"
)

// Document is the on-disk shape of a pipeline descriptor.
type Document struct {
	Name     string            `yaml:"name"`
	Stream   string            `yaml:"stream"`
	Type     string            `yaml:"type"`
	Device   string            `yaml:"device,omitempty"`
	Path     string            `yaml:"path,omitempty"`
	Rate     int               `yaml:"rate,omitempty"`
	Format   string            `yaml:"format,omitempty"`
	Channels int               `yaml:"channels,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
	Slave    *Document         `yaml:"slave,omitempty"`
}

// Load reads and parses a pipeline descriptor document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pipeline: parse %s: %w", path, err)
	}
	return &doc, nil
}

// StreamDirection maps the document's stream string to pcm.Stream.
func (d *Document) StreamDirection() (pcm.Stream, error) {
	switch d.Stream {
	case "playback", "":
		return pcm.StreamPlayback, nil
	case "capture":
		return pcm.StreamCapture, nil
	default:
		return 0, &pcm.Error{Op: "pipeline", Kind: pcm.KindBadValue, Param: "stream"}
	}
}

// Descriptor converts the parsed document into the pcm.Descriptor tree
// Build consumes, folding path/device/options together and recursing into
// any slave document. Unrecognized Type values are left to Build, which
// reports them as BadValue at resolve time.
func (d *Document) Descriptor() *pcm.Descriptor {
	if d == nil {
		return nil
	}
	options := map[string]string{}
	for k, v := range d.Options {
		options[k] = v
	}
	if d.Device != "" {
		options["device"] = d.Device
	}
	if d.Path != "" {
		options["path"] = d.Path
	}
	return &pcm.Descriptor{
		Name:    d.Name,
		Type:    d.Type,
		Options: options,
		Slave:   d.Slave.Descriptor(),
	}
}

// HwConfigSpace builds the hardware-parameter space this document requests,
// starting from the unconstrained space and narrowing by whatever fields
// the document sets (rate, format, channels); fields left unset are
// negotiated freely by ChooseOne.
func (d *Document) HwConfigSpace() (pcm.Space, error) {
	space := pcm.Any()
	space = pcm.SetAccess(space, pcm.AccessRwInterleaved)
	if d.Format != "" {
		f, err := parseFormat(d.Format)
		if err != nil {
			return space, err
		}
		space = pcm.SetFormat(space, f)
	}
	if d.Channels > 0 {
		space = pcm.SetChannels(space, d.Channels)
	}
	if d.Rate > 0 {
		space = pcm.SetRate(space, d.Rate)
	}
	return space, nil
}

func parseFormat(name string) (pcm.Format, error) {
	switch name {
	case "S8":
		return pcm.FormatS8, nil
	case "U8":
		return pcm.FormatU8, nil
	case "S16_LE":
		return pcm.FormatS16LE, nil
	case "S16_BE":
		return pcm.FormatS16BE, nil
	case "S32_LE":
		return pcm.FormatS32LE, nil
	case "S32_BE":
		return pcm.FormatS32BE, nil
	case "FLOAT_LE":
		return pcm.FormatFloatLE, nil
	case "FLOAT64_LE":
		return pcm.FormatFloat64LE, nil
	default:
		return 0, &pcm.Error{Op: "pipeline", Kind: pcm.KindBadValue, Param: "format"}
	}
}
