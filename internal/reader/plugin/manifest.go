package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// Manifest describes a command-backed image reader.
//
//	name: openexr
//	extensions: [exr, dpx]
//	command: oiiotool
//	args: ["{path}", "-o", "png:-"]
//
// The command must write one PNG image to stdout. `{path}` and `{frame}`
// in args are substituted per file.
type Manifest struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest name is required")
	}
	if len(m.Extensions) == 0 {
		return fmt.Errorf("manifest %s: at least one extension is required", m.Name)
	}
	if m.Command == "" {
		return fmt.Errorf("manifest %s: command is required", m.Name)
	}
	return nil
}

// Register adds the command reader for every manifest extension.
func (m *Manifest) Register(reg reader.Registrar) {
	reg.RegisterImage(m.Extensions, func(path string, frame int) reader.ImageReader {
		return &CommandReader{manifest: m, path: path, frame: frame}
	})
}

// CommandArgs returns the argument list with placeholders substituted.
func (m *Manifest) CommandArgs(path string, frame int) []string {
	r := strings.NewReplacer("{path}", path, "{frame}", strconv.Itoa(frame))
	args := make([]string, len(m.Args))
	for i, a := range m.Args {
		args[i] = r.Replace(a)
	}
	return args
}

// CommandReader decodes one file by running the manifest command.
type CommandReader struct {
	manifest *Manifest
	path     string
	frame    int
}

// Read runs the command and decodes its PNG output.
func (r *CommandReader) Read(ctx context.Context) (*reader.Buffer, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.manifest.Command, r.manifest.CommandArgs(r.path, r.frame)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed on %s: %w: %s",
			r.manifest.Name, r.path, err, strings.TrimSpace(stderr.String()))
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%s produced invalid png for %s: %w", r.manifest.Name, r.path, err)
	}
	return r.buffer(img), nil
}

func (r *CommandReader) buffer(img image.Image) *reader.Buffer {
	b := img.Bounds()
	return reader.FromImage(img, map[string]string{
		"path":   r.path,
		"format": r.manifest.Name,
		"frame":  strconv.Itoa(r.frame),
		"width":  strconv.Itoa(b.Dx()),
		"height": strconv.Itoa(b.Dy()),
	})
}
