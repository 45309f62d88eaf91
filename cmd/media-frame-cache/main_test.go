package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vertextoedge/media-frame-cache/internal/config"
)

func writePNGs(t *testing.T, dir string, frames ...int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	for _, f := range frames {
		file, err := os.Create(filepath.Join(dir, fmt.Sprintf("shot.%04d.png", f)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(file, img); err != nil {
			t.Fatal(err)
		}
		file.Close()
	}
}

func runCLI(t *testing.T, tmp string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--config", filepath.Join(tmp, "absent.yaml"),
		"--catalog", filepath.Join(tmp, "catalog.db"),
		"--log-level", "error",
	}
	var out bytes.Buffer
	err := run(context.Background(), append(base, args...), &out)
	return out.String(), err
}

func TestRun_ScanAndList(t *testing.T) {
	tmp := t.TempDir()
	media := filepath.Join(tmp, "plates")
	if err := os.Mkdir(media, 0755); err != nil {
		t.Fatal(err)
	}
	writePNGs(t, media, 1, 2, 4)

	out, err := runCLI(t, tmp, "scan", media)
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	if !strings.Contains(out, "shot.####.png [1-4]  3 frames, 1 missing") {
		t.Errorf("scan output = %q", out)
	}

	out, err = runCLI(t, tmp, "list", "--kind", "sequence")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "shot.####.png [1-4] 3 frames, 1 missing") || !strings.Contains(out, "1 of 1 entries") {
		t.Errorf("list output = %q", out)
	}

	if err := os.RemoveAll(media); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, tmp, "prune")
	if err != nil {
		t.Fatalf("prune error = %v", err)
	}
	if !strings.Contains(out, "1 checked, 1 removed") {
		t.Errorf("prune output = %q", out)
	}
}

func TestRun_Inspect(t *testing.T) {
	tmp := t.TempDir()
	writePNGs(t, tmp, 10, 11, 12)

	out, err := runCLI(t, tmp, "inspect", "--frame", "11", filepath.Join(tmp, "shot.0010.png"))
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"kind:     sequence", "range:    10-12 (3 frames)", "frame 11:"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_Play(t *testing.T) {
	tmp := t.TempDir()
	writePNGs(t, tmp, 1, 2, 3)

	out, err := runCLI(t, tmp, "play", "--fps", "500", "--frames", "6", filepath.Join(tmp, "shot.0001.png"))
	if err != nil {
		t.Fatalf("play error = %v", err)
	}
	if !strings.Contains(out, "displayed 6 frames") {
		t.Errorf("play output = %q", out)
	}
	if !strings.Contains(out, "3 resident") {
		t.Errorf("play output = %q, want all frames resident", out)
	}
}

func TestRun_Formats(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "formats")
	if err != nil {
		t.Fatalf("formats error = %v", err)
	}
	if !strings.Contains(out, "png") || !strings.Contains(out, "mov") {
		t.Errorf("formats output = %q", out)
	}
}

func TestRun_FormatsReportsPluginErrors(t *testing.T) {
	tmp := t.TempDir()
	plugins := filepath.Join(tmp, "plugins")
	if err := os.Mkdir(plugins, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(plugins, "broken.yaml"), []byte("name: broken\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.PluginPathEnv, plugins)

	out, err := runCLI(t, tmp, "formats")
	if err != nil {
		t.Fatalf("formats error = %v", err)
	}
	if !strings.Contains(out, "plugin error:") || !strings.Contains(out, "at least one extension is required") {
		t.Errorf("formats output = %q, want the manifest error", out)
	}
}

func TestRun_Errors(t *testing.T) {
	tmp := t.TempDir()

	if _, err := runCLI(t, tmp); !errors.Is(err, errUsage) {
		t.Errorf("no command error = %v, want usage", err)
	}
	if _, err := runCLI(t, tmp, "transcode"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command error = %v", err)
	}
	if _, err := runCLI(t, tmp, "inspect", filepath.Join(tmp, "missing.0001.exr")); err == nil {
		t.Error("inspect of a missing file succeeded")
	}
}
