package probe

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SaveEvidence renders a PNG snapshot of the evidence collected for a
// vulnerable candidate and writes it under dir. The snapshot is a plain text
// render so a triager can attach it to a report without rerunning the scan.
func SaveEvidence(dir, subdomain string, lines []string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating evidence directory: %w", err)
	}

	header := []string{
		fmt.Sprintf("subhawk evidence: %s", subdomain),
		time.Now().UTC().Format(time.RFC3339),
		"",
	}
	data, err := renderEvidence(append(header, lines...))
	if err != nil {
		return "", fmt.Errorf("rendering evidence: %w", err)
	}

	path := filepath.Join(dir, sanitizeFilename(subdomain)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing evidence file: %w", err)
	}
	return path, nil
}

func renderEvidence(lines []string) ([]byte, error) {
	if len(lines) == 0 {
		lines = []string{"subhawk evidence"}
	}

	width := 800
	lineHeight := 20
	padding := 16
	height := padding*2 + lineHeight*len(lines)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{18, 18, 18, 255}}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := font.Drawer{Dst: img, Face: face, Src: image.NewUniform(color.RGBA{220, 220, 220, 255})}

	for i, line := range lines {
		drawer.Dot = fixed.Point26_6{X: fixed.I(padding), Y: fixed.I(padding + (i+1)*lineHeight)}
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeFilename(name string) string {
	if name == "" {
		return "unknown"
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
