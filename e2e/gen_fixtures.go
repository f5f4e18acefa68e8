//go:build ignore

// gen_fixtures creates a small session for the E2E smoke test: a directory
// that "apix export" can scan, the same session as YAML, and a layout file
// for "apix combine".
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	sess := filepath.Join(dir, "session")
	os.MkdirAll(filepath.Join(sess, "input"), 0o755)

	// Input garment (JPEG, 400x225) and model (PNG, 200x300).
	writeJPEG(filepath.Join(sess, "input", "garment.jpg"), gradient(400, 225))
	writeImage(filepath.Join(sess, "input", "model.png"), alphaGradient(200, 300))

	// Generated outputs (PNG, 200x150 each).
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("look-%d.png", i)
		writeImage(filepath.Join(sess, name), solidWithBorder(200, 150, uint8(i*60)))
	}

	// A finished video; the bytes only need to exist.
	writeFile(filepath.Join(sess, "clip.mp4"), []byte("\x00\x00\x00\x18ftypmp42"))

	writeFile(filepath.Join(dir, "session.yaml"), []byte(`zipFilename: smoke.zip
baseOutputFilename: look
inputImages:
  - url: session/input/garment.jpg
    filename: garment
    folder: input
historicalImages:
  - session/look-1.png
  - url: session/look-2.png
  - https://invalid.example/missing.png
videoTasks:
  t1: {status: done, resultUrl: session/clip.mp4}
  t2: {status: generating}
`))

	writeFile(filepath.Join(dir, "layout.yaml"), []byte(`base: lookbook
spec:
  gap: 10
  mainTitle: Smoke test
items:
  - url: session/look-1.png
    label: First
  - url: session/look-2.png
    label: Second
  - url: session/look-3.png
    label: Third
`))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created session fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func writeImage(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img *image.NRGBA) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		panic(err)
	}
}

func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		panic(err)
	}
}
