package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/kitchenstock/scanner/internal/domain"
)

// Config holds Tesseract configuration
type Config struct {
	Languages     []string
	PageSegMode   int
	MaxImageWidth int
	MinImageWidth int
	Debug         bool
}

// Recognizer runs Tesseract on delivery notes and recipe sheets.
// Every call builds its own engine client, so concurrent scans share nothing.
type Recognizer struct {
	languages     []string
	pageSegMode   gosseract.PageSegMode
	maxImageWidth int
	minImageWidth int
	debug         bool
}

type engineResult struct {
	text       string
	confidence float64
	err        error
}

// NewRecognizer creates a new Tesseract recognizer
func NewRecognizer(cfg Config) *Recognizer {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"fra", "eng"}
	}

	psm := gosseract.PageSegMode(cfg.PageSegMode)
	if cfg.PageSegMode <= 0 {
		psm = gosseract.PSM_AUTO
	}

	maxWidth := cfg.MaxImageWidth
	if maxWidth <= 0 {
		maxWidth = 2480 // A4 at 300 dpi
	}

	minWidth := cfg.MinImageWidth
	if minWidth <= 0 {
		minWidth = 1000
	}

	return &Recognizer{
		languages:     langs,
		pageSegMode:   psm,
		maxImageWidth: maxWidth,
		minImageWidth: minWidth,
		debug:         cfg.Debug,
	}
}

// Recognize extracts text and a 0..1 confidence from an image.
// When ctx is cancelled it returns ctx.Err() right away and the engine's
// eventual output is dropped.
func (r *Recognizer) Recognize(ctx context.Context, img []byte, onProgress domain.ProgressFunc) (*domain.Recognition, error) {
	report := func(percent int, status string) {
		if onProgress != nil && ctx.Err() == nil {
			onProgress(domain.Progress{Percent: percent, Status: status})
		}
	}

	report(0, "loading model")

	prepared, err := r.preprocess(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(15, "preprocessing image")

	done := make(chan engineResult, 1)
	go func() {
		done <- r.runEngine(prepared)
	}()
	report(35, "recognizing text")

	select {
	case <-ctx.Done():
		log.Printf("[OCR] Recognition cancelled, discarding engine result")
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		report(100, "done")
		if r.debug {
			log.Printf("[OCR] %d chars recognized, confidence %.2f", len(res.text), res.confidence)
		}
		return &domain.Recognition{Text: res.text, Confidence: res.confidence}, nil
	}
}

// preprocess decodes the upload and prepares it for Tesseract: upright,
// grayscale, contrasted, sharpened, and scaled to a readable width
func (r *Recognizer) preprocess(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &domain.RecognitionError{Op: "decode", Err: errors.New("empty image")}
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &domain.RecognitionError{Op: "decode", Err: err}
	}

	out := prepareImage(src, r.minImageWidth, r.maxImageWidth)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, &domain.RecognitionError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

func prepareImage(src image.Image, minWidth, maxWidth int) *image.NRGBA {
	img := imaging.Grayscale(src)

	width := img.Bounds().Dx()
	switch {
	case width > maxWidth:
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	case width > 0 && width < minWidth:
		img = imaging.Resize(img, minWidth, 0, imaging.Lanczos)
	}

	img = imaging.AdjustContrast(img, 20)
	return imaging.Sharpen(img, 1.0)
}

func (r *Recognizer) runEngine(img []byte) engineResult {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return engineResult{err: &domain.RecognitionError{Op: "language", Err: err}}
	}
	if err := client.SetPageSegMode(r.pageSegMode); err != nil {
		return engineResult{err: &domain.RecognitionError{Op: "page segmentation", Err: err}}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return engineResult{err: &domain.RecognitionError{Op: "load image", Err: err}}
	}

	text, err := client.Text()
	if err != nil {
		return engineResult{err: &domain.RecognitionError{Op: "text", Err: err}}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text is usable without word confidences
		log.Printf("[OCR] Word confidences unavailable: %v", err)
		return engineResult{text: text}
	}

	return engineResult{text: text, confidence: meanConfidence(boxes)}
}

// meanConfidence averages Tesseract word confidences (0-100) into 0..1
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" || b.Confidence < 0 {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return min(max(sum/float64(n)/100, 0), 1)
}

// String describes the engine setup for startup logs
func (r *Recognizer) String() string {
	return fmt.Sprintf("tesseract(langs=%s, psm=%d, width=%d..%d)",
		strings.Join(r.languages, "+"), r.pageSegMode, r.minImageWidth, r.maxImageWidth)
}
