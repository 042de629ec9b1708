package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Engine converts an image buffer into the flat RecognizeResult contract.
// Everything version-specific about the underlying recognition library is
// absorbed behind this interface; the parser never sees engine output
// directly.
//
// A Recognize call abandoned on ctx expiry may still be running underneath;
// the engine owns tearing its native state down once that call finishes.
// Close releases an idle engine immediately.
type Engine interface {
	Recognize(ctx context.Context, img RawImage) (RecognizeResult, error)
	Close() error
}

// TesseractEngine wraps a single gosseract client. The client is configured
// once at construction for small printed receipt text (dense line
// segmentation, interword spaces preserved, default recognition mode) and
// reused across calls; no image or configuration state survives a call.
// Not safe for concurrent use: see Pool.
type TesseractEngine struct {
	client *gosseract.Client
	lang   string

	mu        sync.Mutex
	busy      bool
	abandoned bool
	closed    bool
}

// NewTesseractEngine initializes a reusable recognition session.
func NewTesseractEngine(lang string) (*TesseractEngine, error) {
	if lang == "" {
		lang = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language %q: %w", lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	// Column gaps carry meaning on receipts (name vs price), keep them.
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set variable: %w", err)
	}
	return &TesseractEngine{client: client, lang: lang}, nil
}

// Recognize runs OCR on the buffer. The blocking native call runs in a
// goroutine so cancellation is honored; the native call itself cannot be
// interrupted, so on ctx expiry the session is marked abandoned and the
// goroutine frees the client once the call finally returns. Closing the
// handle any earlier would free it under an in-flight cgo call.
func (e *TesseractEngine) Recognize(ctx context.Context, img RawImage) (RecognizeResult, error) {
	e.mu.Lock()
	if e.closed || e.abandoned {
		e.mu.Unlock()
		return RecognizeResult{}, fmt.Errorf("%w: session closed", ErrRecognition)
	}
	e.busy = true
	e.mu.Unlock()

	type outcome struct {
		res RecognizeResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := e.recognize(img)
		e.mu.Lock()
		e.busy = false
		teardown := e.abandoned && !e.closed
		if teardown {
			e.closed = true
		}
		e.mu.Unlock()
		// Send first; the buffer keeps this from ever blocking, and a caller
		// still waiting in the select must not be starved by the teardown.
		ch <- outcome{res, err}
		if teardown {
			_ = e.client.Close()
		}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
	}

	e.mu.Lock()
	if e.busy {
		e.abandoned = true
		e.mu.Unlock()
		return RecognizeResult{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	e.mu.Unlock()
	// The call finished just as the deadline hit; the result is usable.
	o := <-ch
	return o.res, o.err
}

func (e *TesseractEngine) recognize(img RawImage) (RecognizeResult, error) {
	if err := e.client.SetImageFromBytes(img.Data); err != nil {
		return RecognizeResult{}, fmt.Errorf("%w: set image: %v", ErrRecognition, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return RecognizeResult{}, fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	lines := e.collectLines()
	if len(lines) == 0 && strings.TrimSpace(text) == "" {
		return RecognizeResult{}, ErrNoText
	}
	if len(lines) == 0 {
		// Box extraction can fail independently of text recognition; fall
		// back to splitting the raw text so callers never see an empty line
		// list next to non-empty output.
		for _, t := range strings.Split(text, "\n") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			lines = append(lines, RecognizedLine{Text: t, Confidence: 0.5})
		}
	}
	return RecognizeResult{
		Lines:             lines,
		OverallConfidence: meanConfidence(lines),
		RawText:           text,
	}, nil
}

// collectLines flattens whatever bounding-box nesting the library returns
// into a flat, top-to-bottom line list. Line-level iteration is tried first;
// if the library yields nothing at that level (older versions group lines
// under blocks and only expose words reliably), word boxes are regrouped
// into rows instead of silently returning an empty list.
func (e *TesseractEngine) collectLines() []RecognizedLine {
	if boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE); err == nil && len(boxes) > 0 {
		out := make([]RecognizedLine, 0, len(boxes))
		for _, b := range boxes {
			t := strings.TrimSpace(b.Word)
			if t == "" {
				continue
			}
			out = append(out, RecognizedLine{
				Text:       collapseSpaces(t),
				Confidence: clamp01(b.Confidence / 100.0),
				BoundingBox: Box{
					X0: b.Box.Min.X, Y0: b.Box.Min.Y,
					X1: b.Box.Max.X, Y1: b.Box.Max.Y,
				},
			})
		}
		if len(out) > 0 {
			sortTopToBottom(out)
			return out
		}
	}
	words, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(words) == 0 {
		return nil
	}
	return groupWordsIntoLines(words)
}

// groupWordsIntoLines buckets word boxes into rows by vertical midpoint and
// rebuilds each row left to right.
func groupWordsIntoLines(words []gosseract.BoundingBox) []RecognizedLine {
	type row struct {
		words []gosseract.BoundingBox
		y0    int
		y1    int
	}
	var rows []*row
	for _, w := range words {
		if strings.TrimSpace(w.Word) == "" {
			continue
		}
		mid := (w.Box.Min.Y + w.Box.Max.Y) / 2
		var target *row
		for _, r := range rows {
			if mid >= r.y0 && mid <= r.y1 {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y0: w.Box.Min.Y, y1: w.Box.Max.Y}
			rows = append(rows, target)
		}
		target.words = append(target.words, w)
		if w.Box.Min.Y < target.y0 {
			target.y0 = w.Box.Min.Y
		}
		if w.Box.Max.Y > target.y1 {
			target.y1 = w.Box.Max.Y
		}
	}

	out := make([]RecognizedLine, 0, len(rows))
	for _, r := range rows {
		sort.Slice(r.words, func(i, j int) bool {
			return r.words[i].Box.Min.X < r.words[j].Box.Min.X
		})
		var (
			parts []string
			sum   float64
			box   Box
		)
		for i, w := range r.words {
			parts = append(parts, strings.TrimSpace(w.Word))
			sum += clamp01(w.Confidence / 100.0)
			if i == 0 {
				box = Box{X0: w.Box.Min.X, Y0: w.Box.Min.Y, X1: w.Box.Max.X, Y1: w.Box.Max.Y}
				continue
			}
			if w.Box.Min.X < box.X0 {
				box.X0 = w.Box.Min.X
			}
			if w.Box.Min.Y < box.Y0 {
				box.Y0 = w.Box.Min.Y
			}
			if w.Box.Max.X > box.X1 {
				box.X1 = w.Box.Max.X
			}
			if w.Box.Max.Y > box.Y1 {
				box.Y1 = w.Box.Max.Y
			}
		}
		out = append(out, RecognizedLine{
			Text:        strings.Join(parts, " "),
			Confidence:  sum / float64(len(r.words)),
			BoundingBox: box,
		})
	}
	sortTopToBottom(out)
	return out
}

func sortTopToBottom(lines []RecognizedLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].BoundingBox.Y0 < lines[j].BoundingBox.Y0
	})
}

func meanConfidence(lines []RecognizedLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Close releases the underlying native session. If a recognition is still
// running the teardown is deferred to its goroutine.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if e.busy {
		e.abandoned = true
		return nil
	}
	e.closed = true
	return e.client.Close()
}
