package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// DefaultTimeout bounds one recognition call.
const DefaultTimeout = 30 * time.Second

// ProcessOptions are the per-request overrides accepted at the entry point.
type ProcessOptions struct {
	// Preprocess forces the stage on or off for this request. Nil keeps the
	// pipeline default.
	Preprocess *bool

	// MinItemConfidence overrides the confidence floor. Nil keeps the
	// pipeline default.
	MinItemConfidence *float64
}

// Pipeline runs one receipt image through preprocess, recognize and parse.
// The stages are strictly sequential within a receipt; independent receipts
// run concurrently up to the pool size.
type Pipeline struct {
	Pool *Pool

	// Preprocess is the default stage configuration. The zero value keeps
	// the stage off, which is the right default for well-exposed photos.
	Preprocess PreprocessConfig

	// AutoPreprocess enables the image-quality heuristic: small captures get
	// the full chain even when the default config is off.
	AutoPreprocess bool

	MinItemConfidence float64
	Timeout           time.Duration
	Score             ScoreFunc
}

// ProcessReceiptImage is the sole entry point consumed by upload handlers.
// Validation errors and engine failures surface as errors; everything the
// parser could not determine comes back as warnings on the receipt instead.
func (p *Pipeline) ProcessReceiptImage(ctx context.Context, imageBytes []byte, opts *ProcessOptions) (ParsedReceipt, error) {
	img, err := DecodeImage(imageBytes)
	if err != nil {
		return ParsedReceipt{}, err
	}

	cfg := p.preprocessConfig(img, opts)
	img, warnings := Preprocess(img, cfg)
	for _, w := range warnings {
		log.Printf("pipeline: %s", w)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := p.recognize(rctx, img)
	if err != nil {
		return ParsedReceipt{}, err
	}

	minConf := p.MinItemConfidence
	if opts != nil && opts.MinItemConfidence != nil {
		minConf = *opts.MinItemConfidence
	}
	rec := Parse(res.Lines, ParseOptions{MinItemConfidence: minConf, Score: p.Score})
	rec.Warnings = append(warnings, rec.Warnings...)
	if rec.RawText == "" {
		rec.RawText = res.RawText
	}
	return rec, nil
}

func (p *Pipeline) preprocessConfig(img RawImage, opts *ProcessOptions) PreprocessConfig {
	cfg := p.Preprocess
	if p.AutoPreprocess && !cfg.Enabled {
		cfg = RecommendPreprocess(img)
	}
	if opts != nil && opts.Preprocess != nil {
		if !*opts.Preprocess {
			return PreprocessConfig{}
		}
		if !cfg.Enabled {
			cfg = FullPreprocess()
		}
	}
	return cfg
}

// recognize borrows a session and runs the engine, retrying once on plain
// recognition failure. A session that timed out may still be running the
// native call, so it is replaced instead of returned to the pool.
func (p *Pipeline) recognize(ctx context.Context, img RawImage) (RecognizeResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		eng, err := p.Pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return RecognizeResult{}, fmt.Errorf("%w: waiting for engine session", ErrTimeout)
			}
			return RecognizeResult{}, err
		}
		res, err := eng.Recognize(ctx, img)
		switch {
		case err == nil:
			p.Pool.Release(eng)
			return res, nil
		case errors.Is(err, ErrTimeout):
			p.Pool.Discard(eng)
			return RecognizeResult{}, err
		case errors.Is(err, ErrNoText):
			p.Pool.Release(eng)
			return RecognizeResult{}, err
		default:
			p.Pool.Release(eng)
			lastErr = err
			log.Printf("pipeline: recognition attempt %d failed: %v", attempt+1, err)
		}
	}
	return RecognizeResult{}, lastErr
}
