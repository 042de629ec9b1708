package ocr

// Pattern-match strengths fed into the scoring function. The primary
// mid-line price form anchors on a trailing flag token and misfires less
// often than the bare end-of-line fallback, so it scores higher.
const (
	MatchStrengthPrimary  = 1.0
	MatchStrengthFallback = 0.85
)

// ScoreFunc combines a line's OCR confidence with the strength of the
// pattern that matched it into a per-item confidence. The exact formula is
// a tuning choice, so it is pluggable via ParseOptions.Score.
type ScoreFunc func(lineConfidence, matchStrength float64) float64

// DefaultScore scales the OCR confidence by the match strength.
func DefaultScore(lineConfidence, matchStrength float64) float64 {
	return clamp01(lineConfidence * matchStrength)
}

// receiptConfidence aggregates line confidences with how many of the
// expected receipt fields were actually found. Deterministic for identical
// input lines.
func receiptConfidence(lines []RecognizedLine, fieldsDetected, fieldsTotal int) float64 {
	if len(lines) == 0 {
		return 0
	}
	quality := 0.0
	if fieldsTotal > 0 {
		quality = float64(fieldsDetected) / float64(fieldsTotal)
	}
	return clamp01(0.8*meanConfidence(lines) + 0.2*quality)
}
