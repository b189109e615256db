package vision

// Discrepancy thresholds. The 10% threshold appends a note on the vision
// path; the 15% threshold drives the confidence penalty and is shared with
// the non-vision validator. The source system used both at different call
// sites; they are deliberately kept as distinct constants.
const (
	lineItemNoteThreshold       = 0.10
	discrepancyPenaltyThreshold = 0.15
)

// Confidence scoring tunables.
const (
	defaultFieldConfidence = 75
	discrepancyPenalty     = 15
	warningPenalty         = 5
	reconstructionPenalty  = 20
	minVisionConfidence    = 30
	maxVisionConfidence    = 95
)

// scoreConfidence computes the vision-path confidence: the mean of all
// present per-field confidences (mid-range default when the model reported
// none), penalized for total discrepancy, warning notes and fallback
// reconstruction, clamped to [30, 95].
func scoreConfidence(fieldConfs []float64, discrepancy float64, warningCount int, reconstructed bool) float64 {
	conf := float64(defaultFieldConfidence)
	if len(fieldConfs) > 0 {
		var sum float64
		for _, c := range fieldConfs {
			sum += c
		}
		conf = sum / float64(len(fieldConfs))
	}

	if discrepancy > discrepancyPenaltyThreshold {
		conf -= discrepancyPenalty
	}
	if warningCount > 0 {
		conf -= warningPenalty
	}
	if reconstructed {
		conf -= reconstructionPenalty
	}

	if conf < minVisionConfidence {
		conf = minVisionConfidence
	}
	if conf > maxVisionConfidence {
		conf = maxVisionConfidence
	}
	return conf
}
