// Package quality runs pre-flight checks on a stored image before any
// structured analysis is paid for.
package quality

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/platform/storage"
)

const (
	moderationThreshold = 75

	highGrade   = 90
	mediumGrade = 75

	minFaceConfidence = 90
	minFaceQuality    = 30
	multiFaceScore    = 60

	domainPass  = 95
	domainMiss  = 30
	domainError = 80

	quickMinWords      = 3
	quickMinConfidence = 70
)

// Labels that legitimately appear on medical paperwork.
var allowedModerationLabels = map[string]bool{
	"Medical Procedure": true,
	"Medical Equipment": true,
	"Surgery":           true,
	"Healthcare":        true,
}

var domainIndicators = map[DocumentKind][]string{
	KindInsuranceCard: {
		"insurance", "policy", "member", "group", "copay", "deductible",
		"coverage", "plan", "subscriber", "effective", "id", "rx", "pharmacy",
	},
	KindIDCard: {
		"license", "identification", "state", "expires", "date of birth",
		"dob", "address", "id", "card", "issued",
	},
	KindMedicalDocument: {
		"patient", "doctor", "physician", "medical", "diagnosis", "treatment",
		"prescription", "medication", "clinic", "hospital", "health",
	},
}

var domainMessages = map[DocumentKind]string{
	KindInsuranceCard:   "Document does not appear to be an insurance card",
	KindIDCard:          "Document does not appear to be a valid ID",
	KindMedicalDocument: "Document does not appear to be a medical document",
}

func minWords(kind DocumentKind) int {
	switch kind {
	case KindInsuranceCard:
		return 8
	case KindMedicalDocument:
		return 10
	default:
		return 5
	}
}

type Gate struct {
	analyzer ImageAnalyzer
	logger   zerolog.Logger
}

func NewGate(analyzer ImageAnalyzer, logger zerolog.Logger) *Gate {
	return &Gate{analyzer: analyzer, logger: logger}
}

// check is the partial outcome of one independent check.
type check struct {
	issues     []string
	confidence float64
}

// Validate runs the text, face, moderation and domain checks. The overall
// confidence is the minimum of every partial confidence. A failed call to
// the analysis service makes the whole result invalid with confidence 0.
func (g *Gate) Validate(ctx context.Context, loc storage.Location, kind DocumentKind, opts Options) *Result {
	res := &Result{Confidence: 100, Issues: []string{}}
	log := g.logger.With().Str("bucket", loc.Bucket).Str("key", loc.Key).Str("kind", string(kind)).Logger()

	text, err := g.checkText(ctx, loc, kind, opts.MinTextConfidence, &res.Metadata)
	if err != nil {
		return g.failed(log, res, "Text validation failed", err)
	}
	res.merge(text)

	if opts.CheckFaces {
		face, err := g.checkFaces(ctx, loc, kind, &res.Metadata)
		if err != nil {
			return g.failed(log, res, "Face detection failed", err)
		}
		res.merge(face)
	}

	if opts.CheckModeration {
		mod, err := g.checkModeration(ctx, loc)
		if err != nil {
			return g.failed(log, res, "Content moderation failed", err)
		}
		if len(mod.issues) > 0 {
			res.Metadata.SuspiciousContent = true
		}
		res.merge(mod)
	}

	if opts.CheckStructure {
		res.merge(g.checkDomain(ctx, loc, kind, log))
	}

	res.IsValid = len(res.Issues) == 0
	log.Debug().Bool("valid", res.IsValid).Float64("confidence", res.Confidence).Strs("issues", res.Issues).Msg("quality gate evaluated")
	return res
}

func (r *Result) merge(c check) {
	r.Issues = append(r.Issues, c.issues...)
	r.Confidence = math.Min(r.Confidence, c.confidence)
}

func (g *Gate) failed(log zerolog.Logger, res *Result, what string, err error) *Result {
	log.Error().Err(err).Msg(strings.ToLower(what))
	res.IsValid = false
	res.Confidence = 0
	res.ServiceErr = &ServiceError{Check: what, Err: err}
	res.Issues = []string{res.ServiceErr.Error()}
	return res
}

func (g *Gate) checkText(ctx context.Context, loc storage.Location, kind DocumentKind, minConfidence float64, md *Metadata) (check, error) {
	detections, err := g.analyzer.DetectText(ctx, loc)
	if err != nil {
		return check{}, err
	}
	md.DocumentQuality = GradeLow
	if len(detections) == 0 {
		md.TextConfidence = ptr(0.0)
		return check{issues: []string{"No text detected in document"}, confidence: 0}, nil
	}

	var sum float64
	var words int
	for _, d := range detections {
		if d.Type == TextWord && d.Confidence > 0 {
			sum += d.Confidence
			words++
		}
	}
	if words == 0 {
		md.TextConfidence = ptr(0.0)
		return check{issues: []string{"No readable text found"}, confidence: 0}, nil
	}

	avg := sum / float64(words)
	md.TextConfidence = ptr(avg)
	switch {
	case avg >= highGrade:
		md.DocumentQuality = GradeHigh
	case avg >= mediumGrade:
		md.DocumentQuality = GradeMedium
	}

	c := check{confidence: avg}
	if avg < minConfidence {
		c.issues = append(c.issues, fmt.Sprintf("Text confidence %.1f%% below threshold %v%%", avg, minConfidence))
	}
	if need := minWords(kind); words < need {
		c.issues = append(c.issues, fmt.Sprintf("Insufficient text content: %d words (minimum: %d)", words, need))
	}
	return c, nil
}

func (g *Gate) checkFaces(ctx context.Context, loc storage.Location, kind DocumentKind, md *Metadata) (check, error) {
	faces, err := g.analyzer.DetectFaces(ctx, loc)
	if err != nil {
		return check{}, err
	}
	md.FaceDetected = ptr(len(faces) > 0)

	switch {
	case len(faces) == 0 && kind == KindIDCard:
		return check{issues: []string{"No face detected on ID document"}, confidence: 0}, nil
	case len(faces) == 0:
		return check{confidence: 100}, nil
	case len(faces) > 1:
		return check{issues: []string{fmt.Sprintf("Multiple faces detected: %d", len(faces))}, confidence: multiFaceScore}, nil
	}

	face := faces[0]
	c := check{confidence: face.Confidence}
	if face.Confidence < minFaceConfidence {
		c.issues = append(c.issues, fmt.Sprintf("Low face detection confidence: %.1f%%", face.Confidence))
	}
	if q := face.Quality; q != nil {
		if q.Brightness < minFaceQuality {
			c.issues = append(c.issues, "Image too dark for face verification")
		}
		if q.Sharpness < minFaceQuality {
			c.issues = append(c.issues, "Image too blurry for face verification")
		}
	}
	return c, nil
}

func (g *Gate) checkModeration(ctx context.Context, loc storage.Location) (check, error) {
	labels, err := g.analyzer.DetectModerationLabels(ctx, loc, moderationThreshold)
	if err != nil {
		return check{}, err
	}
	var flagged []string
	for _, l := range labels {
		if l.Confidence > moderationThreshold && !allowedModerationLabels[l.Name] {
			flagged = append(flagged, l.Name)
		}
	}
	if len(flagged) > 0 {
		return check{issues: []string{"Inappropriate content detected: " + strings.Join(flagged, ", ")}, confidence: 0}, nil
	}
	return check{confidence: 100}, nil
}

// checkDomain never blocks on its own failure: an analysis error passes with
// reduced confidence.
func (g *Gate) checkDomain(ctx context.Context, loc storage.Location, kind DocumentKind, log zerolog.Logger) check {
	detections, err := g.analyzer.DetectText(ctx, loc)
	if err != nil {
		log.Warn().Err(err).Msg("domain keyword check skipped")
		return check{confidence: domainError}
	}

	indicators, ok := domainIndicators[kind]
	if !ok {
		return check{confidence: domainPass}
	}

	var words []string
	for _, d := range detections {
		if d.Type == TextWord {
			words = append(words, d.Text)
		}
	}
	text := strings.ToLower(strings.Join(words, " "))
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return check{confidence: domainPass}
		}
	}
	return check{issues: []string{domainMessages[kind]}, confidence: domainMiss}
}

// QuickValidate is the text-only pre-check: at least three words with a mean
// confidence of 70.
func (g *Gate) QuickValidate(ctx context.Context, loc storage.Location) QuickResult {
	detections, err := g.analyzer.DetectText(ctx, loc)
	if err != nil {
		g.logger.Error().Err(err).Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("quick validation failed")
		return QuickResult{Reason: "Validation service error", ServiceErr: &ServiceError{Check: "Quick validation failed", Err: err}}
	}
	if len(detections) == 0 {
		return QuickResult{Reason: "No text detected"}
	}

	var sum float64
	var words int
	for _, d := range detections {
		if d.Type == TextWord {
			sum += d.Confidence
			words++
		}
	}
	if words < quickMinWords {
		return QuickResult{Reason: "Insufficient text content"}
	}
	if avg := sum / float64(words); avg < quickMinConfidence {
		return QuickResult{Reason: fmt.Sprintf("Low text quality: %.1f%%", avg)}
	}
	return QuickResult{IsValid: true}
}

func ptr[T any](v T) *T {
	return &v
}
