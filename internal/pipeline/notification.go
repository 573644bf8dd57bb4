// Package pipeline wires the quality gate, the analysis service, field
// extraction, classification and persistence into the upload, completion
// and insurance-card flows.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/foresight/docintel/internal/domain/analysis"
)

var ErrMalformedNotification = errors.New("malformed completion notification")

// Analysis APIs named in completion notifications.
const (
	APIStartDocumentAnalysis      = "StartDocumentAnalysis"
	APIStartDocumentTextDetection = "StartDocumentTextDetection"
)

// Notification is a job-completion message from the analysis service.
type Notification struct {
	JobID            string            `json:"JobId"`
	Status           string            `json:"Status"`
	API              string            `json:"API"`
	JobTag           string            `json:"JobTag"`
	Timestamp        int64             `json:"Timestamp,omitempty"`
	DocumentLocation *DocumentLocation `json:"DocumentLocation,omitempty"`
}

type DocumentLocation struct {
	S3ObjectName string `json:"S3ObjectName"`
	S3Bucket     string `json:"S3Bucket"`
}

// Kind maps the API name to a job kind. ok is false for unknown APIs.
func (n *Notification) Kind() (kind analysis.JobKind, ok bool) {
	switch n.API {
	case APIStartDocumentAnalysis, "AnalyzeDocument":
		return analysis.JobAnalysis, true
	case APIStartDocumentTextDetection, "DetectDocumentText":
		return analysis.JobDetection, true
	}
	return "", false
}

const notificationSchema = `{
	"type": "object",
	"required": ["JobId", "Status", "API"],
	"properties": {
		"JobId":  {"type": "string", "minLength": 1},
		"Status": {"type": "string", "minLength": 1},
		"API":    {"type": "string"},
		"JobTag": {"type": "string"},
		"Timestamp": {"type": "integer"},
		"DocumentLocation": {
			"type": "object",
			"properties": {
				"S3ObjectName": {"type": "string"},
				"S3Bucket":     {"type": "string"}
			}
		}
	}
}`

var notificationValidator = jsonschema.MustCompileString("notification.json", notificationSchema)

// ParseNotification decodes a queue message body. A pub/sub envelope (an
// object with a string Message and no JobId) is unwrapped once.
func ParseNotification(body string) (*Notification, error) {
	raw := []byte(body)
	doc, err := decodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if obj, ok := doc.(map[string]any); ok {
		inner, isString := obj["Message"].(string)
		if _, hasJob := obj["JobId"]; isString && !hasJob {
			raw = []byte(inner)
			if doc, err = decodeJSON(raw); err != nil {
				return nil, fmt.Errorf("%w: envelope message: %v", ErrMalformedNotification, err)
			}
		}
	}

	if err := notificationValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	return &n, nil
}

// decodeJSON keeps numbers as json.Number for schema validation.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
