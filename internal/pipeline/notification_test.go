package pipeline

import (
	"errors"
	"strconv"
	"testing"

	"github.com/foresight/docintel/internal/domain/analysis"
)

const plainNotification = `{"JobId":"j-1","Status":"SUCCEEDED","API":"StartDocumentAnalysis","JobTag":"tag","Timestamp":1717234200000,"DocumentLocation":{"S3ObjectName":"documents/x/a.pdf","S3Bucket":"docs"}}`

func TestParseNotification_Plain(t *testing.T) {
	n, err := ParseNotification(plainNotification)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.JobID != "j-1" || n.Status != "SUCCEEDED" || n.JobTag != "tag" {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.DocumentLocation == nil || n.DocumentLocation.S3Bucket != "docs" {
		t.Errorf("unexpected location %+v", n.DocumentLocation)
	}
	if kind, ok := n.Kind(); !ok || kind != analysis.JobAnalysis {
		t.Errorf("expected analysis kind, got %q %v", kind, ok)
	}
}

func TestParseNotification_Envelope(t *testing.T) {
	body := `{"Type":"Notification","MessageId":"m-1","Message":` + strconv.Quote(plainNotification) + `}`
	n, err := ParseNotification(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.JobID != "j-1" || n.API != APIStartDocumentAnalysis {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestParseNotification_OnlyOneEnvelopeLayer(t *testing.T) {
	inner := `{"Message":` + strconv.Quote(plainNotification) + `}`
	body := `{"Message":` + strconv.Quote(inner) + `}`
	if _, err := ParseNotification(body); !errors.Is(err, ErrMalformedNotification) {
		t.Errorf("expected a doubly wrapped message to be rejected, got %v", err)
	}
}

func TestParseNotification_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":       `{{`,
		"missing job id": `{"Status":"SUCCEEDED","API":"StartDocumentAnalysis"}`,
		"empty job id":   `{"JobId":"","Status":"SUCCEEDED","API":"StartDocumentAnalysis"}`,
		"wrong type":     `{"JobId":42,"Status":"SUCCEEDED","API":"StartDocumentAnalysis"}`,
		"bad envelope":   `{"Message":"not json"}`,
		"array":          `[]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseNotification(body); !errors.Is(err, ErrMalformedNotification) {
				t.Errorf("expected ErrMalformedNotification, got %v", err)
			}
		})
	}
}

func TestNotification_Kind(t *testing.T) {
	tests := []struct {
		api  string
		kind analysis.JobKind
		ok   bool
	}{
		{APIStartDocumentAnalysis, analysis.JobAnalysis, true},
		{APIStartDocumentTextDetection, analysis.JobDetection, true},
		{"", "", false},
		{"SomethingElse", "", false},
	}
	for _, tt := range tests {
		n := &Notification{API: tt.api}
		kind, ok := n.Kind()
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("Kind(%q) = %q, %v", tt.api, kind, ok)
		}
	}
}
