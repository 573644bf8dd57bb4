package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrMalformedTag = errors.New("malformed correlation tag")

// CorrelationTag links an asynchronous job back to its document. On the wire
// it is "{documentId}-{kind}-{epochMillis}".
type CorrelationTag struct {
	DocumentID  uuid.UUID
	Kind        JobKind
	SubmittedAt time.Time
}

func NewTag(documentID uuid.UUID, kind JobKind, at time.Time) CorrelationTag {
	return CorrelationTag{DocumentID: documentID, Kind: kind, SubmittedAt: at.Truncate(time.Millisecond)}
}

func (t CorrelationTag) String() string {
	return fmt.Sprintf("%s-%s-%d", t.DocumentID, t.Kind, t.SubmittedAt.UnixMilli())
}

// ParseTag decodes a wire tag. The document id itself contains hyphens, so
// the kind and timestamp are taken from the right.
func ParseTag(s string) (CorrelationTag, error) {
	rest, millisPart, ok := cutLast(s, "-")
	if !ok {
		return CorrelationTag{}, fmt.Errorf("%w: %q", ErrMalformedTag, s)
	}
	idPart, kindPart, ok := cutLast(rest, "-")
	if !ok {
		return CorrelationTag{}, fmt.Errorf("%w: %q", ErrMalformedTag, s)
	}

	millis, err := strconv.ParseInt(millisPart, 10, 64)
	if err != nil || millis < 0 {
		return CorrelationTag{}, fmt.Errorf("%w: timestamp in %q", ErrMalformedTag, s)
	}
	kind := JobKind(kindPart)
	if !kind.Valid() {
		return CorrelationTag{}, fmt.Errorf("%w: job kind %q", ErrMalformedTag, kindPart)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return CorrelationTag{}, fmt.Errorf("%w: document id in %q: %v", ErrMalformedTag, s, err)
	}

	return CorrelationTag{DocumentID: id, Kind: kind, SubmittedAt: time.UnixMilli(millis).UTC()}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 || i == len(s)-1 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
