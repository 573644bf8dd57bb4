// Package storage describes uploaded objects: where they live, what the
// object keys encode, and their stored attributes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrUnrecognizedKey = errors.New("unrecognized object key")
)

const (
	DocumentPrefix = "documents"
	CardPrefix     = "insurance-cards"
)

// Location addresses one object in the store.
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ObjectInfo holds the stored attributes of an object.
type ObjectInfo struct {
	ContentType string
	Size        int64
	ETag        string
	Metadata    map[string]string
}

// Store reads object attributes.
type Store interface {
	Stat(ctx context.Context, loc Location) (*ObjectInfo, error)
}

// UnescapeKey decodes the URL-encoded keys carried by object-created events.
func UnescapeKey(key string) string {
	if k, err := url.QueryUnescape(key); err == nil {
		return k
	}
	return key
}

// DocumentKey is the decoded form of documents/{documentId}/{fileName}.
type DocumentKey struct {
	DocumentID uuid.UUID
	FileName   string
}

func BuildDocumentKey(documentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", DocumentPrefix, documentID, fileName)
}

func ParseDocumentKey(key string) (DocumentKey, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != DocumentPrefix || parts[2] == "" {
		return DocumentKey{}, fmt.Errorf("%w: %q", ErrUnrecognizedKey, key)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return DocumentKey{}, fmt.Errorf("%w: document id in %q: %v", ErrUnrecognizedKey, key, err)
	}
	return DocumentKey{DocumentID: id, FileName: parts[2]}, nil
}

// CardKey is the decoded form of insurance-cards/{patientId}/{organizationId}/{fileName}.
type CardKey struct {
	PatientID      uuid.UUID
	OrganizationID uuid.UUID
	FileName       string
}

func BuildCardKey(patientID, organizationID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s", CardPrefix, patientID, organizationID, fileName)
}

func ParseCardKey(key string) (CardKey, error) {
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 || parts[0] != CardPrefix || parts[3] == "" {
		return CardKey{}, fmt.Errorf("%w: %q", ErrUnrecognizedKey, key)
	}
	patientID, err := uuid.Parse(parts[1])
	if err != nil {
		return CardKey{}, fmt.Errorf("%w: patient id in %q: %v", ErrUnrecognizedKey, key, err)
	}
	orgID, err := uuid.Parse(parts[2])
	if err != nil {
		return CardKey{}, fmt.Errorf("%w: organization id in %q: %v", ErrUnrecognizedKey, key, err)
	}
	return CardKey{PatientID: patientID, OrganizationID: orgID, FileName: parts[3]}, nil
}

// IsPDF reports whether the object is a PDF by content type or extension.
func IsPDF(fileName, contentType string) bool {
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	return strings.EqualFold(path.Ext(fileName), ".pdf")
}

// IsImage reports whether the image analysis service can read the object.
func IsImage(fileName, contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "image/jpeg" || ct == "image/png" {
		return true
	}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png":
		return ct == "" || ct == "binary/octet-stream" || ct == "application/octet-stream"
	}
	return false
}

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[Location]ObjectInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[Location]ObjectInfo)}
}

// Put records the attributes of an object.
func (m *MemoryStore) Put(loc Location, info ObjectInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[loc] = info
}

func (m *MemoryStore) Stat(_ context.Context, loc Location) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.objects[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
	}
	return &info, nil
}
