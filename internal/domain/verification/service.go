package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"time"

	"github.com/google/uuid"

	"medverify/internal/analyzer"
	"medverify/internal/storage"
)

// MaxMetadataBytes caps the serialized metadata accepted with a submission.
const MaxMetadataBytes = 16 * 1024

// Service runs the verification pipeline: store the image, ask the analyzer
// for a verdict, persist the outcome. The three steps run strictly in that
// order and there is no rollback across them — a stored image may outlive a
// failed analysis, and an analysis result is lost if the final write fails.
type Service struct {
	repo     Repository
	store    *storage.LocalStore
	analyzer analyzer.Analyzer
}

func NewService(repo Repository, store *storage.LocalStore, az analyzer.Analyzer) *Service {
	return &Service{repo: repo, store: store, analyzer: az}
}

// ParseMetadata decodes the optional free-form metadata field. Empty input is
// an empty map; anything else must be a JSON object within the size cap.
func ParseMetadata(raw string) (Metadata, error) {
	if raw == "" {
		return Metadata{}, nil
	}
	if len(raw) > MaxMetadataBytes {
		return nil, ErrMetadataTooLarge
	}
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, ErrInvalidMetadata
	}
	if m == nil {
		m = Metadata{}
	}
	return m, nil
}

// Verify runs one submission through the pipeline for the given owner.
// ownerID comes from the authenticated identity, never from client input.
func (s *Service) Verify(ctx context.Context, ownerID int64, fileHeader *multipart.FileHeader, metadata Metadata) (*Record, error) {
	img, err := s.store.Save(fileHeader)
	if err != nil {
		return nil, err
	}

	f, err := s.store.Open(img)
	if err != nil {
		log.Printf("verification failed stage=reopen owner_id=%d image=%s error=%q", ownerID, img.Name, err)
		return nil, fmt.Errorf("%w: stored image unreadable", analyzer.ErrAnalysisFailed)
	}
	defer f.Close()

	verdict, err := s.analyzer.Analyze(ctx, f, img.Name)
	if err != nil {
		log.Printf("verification failed stage=analyze owner_id=%d image=%s error=%q", ownerID, img.Name, err)
		return nil, fmt.Errorf("%w: %v", analyzer.ErrAnalysisFailed, err)
	}

	rec := &Record{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Result: Result{
			IsAuthentic: verdict.IsAuthentic,
			Confidence:  verdict.Confidence,
			Timestamp:   time.Now().UTC(),
			ImageRef:    img.Ref,
		},
		Metadata: metadata,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		log.Printf("verification failed stage=persist owner_id=%d image=%s error=%q", ownerID, img.Name, err)
		return nil, err
	}

	return rec, nil
}

// History returns the caller's records, most recent first.
func (s *Service) History(ctx context.Context, ownerID int64) ([]*Record, error) {
	return s.repo.ListByOwnerID(ctx, ownerID)
}

// Get returns a record by id. Existence is disclosed to any authenticated
// caller, content only to the owner.
func (s *Service) Get(ctx context.Context, id string, callerID int64) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	return rec, nil
}
