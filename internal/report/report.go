// Package report stores and loads serialized analysis trees.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/maraichr/ceindex/pkg/models"
)

// MaxReportSize bounds the size of a decoded report.
const MaxReportSize = 64 << 20

var (
	// ErrInvalidReport marks reports that can never be applied: malformed JSON or an invalid tree.
	ErrInvalidReport  = errors.New("invalid report")
	ErrReportTooLarge = errors.New("report exceeds maximum size")
)

// Store reads and writes report objects. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, object string, r io.Reader, size int64) error
	Open(ctx context.Context, object string) (io.ReadCloser, error)
}

// ObjectName returns the object a run's report is stored under.
func ObjectName(runID uuid.UUID) string {
	return fmt.Sprintf("reports/%s.json", runID)
}

// Save encodes root and writes it to object.
func Save(ctx context.Context, s Store, object string, root *models.Component) error {
	data, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.Put(ctx, object, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("store report %s: %w", object, err)
	}
	return nil
}

// Load reads object and decodes it into a validated component tree.
func Load(ctx context.Context, s Store, object string) (*models.Component, error) {
	rc, err := s.Open(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", object, err)
	}
	defer rc.Close()

	root, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", object, err)
	}
	return root, nil
}

// Decode parses a JSON component tree and validates it.
func Decode(r io.Reader) (*models.Component, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxReportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(data) > MaxReportSize {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, ErrReportTooLarge)
	}

	var root models.Component
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidReport, err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	return &root, nil
}
