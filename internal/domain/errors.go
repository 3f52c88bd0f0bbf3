package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUploadTooLarge is returned when a request body exceeds the upload limit
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrNotFound is returned by key-value stores for absent keys
	ErrNotFound = errors.New("not found")

	// ErrProductNotFound is returned when a product id is not in the catalog
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrCatalogUnavailable is returned when no catalog could be loaded
	ErrCatalogUnavailable = errors.New("product catalog unavailable")

	// ErrRecognition matches any RecognitionError via errors.Is
	ErrRecognition = errors.New("text recognition failed")

	// ErrCorrectionStore matches any CorrectionStoreError via errors.Is
	ErrCorrectionStore = errors.New("correction store failure")
)

// RecognitionError is returned when the OCR engine cannot process an image.
// It aborts the whole scan.
type RecognitionError struct {
	Op  string
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition: %s: %v", e.Op, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool { return target == ErrRecognition }

// CorrectionStoreError wraps a persistence failure of Correction Memory.
// Callers log it and carry on.
type CorrectionStoreError struct {
	Key string
	Err error
}

func (e *CorrectionStoreError) Error() string {
	return fmt.Sprintf("correction store: key %q: %v", e.Key, e.Err)
}

func (e *CorrectionStoreError) Unwrap() error { return e.Err }

func (e *CorrectionStoreError) Is(target error) bool { return target == ErrCorrectionStore }
