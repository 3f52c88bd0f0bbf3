package usecase

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/kitchenstock/scanner/internal/domain"
)

// Progress budget: recognition owns 0-70, parsing and matching share the rest
const (
	recognitionProgressShare = 70
	parsingProgress          = 72
	matchingProgressStart    = 75
	matchingProgressEnd      = 99
)

// CorrectionMemory is the read/write view of Correction Memory used by scans
type CorrectionMemory interface {
	domain.CorrectionLookup
	Record(ctx context.Context, rawName, productID, productName string) error
}

// ScanService sequences recognition, parsing and matching for one image
type ScanService struct {
	recognizer  domain.TextRecognizer
	parser      *LineParser
	matcher     *MatchingService
	corrections CorrectionMemory
	newScanID   func() string
}

// NewScanService creates a scan pipeline. corrections may be nil, in which
// case nothing is learned or looked up.
func NewScanService(
	recognizer domain.TextRecognizer,
	parser *LineParser,
	matcher *MatchingService,
	corrections CorrectionMemory,
) *ScanService {
	return &ScanService{
		recognizer:  recognizer,
		parser:      parser,
		matcher:     matcher,
		corrections: corrections,
		newScanID:   func() string { return uuid.New().String() },
	}
}

// ProcessDeliveryImage runs the full pipeline for a delivery note.
// Recognition failures abort the call with a *domain.RecognitionError;
// unmatched or half-parsed lines are returned as data.
func (s *ScanService) ProcessDeliveryImage(
	ctx context.Context,
	image []byte,
	catalog []domain.ProductCatalogEntry,
	onProgress domain.ProgressFunc,
) (*domain.OCRResult, error) {
	progress := newProgressReporter(ctx, onProgress)
	defer progress.close()

	catalog = append([]domain.ProductCatalogEntry(nil), catalog...)
	scanID := s.newScanID()

	recognition, err := s.recognize(ctx, image, progress)
	if err != nil {
		log.Printf("[SCAN] %s delivery recognition failed: %v", scanID, err)
		return nil, err
	}

	progress.report(parsingProgress, "parsing lines")
	lines := s.parser.ParseDeliveryLines(recognition.Text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := s.matchLines(ctx, lines, catalog, progress)
	if err != nil {
		return nil, err
	}

	progress.report(100, "done")
	log.Printf("[SCAN] %s delivery: %d lines, confidence %.2f", scanID, len(items), recognition.Confidence)

	return &domain.OCRResult{
		ScanID:     scanID,
		RawText:    recognition.Text,
		Confidence: recognition.Confidence,
		Matches:    items,
	}, nil
}

// ProcessRecipeImage runs the full pipeline for a recipe sheet
func (s *ScanService) ProcessRecipeImage(
	ctx context.Context,
	image []byte,
	catalog []domain.ProductCatalogEntry,
	onProgress domain.ProgressFunc,
) (*domain.ParsedRecipe, error) {
	progress := newProgressReporter(ctx, onProgress)
	defer progress.close()

	catalog = append([]domain.ProductCatalogEntry(nil), catalog...)
	scanID := s.newScanID()

	recognition, err := s.recognize(ctx, image, progress)
	if err != nil {
		log.Printf("[SCAN] %s recipe recognition failed: %v", scanID, err)
		return nil, err
	}

	progress.report(parsingProgress, "parsing recipe")
	recipe := s.parser.ParseRecipeLines(recognition.Text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ingredients, err := s.matchLines(ctx, recipe.IngredientLines, catalog, progress)
	if err != nil {
		return nil, err
	}

	progress.report(100, "done")
	log.Printf("[SCAN] %s recipe %q: %d ingredients, %d instructions",
		scanID, recipe.Header.Name, len(ingredients), len(recipe.InstructionLines))

	return &domain.ParsedRecipe{
		ScanID:       scanID,
		RawText:      recognition.Text,
		Confidence:   recognition.Confidence,
		Name:         recipe.Header.Name,
		Portions:     recipe.Header.Portions,
		Instructions: recipe.InstructionLines,
		Ingredients:  ingredients,
	}, nil
}

// ConfirmCorrections writes the user's manual picks back into Correction
// Memory. Store failures are logged and skipped; the count of recorded
// corrections is returned.
func (s *ScanService) ConfirmCorrections(
	ctx context.Context,
	items []domain.MatchedItem,
	catalog []domain.ProductCatalogEntry,
) (int, error) {
	if s.corrections == nil {
		return 0, nil
	}

	byID := make(map[string]domain.ProductCatalogEntry, len(catalog))
	for _, entry := range catalog {
		if _, seen := byID[entry.ID]; !seen {
			byID[entry.ID] = entry
		}
	}

	recorded := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}
		if !item.UserCorrected || item.CorrectedProductID == nil {
			continue
		}

		product, ok := byID[*item.CorrectedProductID]
		if !ok {
			log.Printf("[SCAN] Skipping correction for %q: %v %s", item.Parsed.Name, domain.ErrProductNotFound, *item.CorrectedProductID)
			continue
		}

		if err := s.corrections.Record(ctx, item.Parsed.Name, product.ID, product.Name); err != nil {
			log.Printf("[SCAN] Could not remember correction for %q: %v", item.Parsed.Name, err)
			continue
		}
		recorded++
	}

	return recorded, nil
}

func (s *ScanService) recognize(ctx context.Context, image []byte, progress *progressReporter) (*domain.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recognition, err := s.recognizer.Recognize(ctx, image, func(p domain.Progress) {
		status := p.Status
		if p.Percent >= 100 {
			// The engine is done, the scan is not
			status = "text recognized"
		}
		progress.report(p.Percent*recognitionProgressShare/100, status)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var recErr *domain.RecognitionError
		if errors.As(err, &recErr) {
			return nil, err
		}
		return nil, &domain.RecognitionError{Op: "recognize", Err: err}
	}
	if recognition == nil {
		return nil, &domain.RecognitionError{Op: "recognize", Err: errors.New("engine returned no result")}
	}

	result := *recognition
	result.Confidence = min(max(result.Confidence, 0), 1)
	return &result, nil
}

func (s *ScanService) matchLines(
	ctx context.Context,
	lines []domain.ParsedLine,
	catalog []domain.ProductCatalogEntry,
	progress *progressReporter,
) ([]domain.MatchedItem, error) {
	progress.report(matchingProgressStart, "matching products")

	var lookup domain.CorrectionLookup
	if s.corrections != nil {
		lookup = s.corrections
	}

	total := len(lines)
	return s.matcher.MatchLines(ctx, lines, catalog, lookup, func(done int) {
		pct := matchingProgressStart + (matchingProgressEnd-matchingProgressStart)*done/total
		progress.report(pct, "matching products")
	})
}

// progressReporter forwards progress while keeping it monotonic and silent
// once the scan is cancelled or finished
type progressReporter struct {
	ctx    context.Context
	fn     domain.ProgressFunc
	mu     sync.Mutex
	last   int
	closed bool
}

func newProgressReporter(ctx context.Context, fn domain.ProgressFunc) *progressReporter {
	return &progressReporter{ctx: ctx, fn: fn}
}

func (r *progressReporter) report(percent int, status string) {
	if r.fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.ctx.Err() != nil {
		return
	}

	percent = min(max(percent, r.last), 100)
	r.last = percent
	r.fn(domain.Progress{Percent: percent, Status: status})
}

func (r *progressReporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
