package main

import (
	"fmt"
	"log"

	"github.com/kitchenstock/scanner/config"
	"github.com/kitchenstock/scanner/internal/domain"
	"github.com/kitchenstock/scanner/internal/infrastructure/catalog"
	"github.com/kitchenstock/scanner/internal/infrastructure/store"
	"github.com/kitchenstock/scanner/internal/infrastructure/tesseract"
	"github.com/kitchenstock/scanner/internal/usecase"
)

// app bundles the wired services shared by every command
type app struct {
	scans       *usecase.ScanService
	corrections *usecase.CorrectionService
	catalog     *catalog.FileCatalog
	close       func() error
}

func newApp(cfg *config.Config) (*app, error) {
	kv, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	var products *catalog.FileCatalog
	if cfg.Catalog.Path != "" {
		products, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			closeStore()
			return nil, err
		}
	}

	recognizer := tesseract.NewRecognizer(tesseract.Config{
		Languages:     cfg.OCR.Languages,
		PageSegMode:   cfg.OCR.PageSegMode,
		MaxImageWidth: cfg.OCR.MaxImageWidth,
		MinImageWidth: cfg.OCR.MinImageWidth,
		Debug:         cfg.Matching.EnableDebugLogging,
	})
	log.Printf("OCR engine: %s", recognizer)

	parser := usecase.NewLineParser(usecase.ParserConfig{
		MinLineLength:      cfg.Parser.MinLineLength,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})
	matcher := usecase.NewMatchingService(usecase.MatchConfig{
		MinSimilarity:      cfg.Matching.MinSimilarity,
		MaxAlternatives:    cfg.Matching.MaxAlternatives,
		MinPartialLength:   cfg.Matching.MinPartialLength,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})
	corrections := usecase.NewCorrectionService(kv)

	log.Printf("Matching: similarity>=%.2f, alternatives=%d, debug=%v",
		cfg.Matching.MinSimilarity, cfg.Matching.MaxAlternatives, cfg.Matching.EnableDebugLogging)

	return &app{
		scans:       usecase.NewScanService(recognizer, parser, matcher, corrections),
		corrections: corrections,
		catalog:     products,
		close:       closeStore,
	}, nil
}

// catalogProvider returns the loaded catalog as an interface, nil when none is configured
func (a *app) catalogProvider() domain.CatalogProvider {
	if a.catalog == nil {
		return nil
	}
	return a.catalog
}

func openStore(cfg config.StoreConfig) (domain.KeyValueStore, func() error, error) {
	switch cfg.Type {
	case "memory":
		log.Printf("Correction store: memory (corrections are lost on exit)")
		return store.NewMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		s, err := store.OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
