package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProductCatalogEntry is a known product a scanned line can be matched against.
// The catalog is supplied by the host application and never modified here.
type ProductCatalogEntry struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}

// ParsedLine is one text line split into quantity, unit, price and residual name.
// Fields that could not be extracted stay nil so the user can complete them.
type ParsedLine struct {
	Raw      string   `json:"raw"`
	Quantity *float64 `json:"quantity"`
	Unit     *string  `json:"unit"`
	Price    *float64 `json:"price"`
	Name     string   `json:"name"`
}

// MatchType classifies how a parsed line was matched to the catalog
type MatchType int

const (
	MatchNone MatchType = iota
	MatchFuzzy
	MatchPartial
	MatchExact
)

var matchTypeNames = map[MatchType]string{
	MatchNone:    "none",
	MatchFuzzy:   "fuzzy",
	MatchPartial: "partial",
	MatchExact:   "exact",
}

func (m MatchType) String() string {
	if s, ok := matchTypeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MatchType(%d)", int(m))
}

// ParseMatchType converts the wire name of a match type back to the enum
func ParseMatchType(s string) (MatchType, error) {
	for k, v := range matchTypeNames {
		if v == s {
			return k, nil
		}
	}
	return MatchNone, fmt.Errorf("%w: unknown match type %q", ErrInvalidRequest, s)
}

func (m MatchType) MarshalJSON() ([]byte, error) {
	s, ok := matchTypeNames[m]
	if !ok {
		return nil, fmt.Errorf("cannot marshal %s", m)
	}
	return json.Marshal(s)
}

func (m *MatchType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMatchType(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MatchedItem is a parsed line together with its catalog match.
// MatchType == MatchNone iff Product == nil iff MatchScore == 0.
type MatchedItem struct {
	Parsed             ParsedLine            `json:"parsed"`
	Product            *ProductCatalogEntry  `json:"product"`
	MatchScore         float64               `json:"matchScore"` // 0..1
	MatchType          MatchType             `json:"matchType"`
	Alternatives       []ProductCatalogEntry `json:"alternatives"`
	UserCorrected      bool                  `json:"userCorrected"`
	CorrectedProductID *string               `json:"correctedProductId"`
	FromCorrection     bool                  `json:"fromCorrection"` // learned from Correction Memory
}

// Correction is a user-confirmed mapping from a normalized raw name to a product
type Correction struct {
	RawNameNormalized string    `json:"rawNameNormalized"`
	ProductID         string    `json:"productId"`
	ProductName       string    `json:"productName"`
	Occurrences       int       `json:"occurrences"`
	LastUsedAt        time.Time `json:"lastUsedAt"`
}

// OCRResult is the outcome of one delivery note scan
type OCRResult struct {
	ScanID     string        `json:"scanId"`
	RawText    string        `json:"rawText"`
	Confidence float64       `json:"confidence"`
	Matches    []MatchedItem `json:"matches"`
}

// RecipeHeader holds what the parser could read about the recipe itself
type RecipeHeader struct {
	Name     string `json:"name"`
	Portions *int   `json:"portions"`
}

// RecipeLines is the parser output for a recipe sheet
type RecipeLines struct {
	Header           RecipeHeader `json:"header"`
	IngredientLines  []ParsedLine `json:"ingredientLines"`
	InstructionLines []string     `json:"instructionLines"`
}

// ParsedRecipe is the outcome of one recipe sheet scan
type ParsedRecipe struct {
	ScanID       string        `json:"scanId"`
	RawText      string        `json:"rawText"`
	Confidence   float64       `json:"confidence"`
	Name         string        `json:"name"`
	Portions     *int          `json:"portions"`
	Instructions []string      `json:"instructions"`
	Ingredients  []MatchedItem `json:"ingredients"`
}

// Recognition is the raw output of the text recognizer
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
}

// Progress is a single progress notification for a running scan
type Progress struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// ProgressFunc receives progress notifications. It may be nil.
type ProgressFunc func(Progress)
