package usecase

import (
	"context"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kitchenstock/scanner/internal/domain"
)

// Scoring bounds for containment matches
const (
	partialScoreFloor = 0.6
	partialScoreSpan  = 0.3 // partial scores land in [0.6, 0.9]
)

// stopWords are dropped before token-sorted comparison ("filet de poulet" vs "poulet filet")
var stopWords = map[string]bool{
	"de": true, "du": true, "des": true, "d": true,
	"la": true, "le": true, "les": true, "l": true,
	"a": true, "au": true, "aux": true, "en": true,
	"et": true, "un": true, "une": true,
	"the": true, "of": true, "and": true,
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinSimilarity      float64
	MaxAlternatives    int
	MinPartialLength   int
	EnableDebugLogging bool
}

// MatchingService matches parsed line names against the product catalog
type MatchingService struct {
	minSimilarity      float64
	maxAlternatives    int
	minPartialLength   int
	enableDebugLogging bool
}

// candidate is a catalog entry with its precomputed match keys
type candidate struct {
	entry      domain.ProductCatalogEntry
	normalized string
	sorted     string
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.MinSimilarity
	if threshold <= 0 {
		threshold = 0.35 // Default: OCR noise tolerant
	}

	maxAlts := config.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 3
	}

	minPartial := config.MinPartialLength
	if minPartial <= 0 {
		minPartial = 3
	}

	return &MatchingService{
		minSimilarity:      threshold,
		maxAlternatives:    maxAlts,
		minPartialLength:   minPartial,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Match finds the catalog product for a single parsed line.
// Evaluation order: learned correction, exact name, containment, fuzzy similarity.
// A line that matches nothing comes back as MatchNone, never as an error;
// only context cancellation is returned.
func (s *MatchingService) Match(
	ctx context.Context,
	line domain.ParsedLine,
	catalog []domain.ProductCatalogEntry,
	corrections domain.CorrectionLookup,
) (domain.MatchedItem, error) {
	return s.matchPrepared(ctx, line, prepareCatalog(catalog), corrections)
}

// MatchLines matches every line independently and preserves their order.
// onMatched, when set, is called after each line with the count done so far.
func (s *MatchingService) MatchLines(
	ctx context.Context,
	lines []domain.ParsedLine,
	catalog []domain.ProductCatalogEntry,
	corrections domain.CorrectionLookup,
	onMatched func(done int),
) ([]domain.MatchedItem, error) {
	candidates := prepareCatalog(catalog)
	items := make([]domain.MatchedItem, 0, len(lines))

	for i, line := range lines {
		item, err := s.matchPrepared(ctx, line, candidates, corrections)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if onMatched != nil {
			onMatched(i + 1)
		}
	}

	return items, nil
}

func (s *MatchingService) matchPrepared(
	ctx context.Context,
	line domain.ParsedLine,
	candidates []candidate,
	corrections domain.CorrectionLookup,
) (domain.MatchedItem, error) {
	item := domain.MatchedItem{
		Parsed:       line,
		MatchType:    domain.MatchNone,
		Alternatives: []domain.ProductCatalogEntry{},
	}

	if err := ctx.Err(); err != nil {
		return item, err
	}

	name := NormalizeName(line.Name)
	if name == "" {
		return item, nil
	}
	sortedName := sortedTokens(name)

	// Similarity against the whole catalog feeds both the fuzzy step and the alternatives
	similarities := make([]float64, len(candidates))
	for i, c := range candidates {
		select {
		case <-ctx.Done():
			return item, ctx.Err()
		default:
		}
		similarities[i] = similarity(name, sortedName, c.normalized, c.sorted)
	}

	chosen := -1

	// Step 1: Learned correction
	if corrections != nil {
		correction, err := corrections.Lookup(ctx, name)
		if err != nil {
			log.Printf("[MATCH] Correction lookup failed for %q, falling back to catalog: %v", name, err)
		} else if correction != nil {
			if idx := indexOfID(candidates, correction.ProductID); idx >= 0 {
				chosen = idx
				item.MatchScore = 1
				item.MatchType = domain.MatchPartial
				if correction.Occurrences >= 2 {
					item.MatchType = domain.MatchExact
				}
				item.FromCorrection = true
			} else if s.enableDebugLogging {
				log.Printf("[MATCH] Stale correction %q → %s ignored (not in catalog)", name, correction.ProductID)
			}
		}
	}

	// Step 2: Exact normalized name
	if chosen < 0 {
		for i, c := range candidates {
			if c.normalized == name {
				chosen = i
				item.MatchScore = 1
				item.MatchType = domain.MatchExact
				break
			}
		}
	}

	// Step 3: Containment either way, scaled by length ratio
	if chosen < 0 {
		best := 0.0
		for i, c := range candidates {
			if score, ok := s.partialScore(name, c.normalized); ok && score > best {
				best = score
				chosen = i
			}
		}
		if chosen >= 0 {
			item.MatchScore = best
			item.MatchType = domain.MatchPartial
		}
	}

	// Step 4: Best edit-distance similarity above threshold
	if chosen < 0 {
		best, bestIdx := 0.0, -1
		for i, sim := range similarities {
			if sim > best {
				best = sim
				bestIdx = i
			}
		}
		if bestIdx >= 0 && best >= s.minSimilarity {
			chosen = bestIdx
			item.MatchScore = best
			item.MatchType = domain.MatchFuzzy
		}
	}

	if chosen >= 0 {
		product := candidates[chosen].entry
		item.Product = &product
	}

	item.Alternatives = s.alternatives(candidates, similarities, chosen)

	if s.enableDebugLogging {
		if item.Product != nil {
			log.Printf("[MATCH] %q → %q (%s, score %.2f, %d alternatives)",
				line.Name, item.Product.Name, item.MatchType, item.MatchScore, len(item.Alternatives))
		} else {
			log.Printf("[MATCH] %q → no match (%d alternatives)", line.Name, len(item.Alternatives))
		}
	}

	return item, nil
}

// partialScore reports whether one name contains the other and scores it by
// the length ratio of the shorter to the longer
func (s *MatchingService) partialScore(a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}

	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}

	shortLen := utf8.RuneCountInString(shorter)
	if shortLen < s.minPartialLength || !strings.Contains(longer, shorter) {
		return 0, false
	}

	ratio := float64(shortLen) / float64(utf8.RuneCountInString(longer))
	return partialScoreFloor + partialScoreSpan*ratio, true
}

// alternatives ranks the catalog by similarity, excluding the chosen entry.
// Equal scores keep catalog order.
func (s *MatchingService) alternatives(candidates []candidate, similarities []float64, chosen int) []domain.ProductCatalogEntry {
	order := make([]int, 0, len(candidates))
	for i := range candidates {
		if i == chosen || similarities[i] <= 0 {
			continue
		}
		order = append(order, i)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return similarities[order[a]] > similarities[order[b]]
	})

	if len(order) > s.maxAlternatives {
		order = order[:s.maxAlternatives]
	}

	alts := make([]domain.ProductCatalogEntry, 0, len(order))
	for _, i := range order {
		alts = append(alts, candidates[i].entry)
	}
	return alts
}

// nameSimilarity returns the normalized edit-distance similarity (0..1) between
// two product names, tolerant to accents, case and word order
func nameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	return similarity(na, sortedTokens(na), nb, sortedTokens(nb))
}

func similarity(a, aSorted, b, bSorted string) float64 {
	if a == "" || b == "" {
		return 0
	}
	direct := levenshteinSimilarity(a, b)
	if aSorted == a && bSorted == b {
		return direct
	}
	return max(direct, levenshteinSimilarity(aSorted, bSorted))
}

func levenshteinSimilarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

func prepareCatalog(catalog []domain.ProductCatalogEntry) []candidate {
	candidates := make([]candidate, len(catalog))
	for i, entry := range catalog {
		normalized := NormalizeName(entry.Name)
		candidates[i] = candidate{
			entry:      entry,
			normalized: normalized,
			sorted:     sortedTokens(normalized),
		}
	}
	return candidates
}

func indexOfID(candidates []candidate, id string) int {
	for i, c := range candidates {
		if c.entry.ID == id {
			return i
		}
	}
	return -1
}

// sortedTokens drops stop words and sorts the remaining tokens alphabetically.
// Input is expected to be normalized already.
func sortedTokens(normalized string) string {
	words := strings.Fields(normalized)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	if len(tokens) == 0 {
		return normalized
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
