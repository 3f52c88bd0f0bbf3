package usecase

import (
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kitchenstock/scanner/internal/domain"
)

// ParserConfig holds configuration for the line parser
type ParserConfig struct {
	MinLineLength      int
	EnableDebugLogging bool
}

// LineParser splits OCR text into line items for deliveries and recipes
type LineParser struct {
	minLineLength      int
	enableDebugLogging bool
}

// unitSpellings maps every accepted spelling (lowercase) to its canonical unit
var unitSpellings = map[string]string{
	// Mass
	"kg": "kg", "kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogramme": "kg", "kilogrammes": "kg",
	"g": "g", "gr": "g", "grs": "g", "gramme": "g", "grammes": "g",
	"mg": "mg",
	// Volume
	"l": "l", "lt": "l", "litre": "l", "litres": "l",
	"cl": "cl", "ml": "ml", "dl": "dl",
	// Count
	"pcs": "pcs", "pc": "pcs", "pce": "pcs", "pces": "pcs",
	"pièce": "pcs", "pièces": "pcs", "piece": "pcs", "pieces": "pcs",
	"unité": "unité", "unités": "unité", "unite": "unité", "unites": "unité", "u": "unité",
	// Packaging
	"botte": "botte", "bottes": "botte",
	"boîte": "boîte", "boîtes": "boîte", "boite": "boîte", "boites": "boîte", "bte": "boîte", "btes": "boîte",
	"sachet": "sachet", "sachets": "sachet",
	"colis": "colis",
	"barquette": "barquette", "barquettes": "barquette",
	"carton": "carton", "cartons": "carton",
	"lot": "lot", "lots": "lot",
	"douzaine": "douzaine", "douzaines": "douzaine",
	"bouteille": "bouteille", "bouteilles": "bouteille",
	"pot": "pot", "pots": "pot",
	// Kitchen measures
	"cuillère": "cuillère", "cuillères": "cuillère", "cuillere": "cuillère", "cuilleres": "cuillère",
	"c.à.s": "c.à.s", "c.a.s": "c.à.s", "càs": "c.à.s", "cas": "c.à.s", "cs": "c.à.s",
	"c.à.c": "c.à.c", "c.a.c": "c.à.c", "càc": "c.à.c", "cac": "c.à.c", "cc": "c.à.c",
	"pincée": "pincée", "pincées": "pincée", "pincee": "pincée", "pincees": "pincée",
	"gousse": "gousse", "gousses": "gousse",
	"tranche": "tranche", "tranches": "tranche",
	"verre": "verre", "verres": "verre",
	"feuille": "feuille", "feuilles": "feuille",
}

const numberExpr = `\d+(?:[.,]\d+)?`

// quantityExpr also accepts recipe fractions: "1/2", "½"
const quantityExpr = `(?:\d+/\d+|` + numberExpr + `|[½¼¾⅓⅔])`

// "/kg", "/pièce" after a price
const perUnitExpr = `(?:\s*/\s*\p{L}+\.?)?`

// Compiled regex patterns for line parsing
var (
	// "12.50€", "12,50 eur", "3 euros", "à 2,50 €/kg"
	priceAfterPattern = regexp.MustCompile(`(?i)((?:(?:^|\s)(?:à|a|@)\s*)?(` + numberExpr + `)\s*(?:€|euros?|eur)` + perUnitExpr + `)(?:[^\p{L}]|$)`)

	// "€12.50", "EUR 3", "€2.50/kg"
	priceBeforePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])((?:€|eur)\s*(` + numberExpr + `)` + perUnitExpr + `)`)

	// "... 12,50" at end of line
	trailingPricePattern = regexp.MustCompile(`(?:^|\s)(\d+[.,]\d{2})\s*$`)

	// "5kg", "1,5 l" (number then unit); built in init
	quantityUnitPattern *regexp.Regexp

	// "kg 5" (unit then number); built in init
	unitQuantityPattern *regexp.Regexp

	// First standalone number
	standaloneQuantityPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}.,/])(` + quantityExpr + `)(?:[^\p{L}\p{N}/]|$)`)

	// "4 personnes", "6 portions", "10 couverts"
	portionsPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:portions?|personnes?|couverts?|pers\.?)(?:[^\p{L}]|$)`)

	// "1. ", "2) ", "Étape 3 :", "Step 4 -"
	stepPrefixPattern = regexp.MustCompile(`(?i)^(?:(?:[ée]tape|step)\s*\d+\s*[:.)\-]?\s*|\d+\s*[.)]\s+)`)

	// "20 min", "1 h", "180°C", "thermostat 6"
	timeTemperaturePattern = regexp.MustCompile(`(?i)(?:\d+\s*(?:min(?:ute)?s?|h(?:eures?)?|sec(?:onde)?s?|°\s*[cf]?|degr[ée]s?)(?:[^\p{L}]|$)|\bth(?:ermostat)?\.?\s*\d)`)

	// Leading list bullets
	bulletPattern = regexp.MustCompile(`^[\-–—•*·>]+\s*`)

	// "de farine", "d'huile", "de la crème"
	partitivePattern = regexp.MustCompile(`(?i)^(?:de\s+la\s+|de\s+l['’]\s*|d['’]\s*|du\s+|des\s+|de\s+)`)
)

var ingredientHeaders = map[string]bool{
	"ingredient":             true,
	"ingredients":            true,
	"liste des ingredients":  true,
	"les ingredients":        true,
	"ingredients necessaires": true,
}

var instructionHeaders = map[string]bool{
	"preparation":  true,
	"instructions": true,
	"instruction":  true,
	"etapes":       true,
	"methode":      true,
	"realisation":  true,
	"deroulement":  true,
	"recette":      true,
	"procede":      true,
}

func init() {
	spellings := make([]string, 0, len(unitSpellings))
	for s := range unitSpellings {
		spellings = append(spellings, regexp.QuoteMeta(s))
	}
	// Longest first so "kg" wins over "g" and "cl" over "l"
	sort.Slice(spellings, func(i, j int) bool {
		if len(spellings[i]) != len(spellings[j]) {
			return len(spellings[i]) > len(spellings[j])
		}
		return spellings[i] < spellings[j]
	})
	units := strings.Join(spellings, "|")

	quantityUnitPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}.,/])(` + quantityExpr + `)\s*(` + units + `)(?:[^\p{L}]|$)`)
	unitQuantityPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}/])(` + units + `)\s*(` + quantityExpr + `)(?:[^\p{L}\p{N}/]|$)`)
}

// NewLineParser creates a new line parser with the given configuration
func NewLineParser(config ParserConfig) *LineParser {
	minLen := config.MinLineLength
	if minLen <= 0 {
		minLen = 2 // Default: single characters are OCR noise
	}

	return &LineParser{
		minLineLength:      minLen,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// ParseDeliveryLines turns delivery note text into one ParsedLine per kept line.
// Lines without a quantity are kept with a nil Quantity.
func (p *LineParser) ParseDeliveryLines(text string) []domain.ParsedLine {
	lines := p.splitLines(text)
	parsed := make([]domain.ParsedLine, 0, len(lines))

	for _, line := range lines {
		parsed = append(parsed, p.ParseLine(line))
	}

	if p.enableDebugLogging {
		log.Printf("[PARSE] Delivery: %d lines kept from %d bytes", len(parsed), len(text))
	}

	return parsed
}

// ParseRecipeLines reads a recipe sheet: the first line is the name, portion
// lines set the portion count, and every other line is classified as either
// an ingredient or an instruction.
func (p *LineParser) ParseRecipeLines(text string) domain.RecipeLines {
	result := domain.RecipeLines{
		IngredientLines:  []domain.ParsedLine{},
		InstructionLines: []string{},
	}

	lines := p.splitLines(text)
	if len(lines) == 0 {
		return result
	}

	name, portions := extractPortions(lines[0])
	result.Header.Name = cleanName(name)
	result.Header.Portions = portions

	section := sectionNone
	for _, line := range lines[1:] {
		if n, ok := findPortions(line); ok {
			if result.Header.Portions == nil {
				result.Header.Portions = &n
			}
			if s := detectSection(line); s != sectionNone {
				section = s
			}
			continue
		}

		if s := detectSection(line); s != sectionNone {
			section = s
			continue
		}

		stripped := strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))

		switch classifyRecipeLine(stripped, section) {
		case recipeIngredient:
			result.IngredientLines = append(result.IngredientLines, p.ParseLine(line))
		default:
			instruction := strings.TrimSpace(stepPrefixPattern.ReplaceAllString(stripped, ""))
			if instruction == "" {
				continue
			}
			result.InstructionLines = append(result.InstructionLines, instruction)
		}
	}

	if p.enableDebugLogging {
		log.Printf("[PARSE] Recipe %q: %d ingredients, %d instructions",
			result.Header.Name, len(result.IngredientLines), len(result.InstructionLines))
	}

	return result
}

// ParseLine extracts price, quantity, unit and residual name from a single line.
// It never fails: anything it cannot read stays nil.
func (p *LineParser) ParseLine(line string) domain.ParsedLine {
	raw := strings.TrimSpace(line)
	work := bulletPattern.ReplaceAllString(raw, "")

	parsed := domain.ParsedLine{Raw: raw}

	// Step 1: Price with a currency marker, otherwise a trailing two-decimal number
	if loc := priceAfterPattern.FindStringSubmatchIndex(work); loc != nil {
		parsed.Price = parseNumber(work[loc[4]:loc[5]])
		work = cutSpan(work, loc[2], loc[3])
	} else if loc := priceBeforePattern.FindStringSubmatchIndex(work); loc != nil {
		parsed.Price = parseNumber(work[loc[4]:loc[5]])
		work = cutSpan(work, loc[2], loc[3])
	} else if loc := trailingPricePattern.FindStringSubmatchIndex(work); loc != nil {
		parsed.Price = parseNumber(work[loc[2]:loc[3]])
		work = cutSpan(work, loc[2], loc[3])
	}

	// Step 2: Quantity glued to a unit, on either side
	if loc := quantityUnitPattern.FindStringSubmatchIndex(work); loc != nil {
		parsed.Quantity = parseQuantity(work[loc[2]:loc[3]])
		parsed.Unit = canonicalUnit(work[loc[4]:loc[5]])
		work = cutSpan(work, loc[2], loc[5])
	} else if loc := unitQuantityPattern.FindStringSubmatchIndex(work); loc != nil {
		parsed.Unit = canonicalUnit(work[loc[2]:loc[3]])
		parsed.Quantity = parseQuantity(work[loc[4]:loc[5]])
		work = cutSpan(work, loc[2], loc[5])
	} else if loc := standaloneQuantityPattern.FindStringSubmatchIndex(work); loc != nil {
		// Step 3: Bare number, no unit
		parsed.Quantity = parseQuantity(work[loc[2]:loc[3]])
		work = cutSpan(work, loc[2], loc[3])
	}

	// Step 4: Whatever is left is the product name, minus a leading "de"/"d'"
	parsed.Name = stripPartitive(cleanName(work))

	if p.enableDebugLogging {
		log.Printf("[PARSE] %q → name=%q qty=%v unit=%v price=%v",
			raw, parsed.Name, deref(parsed.Quantity), derefString(parsed.Unit), deref(parsed.Price))
	}

	return parsed
}

// splitLines normalizes line endings and drops empty, short and symbol-only lines
func (p *LineParser) splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if utf8.RuneCountInString(trimmed) < p.minLineLength {
			continue
		}
		if !strings.ContainsFunc(trimmed, isWordRune) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return kept
}

type recipeSection int

const (
	sectionNone recipeSection = iota
	sectionIngredients
	sectionInstructions
)

type recipeLineKind int

const (
	recipeInstruction recipeLineKind = iota
	recipeIngredient
)

// detectSection recognizes "Ingrédients :" and "Préparation :" style headers
func detectSection(line string) recipeSection {
	normalized := NormalizeName(portionsPattern.ReplaceAllString(line, " "))
	normalized = strings.TrimSpace(strings.TrimSuffix(normalized, " pour"))
	switch {
	case ingredientHeaders[normalized]:
		return sectionIngredients
	case instructionHeaders[normalized]:
		return sectionInstructions
	}
	return sectionNone
}

// classifyRecipeLine decides whether a recipe line is an ingredient.
// Explicit sections win; otherwise numbered steps and cooking times or
// temperatures are instructions, and any other line with a quantity or unit
// token is an ingredient.
func classifyRecipeLine(line string, section recipeSection) recipeLineKind {
	switch section {
	case sectionIngredients:
		return recipeIngredient
	case sectionInstructions:
		return recipeInstruction
	}

	if stepPrefixPattern.MatchString(line) {
		return recipeInstruction
	}
	if timeTemperaturePattern.MatchString(line) {
		return recipeInstruction
	}
	if quantityUnitPattern.MatchString(line) || unitQuantityPattern.MatchString(line) {
		return recipeIngredient
	}
	if standaloneQuantityPattern.MatchString(line) {
		return recipeIngredient
	}
	return recipeInstruction
}

// findPortions reports the portion count mentioned in a line, if any
func findPortions(line string) (int, bool) {
	m := portionsPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// extractPortions removes a portion mention from a title line, e.g.
// "Quiche lorraine (6 personnes)" → "Quiche lorraine", 6
func extractPortions(line string) (string, *int) {
	n, ok := findPortions(line)
	if !ok {
		return line, nil
	}
	rest := portionsPattern.ReplaceAllString(line, " ")
	rest = strings.NewReplacer("()", " ", "( )", " ", "[]", " ").Replace(rest)
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "pour")
	rest = strings.TrimSuffix(rest, "Pour")
	if cleanName(rest) == "" {
		return line, &n
	}
	return rest, &n
}

// cleanName drops symbol-only tokens and multiplication signs and trims
// punctuation from both ends
func cleanName(s string) string {
	var kept []string
	for _, field := range strings.Fields(s) {
		if !strings.ContainsFunc(field, isWordRune) {
			continue
		}
		if f := strings.ToLower(field); f == "x" || f == "×" {
			continue
		}
		kept = append(kept, field)
	}
	name := strings.Join(kept, " ")
	return strings.TrimFunc(name, func(r rune) bool { return !isWordRune(r) })
}

// stripPartitive drops a leading French partitive article unless nothing
// would be left
func stripPartitive(name string) string {
	rest := strings.TrimSpace(partitivePattern.ReplaceAllString(name, ""))
	if rest == "" {
		return name
	}
	return rest
}

// cutSpan replaces s[start:end] with a single space
func cutSpan(s string, start, end int) string {
	return s[:start] + " " + s[end:]
}

func canonicalUnit(spelling string) *string {
	if u, ok := unitSpellings[strings.ToLower(spelling)]; ok {
		return &u
	}
	return nil
}

// parseNumber accepts both decimal comma and decimal point
func parseNumber(s string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

var vulgarFractions = map[string]float64{
	"½": 0.5, "¼": 0.25, "¾": 0.75, "⅓": 1.0 / 3, "⅔": 2.0 / 3,
}

// parseQuantity reads a number, an "a/b" fraction or a vulgar fraction
func parseQuantity(s string) *float64 {
	if v, ok := vulgarFractions[s]; ok {
		return &v
	}
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseNumber(s)
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return nil
	}
	v := n / d
	return &v
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
