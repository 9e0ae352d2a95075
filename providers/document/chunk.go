package document

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Chunk types assigned by detectChunkType.
const (
	ChunkTable         = "table"
	ChunkHeader        = "header"
	ChunkFootnote      = "footnote"
	ChunkFinancialData = "financial_data"
	ChunkParagraph     = "paragraph"
)

// Chunk is one paragraph of one page plus its index terms. Statement is the
// statement type the chunk reads most like, or "".
type Chunk struct {
	ID             string
	PageNumber     int
	Text           string
	Type           string
	Keywords       []string
	FinancialTerms []string
	Statement      string
}

var (
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
	wordPattern     = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
	footnotePattern = regexp.MustCompile(`^[\(\[]?\d+[\)\]]?\s+`)
	numericPattern  = regexp.MustCompile(`\$?\d+[,\d]*\.?\d*`)
	dollarPattern   = regexp.MustCompile(`\$\s*\d+[,\d]*\.?\d*`)
	largeNumber     = regexp.MustCompile(`\b\d{1,3}[,\d]*\.?\d*\s*(million|billion|thousand)\b`)
	figurePattern   = regexp.MustCompile(`(?i)\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)\s*(million|billion|thousand|m|b|k)?`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "can": true, "had": true, "was": true, "one": true,
	"our": true, "out": true, "day": true, "get": true, "has": true, "him": true,
	"his": true, "how": true, "its": true, "may": true, "new": true, "now": true,
	"old": true, "see": true, "two": true, "way": true, "who": true, "did": true,
	"she": true, "use": true, "her": true, "many": true, "with": true, "from": true,
	"that": true, "this": true, "were": true, "which": true,
}

// financialTerms is sorted so extracted term lists are deterministic.
var financialTerms = sortedTerms(
	// balance sheet
	"assets", "current assets", "non-current assets", "total assets",
	"liabilities", "current liabilities", "long-term liabilities", "total liabilities",
	"equity", "stockholders equity", "retained earnings", "common stock",
	"cash", "cash equivalents", "accounts receivable", "inventory",
	"property plant equipment", "accounts payable", "debt", "long-term debt",
	// income statement
	"revenue", "net revenue", "total revenue", "sales", "net sales",
	"cost of revenue", "cost of goods sold", "gross profit", "gross margin",
	"operating expenses", "operating income", "operating margin",
	"net income", "earnings", "earnings per share", "eps",
	"research and development", "sales and marketing", "general and administrative",
	// cash flows
	"cash flow", "operating cash flow", "investing cash flow", "financing cash flow",
	"free cash flow", "capital expenditures", "capex", "depreciation",
	"amortization", "working capital", "stock-based compensation",
	// ratios
	"current ratio", "quick ratio", "debt to equity", "return on equity", "roe",
	"return on assets", "roa", "net margin", "debt ratio", "interest coverage",
	"days sales outstanding", "dso",
	// general
	"million", "billion", "thousand", "fiscal year", "quarter", "quarterly",
	"year-over-year", "yoy", "quarter-over-quarter", "qoq",
	"gaap", "non-gaap", "adjusted", "normalized",
)

var dataKeywords = []string{
	"revenue", "income", "assets", "liabilities", "equity", "cash",
	"debt", "earnings", "profit", "loss", "balance", "statement",
	"million", "billion", "thousand", "$", "usd", "total",
}

// statementKeywords classifies chunks by statement type.
var statementKeywords = map[string][]string{
	"balance_sheet": {
		"balance sheet", "statement of financial position", "assets", "liabilities",
		"equity", "current assets", "working capital", "cash", "inventory",
	},
	"income_statement": {
		"income statement", "statement of operations", "profit and loss", "p&l",
		"revenue", "sales", "cost of revenue", "gross profit", "operating income",
		"net income", "earnings", "eps",
	},
	"cash_flows": {
		"cash flow", "statement of cash flows", "operating activities",
		"investing activities", "financing activities", "free cash flow",
		"capital expenditures", "depreciation",
	},
}

// statementOrder breaks classification ties.
var statementOrder = []string{"balance_sheet", "income_statement", "cash_flows"}

func sortedTerms(terms ...string) []string {
	slices.Sort(terms)
	return slices.Compact(terms)
}

// SplitPages splits text on form feeds. Pages are numbered from 1 in the
// returned slice order; a text without form feeds is a single page.
func SplitPages(text string) []string {
	return strings.Split(text, "\f")
}

// ChunkText splits every page into paragraph chunks and indexes them.
func ChunkText(text string) []Chunk {
	var chunks []Chunk
	for i, page := range SplitPages(text) {
		chunks = append(chunks, chunkPage(page, i+1)...)
	}
	return chunks
}

func chunkPage(page string, pageNumber int) []Chunk {
	page = strings.TrimSpace(page)
	if page == "" {
		return nil
	}

	var chunks []Chunk
	for _, paragraph := range paragraphBreak.Split(page, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		chunk := Chunk{
			ID:             fmt.Sprintf("page_%d_chunk_%d", pageNumber, len(chunks)+1),
			PageNumber:     pageNumber,
			Text:           paragraph,
			Type:           detectChunkType(paragraph),
			Keywords:       extractKeywords(paragraph),
			FinancialTerms: extractFinancialTerms(paragraph),
			Statement:      classifyStatement(paragraph),
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func detectChunkType(text string) string {
	switch {
	case looksLikeTable(text):
		return ChunkTable
	case len(text) < 100 && (isUpper(text) || isTitle(text)):
		return ChunkHeader
	case footnotePattern.MatchString(text):
		return ChunkFootnote
	case containsFinancialData(text):
		return ChunkFinancialData
	default:
		return ChunkParagraph
	}
}

func looksLikeTable(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return false
	}

	var tabLines, numericLines int
	for _, line := range lines {
		if strings.Contains(line, "\t") {
			tabLines++
		}
		if numericPattern.MatchString(line) {
			numericLines++
		}
	}
	total := float64(len(lines))
	return float64(tabLines) > total*0.5 || float64(numericLines) > total*0.7
}

func containsFinancialData(text string) bool {
	lower := strings.ToLower(text)

	keywords := 0
	for _, keyword := range dataKeywords {
		if strings.Contains(lower, keyword) {
			keywords++
		}
	}

	return keywords >= 2 ||
		dollarPattern.MatchString(text) ||
		largeNumber.MatchString(lower)
}

// isUpper reports whether text has cased letters and none are lowercase.
func isUpper(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isTitle reports whether every word starts uppercase and continues lowercase.
func isTitle(text string) bool {
	cased := false
	previousLetter := false
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			if previousLetter {
				return false
			}
			cased = true
			previousLetter = true
		case unicode.IsLower(r):
			if !previousLetter {
				return false
			}
			previousLetter = true
		default:
			previousLetter = false
		}
	}
	return cased
}

// extractKeywords returns up to ten distinct non-stopword words longer than
// three letters, in first-seen order.
func extractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(word) <= 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}

func extractFinancialTerms(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range financialTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	return found
}

// classifyStatement returns the statement type whose keywords occur most
// often in text, or "" when none occur.
func classifyStatement(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := "", 0
	for _, statement := range statementOrder {
		score := 0
		for _, keyword := range statementKeywords[statement] {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = statement, score
		}
	}
	return best
}

// largestFigure returns the largest dollar amount in text, scaled by its
// unit, or 0.
func largestFigure(text string) float64 {
	var largest float64
	for _, match := range figurePattern.FindAllStringSubmatch(text, -1) {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(match[2]) {
		case "million", "m":
			amount *= 1_000_000
		case "billion", "b":
			amount *= 1_000_000_000
		case "thousand", "k":
			amount *= 1_000
		}
		largest = max(largest, amount)
	}
	return largest
}
