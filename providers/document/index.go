package document

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// DefaultTopK bounds the excerpts returned for one query.
const DefaultTopK = 5

// Excerpt is a retrieved passage attached to a section as a citation source.
type Excerpt struct {
	ChunkID    string `json:"chunk_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	Type       string `json:"type"`
}

// Citation renders the reference a drafted section cites, e.g. "Page 3".
func (excerpt Excerpt) Citation() string {
	return fmt.Sprintf("Page %d", excerpt.PageNumber)
}

// Query describes what a generator needs evidence for.
type Query struct {
	// Text is free text, typically the statement name plus checker feedback.
	Text string
	// StatementType restricts matches, e.g. "cash_flows". Empty searches all.
	StatementType string
	// Concepts are financial terms looked up one excerpt each.
	Concepts []string
	TopK     int
}

// Retriever finds excerpts of the analyzed document.
type Retriever interface {
	Retrieve(ctx context.Context, query Query) ([]Excerpt, error)
}

// pageRange is where a statement usually appears in a filing.
type pageRange struct {
	first, last int
}

var statementPages = map[string]pageRange{
	"balance_sheet":    {1, 5},
	"income_statement": {1, 8},
	"cash_flows":       {3, 10},
}

const figureThreshold = 1_000_000

// KeywordIndex is an in-memory Retriever over page-split paragraph chunks.
// It is immutable after construction and safe for concurrent use.
type KeywordIndex struct {
	chunks      []Chunk
	byStatement map[string][]int
	byTerm      map[string][]int
}

var _ Retriever = (*KeywordIndex)(nil)

// NewKeywordIndex chunks text and builds the statement and term indexes.
func NewKeywordIndex(text string) *KeywordIndex {
	index := &KeywordIndex{
		chunks:      ChunkText(text),
		byStatement: make(map[string][]int),
		byTerm:      make(map[string][]int),
	}
	for i, chunk := range index.chunks {
		if chunk.Statement != "" {
			index.byStatement[chunk.Statement] = append(index.byStatement[chunk.Statement], i)
		}
		for _, term := range chunk.FinancialTerms {
			index.byTerm[term] = append(index.byTerm[term], i)
		}
	}
	return index
}

// Len returns the number of indexed chunks.
func (index *KeywordIndex) Len() int {
	return len(index.chunks)
}

// Retrieve combines three strategies and returns at most TopK distinct
// excerpts, in this order:
//   - up to three chunks ranked by keyword score against query.Text
//   - the best chunk per concept
//   - up to two chunks quoting a figure of at least $1 million
func (index *KeywordIndex) Retrieve(ctx context.Context, query Query) ([]Excerpt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topK := query.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var picked []int
	picked = append(picked, index.byKeywords(query.Text, query.StatementType, 3)...)
	for _, concept := range query.Concepts {
		picked = append(picked, index.byConcept(concept, query.StatementType, 1)...)
	}
	picked = append(picked, index.withFigures(query.StatementType, 2)...)

	seen := make(map[int]bool, len(picked))
	excerpts := make([]Excerpt, 0, topK)
	for _, i := range picked {
		if seen[i] {
			continue
		}
		seen[i] = true
		chunk := index.chunks[i]
		excerpts = append(excerpts, Excerpt{
			ChunkID:    chunk.ID,
			PageNumber: chunk.PageNumber,
			Text:       chunk.Text,
			Type:       chunk.Type,
		})
		if len(excerpts) == topK {
			break
		}
	}
	return excerpts, nil
}

type scored struct {
	chunk int
	score float64
}

// byKeywords ranks candidates by weighted matches per 1000 characters:
// direct substring matches count 1, keyword matches 1.5 and financial term
// matches 2. Chunks scoring zero are dropped.
func (index *KeywordIndex) byKeywords(text, statement string, limit int) []int {
	terms := uniqueFields(strings.ToLower(text))
	if len(terms) == 0 {
		return nil
	}

	candidates, ok := index.byStatement[statement]
	if !ok {
		candidates = index.all()
	}

	var ranked []scored
	for _, i := range candidates {
		chunk := index.chunks[i]
		lower := strings.ToLower(chunk.Text)

		var direct, keyword, financial int
		for _, term := range terms {
			if strings.Contains(lower, term) {
				direct++
			}
			if slices.Contains(chunk.Keywords, term) {
				keyword++
			}
			if slices.Contains(chunk.FinancialTerms, term) {
				financial++
			}
		}

		score := float64(direct) + float64(keyword)*1.5 + float64(financial)*2
		if score <= 0 {
			continue
		}
		score /= float64(len(chunk.Text)) / 1000
		ranked = append(ranked, scored{chunk: i, score: score})
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	return topChunks(ranked, limit)
}

// byConcept prefers chunks rich in financial terms that mention concept.
func (index *KeywordIndex) byConcept(concept, statement string, limit int) []int {
	concept = strings.ToLower(strings.TrimSpace(concept))
	if concept == "" {
		return nil
	}

	candidates, ok := index.byTerm[concept]
	if !ok {
		for i, chunk := range index.chunks {
			if strings.Contains(strings.ToLower(chunk.Text), concept) {
				candidates = append(candidates, i)
			}
		}
	}

	var ranked []scored
	for _, i := range candidates {
		if statement != "" && !index.matchesStatement(i, statement) {
			continue
		}
		ranked = append(ranked, scored{chunk: i, score: float64(len(index.chunks[i].FinancialTerms))})
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	return topChunks(ranked, limit)
}

func (index *KeywordIndex) withFigures(statement string, limit int) []int {
	var found []int
	for i, chunk := range index.chunks {
		if len(found) == limit {
			break
		}
		if statement != "" && !index.matchesStatement(i, statement) {
			continue
		}
		if largestFigure(chunk.Text) >= figureThreshold {
			found = append(found, i)
		}
	}
	return found
}

// matchesStatement accepts chunks classified as statement or located on the
// pages where that statement usually appears.
func (index *KeywordIndex) matchesStatement(i int, statement string) bool {
	chunk := index.chunks[i]
	if chunk.Statement == statement {
		return true
	}
	pages, ok := statementPages[statement]
	if !ok {
		pages = pageRange{1, 100}
	}
	return chunk.PageNumber >= pages.first && chunk.PageNumber <= pages.last
}

func (index *KeywordIndex) all() []int {
	all := make([]int, len(index.chunks))
	for i := range all {
		all[i] = i
	}
	return all
}

func topChunks(ranked []scored, limit int) []int {
	top := make([]int, 0, min(limit, len(ranked)))
	for _, entry := range ranked[:min(limit, len(ranked))] {
		top = append(top, entry.chunk)
	}
	return top
}

func uniqueFields(text string) []string {
	var terms []string
	for _, field := range strings.Fields(text) {
		if !slices.Contains(terms, field) {
			terms = append(terms, field)
		}
	}
	return terms
}
