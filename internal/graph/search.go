package graph

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
)

// Searchable field names accepted in SearchOptions.SearchIn.
const (
	FieldTitle      = "title"
	FieldContent    = "content"
	FieldCategories = "categories"
	FieldTags       = "tags"
	FieldURL        = "url"
)

// Per-field score weights. A field contributes the number of distinct
// query terms it contains, multiplied by its weight. Tags carry the
// highest weight: explicit user curation is trusted most.
const (
	weightTitle    = 3.0
	weightSummary  = 2.0
	weightText     = 1.0
	weightEntities = 1.5
	weightCategory = 2.0
	weightTag      = 2.5
	weightURL      = 1.0
)

// SortByRelevance orders results by score; it is the default.
const SortByRelevance = "relevance"

// SearchOptions control scoring scope, ordering, and pagination.
type SearchOptions struct {
	Limit    int      // default 20
	Offset   int      // default 0
	SortBy   string   // "relevance" or a field path such as "title", "content.summary"
	Order    string   // "asc" or "desc", default "desc"
	SearchIn []string // default all searchable fields
}

// SearchHit is one scored node.
type SearchHit struct {
	Node  core.Node `json:"node"`
	Score float64   `json:"score"`
}

// SearchResult is a page of hits. Total is the pre-pagination matched
// count.
type SearchResult struct {
	Total   int         `json:"total"`
	Offset  int         `json:"offset"`
	Limit   int         `json:"limit"`
	Results []SearchHit `json:"results"`
}

// Search scores every node in the snapshot against the query and returns
// one page of ranked results. A blank query matches every node. Search
// is best-effort: an internal fault yields an empty result, never an
// error.
func (s *Store) Search(query string, opts SearchOptions) (result SearchResult) {
	opts = opts.withDefaults()
	result = SearchResult{Offset: opts.Offset, Limit: opts.Limit, Results: []SearchHit{}}

	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("search degraded to empty result",
				zap.String("query", query),
				zap.Any("fault", r))
			result = SearchResult{Offset: opts.Offset, Limit: opts.Limit, Results: []SearchHit{}}
		}
	}()

	s.mu.RLock()
	nodes := s.nodes
	s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	fields := fieldSet(opts.SearchIn)

	var hits []SearchHit
	if len(terms) == 0 {
		hits = make([]SearchHit, 0, len(nodes))
		for _, n := range nodes {
			hits = append(hits, SearchHit{Node: n})
		}
	} else {
		for _, n := range nodes {
			score := scoreNode(n, terms, fields)
			if score > 0 {
				hits = append(hits, SearchHit{Node: n, Score: score})
			}
		}
	}

	sortHits(hits, len(terms) > 0, opts)

	result.Total = len(hits)
	result.Results = page(hits, opts.Offset, opts.Limit)
	return result
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.SortBy == "" {
		o.SortBy = SortByRelevance
	}
	if o.Order == "" {
		o.Order = "desc"
	}
	if len(o.SearchIn) == 0 {
		o.SearchIn = []string{FieldTitle, FieldContent, FieldCategories, FieldTags, FieldURL}
	}
	return o
}

func fieldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, f := range names {
		set[strings.ToLower(f)] = true
	}
	return set
}

// scoreNode accumulates the weighted per-field distinct-term counts for
// one node. All comparisons are lowercase substring matches.
func scoreNode(node core.Node, terms []string, fields map[string]bool) float64 {
	score := 0.0

	if fields[FieldTitle] {
		score += float64(countTerms(strings.ToLower(node.Title), terms)) * weightTitle
	}

	if fields[FieldContent] {
		score += float64(countTerms(strings.ToLower(node.Content.Summary), terms)) * weightSummary
		score += float64(countTerms(strings.ToLower(node.Content.Text), terms)) * weightText
		score += float64(countTermsInList(entityNames(node.Content.Entities), terms)) * weightEntities
	}

	if fields[FieldCategories] {
		score += float64(countTermsInList(node.Categories, terms)) * weightCategory
	}

	if fields[FieldTags] {
		score += float64(countTermsInList(node.Tags, terms)) * weightTag
	}

	if fields[FieldURL] {
		score += float64(countTerms(strings.ToLower(node.URL), terms)) * weightURL
	}

	return score
}

// countTerms returns how many distinct terms appear in haystack, which
// must already be lowercase.
func countTerms(haystack string, terms []string) int {
	if haystack == "" {
		return 0
	}
	n := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}

// countTermsInList counts a term once if any list entry contains it.
func countTermsInList(list []string, terms []string) int {
	if len(list) == 0 {
		return 0
	}
	n := 0
	for _, t := range terms {
		for _, item := range list {
			if strings.Contains(strings.ToLower(item), t) {
				n++
				break
			}
		}
	}
	return n
}

func entityNames(entities []core.Entity) []string {
	if len(entities) == 0 {
		return nil
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}

// sortHits orders hits in place. Relevance ranking is always score
// descending; equal scores keep collection insertion order (the sort is
// stable and hits arrive in snapshot order). A blank query with the
// default sort falls back to timestamp descending.
func sortHits(hits []SearchHit, scored bool, opts SearchOptions) {
	if opts.SortBy == SortByRelevance {
		if scored {
			sort.SliceStable(hits, func(i, j int) bool {
				return hits[i].Score > hits[j].Score
			})
		} else {
			sort.SliceStable(hits, func(i, j int) bool {
				return hits[i].Node.Timestamp.After(hits[j].Node.Timestamp)
			})
		}
		return
	}

	asc := opts.Order == "asc"
	sort.SliceStable(hits, func(i, j int) bool {
		c := compareField(hits[i].Node, hits[j].Node, opts.SortBy)
		if asc {
			return c < 0
		}
		return c > 0
	})
}

// compareField compares two nodes on a (possibly dotted) field path.
// String fields compare lexicographically, numeric and time fields
// numerically. Unknown paths compare equal, preserving input order.
func compareField(a, b core.Node, path string) int {
	av, aok := fieldValue(a, path)
	bv, bok := fieldValue(b, path)
	if !aok || !bok {
		return 0
	}

	switch x := av.(type) {
	case string:
		y, ok := bv.(string)
		if !ok {
			return 0
		}
		return strings.Compare(x, y)
	case float64:
		y, ok := bv.(float64)
		if !ok {
			return 0
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return 0
}

// fieldValue resolves a dotted field path on a node to a string or
// float64 (times become Unix nanoseconds).
func fieldValue(node core.Node, path string) (any, bool) {
	switch path {
	case "id":
		return node.ID, true
	case "title":
		return node.Title, true
	case "url":
		return node.URL, true
	case "source":
		return node.Source, true
	case "timestamp":
		return float64(node.Timestamp.UnixNano()), true
	case "created_at", "createdAt":
		return float64(node.CreatedAt.UnixNano()), true
	case "updated_at", "updatedAt":
		return float64(node.UpdatedAt.UnixNano()), true
	case "content.text":
		return node.Content.Text, true
	case "content.summary":
		return node.Content.Summary, true
	case "preview.title":
		return node.Preview.Title, true
	case "preview.summary":
		return node.Preview.Summary, true
	case "preview.source":
		return node.Preview.Source, true
	case "preview.date":
		return float64(node.Preview.Date.UnixNano()), true
	}
	return nil, false
}

// page slices hits to one page. Pagination happens after full scoring
// and sorting.
func page(hits []SearchHit, offset, limit int) []SearchHit {
	if offset >= len(hits) {
		return []SearchHit{}
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	out := make([]SearchHit, end-offset)
	copy(out, hits[offset:end])
	return out
}
