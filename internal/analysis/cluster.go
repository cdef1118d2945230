package analysis

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are ignored when tokenizing queries for clustering. Shared
// function words say nothing about topical overlap.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {},
	"need": {}, "dare": {}, "ought": {}, "used": {}, "to": {}, "of": {},
	"in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {},
	"from": {}, "up": {}, "about": {}, "into": {}, "over": {}, "after": {},
	"and": {}, "but": {}, "or": {}, "not": {}, "what": {}, "which": {},
	"who": {}, "whom": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"am": {}, "than": {}, "how": {}, "when": {}, "where": {}, "why": {},
	"all": {}, "each": {}, "every": {}, "both": {}, "few": {}, "more": {},
	"most": {}, "other": {}, "some": {}, "such": {}, "no": {}, "nor": {},
	"only": {}, "own": {}, "same": {}, "so": {}, "just": {}, "vs": {},
}

// tokenize lowercases a query, splits it on non-alphanumeric runes and
// drops stop-words, returning the distinct token set.
func tokenize(query string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

// jaccard returns |a∩b| / |a∪b| for two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// isSubset reports whether every token of a appears in b.
func isSubset(a, b map[string]struct{}) bool {
	if len(a) == 0 || len(a) > len(b) {
		return false
	}
	for t := range a {
		if _, ok := b[t]; !ok {
			return false
		}
	}
	return true
}

// unionFind is an arena of parent-pointer nodes with path compression.
// Built and discarded within a single clustering call, never shared.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]] // halve the path
		i = u.parent[i]
	}
	return i
}

// union merges two components. The smaller index wins as root; because
// the arena is built over lexicographically sorted queries, this makes
// the resulting partition independent of input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// ClusterQueries partitions queries into topical clusters by lexical
// token overlap. Two queries are linked when their token-set Jaccard
// similarity reaches the threshold, or one token set is contained in the
// other; clusters are the transitive closure of those links. Queries
// related to nothing form single-member clusters. For a fixed input set
// and threshold the partition is identical regardless of input ordering.
func ClusterQueries(summaries []QuerySummary, threshold float64) []KeywordCluster {
	if len(summaries) == 0 {
		return nil
	}

	byQuery := make(map[string]QuerySummary, len(summaries))
	queries := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if _, dup := byQuery[s.Query]; dup {
			continue
		}
		byQuery[s.Query] = s
		queries = append(queries, s.Query)
	}
	sort.Strings(queries)

	tokens := make([]map[string]struct{}, len(queries))
	index := make(map[string][]int) // token -> arena indexes
	for i, q := range queries {
		tokens[i] = tokenize(q)
		for t := range tokens[i] {
			index[t] = append(index[t], i)
		}
	}

	// Only pairs sharing at least one token can link, so candidate pairs
	// come from the inverted index rather than the full cross product.
	uf := newUnionFind(len(queries))
	compared := make(map[[2]int]struct{})
	for _, postings := range index {
		for x := 0; x < len(postings); x++ {
			for y := x + 1; y < len(postings); y++ {
				pair := [2]int{postings[x], postings[y]}
				if _, done := compared[pair]; done {
					continue
				}
				compared[pair] = struct{}{}

				a, b := tokens[pair[0]], tokens[pair[1]]
				if jaccard(a, b) >= threshold || isSubset(a, b) || isSubset(b, a) {
					uf.union(pair[0], pair[1])
				}
			}
		}
	}

	members := make(map[int][]string)
	for i, q := range queries {
		root := uf.find(i)
		members[root] = append(members[root], q)
	}

	clusters := make([]KeywordCluster, 0, len(members))
	for _, queryList := range members {
		sort.Strings(queryList)

		cluster := KeywordCluster{Members: queryList, BestPosition: 0}
		bestImpressions := -1
		for _, q := range queryList {
			s := byQuery[q]
			cluster.TotalClicks += s.TotalClicks
			cluster.TotalImpressions += s.TotalImpressions
			if cluster.BestPosition == 0 || s.AvgPosition < cluster.BestPosition {
				cluster.BestPosition = s.AvgPosition
			}
			if s.TotalImpressions > bestImpressions {
				bestImpressions = s.TotalImpressions
				cluster.Label = q
			}
		}
		// The label is a member query and members are disjoint across
		// clusters, so the derived ID is unique per run.
		cluster.ID = "cluster:" + strings.ReplaceAll(cluster.Label, " ", "-")
		clusters = append(clusters, cluster)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].TotalImpressions != clusters[j].TotalImpressions {
			return clusters[i].TotalImpressions > clusters[j].TotalImpressions
		}
		return clusters[i].ID < clusters[j].ID
	})

	return clusters
}
