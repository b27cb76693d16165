package lineitem

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/openlgu/badyet/internal/pipeline"
)

const collectionName = "line_items"

// SearchFilter restricts similarity search results.
type SearchFilter struct {
	// JurisdictionIDs restricts hits to line items owned by these
	// jurisdictions. Empty means no restriction (global scope).
	JurisdictionIDs []string
	// FiscalYear restricts to one year when non-zero.
	FiscalYear int
	// MinScore drops hits below this similarity.
	MinScore float64
}

// Searcher is the similarity-search interface the chat engine depends on.
type Searcher interface {
	SimilaritySearch(ctx context.Context, embedding []float32, limit int, filter SearchFilter) ([]Match, error)
}

// VectorIndex stores line-item embeddings in chromem and answers
// embedding-based similarity searches. Embeddings are precomputed by the
// pipeline service; the index never embeds on its own during search.
type VectorIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// PipelineEmbeddingFunc adapts the pipeline client to chromem's embedding
// hook, used only at indexing time.
func PipelineEmbeddingFunc(client *pipeline.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		res, err := client.EmbedQuery(ctx, text, model)
		if err != nil {
			return nil, err
		}
		return res.Embedding, nil
	}
}

// NewVectorIndex creates an in-memory vector index.
func NewVectorIndex(embedFunc chromem.EmbeddingFunc) (*VectorIndex, error) {
	cdb := chromem.NewDB()
	col, err := cdb.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &VectorIndex{db: cdb, collection: col, embedFunc: embedFunc}, nil
}

// IndexItems adds or updates line items in the index. Items without a
// precomputed embedding are embedded through the collection's embedding hook.
func (v *VectorIndex) IndexItems(ctx context.Context, items []LineItem, embeddings map[string][]float32) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(items))
	for i, li := range items {
		docs[i] = chromem.Document{
			ID:        li.ID,
			Content:   li.SearchText(),
			Embedding: embeddings[li.ID],
			Metadata: map[string]string{
				"jurisdiction_id": li.JurisdictionID,
				"aip_ref_code":    li.AIPRefCode,
				"program_title":   li.ProgramTitle,
				"fiscal_year":     strconv.Itoa(li.FiscalYear),
				"barangay_name":   li.BarangayName,
				"amount_total":    strconv.FormatFloat(li.AmountTotal, 'f', 2, 64),
			},
		}
	}

	return v.collection.AddDocuments(ctx, docs, 1)
}

// SimilaritySearch returns line-item matches for a precomputed query
// embedding, ordered by ascending distance. Scope and year restrictions are
// applied after the vector query since chromem's where clause only supports
// a single exact value.
func (v *VectorIndex) SimilaritySearch(ctx context.Context, embedding []float32, limit int, filter SearchFilter) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	count := v.collection.Count()
	if count == 0 {
		return nil, nil
	}

	// Over-fetch so post-filtering still fills the limit.
	n := limit * 4
	if n > count {
		n = count
	}

	results, err := v.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	allowed := map[string]bool{}
	for _, id := range filter.JurisdictionIDs {
		allowed[id] = true
	}

	var matches []Match
	for _, r := range results {
		score := float64(r.Similarity)
		if filter.MinScore > 0 && score < filter.MinScore {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Metadata["jurisdiction_id"]] {
			continue
		}
		fy, _ := strconv.Atoi(r.Metadata["fiscal_year"])
		if filter.FiscalYear != 0 && fy != filter.FiscalYear {
			continue
		}
		total, _ := strconv.ParseFloat(r.Metadata["amount_total"], 64)
		matches = append(matches, Match{
			LineItemID:   r.ID,
			AIPRefCode:   r.Metadata["aip_ref_code"],
			ProgramTitle: r.Metadata["program_title"],
			FiscalYear:   fy,
			BarangayName: r.Metadata["barangay_name"],
			AmountTotal:  total,
			Distance:     1 - score,
			Score:        score,
		})
		if len(matches) == limit {
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches, nil
}

// Count returns the number of indexed line items.
func (v *VectorIndex) Count() int {
	return v.collection.Count()
}

// Persist saves the index to the given directory.
func (v *VectorIndex) Persist(ctx context.Context, dir string) error {
	return v.db.ExportToFile(filepath.Join(dir, "lineitems.gob.gz"), true, "")
}

// Load restores the index from the given directory.
func (v *VectorIndex) Load(ctx context.Context, dir string) error {
	if err := v.db.ImportFromFile(filepath.Join(dir, "lineitems.gob.gz"), ""); err != nil {
		return fmt.Errorf("import vector index: %w", err)
	}
	col := v.db.GetCollection(collectionName, v.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	v.collection = col
	return nil
}
