package store

import (
	"context"
	"strings"
)

// Relevance is the derived similarity bucket attached to a search result.
type Relevance string

const (
	RelevanceHighlyRelevant Relevance = "highly_relevant"
	RelevanceRelevant       Relevance = "relevant"
	RelevanceLooselyRelated Relevance = "loosely_related"
	RelevanceNotRelevant    Relevance = "not_relevant"
)

// relevanceForScore maps a normalized similarity score (0-1, higher is
// closer) onto the four-bucket relevance scale a caller presents to a user.
func relevanceForScore(score float32) Relevance {
	switch {
	case score >= 0.85:
		return RelevanceHighlyRelevant
	case score >= 0.65:
		return RelevanceRelevant
	case score >= 0.4:
		return RelevanceLooselyRelated
	default:
		return RelevanceNotRelevant
	}
}

// CollaboratorSearchResult is one scored hit from Collaborator.Search.
type CollaboratorSearchResult struct {
	Chunk     *Chunk
	Score     float32
	Relevance Relevance
}

// ScanFilter narrows Collaborator.ScanWithFilter. Pattern is matched
// case-insensitively as a substring of the chunk's file path.
type ScanFilter struct {
	Language string
	Pattern  string
	Limit    int
}

// maxInsertBatch is the internal ceiling past which InsertBatch splits its
// input into smaller batches, iteratively (not recursively), so stack
// depth never scales with input size.
const maxInsertBatch = 1000

// Collaborator composes the vector store and metadata store into the
// single insert_batch / update_file / delete_by_file / scan_with_filter /
// search contract the indexer and analyzer depend on. It is the concrete
// form of the "Vector Store (collaborator)" boundary: callers never touch
// VectorStore or MetadataStore directly.
//
// Grounded on the teacher's HNSWStore (vector ops) plus the MetadataStore
// interface (chunk/file persistence); the teacher splits these concerns
// across its search.Engine orchestration layer, which this type collapses
// into the single narrow interface the specification names.
type Collaborator struct {
	Vector    VectorStore
	Metadata  MetadataStore
	ProjectID string
	DBPath    string
}

// NewCollaborator builds a Collaborator over an already-open vector store
// and metadata store for the given project.
func NewCollaborator(vector VectorStore, metadata MetadataStore, projectID, dbPath string) *Collaborator {
	return &Collaborator{Vector: vector, Metadata: metadata, ProjectID: projectID, DBPath: dbPath}
}

// InsertBatch appends vectors/metadatas/texts, splitting internally at
// maxInsertBatch rows per underlying call. An empty batch is a no-op.
func (c *Collaborator) InsertBatch(ctx context.Context, vectors [][]float32, metadatas []*Chunk, texts []string) error {
	if len(vectors) == 0 {
		return nil
	}
	for start := 0; start < len(vectors); start += maxInsertBatch {
		end := start + maxInsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := c.insertOne(ctx, vectors[start:end], metadatas[start:end], texts[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collaborator) insertOne(ctx context.Context, vectors [][]float32, metadatas []*Chunk, texts []string) error {
	ids := make([]string, len(metadatas))
	for i, m := range metadatas {
		ids[i] = m.ID
	}
	if err := c.Vector.Add(ctx, ids, vectors); err != nil {
		return err
	}
	return c.Metadata.SaveChunks(ctx, metadatas)
}

// UpdateFile atomically replaces all chunks for path: the old rows are
// removed before the new ones are inserted, so a reader never observes a
// mix of old and new chunks for the same file under this call's lock
// discipline.
func (c *Collaborator) UpdateFile(ctx context.Context, path string, vectors [][]float32, metadatas []*Chunk, texts []string) error {
	if err := c.DeleteByFile(ctx, path); err != nil {
		return err
	}
	return c.InsertBatch(ctx, vectors, metadatas, texts)
}

// DeleteByFile removes every chunk belonging to path. Succeeds silently
// when the path has no existing chunks.
func (c *Collaborator) DeleteByFile(ctx context.Context, path string) error {
	file, err := c.Metadata.GetFileByPath(ctx, c.ProjectID, path)
	if err != nil || file == nil {
		return nil
	}
	chunks, err := c.Metadata.GetChunksByFile(ctx, file.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return c.Metadata.DeleteChunksByFile(ctx, file.ID)
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	if err := c.Vector.Delete(ctx, ids); err != nil {
		return err
	}
	return c.Metadata.DeleteChunksByFile(ctx, file.ID)
}

// ScanWithFilter returns chunks whose language matches filter.Language
// (when set) and whose file path contains filter.Pattern (case
// insensitively, when set), up to filter.Limit rows. It walks files via
// the metadata store's paginated listing rather than a single
// enumerate-everything call, so memory use does not scale with project
// size.
func (c *Collaborator) ScanWithFilter(ctx context.Context, filter ScanFilter) ([]*Chunk, error) {
	pattern := strings.ToLower(filter.Pattern)

	var results []*Chunk
	cursor := ""
	for {
		files, next, err := c.Metadata.ListFiles(ctx, c.ProjectID, cursor, 200)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if pattern != "" && !strings.Contains(strings.ToLower(f.Path), pattern) {
				continue
			}
			chunks, err := c.Metadata.GetChunksByFile(ctx, f.ID)
			if err != nil {
				return nil, err
			}
			for _, ch := range chunks {
				if filter.Language != "" && ch.Language != filter.Language {
					continue
				}
				results = append(results, ch)
				if filter.Limit > 0 && len(results) >= filter.Limit {
					return results, nil
				}
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return results, nil
}

// Search finds the k nearest chunks to queryVector and attaches a
// relevance bucket derived from each result's normalized score.
func (c *Collaborator) Search(ctx context.Context, queryVector []float32, k int) ([]*CollaboratorSearchResult, error) {
	hits, err := c.Vector.Search(ctx, queryVector, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := c.Metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	results := make([]*CollaboratorSearchResult, 0, len(hits))
	for _, h := range hits {
		ch, ok := byID[h.ID]
		if !ok {
			continue
		}
		results = append(results, &CollaboratorSearchResult{
			Chunk:     ch,
			Score:     h.Score,
			Relevance: relevanceForScore(h.Score),
		})
	}
	return results, nil
}
