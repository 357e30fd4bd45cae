package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// SearchIndexer mirrors entries into an OpenSearch index for free-text admin search.
// *opensearch.Client satisfies opensearchapi.Transport.
type SearchIndexer struct {
	transport opensearchapi.Transport
	index     string
}

// NewSearchIndexer creates an indexer writing to index.
func NewSearchIndexer(transport opensearchapi.Transport, index string) *SearchIndexer {
	if index == "" {
		index = "email-audit"
	}
	return &SearchIndexer{transport: transport, index: index}
}

// StoreBatch indexes entries with one bulk request, using the entry id as document id.
func (s *SearchIndexer) StoreBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	body, err := bulkBody(s.index, entries)
	if err != nil {
		return err
	}

	res, err := opensearchapi.BulkRequest{Body: bytes.NewReader(body)}.Do(ctx, s.transport)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: bulk index returned %d", ErrStorageNotAvailable, res.StatusCode)
	}

	var reply struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return fmt.Errorf("%w: decode bulk reply: %v", ErrStorageNotAvailable, err)
	}
	if reply.Errors {
		return fmt.Errorf("%w: some entries were not indexed", ErrStorageNotAvailable)
	}
	return nil
}

// Search runs a full-text query over subject, message, error details and
// recipients, newest first.
func (s *SearchIndexer) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query, err := json.Marshal(map[string]any{
		"size": limit,
		"sort": []any{map[string]any{"seq": map[string]string{"order": "desc"}}},
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"subject^2", "message", "error_details", "recipients"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(query),
	}.Do(ctx, s.transport)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageNotAvailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search returned %d", ErrStorageNotAvailable, res.StatusCode)
	}
	return decodeHits(res.Body)
}

func bulkBody(index string, entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": e.ID.String()},
		}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeHits(r io.Reader) ([]Entry, error) {
	var reply struct {
		Hits struct {
			Hits []struct {
				Source Entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: decode search reply: %v", ErrStorageNotAvailable, err)
	}
	out := make([]Entry, 0, len(reply.Hits.Hits))
	for _, h := range reply.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// MirroredStorage writes to a primary Storage and copies every stored batch to
// a secondary writer such as a SearchIndexer. Mirror failures are logged and
// never fail the write.
type MirroredStorage struct {
	Storage
	mirror BatchWriter
	log    *slog.Logger
}

// NewMirroredStorage creates a storage writing through to mirror.
func NewMirroredStorage(primary Storage, mirror BatchWriter, log *slog.Logger) *MirroredStorage {
	if log == nil {
		log = slog.Default()
	}
	return &MirroredStorage{Storage: primary, mirror: mirror, log: log}
}

func (m *MirroredStorage) Store(ctx context.Context, entries ...Entry) error {
	if err := m.Storage.Store(ctx, entries...); err != nil {
		return err
	}
	if err := m.mirror.StoreBatch(ctx, entries); err != nil {
		m.log.WarnContext(ctx, "audit mirror write failed",
			slog.Int("entries", len(entries)),
			slog.Any("error", err))
	}
	return nil
}
