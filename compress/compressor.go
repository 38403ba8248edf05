package compress

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

// Compressor compresses a single conversation turn into a shorter,
// meaning-preserving form through the model capability, going through the
// Cache so identical content never costs a second model call.
type Compressor struct {
	client model.Client
	cache  *Cache
	config Config
}

// NewCompressor creates a Compressor. If cache is nil a cache with the
// configured capacity is created.
func NewCompressor(client model.Client, cache *Cache, config Config) *Compressor {
	config.ApplyDefaults()
	if cache == nil {
		cache = NewCache(config.CacheCapacity)
	}
	return &Compressor{client: client, cache: cache, config: config}
}

// Cache returns the compressor's cache.
func (c *Compressor) Cache() *Cache { return c.cache }

// Result is the outcome of compressing one turn.
type Result struct {
	// Seq is the turn's sequence number, unchanged.
	Seq int

	// Original is the content the result was computed from.
	Original string

	// Compressed is the replacement content. Equal to Original when the
	// turn passed through unchanged (already compressed, or structured).
	Compressed string

	// FromCache reports whether the result came from the cache.
	FromCache bool

	// Err is the compression failure, if any. The turn keeps its original
	// content and is flagged deferred by the caller.
	Err error
}

// CompressTurn compresses one turn according to its content class.
//
// Idempotence guard: a turn already marked compressed passes through
// unchanged without a model call. Structured turns pass through unchanged.
// On model failure the result carries the error and the original content;
// the turn is never dropped.
func (c *Compressor) CompressTurn(ctx context.Context, t storage.Turn) Result {
	res := Result{Seq: t.Seq, Original: t.Content, Compressed: t.Content}

	if t.Compressed() {
		return res
	}
	prof, ok := intensity[t.Class]
	if !ok {
		// Structured state data is kept verbatim: not an error, just no-op.
		return res
	}

	key := CacheKey(t.Content, prof.instructions)
	compressed, fromCache, err := c.cache.GetOrCompute(key, func() (string, error) {
		return c.callModel(ctx, t.Content, prof)
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Compressed = compressed
	res.FromCache = fromCache
	return res
}

// CompressBatch compresses a batch of turns in order, one result per input
// turn.
func (c *Compressor) CompressBatch(ctx context.Context, batch []storage.Turn) []Result {
	out := make([]Result, len(batch))
	for i, t := range batch {
		out[i] = c.CompressTurn(ctx, t)
	}
	return out
}

func (c *Compressor) callModel(ctx context.Context, content string, prof profile) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	out, err := c.client.Summarize(callCtx, model.Request{
		Instructions:    prof.instructions,
		Input:           content,
		MaxOutputTokens: c.config.MaxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", model.ErrEmptyResponse
	}
	if len(out) >= len(content) {
		// A summary longer than the original is worse than keeping the
		// original.
		return "", fmt.Errorf("%w: %d chars in, %d out", ErrNoReduction, len(content), len(out))
	}
	if prof.preserveNumbers {
		if missing := missingNumbers(content, out); len(missing) > 0 {
			return "", fmt.Errorf("%w: missing quantities %v", ErrLossyResult, missing)
		}
	}
	return out, nil
}

var numberPattern = regexp.MustCompile(`\d+`)

// missingNumbers returns the quantitative tokens from the original that do
// not appear in the compressed output. Combat turns often embed a
// structured outcome payload; numeric fields are pulled from it as well as
// from the prose.
func missingNumbers(original, compressed string) []string {
	want := make(map[string]struct{})
	for _, n := range numberPattern.FindAllString(original, -1) {
		want[n] = struct{}{}
	}
	if start := strings.IndexByte(original, '{'); start >= 0 {
		if payload := original[start:]; gjson.Valid(payload) {
			gjson.Parse(payload).ForEach(collectNumbers(want))
		}
	}

	have := make(map[string]struct{})
	for _, n := range numberPattern.FindAllString(compressed, -1) {
		have[n] = struct{}{}
	}

	var missing []string
	for n := range want {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func collectNumbers(into map[string]struct{}) func(key, value gjson.Result) bool {
	var walk func(key, value gjson.Result) bool
	walk = func(_, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			for _, n := range numberPattern.FindAllString(value.Raw, -1) {
				into[n] = struct{}{}
			}
		case gjson.JSON:
			value.ForEach(walk)
		}
		return true
	}
	return walk
}
