package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HeraclesBass/tos-analyzer/internal/domain/ai"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/ai/prompt"
)

// Sizing and retry policy. A document over ChunkThresholdWords is split
// into ChunkSizeWords segments analyzed serially, then merged by one
// synthesis call.
const (
	ChunkThresholdWords = 45000
	ChunkSizeWords      = 40000

	maxAttempts     = 4
	initialBackoff  = 1 * time.Second
	maxBackoff      = 10 * time.Second
	interChunkPause = 1 * time.Second
)

// ErrInvalidResult marks model output that parsed but violated the result
// schema. This is a contract bug, not a transient fault: it is never
// retried.
var ErrInvalidResult = errors.New("model output failed schema validation")

// errNoJSON marks a response with no structured object in it; transient.
var errNoJSON = errors.New("no JSON object in model response")

// Result is one finished analysis plus the token usage summed across
// every model call that produced it.
type Result struct {
	Payload    *analysis.Payload
	TokensUsed int
}

// Engine drives the analysis state machine: single pass for normal
// documents, chunk-then-synthesize for oversized ones, with bounded
// retry around each model call.
type Engine struct {
	Model ai.Client

	// Sleep is swappable so tests can record backoff instead of waiting.
	Sleep func(time.Duration)

	// ChunkThreshold and ChunkSize override the defaults when > 0.
	ChunkThreshold int
	ChunkSize      int
}

// New builds an Engine with the default sizing.
func New(model ai.Client) *Engine {
	return &Engine{Model: model}
}

// Analyze runs the full pipeline for one document and returns the
// validated payload plus total token usage.
func (e *Engine) Analyze(ctx context.Context, text string) (*Result, error) {
	words := strings.Fields(text)
	if len(words) > e.threshold() {
		return e.analyzeChunked(ctx, words)
	}
	return e.callModel(ctx, prompt.System(), prompt.User(text))
}

func (e *Engine) threshold() int {
	if e.ChunkThreshold > 0 {
		return e.ChunkThreshold
	}
	return ChunkThresholdWords
}

func (e *Engine) chunkSize() int {
	if e.ChunkSize > 0 {
		return e.ChunkSize
	}
	return ChunkSizeWords
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// callModel performs one logical model call with retry. Transient faults
// (transport errors, empty text, missing JSON) back off exponentially from
// 1s, doubling and capped at 10s, for up to maxAttempts calls. A response
// that parses but fails schema validation aborts immediately.
func (e *Engine) callModel(ctx context.Context, system, user string) (*Result, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		comp, err := e.Model.Complete(ctx, system, user)
		if err != nil {
			lastErr = err
			continue
		}
		raw, ok := extractJSON(comp.Text)
		if !ok {
			lastErr = errNoJSON
			continue
		}

		payload, err := parsePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
		return &Result{Payload: payload, TokensUsed: comp.TotalTokens()}, nil
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", maxAttempts, lastErr)
}

// analyzeChunked splits the word stream into ordered segments, analyzes
// each serially with a fixed pause between calls (external rate limits),
// then merges the per-chunk results with one synthesis call.
func (e *Engine) analyzeChunked(ctx context.Context, words []string) (*Result, error) {
	size := e.chunkSize()
	chunks := splitWords(words, size)

	total := 0
	chunkJSON := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			e.sleep(interChunkPause)
		}
		res, err := e.callModel(ctx, prompt.System(), prompt.Chunk(i+1, len(chunks), strings.Join(chunk, " ")))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		total += res.TokensUsed

		b, err := json.Marshal(res.Payload)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: encoding result: %w", i+1, len(chunks), err)
		}
		chunkJSON = append(chunkJSON, string(b))
	}

	e.sleep(interChunkPause)
	res, err := e.callModel(ctx, prompt.System(), prompt.Synthesis(chunkJSON))
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	res.TokensUsed += total
	return res, nil
}

// splitWords cuts the word stream into size-bounded segments preserving
// word boundaries and original order.
func splitWords(words []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, words[start:end])
	}
	return out
}

// parsePayload decodes a JSON candidate and enforces the payload schema.
// Enum fields reject unknown tags during unmarshalling.
func parsePayload(raw string) (*analysis.Payload, error) {
	var p analysis.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
