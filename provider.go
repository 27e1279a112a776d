package llmwire

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider defines the interface that all LLM providers implement.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderID

	// Generate performs a blocking generation call.
	Generate(ctx context.Context, req *GenerateRequest) (*Response, error)

	// Stream performs a streaming generation call. callback (may be nil) is
	// invoked synchronously for every text delta and once more with
	// final=true. The returned response equals the fully accumulated message.
	Stream(ctx context.Context, req *GenerateRequest, callback StreamCallback) (*Response, error)
}

// Codec translates between canonical requests/responses and one provider's
// wire format. Codecs are stateless; ChunkDecoders carry per-stream state.
type Codec interface {
	// Provider returns the provider this codec speaks for.
	Provider() ProviderID

	// BuildPayload casts, validates and serializes req into the minimal
	// wire payload. Validation and cast errors are returned unwrapped.
	BuildPayload(req *GenerateRequest, stream bool) (map[string]any, error)

	// DecodeResponse normalizes a raw non-streaming response.
	DecodeResponse(req *GenerateRequest, raw json.RawMessage) (*Response, error)

	// NewChunkDecoder returns a decoder for one stream.
	NewChunkDecoder(req *GenerateRequest) ChunkDecoder
}

// ChunkDecoder normalizes raw stream chunks. A raw chunk may yield zero or
// more canonical chunks.
type ChunkDecoder interface {
	Decode(raw json.RawMessage) ([]Chunk, error)
}

// Generator is the shared generation pipeline: build payload, run the
// capability warnings, call the client under the retrier, decode, and
// apply structured output. It implements Provider for every codec.
type Generator struct {
	codec   Codec
	client  Client
	retrier *Retrier
	engine  *ValidationEngine
	logger  zerolog.Logger
	params  *Params

	instanceVerbose *bool
	classVerbose    *bool
	globalVerbose   *bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used by the pipeline and its retrier.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = componentLogger(logger, "generator", g.codec.Provider())
		g.retrier.Logger = componentLogger(logger, "retry", g.codec.Provider())
	}
}

// WithMaxRetries sets the attempt budget per call.
func WithMaxRetries(n int) Option {
	return func(g *Generator) { g.retrier.MaxRetries = n }
}

// WithRetryable replaces the retryable-error allowlist.
func WithRetryable(errs ...error) Option {
	return func(g *Generator) { g.retrier.Retryable = errs }
}

// WithSleep injects the backoff sleeper.
func WithSleep(sleep SleepFunc) Option {
	return func(g *Generator) { g.retrier.Sleep = sleep }
}

// WithVerbose sets instance-level verbosity, the highest-priority layer.
func WithVerbose(verbose bool) Option {
	return func(g *Generator) { g.instanceVerbose = Bool(verbose) }
}

// WithValidationEngine replaces the capability warnings engine.
func WithValidationEngine(engine *ValidationEngine) Option {
	return func(g *Generator) { g.engine = engine }
}

// WithParams sets the lowest-precedence parameter layer. Request params
// are merged over it.
func WithParams(params *Params) Option {
	return func(g *Generator) { g.params = params }
}

// WithConfig applies provider (class) and global settings from cfg:
// verbosity, the attempt budget, and default params.
func WithConfig(cfg *Config) Option {
	return func(g *Generator) {
		if cfg == nil {
			return
		}
		id := g.codec.Provider()
		pc := cfg.Providers[id]
		g.classVerbose = pc.Verbose
		g.globalVerbose = cfg.Verbose
		if n, ok := Lookup(pc.MaxRetries, cfg.MaxRetries); ok {
			g.retrier.MaxRetries = n
		}
		if params, err := ResolveParams(cfg.Params, pc.Params); err == nil {
			g.params = params
		}
	}
}

// NewGenerator wires a codec to a client.
func NewGenerator(codec Codec, client Client, opts ...Option) *Generator {
	g := &Generator{
		codec:   codec,
		client:  client,
		retrier: NewRetrier(codec.Provider(), zerolog.Nop()),
		engine:  DefaultValidationEngine(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.retrier.Verbose = ResolveVerbose(g.instanceVerbose, g.classVerbose, g.globalVerbose)
	return g
}

// Name returns the provider identifier.
func (g *Generator) Name() ProviderID {
	return g.codec.Provider()
}

// Codec returns the wire codec.
func (g *Generator) Codec() Codec {
	return g.codec
}

// Verbose reports the resolved verbosity.
func (g *Generator) Verbose() bool {
	return g.retrier.Verbose
}

// Generate performs a blocking generation call.
func (g *Generator) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	req, payload, err := g.prepare(req, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var raw json.RawMessage
	err = g.retrier.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		raw, sendErr = g.client.Send(ctx, payload)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	resp, err := g.codec.DecodeResponse(req, raw)
	if err != nil {
		return nil, g.surface(fmt.Errorf("decode %s response: %w", g.Name(), err))
	}
	resp.RawResponse = raw
	g.finish(req, resp.Message)

	if err := resp.Usage.Validate(resp.Kind); err != nil {
		g.logger.Warn().Err(err).Msg("provider reported inconsistent usage")
	}

	g.logger.Debug().
		Str("model", resp.Model).
		Str("finish_reason", resp.FinishReason).
		Dur("elapsed", time.Since(start)).
		Msg("generation complete")
	return resp, nil
}

// Stream performs a streaming generation call. Only opening the stream is
// retried; a failure mid-stream abandons the accumulated message.
func (g *Generator) Stream(ctx context.Context, req *GenerateRequest, callback StreamCallback) (*Response, error) {
	req, payload, err := g.prepare(req, true)
	if err != nil {
		return nil, err
	}

	var stream ChunkStream
	err = g.retrier.Do(ctx, func(ctx context.Context) error {
		var openErr error
		stream, openErr = g.client.Stream(ctx, payload)
		return openErr
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	decoder := g.codec.NewChunkDecoder(req)
	acc := NewAccumulator(callback)
	acc.OnFinalize(func(msg *Message) { g.finish(req, msg) })

	for stream.Next() {
		chunks, err := decoder.Decode(stream.Chunk())
		if err != nil {
			return nil, g.surface(err)
		}
		for _, chunk := range chunks {
			if _, err := acc.Add(chunk); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, g.surface(err)
	}

	resp, err := acc.Response()
	if err != nil {
		return nil, g.surface(err)
	}
	return resp, nil
}

// prepare resolves the parameter layers and builds the payload. The
// returned request is the one the payload was built from; decoding must use
// it too.
func (g *Generator) prepare(req *GenerateRequest, stream bool) (*GenerateRequest, map[string]any, error) {
	if g.params != nil {
		params, err := ResolveParams(g.params, req.Params)
		if err != nil {
			return nil, nil, err
		}
		req = req.Clone()
		req.Params = params
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	for _, w := range g.engine.Validate(g.Name(), req) {
		g.logger.Warn().EmbedObject(w).Msg(w.Message)
	}

	payload, err := g.codec.BuildPayload(req, stream)
	if err != nil {
		return nil, nil, err
	}
	return req, payload, nil
}

// finish applies structured output; a parse failure is logged, not returned.
func (g *Generator) finish(req *GenerateRequest, msg *Message) {
	if perr := ApplyStructuredOutput(msg, req.ResponseFormat); perr != nil {
		g.logger.Debug().Err(perr).Str("raw", perr.Raw).Msg("structured output left as raw text")
	}
}

// surface normalizes failures outside the retried call. Validation and
// cast errors pass through.
func (g *Generator) surface(err error) error {
	if IsCastError(err) || IsInvalidRequest(err) {
		return err
	}
	return wrapGenerationError(g.Name(), err, 1, g.retrier.Verbose)
}
