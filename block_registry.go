package llmwire

import (
	"fmt"
)

// CastFunc builds a content block from its wire map.
type CastFunc func(raw map[string]any) (ContentBlock, error)

// SerializeFunc renders a content block into its wire map.
type SerializeFunc func(block ContentBlock) (map[string]any, error)

// BlockRegistry dispatches content block casting and serialization for one
// provider. Every provider owns its own registry but they share this
// dispatch.
//
// Unknown wire types behave differently per provider:
//   - lenient registries keep the map as a RawBlock and serialize it back unchanged
//   - strict registries fail with *CastError
type BlockRegistry struct {
	provider    ProviderID
	strict      bool
	casters     map[string]CastFunc
	serializers map[BlockType]SerializeFunc
}

// NewBlockRegistry creates an empty registry for provider.
func NewBlockRegistry(provider ProviderID, strict bool) *BlockRegistry {
	return &BlockRegistry{
		provider:    provider,
		strict:      strict,
		casters:     make(map[string]CastFunc),
		serializers: make(map[BlockType]SerializeFunc),
	}
}

// Register adds a caster for a wire type discriminator.
func (r *BlockRegistry) Register(wireType string, fn CastFunc) *BlockRegistry {
	r.casters[wireType] = fn
	return r
}

// RegisterSerializer adds a serializer for a canonical block type.
func (r *BlockRegistry) RegisterSerializer(blockType BlockType, fn SerializeFunc) *BlockRegistry {
	r.serializers[blockType] = fn
	return r
}

// Provider returns the provider the registry speaks for.
func (r *BlockRegistry) Provider() ProviderID {
	return r.provider
}

// Strict reports whether unknown types are rejected.
func (r *BlockRegistry) Strict() bool {
	return r.strict
}

// Cast converts a raw value into a content block. raw may be a string
// (text), a map with a "type" key, or an already-typed ContentBlock.
// The resulting block is validated.
func (r *BlockRegistry) Cast(raw any) (ContentBlock, error) {
	var (
		block ContentBlock
		err   error
	)

	switch v := raw.(type) {
	case ContentBlock:
		block = v
	case string:
		block = TextBlock{Text: v}
	case map[string]any:
		block, err = r.castMap(v)
	default:
		return nil, &CastError{
			Kind:     "content",
			Value:    raw,
			Reason:   fmt.Sprintf("unsupported content type %T", raw),
			Provider: r.provider,
		}
	}
	if err != nil {
		return nil, err
	}

	if err := block.Validate(); err != nil {
		return nil, withProvider(err, r.provider)
	}
	return block, nil
}

func (r *BlockRegistry) castMap(raw map[string]any) (ContentBlock, error) {
	wireType, _ := raw["type"].(string)
	if wireType == "" {
		return nil, &CastError{Kind: "content", Value: raw, Reason: "missing type", Provider: r.provider}
	}

	fn, ok := r.casters[wireType]
	if !ok {
		if r.strict {
			return nil, &CastError{Kind: "content", Value: wireType, Reason: "unknown content type", Provider: r.provider}
		}
		return RawBlock{Fields: cloneMap(raw)}, nil
	}
	return fn(raw)
}

// CastAll converts a string, a []any, a []ContentBlock or a single value
// into an ordered block list.
func (r *BlockRegistry) CastAll(raw any) ([]ContentBlock, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []ContentBlock:
		out := make([]ContentBlock, 0, len(v))
		for _, b := range v {
			cast, err := r.Cast(b)
			if err != nil {
				return nil, err
			}
			out = append(out, cast)
		}
		return out, nil
	case []any:
		out := make([]ContentBlock, 0, len(v))
		for i, item := range v {
			block, err := r.Cast(item)
			if err != nil {
				return nil, fmt.Errorf("content[%d]: %w", i, err)
			}
			out = append(out, block)
		}
		return out, nil
	case []map[string]any:
		out := make([]ContentBlock, 0, len(v))
		for i, item := range v {
			block, err := r.Cast(item)
			if err != nil {
				return nil, fmt.Errorf("content[%d]: %w", i, err)
			}
			out = append(out, block)
		}
		return out, nil
	default:
		block, err := r.Cast(v)
		if err != nil {
			return nil, err
		}
		return []ContentBlock{block}, nil
	}
}

// Serialize renders a block into its wire map.
func (r *BlockRegistry) Serialize(block ContentBlock) (map[string]any, error) {
	if raw, ok := block.(RawBlock); ok {
		if r.strict {
			return nil, &CastError{Kind: "content", Value: raw.WireType(), Reason: "unknown content type", Provider: r.provider}
		}
		return cloneMap(raw.Fields), nil
	}

	fn, ok := r.serializers[block.Type()]
	if !ok {
		return nil, &CastError{
			Kind:     "content",
			Value:    block.Type(),
			Reason:   fmt.Sprintf("%s does not accept %s blocks", r.provider, block.Type()),
			Provider: r.provider,
		}
	}
	out, err := fn(block)
	if err != nil {
		return nil, withProvider(err, r.provider)
	}
	return out, nil
}

// SerializeAll renders blocks in order.
func (r *BlockRegistry) SerializeAll(blocks []ContentBlock) ([]any, error) {
	out := make([]any, 0, len(blocks))
	for i, block := range blocks {
		m, err := r.Serialize(block)
		if err != nil {
			return nil, fmt.Errorf("content[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SerializeText is the wire form of a bare string.
func SerializeText(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

func withProvider(err error, provider ProviderID) error {
	if ce, ok := err.(*CastError); ok && ce.Provider == "" {
		ce.Provider = provider
	}
	return err
}
