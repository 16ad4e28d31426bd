package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/FrenchMajesty/hue-discovery/adapters/pinecone"
	"github.com/FrenchMajesty/hue-discovery/pkg/types"
	"github.com/lucasb-eyer/go-colorful"
	"google.golang.org/protobuf/types/known/structpb"
)

// upsertBatchSize is the number of palette vectors written per Upsert call
const upsertBatchSize = 100

// NamedColor is one entry of a reference palette
type NamedColor struct {
	Name string
	Hex  string
}

// PaletteClassifier names a color after its nearest neighbour in a palette
// index whose vectors are CIE-Lab coordinates. The index should use the
// euclidean metric so scores are distances.
type PaletteClassifier struct {
	index interface {
		Search(ctx context.Context, queryVector []float32, topK int, filter map[string]any, includeMetadata bool) ([]pinecone.QueryMatch, error)
		Upsert(ctx context.Context, vectors []pinecone.Vector) error
	}
	// maxDistance above which a match is reported unnamed. Zero disables the cutoff.
	maxDistance float32
}

// Classify looks up the palette entry nearest to hsl(point, paramA%, paramB%)
func (p *PaletteClassifier) Classify(ctx context.Context, key types.QueryKey) (types.ClassificationResult, error) {
	color := hslColor(key)

	matches, err := p.index.Search(ctx, labVector(color), 1, nil, true)
	if err != nil {
		return types.ClassificationResult{}, &types.RemoteError{Kind: types.RemoteErrorNetwork, Key: key, Err: err}
	}

	payload := map[string]any{
		"hex":    color.Hex(),
		"source": "palette",
	}

	if len(matches) == 0 {
		return types.ClassificationResult{Key: key, Label: types.UnnamedLabel, Payload: payload}, nil
	}

	match := matches[0]
	if match.Vector == nil || match.Vector.Metadata == nil {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind: types.RemoteErrorMalformed,
			Key:  key,
			Err:  fmt.Errorf("palette match missing metadata"),
		}
	}

	metadata := match.Vector.Metadata.AsMap()
	name, ok := metadata["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return types.ClassificationResult{}, &types.RemoteError{
			Kind: types.RemoteErrorMalformed,
			Key:  key,
			Err:  fmt.Errorf("palette match %s missing name metadata", match.Vector.Id),
		}
	}

	payload["distance"] = float64(match.Score)
	if hex, ok := metadata["hex"].(string); ok {
		payload["closest_named_hex"] = hex
	}

	label := strings.TrimSpace(name)
	if p.maxDistance > 0 && match.Score > p.maxDistance {
		label = types.UnnamedLabel
	}

	return types.ClassificationResult{Key: key, Label: label, Payload: payload}, nil
}

// SeedPalette writes palette entries into the index, keyed by lowercase hex
func (p *PaletteClassifier) SeedPalette(ctx context.Context, palette []NamedColor) error {
	vectors := make([]pinecone.Vector, 0, len(palette))
	for _, entry := range palette {
		color, err := colorful.Hex(entry.Hex)
		if err != nil {
			return fmt.Errorf("invalid palette color %q (%s): %w", entry.Name, entry.Hex, err)
		}

		metadata, err := structpb.NewStruct(map[string]any{
			"name": entry.Name,
			"hex":  color.Hex(),
		})
		if err != nil {
			return fmt.Errorf("failed to build metadata for %q: %w", entry.Name, err)
		}

		vectors = append(vectors, pinecone.Vector{
			Id:       strings.ToLower(color.Hex()),
			Values:   labVector(color),
			Metadata: metadata,
		})
	}

	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vectors))
		if err := p.index.Upsert(ctx, vectors[start:end]); err != nil {
			return fmt.Errorf("failed to upsert palette batch at %d: %w", start, err)
		}
	}
	return nil
}

// labVector returns the CIE-Lab coordinates of c as a query vector
func labVector(c colorful.Color) []float32 {
	l, a, b := c.Lab()
	return []float32{float32(l * 100), float32(a * 100), float32(b * 100)}
}
