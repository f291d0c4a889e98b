package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/kb/pkg/vector"
	"github.com/papercomputeco/kb/pkg/vector/qdrant"
)

// ProviderNative keeps vectors in the storage driver's own index.
const ProviderNative = "native"

type NewVectorDriverOpts struct {
	ProviderType string
	TargetURL    string
	Collection   string
	Dimensions   uint
	Logger       *slog.Logger
}

// NewVectorDriver returns the configured external vector index, or nil for the
// native provider.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", ProviderNative:
		return nil, nil
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Address:    o.TargetURL,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
