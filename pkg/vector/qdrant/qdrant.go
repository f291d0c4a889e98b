// Package qdrant provides a vector.Driver backed by a Qdrant collection over
// gRPC. Points are keyed by chunk id and carry the owning statement id in
// their payload.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	qpb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/papercomputeco/kb/pkg/index"
	"github.com/papercomputeco/kb/pkg/statement"
	"github.com/papercomputeco/kb/pkg/vector"
)

const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "kb_chunks"

	statementIDKey = "statement_id"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Address is the host:port of the Qdrant gRPC endpoint.
	Address string

	// Collection is the collection holding chunk points.
	Collection string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// Driver implements vector.Driver using Qdrant.
type Driver struct {
	conn        *grpc.ClientConn
	points      qpb.PointsClient
	collections qpb.CollectionsClient
	collection  string
	dims        uint
	logger      *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver connects to Qdrant and creates the collection if it is missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Address == "" {
		return nil, errors.New("qdrant address is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := grpc.NewClient(c.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	d := &Driver{
		conn:        conn,
		points:      qpb.NewPointsClient(conn),
		collections: qpb.NewCollectionsClient(conn),
		collection:  c.Collection,
		dims:        c.Dimensions,
		logger:      logger,
	}

	if err := d.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.collections.CollectionExists(ctx, &qpb.CollectionExistsRequest{CollectionName: d.collection})
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = d.collections.Create(ctx, &qpb.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: &qpb.VectorsConfig{
			Config: &qpb.VectorsConfig_Params{
				Params: &qpb.VectorParams{
					Size:     uint64(d.dims),
					Distance: qpb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", vector.ErrCollection, d.collection, err)
	}

	d.logger.Info("created qdrant collection", "collection", d.collection, "dimensions", d.dims)
	return nil
}

// Dimensions returns the collection's vector size.
func (d *Driver) Dimensions() uint {
	return d.dims
}

// Upsert writes one point per embedded chunk and waits for it to be indexed.
func (d *Driver) Upsert(ctx context.Context, chunks []statement.Chunk) error {
	points := make([]*qpb.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding == nil {
			continue
		}
		if err := index.CheckDimensions(d.dims, c.Embedding); err != nil {
			return err
		}
		points = append(points, &qpb.PointStruct{
			Id: &qpb.PointId{PointIdOptions: &qpb.PointId_Num{Num: uint64(c.ID)}},
			Vectors: &qpb.Vectors{
				VectorsOptions: &qpb.Vectors_Vector{
					Vector: &qpb.Vector{Vector: &qpb.Vector_Dense{Dense: &qpb.DenseVector{Data: c.Embedding}}},
				},
			},
			Payload: map[string]*qpb.Value{
				statementIDKey: {Kind: &qpb.Value_IntegerValue{IntegerValue: c.StatementID}},
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	if _, err := d.points.Upsert(ctx, &qpb.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("upserted qdrant points", "count", len(points))
	return nil
}

// DeleteStatement deletes the points whose payload names the statement.
func (d *Driver) DeleteStatement(ctx context.Context, statementID int64) error {
	wait := true
	_, err := d.points.Delete(ctx, &qpb.DeletePoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points: &qpb.PointsSelector{
			PointsSelectorOneOf: &qpb.PointsSelector_Filter{
				Filter: statementFilter(statementID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points for statement %d: %w", statementID, err)
	}
	return nil
}

// SearchVector returns the statement ids of the nearest points.
func (d *Driver) SearchVector(ctx context.Context, query []float32, limit int) ([]index.Candidate, error) {
	if err := index.CheckDimensions(d.dims, query); err != nil {
		return nil, err
	}
	if index.IsZero(query) || limit <= 0 {
		return []index.Candidate{}, nil
	}

	resp, err := d.points.Search(ctx, &qpb.SearchPoints{
		CollectionName: d.collection,
		Vector:         query,
		Limit:          uint64(limit),
		WithPayload:    &qpb.WithPayloadSelector{SelectorOptions: &qpb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	// Several chunks of one statement may match; the nearest one ranks it.
	ids := make([]int64, 0, len(resp.GetResult()))
	seen := make(map[int64]struct{}, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		v, ok := p.GetPayload()[statementIDKey]
		if !ok {
			d.logger.Warn("qdrant point missing statement id", "point", p.GetId().GetNum())
			continue
		}
		id := v.GetIntegerValue()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return index.Rank(ids), nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

func statementFilter(statementID int64) *qpb.Filter {
	return &qpb.Filter{
		Must: []*qpb.Condition{
			{
				ConditionOneOf: &qpb.Condition_Field{
					Field: &qpb.FieldCondition{
						Key: statementIDKey,
						Match: &qpb.Match{
							MatchValue: &qpb.Match_Integer{Integer: statementID},
						},
					},
				},
			},
		},
	}
}
