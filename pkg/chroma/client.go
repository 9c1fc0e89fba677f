package chroma

import (
	"context"
	"fmt"
	"log"

	"advisor-backend/pkg/errs"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

type Config struct {
	APIKey   string
	Tenant   string
	Database string
}

// NewCloudClient connects to Chroma Cloud.
func NewCloudClient(cfg Config) (chroma.Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("CHROMA_API_KEY is required for the chroma vector backend")
	}

	opts := []chroma.ClientOption{
		chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
		chroma.WithCloudAPIKey(cfg.APIKey),
	}
	switch {
	case cfg.Database != "" && cfg.Tenant != "":
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.Database, cfg.Tenant))
	case cfg.Tenant != "":
		opts = append(opts, chroma.WithTenant(cfg.Tenant))
	}

	client, err := chroma.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}
	return client, nil
}

// OpenCollection gets or creates a cosine-space collection bound to ef.
func OpenCollection(ctx context.Context, client chroma.Client, name string, ef embeddings.EmbeddingFunction) (chroma.Collection, error) {
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chroma.WithEmbeddingFunctionCreate(ef),
		chroma.WithHNSWSpaceCreate(embeddings.COSINE),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	log.Printf("[Chroma] Opened collection %s", name)
	return collection, nil
}
