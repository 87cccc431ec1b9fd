package chain

import (
	"context"
	"time"

	"github.com/lightninglabs/swapwatch/cache"
)

// MetadataTimeout is how long block metadata is cached.
const MetadataTimeout = 5 * time.Minute

// MetadataCache is a Source that caches block metadata. Blocks are looked up
// repeatedly while following the chain, and their metadata never changes.
type MetadataCache struct {
	Source

	store cache.Store
}

// NewMetadataCache wraps a source with a block metadata cache in the store.
func NewMetadataCache(source Source, store cache.Store) *MetadataCache {
	return &MetadataCache{
		Source: source,
		store:  store,
	}
}

// BlockMetadata returns the cached metadata of a block, fetching it from the
// wrapped source on a miss. Cache failures fall back to the source.
func (m *MetadataCache) BlockMetadata(ctx context.Context,
	hash string) (*BlockMetadata, error) {

	key := hash + "," + m.Network()

	var metadata BlockMetadata
	found, err := m.store.GetJSON(ctx, cache.TypeBlockMetadata, key, &metadata)
	switch {
	case err != nil:
		log.Warnf("Unable to read cached metadata of block %v: %v",
			hash, err)

	case found:
		return &metadata, nil
	}

	fetched, err := m.Source.BlockMetadata(ctx, hash)
	if err != nil {
		return nil, err
	}

	err = m.store.SetJSON(
		ctx, cache.TypeBlockMetadata, key, fetched, MetadataTimeout,
	)
	if err != nil {
		log.Warnf("Unable to cache metadata of block %v: %v", hash,
			err)
	}

	return fetched, nil
}
