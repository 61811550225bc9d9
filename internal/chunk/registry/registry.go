// Package registry maps the chunk-store backend selector string from
// config.ChunkStoreConfig onto the concrete chunk.Factory that builds it,
// so callers construct a chunk.Store by name instead of importing every
// backend package directly.
package registry

import (
	"fmt"

	"nasstore/internal/chunk"
	"nasstore/internal/chunk/azurestore"
	"nasstore/internal/chunk/file"
	"nasstore/internal/chunk/gcsstore"
	"nasstore/internal/chunk/memory"
	"nasstore/internal/chunk/s3store"
)

var factories = map[string]chunk.Factory{
	"local_fs":   file.NewFactory(),
	"s3":         s3store.NewFactory(),
	"azure_blob": azurestore.NewFactory(),
	"gcs":        gcsstore.NewFactory(),
	"memory":     memory.NewFactory(),
}

// Open constructs the chunk.Store registered for backend with the given
// params. Returns an error naming the unknown backend if it isn't
// registered.
func Open(backend string, params map[string]string) (chunk.Store, error) {
	factory, ok := factories[backend]
	if !ok {
		return nil, fmt.Errorf("chunk store backend %q not registered", backend)
	}
	return factory(params)
}
