package storage

import "farmhand/internal/ports"

// Provider is the storage interface the worker consumes.
type Provider = ports.StorageProvider
