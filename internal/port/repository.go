package port

import (
	"github.com/vertextoedge/sharepoint-list-sync/internal/domain/repository"
)

// EntityRepository is an alias to domain repository interface
type EntityRepository = repository.EntityRepository

// AssetRepository is an alias to domain repository interface
type AssetRepository = repository.AssetRepository

// FolderCacheRepository is an alias to domain repository interface
type FolderCacheRepository = repository.FolderCacheRepository

// LockRepository is an alias to domain repository interface
type LockRepository = repository.LockRepository

// RunRepository is an alias to domain repository interface
type RunRepository = repository.RunRepository

// Store is an alias to domain repository interface
type Store = repository.Store

// StatsRepository is an alias to domain repository interface
type StatsRepository = repository.StatsRepository
