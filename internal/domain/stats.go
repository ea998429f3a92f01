package domain

// StoreStats summarizes what the local store holds
type StoreStats struct {
	EntitiesByType    map[string]int `json:"entities_by_type"`
	TotalEntities     int            `json:"total_entities"`
	TotalAssets       int            `json:"total_assets"`
	OrphanAssets      int            `json:"orphan_assets"`
	TotalAssetBytes   int64          `json:"total_asset_bytes"`
	DiscoveredFolders int            `json:"discovered_folders"`
	OverrideFolders   int            `json:"override_folders"`
	HeldLocks         int            `json:"held_locks"`
}
