package domain

// StorageMetrics is the point-in-time health snapshot reported by the store.
type StorageMetrics struct {
	Tasks   TaskStats    `json:"tasks"`
	Storage StorageStats `json:"storage"`
}

// TaskStats aggregates task counts.
type TaskStats struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	NoteCount       int            `json:"noteCount"`
	DependencyCount int            `json:"dependencyCount"`
}

// StorageStats describes the physical database.
type StorageStats struct {
	TotalSize int64      `json:"totalSize"`
	PageSize  int64      `json:"pageSize"`
	PageCount int64      `json:"pageCount"`
	WALSize   int64      `json:"walSize"`
	Cache     CacheStats `json:"cache"`
}

// CacheStats reports cache usage. The store always reports it zeroed; the
// layer owning the cache fills it in.
type CacheStats struct {
	HitRate     float64 `json:"hitRate"`
	MemoryUsage uint64  `json:"memoryUsage"`
	EntryCount  int     `json:"entryCount"`
}
