package domain

import "time"

// FileLock is an advisory exclusive-ownership record keyed by a normalized
// filesystem path. Exactly one row exists per FilePath.
type FileLock struct {
	Id            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FilePath      string    `gorm:"column:file_path;size:1024;uniqueIndex" json:"filePath"`
	LockingNodeId string    `gorm:"column:locking_node_id;size:64;index" json:"lockingNodeId"`
	AcquiredAt    time.Time `gorm:"column:acquired_at" json:"acquiredAt"`
	LastUpdatedAt time.Time `gorm:"column:last_updated_at;index" json:"lastUpdatedAt"`
}

func (FileLock) TableName() string { return "file_locks" }
