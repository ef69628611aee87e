package domain

import "time"

type FolderStatus string

const (
	FolderStatusPending    FolderStatus = "Pending"
	FolderStatusInProgress FolderStatus = "InProgress"
	FolderStatusCompleted  FolderStatus = "Completed"
	FolderStatusFailed     FolderStatus = "Failed"
)

func (s FolderStatus) Terminal() bool {
	return s == FolderStatusCompleted || s == FolderStatusFailed
}

// TaskFolderProgress is one folder's processing state within a multi-folder
// job. Rows are unique per (TaskId, FolderPath).
type TaskFolderProgress struct {
	Id               int64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskId           int64        `gorm:"column:task_id;index:idx_folder_task;uniqueIndex:idx_folder_task_path" json:"taskId"`
	FolderPath       string       `gorm:"column:folder_path;size:1024;uniqueIndex:idx_folder_task_path" json:"folderPath"`
	FolderName       string       `gorm:"column:folder_name;size:255" json:"folderName"`
	Status           FolderStatus `gorm:"column:status;size:16;index" json:"status"`
	AssignedNodeId   *string      `gorm:"column:assigned_node_id;size:64" json:"assignedNodeId,omitempty"`
	AssignedNodeName *string      `gorm:"column:assigned_node_name;size:200" json:"assignedNodeName,omitempty"`
	CreatedAt        time.Time    `gorm:"column:created_at" json:"createdAt"`
	StartedAt        *time.Time   `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt      *time.Time   `gorm:"column:completed_at" json:"completedAt,omitempty"`
	Progress         float64      `gorm:"column:progress;not null;default:0" json:"progress"`
	ErrorMessage     *string      `gorm:"column:error_message;type:text" json:"errorMessage,omitempty"`
	OutputPath       *string      `gorm:"column:output_path;size:1024" json:"outputPath,omitempty"`
}

func (TaskFolderProgress) TableName() string { return "task_folder_progress" }
