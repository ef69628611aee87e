package domain

import "time"

// JobType enumerates the kinds of batch task the fleet can be asked to run.
// The coordinator never interprets Parameters beyond this tag; the payload
// itself stays opaque.
type JobType string

const (
	JobTypeUnknown           JobType = "Unknown"
	JobTypeHelloWorld        JobType = "HelloWorld"
	JobTypeTestMessage       JobType = "TestMessage"
	JobTypeRenderThumbnails  JobType = "RenderThumbnails"
	JobTypeFileProcessing    JobType = "FileProcessing"
	JobTypeRealityCapture    JobType = "RealityCapture"
	JobTypePackageTask       JobType = "PackageTask"
	JobTypeVolumeCompression JobType = "VolumeCompression"
)

func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeHelloWorld, JobTypeTestMessage, JobTypeRenderThumbnails,
		JobTypeFileProcessing, JobTypeRealityCapture, JobTypePackageTask,
		JobTypeVolumeCompression:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "Pending"
	JobStatusRunning   JobStatus = "Running"
	JobStatusCompleted JobStatus = "Completed"
	JobStatusFailed    JobStatus = "Failed"
	JobStatusCancelled JobStatus = "Cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Job (BatchTask) is a unit of work tracked by the coordinator. Parameters
// is an opaque string; the coordinator never parses it.
type Job struct {
	Id             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"column:name;size:200;not null" json:"name"`
	Type           JobType   `gorm:"column:type;size:32;index" json:"type"`
	Status         JobStatus `gorm:"column:status;size:16;index;index:idx_jobs_status_created" json:"status"`
	AssignedNodeId *string   `gorm:"column:assigned_node_id;size:64" json:"assignedNodeId,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;index:idx_jobs_status_created" json:"createdAt"`
	StartedAt      *time.Time `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
	Parameters     *string   `gorm:"column:parameters;type:text" json:"parameters,omitempty"`
	ResultMessage  *string   `gorm:"column:result_message;type:text" json:"resultMessage,omitempty"`
	RowVersion     int64     `gorm:"column:row_version;not null;default:1" json:"rowVersion"`
}

func (Job) TableName() string { return "jobs" }
