package domain

import "time"

// Node is a worker process in the fleet, identified by a caller-supplied
// stable id and authenticated by a hardware fingerprint.
type Node struct {
	NodeId              string    `gorm:"column:node_id;primaryKey;size:64" json:"nodeId"`
	Name                string    `gorm:"column:name;size:200" json:"name"`
	IpAddress           string    `gorm:"column:ip_address;size:64" json:"ipAddress"`
	HardwareFingerprint string    `gorm:"column:hardware_fingerprint;size:255" json:"-"`
	IsAvailable         bool      `gorm:"column:is_available;index" json:"isAvailable"`
	LastHeartbeat       time.Time `gorm:"column:last_heartbeat;index" json:"lastHeartbeat"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Node) TableName() string { return "nodes" }
