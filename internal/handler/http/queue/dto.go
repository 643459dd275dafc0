// Package queue provides HTTP handlers for operational queue endpoints.
// These are read-only views used by operators: queue depth per status,
// per-user queue items, and the live worker fleet.
package queue

import "time"

// ItemDTO represents the JSON structure for a queue item.
type ItemDTO struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Kind          string     `json:"kind" example:"existing_video"`
	Status        string     `json:"status" example:"pending"`
	Priority      float64    `json:"priority"`
	VideoID       string     `json:"video_id,omitempty"`
	Similarity    float64    `json:"similarity,omitempty"`
	Prompt        string     `json:"prompt,omitempty"`
	Attempts      int        `json:"attempts"`
	ClaimedBy     string     `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	ResultVideoID string     `json:"result_video_id,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// StatsDTO represents queue depth per status.
type StatsDTO struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Ready      int64 `json:"ready"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}

// WorkerDTO represents the JSON structure for a live worker record.
type WorkerDTO struct {
	WorkerID      string    `json:"worker_id"`
	Hostname      string    `json:"hostname"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	ActiveTasks   int       `json:"active_tasks"`
}
