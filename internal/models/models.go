package models

import "time"

// Enums

// RequestStatus tracks the durable lifecycle of a synthesis request.
type RequestStatus string

const (
	RequestStatusQueued     RequestStatus = "queued"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusSuccess    RequestStatus = "success"
	RequestStatusError      RequestStatus = "error"
)

// Models

type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Password    string     `json:"-"` // bcrypt hash, never serialized
	LastLogin   *time.Time `json:"last_login,omitempty"`
	DateJoined  time.Time  `json:"date_joined"`
	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active"`
}

// SynthesisRequest is the durable record created on submission.
// Status and timestamps are mutated only by the coordinator as the
// job progresses; rows are never deleted by the service.
type SynthesisRequest struct {
	ID                  int64         `json:"id"`
	UserID              int64         `json:"user_id"`
	InputText           string        `json:"input_text"`
	Status              RequestStatus `json:"status"`
	CreateDttm          time.Time     `json:"create_dttm"`
	ProcessingStartDttm *time.Time    `json:"processing_start_dttm,omitempty"`
	ProcessingEndDttm   *time.Time    `json:"processing_end_dttm,omitempty"`
	LanguageCode        string        `json:"language_code"`
}

// SynthesisResult is written exactly once per successful request and
// is immutable thereafter. AudioFilePath is relative to the audio root.
type SynthesisResult struct {
	RequestID           int64   `json:"request_id"`
	AudioFilePath       string  `json:"audio_file_path"`
	DurationSeconds     float64 `json:"duration_seconds"`
	CharactersProcessed int     `json:"characters_processed"`
}

// HistoryEntry is one row of the request/result join served by
// GET /api/history.
type HistoryEntry struct {
	Date     time.Time     `json:"date"`
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Status   RequestStatus `json:"status"`
	// Set only when a result row exists for the request.
	AudioPath *string  `json:"audio_path,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
}

// API request/response types

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Status string `json:"status"`
	UserID int64  `json:"user_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

type SynthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type SynthesizeResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}
