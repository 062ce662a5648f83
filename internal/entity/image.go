package entity

import (
	"strings"
	"time"
)

type Method string

const (
	MethodBlurred Method = "blurred"
	MethodSolid   Method = "solid"
)

const (
	MethodBlurredLabel = "Blurred background"
	MethodSolidLabel   = "Solid color (extract from original)"
)

// ParseMethod accepts both the short values and the labels shown to users.
// An empty string selects the blurred background.
func ParseMethod(s string) (Method, error) {
	switch strings.TrimSpace(s) {
	case "", string(MethodBlurred), MethodBlurredLabel:
		return MethodBlurred, nil
	case string(MethodSolid), MethodSolidLabel:
		return MethodSolid, nil
	default:
		return "", ErrUnknownMethod
	}
}

func (m Method) Label() string {
	switch m {
	case MethodBlurred:
		return MethodBlurredLabel
	case MethodSolid:
		return MethodSolidLabel
	}
	return string(m)
}

type Tool string

const (
	ToolRemoveBackground Tool = "rembg"
	ToolWallpaper        Tool = "wallpaper"
)

func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolRemoveBackground, ToolWallpaper:
		return Tool(s), nil
	default:
		return "", ErrUnknownTool
	}
}

// ResultFilename is the download name offered for a tool's output.
func (t Tool) ResultFilename() string {
	if t == ToolWallpaper {
		return "wallpaper_1200x2600.png"
	}
	return "output_no_bg.png"
}

type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change status again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID        string    `json:"id"`
	Tool      Tool      `json:"tool"`
	Method    Method    `json:"method,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProcessingTask struct {
	JobID  string `json:"job_id"`
	Tool   Tool   `json:"tool"`
	Method Method `json:"method,omitempty"`
}

// Result is an encoded PNG together with the dimensions of its source.
type Result struct {
	PNG          []byte
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	Cached       bool
}

type UploadResponse struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

type JobResponse struct {
	ID        string    `json:"id"`
	Tool      Tool      `json:"tool"`
	Method    Method    `json:"method,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	ResultURL string    `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MethodInfo struct {
	Value Method `json:"value"`
	Label string `json:"label"`
}

type MethodsResponse struct {
	Default Method       `json:"default"`
	Methods []MethodInfo `json:"methods"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
}
