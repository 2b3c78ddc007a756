package models

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	KindPie           = "pie"
	KindBar           = "bar"
	KindHorizontalBar = "horizontal_bar"
	KindLine          = "line"
)

const (
	OperationCreate        = "create"
	OperationRefresh       = "refresh"
	OperationRegeneratePNG = "regenerate_png"
	OperationCleanup       = "cleanup"
)

const (
	LogSuccess = "success"
	LogFailure = "failure"
)

// ChartArtifact is the cache record for one logical chart. The row is the
// source of truth for whether a chart is current; file presence under the
// artifact root is reconciled against it at read time.
type ChartArtifact struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement"`
	ChartKey           string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	ChartKind          string     `gorm:"type:varchar(32);not null"`
	ContentFingerprint string     `gorm:"type:varchar(64);not null;index"`
	SVGFingerprint     string     `gorm:"type:varchar(64)"`
	SVGRelativePath    string     `gorm:"type:varchar(512)"`
	PNGRelativePath    string     `gorm:"type:varchar(512)"`
	Title              string     `gorm:"type:varchar(255)"`
	Width              int        `gorm:"not null;default:0"`
	Height             int        `gorm:"not null;default:0"`
	Status             string     `gorm:"type:varchar(16);not null;index"`
	ErrorMessage       string     `gorm:"type:text"`
	AccessCount        int64      `gorm:"not null;default:0"`
	LastAccessedAt     *time.Time `gorm:"index"`
	SVGGeneratedAt     *time.Time
	PNGGeneratedAt     *time.Time
	CreatedAt          time.Time `gorm:"index"`
	UpdatedAt          time.Time
}

// GenerationLog is an append-only audit row for one generation or cleanup
// attempt. Rows are written only by the cache and never updated.
type GenerationLog struct {
	ID              uint          `gorm:"primaryKey;autoIncrement"`
	ChartArtifactID uint          `gorm:"index;not null"`
	ChartKey        string        `gorm:"type:varchar(255);not null;index"`
	Operation       string        `gorm:"type:varchar(32);not null"`
	Status          string        `gorm:"type:varchar(16);not null"`
	ProcessingTime  time.Duration `gorm:"not null;default:0"`
	ErrorMessage    string        `gorm:"type:text"`
	Metadata        string        `gorm:"type:text"`
	CreatedAt       time.Time     `gorm:"index"`
}

type AccessLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Method    string    `gorm:"type:varchar(10);not null"`
	Path      string    `gorm:"type:text;not null;index"`
	Status    int       `gorm:"not null;index"`
	Duration  time.Duration
	ClientIP  string `gorm:"type:varchar(45);not null"`
	UserAgent string `gorm:"type:text"`
	BytesSent int    `gorm:"not null;default:0"`
}

func (ChartArtifact) TableName() string {
	return "chart_artifacts"
}

func (GenerationLog) TableName() string {
	return "generation_logs"
}

func (AccessLog) TableName() string {
	return "access_logs"
}
