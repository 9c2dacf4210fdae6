package types

import (
	"strings"
)

// TaskID is a canonical task identifier used for registry lookup
type TaskID string

const (
	TaskDesignSpecification      TaskID = "DESIGN_SPECIFICATION"
	TaskArchitecturalReasoning   TaskID = "ARCHITECTURAL_REASONING"
	TaskSiteAnalysis             TaskID = "SITE_ANALYSIS"
	TaskPortfolioStyleExtraction TaskID = "PORTFOLIO_STYLE_EXTRACTION"
	TaskBlendedStyle             TaskID = "BLENDED_STYLE"
	TaskModificationReasoning    TaskID = "MODIFICATION_REASONING"
	TaskConsistencyValidation    TaskID = "CONSISTENCY_VALIDATION"
	TaskTechnicalDrawing         TaskID = "TECHNICAL_DRAWING"
	TaskPhotorealisticRender     TaskID = "PHOTOREALISTIC_RENDER"
)

// TaskKind separates text generation from image generation tasks
type TaskKind string

const (
	KindText  TaskKind = "text"
	KindImage TaskKind = "image"
)

// AllTasks lists every canonical task in a stable order
var AllTasks = []TaskID{
	TaskDesignSpecification,
	TaskArchitecturalReasoning,
	TaskSiteAnalysis,
	TaskPortfolioStyleExtraction,
	TaskBlendedStyle,
	TaskModificationReasoning,
	TaskConsistencyValidation,
	TaskTechnicalDrawing,
	TaskPhotorealisticRender,
}

// Kind reports whether the task produces text or images
func (t TaskID) Kind() TaskKind {
	switch t {
	case TaskTechnicalDrawing, TaskPhotorealisticRender:
		return KindImage
	default:
		return KindText
	}
}

// Valid reports whether t is one of the canonical tasks
func (t TaskID) Valid() bool {
	for _, task := range AllTasks {
		if task == t {
			return true
		}
	}
	return false
}

func (t TaskID) String() string {
	return string(t)
}

// NormalizeTask case-folds an identifier and maps separators to underscores,
// so "generate design specification" and "Generate-Design-Specification" agree.
func NormalizeTask(identifier string) TaskID {
	normalized := strings.ToUpper(strings.TrimSpace(identifier))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	return TaskID(normalized)
}
