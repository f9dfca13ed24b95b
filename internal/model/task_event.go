package model

// TaskEvent 外部任务事件（由任务系统推送，不落库）
type TaskEvent struct {
	TaskId      string `json:"task_id"`
	DeveloperId string `json:"developer_id"`
	Difficulty  string `json:"difficulty"` // easy, medium, hard
	Type        string `json:"type"`       // feature, bug, improvement
	Status      string `json:"status"`     // done, verified
}

// TaskDifficulty 任务难度
const (
	TaskDifficultyAny    = "any"
	TaskDifficultyEasy   = "easy"
	TaskDifficultyMedium = "medium"
	TaskDifficultyHard   = "hard"
)

// TaskType 任务类型
const (
	TaskTypeAny         = "any"
	TaskTypeFeature     = "feature"
	TaskTypeBug         = "bug"
	TaskTypeImprovement = "improvement"
)

// TaskStatus 任务状态
const (
	TaskStatusDone     = "done"
	TaskStatusVerified = "verified"
)
