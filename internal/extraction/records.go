package extraction

import "github.com/dimaystinov/bot-hnushka/internal/domain"

// MeetingRecord is the structured report of a meeting.
type MeetingRecord struct {
	Title        string        `json:"title" validate:"required"`
	Summary      string        `json:"summary"`
	Participants []string      `json:"participants"`
	Tasks        []MeetingTask `json:"tasks" validate:"dive"`
	Decisions    []string      `json:"decisions"`
	KeyPoints    []string      `json:"key_points"`
}

// MeetingTask is an action item agreed in a meeting.
type MeetingTask struct {
	Title       string  `json:"title" validate:"required"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"due_date"`
	Description *string `json:"description"`
}

// ReminderRecord is a reminder with an absolute or relative time.
type ReminderRecord struct {
	Text               string  `json:"text" validate:"required"`
	ReminderDate       *string `json:"reminder_date"`
	RelativeTime       *string `json:"relative_time"`
	NeedsClarification bool    `json:"needs_clarification"`
}

// ArchiveRecord is a descriptive note turned into a markdown article.
type ArchiveRecord struct {
	Title   string   `json:"title" validate:"required"`
	Summary string   `json:"summary"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags"`
}

// DiaryRecord is a personal diary entry.
type DiaryRecord struct {
	Title    string   `json:"title" validate:"required"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content" validate:"required"`
	Thoughts []string `json:"thoughts"`
	Emotions []string `json:"emotions"`
}

// WorkRecord is a work log note.
type WorkRecord struct {
	Title          string   `json:"title" validate:"required"`
	ProjectContext string   `json:"project_context"`
	Done           []string `json:"done"`
	Planned        []string `json:"planned"`
	Problems       []string `json:"problems"`
	Ideas          []string `json:"ideas"`
}

// HomeRecord lists household tasks.
type HomeRecord struct {
	Tasks []HomeTask `json:"tasks" validate:"required,dive"`
}

// HomeTask is one household task.
type HomeTask struct {
	Category    string  `json:"category" validate:"required,oneof=покупки ремонт бытовые семейные"`
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
}

// StudyRecord is a study summary.
type StudyRecord struct {
	Topic         string   `json:"topic" validate:"required"`
	KeyPoints     []string `json:"key_points"`
	Definitions   []string `json:"definitions"`
	Examples      []string `json:"examples"`
	Questions     []string `json:"questions"`
	FollowUpTasks []string `json:"follow_up_tasks"`
}

// IdeasRecord lists brainstormed ideas.
type IdeasRecord struct {
	Ideas []Idea `json:"ideas" validate:"required,dive"`
}

// Idea is one brainstormed idea with its smallest next step.
type Idea struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Category    *string `json:"category"`
	NextStep    string  `json:"next_step"`
}

// HealthRecord is a health log entry.
type HealthRecord struct {
	Symptoms []string `json:"symptoms"`
	Actions  []string `json:"actions"`
	Triggers []string `json:"triggers"`
	Notes    string   `json:"notes"`
}

// FinanceRecord lists income and expense transactions.
type FinanceRecord struct {
	Transactions []Transaction `json:"transactions" validate:"required,dive"`
}

// Transaction is one income or expense.
type Transaction struct {
	Amount      *float64 `json:"amount" validate:"required"`
	Category    string   `json:"category" validate:"required,oneof=доход расход"`
	Subcategory string   `json:"subcategory"`
	Description string   `json:"description"`
}

// newRecord returns a pointer to the empty record struct for c, or nil for
// unknown, which has no schema.
func newRecord(c domain.Category) any {
	switch c {
	case domain.CategoryMeeting:
		return &MeetingRecord{}
	case domain.CategoryReminder:
		return &ReminderRecord{}
	case domain.CategoryArchive:
		return &ArchiveRecord{}
	case domain.CategoryDiary:
		return &DiaryRecord{}
	case domain.CategoryWork:
		return &WorkRecord{}
	case domain.CategoryHome:
		return &HomeRecord{}
	case domain.CategoryStudy:
		return &StudyRecord{}
	case domain.CategoryIdeas:
		return &IdeasRecord{}
	case domain.CategoryHealth:
		return &HealthRecord{}
	case domain.CategoryFinance:
		return &FinanceRecord{}
	case domain.CategoryUnknown:
		return nil
	default:
		return nil
	}
}
