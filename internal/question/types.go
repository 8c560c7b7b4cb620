package question

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxQuestionNumber is the largest number both stores can hold (a Postgres INTEGER).
const MaxQuestionNumber = math.MaxInt32

// Status is the completion state of a tracked problem.
type Status string

const (
	StatusNeedCheck  Status = "need_check"
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
	StatusSkipped    Status = "skipped"
)

// DefaultStatus is assigned when a question is added without one.
const DefaultStatus = StatusNeedCheck

// Statuses lists every accepted status in display order.
var Statuses = []Status{StatusNeedCheck, StatusInProgress, StatusCompleted, StatusSkipped}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNeedCheck, StatusCompleted, StatusInProgress, StatusSkipped:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Question is a single tracked coding problem.
type Question struct {
	ID             string    `json:"id"`
	QuestionNumber int       `json:"questionNumber"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SearchTerm is free text matched against the number or the title.
type SearchTerm struct {
	Text   string
	Number int
}

// NewSearchTerm derives the numeric half of a search from its leading integer.
func NewSearchTerm(text string) SearchTerm {
	return SearchTerm{Text: text, Number: leadingInt(text)}
}

// Filter is the store-level predicate. Nil fields do not constrain the result.
type Filter struct {
	Status *Status
	Search *SearchTerm
}

// ListParams drives a paginated read.
type ListParams struct {
	Status   *Status
	Search   *string
	Page     int
	PageSize int
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalCount  int64 `json:"totalCount"`
	HasMore     bool  `json:"hasMore"`
	NextPage    *int  `json:"nextPage"`
	TotalPages  int64 `json:"totalPages"`
}

// ListResult is one page of questions, most recent first.
type ListResult struct {
	Questions  []Question `json:"questions"`
	Pagination Pagination `json:"pagination"`
}

// AddParams carries a new question. Status defaults to DefaultStatus when nil.
type AddParams struct {
	QuestionNumber int
	Title          string
	Status         *Status
}

// leadingInt parses an optional sign and the leading decimal digits of s,
// skipping leading whitespace. It returns 0 when s does not start with a number.
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > MaxQuestionNumber {
			return 0
		}
	}
	if neg {
		return -n
	}
	return n
}
