package question

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// maxSkip bounds the offset handed to a store; pages beyond it are empty.
	maxSkip = math.MaxInt32
)

// Store is the persistence backend for questions (Postgres or MongoDB).
type Store interface {
	Count(ctx context.Context, filter Filter) (int64, error)
	Find(ctx context.Context, filter Filter, skip, limit int) ([]Question, error)
	ExistsByNumber(ctx context.Context, number int) (bool, error)
	// Insert assigns the ID and returns ErrConflict when the number is taken.
	Insert(ctx context.Context, q Question) (Question, error)
	// UpdateStatus returns ErrNotFound for unknown ids and ErrInvalidInput for malformed ones.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Question, error)
	Ping(ctx context.Context) error
}

// TitleLookup resolves a problem number to its title (implemented by title.GeminiClient).
type TitleLookup interface {
	LookupTitle(ctx context.Context, number int) (string, error)
}

// TitleCache defines cache behavior for resolved titles (implemented by Redis-backed Cache).
type TitleCache interface {
	Get(ctx context.Context, number int) (string, bool, error)
	Set(ctx context.Context, number int, title string) error
}

type ServiceOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	Cache           TitleCache
	Metrics         *Metrics
	Now             func() time.Time
}

// Service owns validation, filter construction and pagination for questions.
type Service struct {
	store           Store
	titles          TitleLookup
	cache           TitleCache
	metrics         *Metrics
	logger          zerolog.Logger
	now             func() time.Time
	defaultPageSize int
	maxPageSize     int
}

func NewService(store Store, titles TitleLookup, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = defaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = maxPageSize
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:           store,
		titles:          titles,
		cache:           opts.Cache,
		metrics:         opts.Metrics,
		logger:          logger.With().Str("component", "question_service").Logger(),
		now:             opts.Now,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
}

// List returns one page of questions matching params, most recent first.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	size := params.PageSize
	if size <= 0 {
		size = s.defaultPageSize
	}
	if size > s.maxPageSize {
		size = s.maxPageSize
	}

	filter := buildFilter(params)

	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: count questions: %v", ErrStoreFailure, err)
	}

	var questions []Question
	if page-1 <= maxSkip/size {
		questions, err = s.store.Find(ctx, filter, (page-1)*size, size)
		if err != nil {
			return ListResult{}, fmt.Errorf("%w: find questions: %v", ErrStoreFailure, err)
		}
	}
	if questions == nil {
		questions = []Question{}
	}

	return ListResult{
		Questions:  questions,
		Pagination: paginate(page, size, len(questions), total),
	}, nil
}

// Add validates and stores a new question. Duplicate numbers yield ErrConflict without a write.
func (s *Service) Add(ctx context.Context, params AddParams) (Question, error) {
	if params.QuestionNumber <= 0 || params.QuestionNumber > MaxQuestionNumber {
		return Question{}, fmt.Errorf("%w: questionNumber must be a positive integer up to %d", ErrInvalidInput, MaxQuestionNumber)
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return Question{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	status := DefaultStatus
	if params.Status != nil {
		if !params.Status.Valid() {
			return Question{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *params.Status)
		}
		status = *params.Status
	}

	exists, err := s.store.ExistsByNumber(ctx, params.QuestionNumber)
	if err != nil {
		return Question{}, fmt.Errorf("%w: check question number: %v", ErrStoreFailure, err)
	}
	if exists {
		s.metrics.questionConflict()
		return Question{}, fmt.Errorf("%w: number %d", ErrConflict, params.QuestionNumber)
	}

	now := s.now()
	created, err := s.store.Insert(ctx, Question{
		QuestionNumber: params.QuestionNumber,
		Title:          title,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.questionConflict()
			return Question{}, err
		}
		return Question{}, fmt.Errorf("%w: insert question: %v", ErrStoreFailure, err)
	}

	s.metrics.questionCreated()
	s.logger.Info().Str("id", created.ID).Int("question_number", created.QuestionNumber).Msg("question added")
	return created, nil
}

// UpdateStatus changes the status of an existing question and refreshes UpdatedAt.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Question, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Question{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if !status.Valid() {
		return Question{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	updated, err := s.store.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return Question{}, err
		}
		return Question{}, fmt.Errorf("%w: update status: %v", ErrStoreFailure, err)
	}

	s.metrics.statusUpdated(status)
	return updated, nil
}

// LookupTitle asks the title service for a problem's title. It never retries.
func (s *Service) LookupTitle(ctx context.Context, number int) (string, error) {
	if number <= 0 || number > MaxQuestionNumber {
		return "", fmt.Errorf("%w: questionNumber must be a positive integer up to %d", ErrInvalidInput, MaxQuestionNumber)
	}

	if s.cache != nil {
		title, ok, err := s.cache.Get(ctx, number)
		if err != nil {
			s.logger.Warn().Err(err).Int("question_number", number).Msg("title cache read failed")
		} else if ok {
			s.metrics.titleLookup("hit")
			return title, nil
		}
	}

	if s.titles == nil {
		s.metrics.titleLookup("error")
		return "", fmt.Errorf("%w: no title service configured", ErrLookupFailed)
	}

	title, err := s.titles.LookupTitle(ctx, number)
	if err != nil {
		s.metrics.titleLookup("error")
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		s.metrics.titleLookup("error")
		return "", fmt.Errorf("%w: empty title", ErrLookupFailed)
	}
	s.metrics.titleLookup("miss")

	if s.cache != nil {
		if err := s.cache.Set(ctx, number, title); err != nil {
			s.logger.Warn().Err(err).Int("question_number", number).Msg("title cache write failed")
		}
	}
	return title, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func buildFilter(params ListParams) Filter {
	var filter Filter
	if params.Status != nil {
		st := *params.Status
		filter.Status = &st
	}
	if params.Search != nil {
		if text := strings.TrimSpace(*params.Search); text != "" {
			term := NewSearchTerm(text)
			filter.Search = &term
		}
	}
	return filter
}

func paginate(page, size, returned int, total int64) Pagination {
	totalPages := (total + int64(size) - 1) / int64(size)
	// Past the last page the offset may not fit in an int64; nothing follows it anyway.
	hasMore := false
	if int64(page-1) < totalPages {
		hasMore = int64(page-1)*int64(size)+int64(returned) < total
	}
	p := Pagination{
		CurrentPage: page,
		TotalCount:  total,
		HasMore:     hasMore,
		TotalPages:  totalPages,
	}
	if hasMore {
		next := page + 1
		p.NextPage = &next
	}
	return p
}
