package question

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	nextID  int
	records []Question
	failAll error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (s *memoryStore) match(f Filter, q Question) bool {
	if f.Status != nil && q.Status != *f.Status {
		return false
	}
	if f.Search != nil {
		byNumber := q.QuestionNumber == f.Search.Number
		byTitle := strings.Contains(strings.ToLower(q.Title), strings.ToLower(f.Search.Text))
		if !byNumber && !byTitle {
			return false
		}
	}
	return true
}

func (s *memoryStore) Count(_ context.Context, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return 0, s.failAll
	}
	var n int64
	for _, q := range s.records {
		if s.match(f, q) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Find(_ context.Context, f Filter, skip, limit int) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []Question
	for _, q := range s.records {
		if s.match(f, q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ExistsByNumber(_ context.Context, number int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return false, s.failAll
	}
	for _, q := range s.records {
		if q.QuestionNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) Insert(_ context.Context, q Question) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return Question{}, s.failAll
	}
	for _, existing := range s.records {
		if existing.QuestionNumber == q.QuestionNumber {
			return Question{}, ErrConflict
		}
	}
	s.nextID++
	q.ID = fmt.Sprintf("id-%04d", s.nextID)
	s.records = append(s.records, q)
	return q, nil
}

func (s *memoryStore) UpdateStatus(_ context.Context, id string, status Status, at time.Time) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return Question{}, s.failAll
	}
	if !strings.HasPrefix(id, "id-") {
		return Question{}, fmt.Errorf("%w: malformed id", ErrInvalidInput)
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			s.records[i].UpdatedAt = at
			return s.records[i], nil
		}
	}
	return Question{}, ErrNotFound
}

func (s *memoryStore) Ping(context.Context) error { return s.failAll }

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type stubTitles struct {
	mock.Mock
}

func (s *stubTitles) LookupTitle(ctx context.Context, number int) (string, error) {
	args := s.Called(ctx, number)
	return args.String(0), args.Error(1)
}

type memoryCache struct {
	store map[int]string
}

func (c *memoryCache) Get(_ context.Context, number int) (string, bool, error) {
	t, ok := c.store[number]
	return t, ok, nil
}

func (c *memoryCache) Set(_ context.Context, number int, title string) error {
	c.store[number] = title
	return nil
}

// tickingClock returns strictly increasing timestamps so insertion order is observable.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(store Store, titles TitleLookup, opts ServiceOptions) *Service {
	if opts.Now == nil {
		opts.Now = tickingClock()
	}
	return NewService(store, titles, opts, zerolog.Nop())
}

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }

func TestAddThenListReturnsNewestFirst(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()

	first, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, AddParams{QuestionNumber: 2, Title: "Add Two Numbers"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, StatusNeedCheck, first.Status)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	res, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, res.Questions, 2)
	assert.Equal(t, second.ID, res.Questions[0].ID)
	assert.Equal(t, first.ID, res.Questions[1].ID)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalCount: 2, HasMore: false, NextPage: nil, TotalPages: 1}, res.Pagination)
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name   string
		params AddParams
	}{
		{name: "zero number", params: AddParams{QuestionNumber: 0, Title: "x"}},
		{name: "negative number", params: AddParams{QuestionNumber: -4, Title: "x"}},
		{name: "number above int4 range", params: AddParams{QuestionNumber: MaxQuestionNumber + 1, Title: "x"}},
		{name: "huge number", params: AddParams{QuestionNumber: 3000000000, Title: "x"}},
		{name: "empty title", params: AddParams{QuestionNumber: 1, Title: ""}},
		{name: "blank title", params: AddParams{QuestionNumber: 1, Title: "   "}},
		{name: "unknown status", params: AddParams{QuestionNumber: 1, Title: "x", Status: statusPtr("done")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			svc := newTestService(store, nil, ServiceOptions{})
			_, err := svc.Add(context.Background(), tc.params)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0, store.len())
		})
	}
}

func TestAddKeepsExplicitStatusAndTrimsTitle(t *testing.T) {
	svc := newTestService(newMemoryStore(), nil, ServiceOptions{})
	q, err := svc.Add(context.Background(), AddParams{QuestionNumber: 7, Title: "  Reverse Integer ", Status: statusPtr(StatusSkipped)})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, q.Status)
	assert.Equal(t, "Reverse Integer", q.Title)
}

func TestAddDuplicateNumberConflictsWithoutWrite(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{Metrics: metrics})
	ctx := context.Background()

	_, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)

	_, err = svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Something Else"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, store.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.created))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.conflicts))
}

// racingStore reports the number as free, then rejects the insert the way a
// unique index would when another writer got there first.
type racingStore struct {
	*memoryStore
}

func (s racingStore) ExistsByNumber(context.Context, int) (bool, error) { return false, nil }

func TestAddConflictFromStoreConstraint(t *testing.T) {
	store := racingStore{newMemoryStore()}
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()

	_, err := svc.Add(ctx, AddParams{QuestionNumber: 3, Title: "Longest Substring"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, AddParams{QuestionNumber: 3, Title: "Longest Substring"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, store.len())
}

func TestConcurrentDuplicateAddsStoreOnce(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(context.Background(), AddParams{QuestionNumber: 42, Title: "Trapping Rain Water"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, 1, store.len())
}

func TestListPagesCoverEveryRecordOnce(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()

	for i := 1; i <= 23; i++ {
		_, err := svc.Add(ctx, AddParams{QuestionNumber: i, Title: fmt.Sprintf("Problem %d", i)})
		require.NoError(t, err)
	}

	const size = 5
	seen := map[string]bool{}
	var walked []Question
	for page := 1; ; page++ {
		res, err := svc.List(ctx, ListParams{Page: page, PageSize: size})
		require.NoError(t, err)
		assert.Equal(t, int64(23), res.Pagination.TotalCount)
		assert.Equal(t, int64(5), res.Pagination.TotalPages)
		assert.Equal(t, page, res.Pagination.CurrentPage)

		skip := (page - 1) * size
		assert.Equal(t, int64(skip+len(res.Questions)) < res.Pagination.TotalCount, res.Pagination.HasMore)
		for _, q := range res.Questions {
			assert.False(t, seen[q.ID], "duplicate %s", q.ID)
			seen[q.ID] = true
		}
		walked = append(walked, res.Questions...)
		if !res.Pagination.HasMore {
			assert.Nil(t, res.Pagination.NextPage)
			break
		}
		require.NotNil(t, res.Pagination.NextPage)
		assert.Equal(t, page+1, *res.Pagination.NextPage)
	}

	require.Len(t, walked, 23)
	for i := 1; i < len(walked); i++ {
		assert.True(t, walked[i-1].CreatedAt.After(walked[i].CreatedAt))
	}
}

func TestListPastLastPage(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()
	_, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)

	res, err := svc.List(ctx, ListParams{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.NotNil(t, res.Questions)
	assert.Empty(t, res.Questions)
	assert.False(t, res.Pagination.HasMore)
	assert.Equal(t, int64(1), res.Pagination.TotalPages)
}

// skipRecorder remembers every offset the service asks for.
type skipRecorder struct {
	*memoryStore
	skips []int
}

func (s *skipRecorder) Find(ctx context.Context, f Filter, skip, limit int) ([]Question, error) {
	s.skips = append(s.skips, skip)
	return s.memoryStore.Find(ctx, f, skip, limit)
}

func TestListHugePageIsEmpty(t *testing.T) {
	store := &skipRecorder{memoryStore: newMemoryStore()}
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := svc.Add(ctx, AddParams{QuestionNumber: i, Title: "p"})
		require.NoError(t, err)
	}

	for _, page := range []int{math.MaxInt64, math.MaxInt32, math.MaxInt32/defaultPageSize + 2} {
		res, err := svc.List(ctx, ListParams{Page: page})
		require.NoError(t, err, page)
		assert.Empty(t, res.Questions, page)
		assert.Equal(t, page, res.Pagination.CurrentPage)
		assert.Equal(t, int64(5), res.Pagination.TotalCount)
		assert.False(t, res.Pagination.HasMore, page)
		assert.Nil(t, res.Pagination.NextPage, page)
	}
	assert.Empty(t, store.skips)

	res, err := svc.List(ctx, ListParams{Page: math.MaxInt32 / defaultPageSize})
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
	require.Len(t, store.skips, 1)
	assert.Positive(t, store.skips[0])
	assert.LessOrEqual(t, store.skips[0], math.MaxInt32)
}

func TestListDefaultsAndClamps(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{DefaultPageSize: 2, MaxPageSize: 3})
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := svc.Add(ctx, AddParams{QuestionNumber: i, Title: "p"})
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, ListParams{Page: -3, PageSize: 0})
	require.NoError(t, err)
	assert.Len(t, res.Questions, 2)
	assert.Equal(t, 1, res.Pagination.CurrentPage)
	assert.Equal(t, int64(3), res.Pagination.TotalPages)

	res, err = svc.List(ctx, ListParams{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
}

func TestListFilters(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()

	_, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, AddParams{QuestionNumber: 15, Title: "3Sum", Status: statusPtr(StatusCompleted)})
	require.NoError(t, err)
	_, err = svc.Add(ctx, AddParams{QuestionNumber: 167, Title: "Two Sum II - Input Array Is Sorted", Status: statusPtr(StatusInProgress)})
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  ListParams
		numbers []int
	}{
		{name: "no filter", params: ListParams{}, numbers: []int{167, 15, 1}},
		{name: "status only", params: ListParams{Status: statusPtr(StatusCompleted)}, numbers: []int{15}},
		{name: "title case-insensitive", params: ListParams{Search: strPtr("two")}, numbers: []int{167, 1}},
		{name: "exact number", params: ListParams{Search: strPtr("1")}, numbers: []int{1}},
		{name: "number prefix does not match others", params: ListParams{Search: strPtr("16")}, numbers: []int{}},
		{name: "status and search", params: ListParams{Status: statusPtr(StatusNeedCheck), Search: strPtr("Two")}, numbers: []int{1}},
		{name: "blank search ignored", params: ListParams{Search: strPtr("   ")}, numbers: []int{167, 15, 1}},
		{name: "regex metacharacters are literal", params: ListParams{Search: strPtr(".*")}, numbers: []int{}},
		{name: "leading digits parsed", params: ListParams{Search: strPtr("15abc")}, numbers: []int{15}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.List(ctx, tc.params)
			require.NoError(t, err)
			got := []int{}
			for _, q := range res.Questions {
				got = append(got, q.QuestionNumber)
			}
			assert.Equal(t, tc.numbers, got)
			assert.Equal(t, int64(len(tc.numbers)), res.Pagination.TotalCount)
		})
	}
}

func TestListStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.failAll = errors.New("connection refused")
	svc := newTestService(store, nil, ServiceOptions{})

	_, err := svc.List(context.Background(), ListParams{})
	assert.ErrorIs(t, err, ErrStoreFailure)
}

func TestUpdateStatus(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()

	created, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, created.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.QuestionNumber, updated.QuestionNumber)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	res, err := svc.List(ctx, ListParams{Status: statusPtr(StatusNeedCheck)})
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
}

func TestUpdateStatusErrors(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil, ServiceOptions{})
	ctx := context.Background()
	created, err := svc.Add(ctx, AddParams{QuestionNumber: 1, Title: "Two Sum"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "id-9999", StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateStatus(ctx, "not-an-id", StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateStatus(ctx, "", StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateStatus(ctx, created.ID, Status("finished"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, created, res.Questions[0])
}

func TestLookupTitleUsesCacheAndTrims(t *testing.T) {
	titles := new(stubTitles)
	titles.On("LookupTitle", mock.Anything, 1).Return("  Two Sum \n", nil).Once()
	cache := &memoryCache{store: map[int]string{}}
	svc := newTestService(newMemoryStore(), titles, ServiceOptions{Cache: cache})

	got, err := svc.LookupTitle(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", got)

	got, err = svc.LookupTitle(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", got)

	titles.AssertNumberOfCalls(t, "LookupTitle", 1)
}

func TestLookupTitleFailureIsNotRetried(t *testing.T) {
	titles := new(stubTitles)
	titles.On("LookupTitle", mock.Anything, 9999999).Return("", errors.New("upstream 503"))
	store := newMemoryStore()
	svc := newTestService(store, titles, ServiceOptions{})

	_, err := svc.LookupTitle(context.Background(), 9999999)
	assert.ErrorIs(t, err, ErrLookupFailed)
	titles.AssertNumberOfCalls(t, "LookupTitle", 1)
	assert.Equal(t, 0, store.len())
}

func TestLookupTitleRejectsInvalidNumber(t *testing.T) {
	titles := new(stubTitles)
	svc := newTestService(newMemoryStore(), titles, ServiceOptions{})

	_, err := svc.LookupTitle(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.LookupTitle(context.Background(), MaxQuestionNumber+1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	titles.AssertNotCalled(t, "LookupTitle", mock.Anything, mock.Anything)
}

func TestLookupTitleEmptyAnswerFails(t *testing.T) {
	titles := new(stubTitles)
	titles.On("LookupTitle", mock.Anything, 5).Return("   ", nil)
	svc := newTestService(newMemoryStore(), titles, ServiceOptions{})

	_, err := svc.LookupTitle(context.Background(), 5)
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestLeadingInt(t *testing.T) {
	tests := map[string]int{
		"1":                       1,
		"  42":                    42,
		"15abc":                   15,
		"-3":                      -3,
		"+7":                      7,
		"Two":                     0,
		"":                        0,
		"1 2":                     1,
		"abc123":                  0,
		"2147483647":              2147483647,
		"2147483648":              0,
		"-2147483648":             0,
		"99999999999999999999999": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, leadingInt(in), in)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("done")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
