package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// DLQEntry represents a failed appraisal request that can be retried later.
type DLQEntry struct {
	ID           string                `json:"id"`
	Request      model.AnalysisRequest `json:"request"`
	Error        string                `json:"error"`
	ErrorType    string                `json:"error_type"` // "transient" or "permanent"
	FailedPhase  string                `json:"failed_phase,omitempty"`
	RetryCount   int                   `json:"retry_count"`
	MaxRetries   int                   `json:"max_retries"`
	NextRetryAt  time.Time             `json:"next_retry_at"`
	CreatedAt    time.Time             `json:"created_at"`
	LastFailedAt time.Time             `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// dlqBaseBackoff is the delay before the first retry; each subsequent retry
// doubles it up to dlqMaxBackoff.
const (
	dlqBaseBackoff = time.Minute
	dlqMaxBackoff  = 30 * time.Minute
)

// DLQ is an in-memory dead letter queue of appraisal requests whose runs
// produced nothing usable. Entries become due on an exponential backoff
// schedule; exhausted entries stay queryable but are never due again.
type DLQ struct {
	mu         sync.Mutex
	entries    map[string]*DLQEntry
	maxRetries int
	now        func() time.Time
}

// NewDLQ creates a queue; maxRetries <= 0 defaults to 3.
func NewDLQ(maxRetries int) *DLQ {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &DLQ{
		entries:    make(map[string]*DLQEntry),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Add enqueues a failed request. A request already queued (matched by request
// ID) is recorded as one more failure instead of duplicated.
func (q *DLQ) Add(req model.AnalysisRequest, cause error, phase string) *DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, e := range q.entries {
		if e.Request.ID != "" && e.Request.ID == req.ID {
			q.recordFailure(e, cause, now)
			return e
		}
	}

	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	e := &DLQEntry{
		ID:           uuid.NewString(),
		Request:      req,
		Error:        errMsg,
		ErrorType:    ClassifyError(cause),
		FailedPhase:  phase,
		MaxRetries:   q.maxRetries,
		NextRetryAt:  now.Add(dlqBaseBackoff),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	q.entries[e.ID] = e
	return e
}

// Due returns entries whose retry time has arrived and which still have
// retries left, oldest first.
func (q *DLQ) Due() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []DLQEntry
	for _, e := range q.entries {
		if e.CanRetry() && !e.NextRetryAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	return due
}

// MarkFailed records another failed retry for an entry and reschedules it.
func (q *DLQ) MarkFailed(id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return
	}
	q.recordFailure(e, cause, q.now())
}

// Remove drops an entry, typically after a successful retry.
func (q *DLQ) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, id)
}

// List returns entries matching the filter, oldest first.
func (q *DLQ) List(filter DLQFilter) []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []DLQEntry
	for _, e := range q.entries {
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Len returns the number of queued entries, retryable or not.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *DLQ) recordFailure(e *DLQEntry, cause error, now time.Time) {
	e.RetryCount++
	e.LastFailedAt = now
	if cause != nil {
		e.Error = cause.Error()
		e.ErrorType = ClassifyError(cause)
	}

	backoff := dlqBaseBackoff << e.RetryCount
	if backoff > dlqMaxBackoff {
		backoff = dlqMaxBackoff
	}
	e.NextRetryAt = now.Add(backoff)
}
