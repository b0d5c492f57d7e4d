// ABOUTME: Redis-backed durable job queue with priority dequeue, retry backoff and retention
// ABOUTME: All job state transitions go through atomic claim/complete/fail operations
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trailer-engine/domain"
)

// priorityScale separates priority bands in the pending ZSET score so that any
// creation-time (unix milliseconds) tiebreak stays inside one band.
const priorityScale = 1e13

// cancelTTL bounds how long a project cancel flag lingers.
const cancelTTL = 24 * time.Hour

// claimScript pops the best pending job and marks it active in one atomic step,
// so no two workers can ever claim the same job.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, 0)
if #ids == 0 then
  return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('HSET', ARGV[1] .. ids[1], 'status', 'active', 'worker_id', ARGV[2], 'started_at', ARGV[3])
return ids[1]
`)

// completeScript guards the terminal transition: already-terminal jobs are left
// untouched so duplicate completions are safe. The job is also dropped from
// both scheduling sets in case it was never claimed.
var completeScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  return 'missing'
end
if st == 'completed' or st == 'failed' then
  return 'noop'
end
redis.call('ZREM', KEYS[2], ARGV[3])
redis.call('ZREM', KEYS[3], ARGV[3])
redis.call('HSET', KEYS[1], 'status', 'completed', 'output', ARGV[1], 'progress', '100', 'completed_at', ARGV[2], 'error', '')
return 'ok'
`)

// failScript applies the retry policy: while budget remains the job goes back
// to pending behind an exponential backoff delay, otherwise it fails for good.
var failScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  return 'missing'
end
if st == 'completed' or st == 'failed' then
  return 'noop'
end
redis.call('ZREM', KEYS[3], ARGV[5])
local rc = tonumber(redis.call('HGET', KEYS[1], 'retry_count') or '0')
local max = tonumber(redis.call('HGET', KEYS[1], 'max_retries') or '0')
if rc < max then
  redis.call('HSET', KEYS[1], 'status', 'pending', 'retry_count', rc + 1, 'error', ARGV[1], 'worker_id', '')
  local delay = tonumber(ARGV[3]) * 2 ^ rc
  redis.call('ZADD', KEYS[2], tonumber(ARGV[4]) + delay, ARGV[5])
  return 'retried'
end
redis.call('HSET', KEYS[1], 'status', 'failed', 'error', ARGV[1], 'completed_at', ARGV[2])
return 'failed'
`)

// abortScript terminally fails a job regardless of retry budget and removes it
// from the pending/delayed sets.
var abortScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  return 'missing'
end
if st == 'completed' or st == 'failed' then
  return 'noop'
end
redis.call('ZREM', KEYS[2], ARGV[3])
redis.call('ZREM', KEYS[3], ARGV[3])
redis.call('HSET', KEYS[1], 'status', 'failed', 'error', ARGV[1], 'completed_at', ARGV[2])
return 'aborted'
`)

// JobQueueConfig configures the redis-backed job queue.
type JobQueueConfig struct {
	KeyPrefix          string
	DefaultMaxRetries  int
	RetryBaseDelay     time.Duration
	CompletedRetention int
	FailedRetention    int
}

type jobRepository struct {
	client *redis.Client
	cfg    JobQueueConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewJobRepository creates a new redis-backed job queue.
func NewJobRepository(client *redis.Client, cfg JobQueueConfig, logger *slog.Logger) JobRepository {
	return &jobRepository{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// NewJobRepositoryWithClock creates a job queue with an injected clock. Used by
// tests to drive backoff eligibility deterministically.
func NewJobRepositoryWithClock(client *redis.Client, cfg JobQueueConfig, logger *slog.Logger, now func() time.Time) JobRepository {
	return &jobRepository{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

func (r *jobRepository) jobKey(jobID string) string {
	return r.cfg.KeyPrefix + "job:" + jobID
}

func (r *jobRepository) jobKeyPrefix() string {
	return r.cfg.KeyPrefix + "job:"
}

func (r *jobRepository) pendingKey() string {
	return r.cfg.KeyPrefix + "jobs:pending"
}

func (r *jobRepository) delayedKey() string {
	return r.cfg.KeyPrefix + "jobs:delayed"
}

func (r *jobRepository) completedKey() string {
	return r.cfg.KeyPrefix + "jobs:completed"
}

func (r *jobRepository) failedKey() string {
	return r.cfg.KeyPrefix + "jobs:failed"
}

func (r *jobRepository) projectJobsKey(projectID string) string {
	return r.cfg.KeyPrefix + "project:" + projectID + ":jobs"
}

func (r *jobRepository) cancelKey(projectID string) string {
	return r.cfg.KeyPrefix + "project:" + projectID + ":cancel"
}

func pendingScore(priority int, createdAtMs int64) float64 {
	// Higher priority sorts first, creation time breaks ties FIFO.
	return -float64(priority)*priorityScale + float64(createdAtMs)
}

// Enqueue persists a new pending job and makes it immediately dequeue-eligible.
func (r *jobRepository) Enqueue(ctx context.Context, jobType domain.JobType, payload json.RawMessage, opts EnqueueOptions) (string, error) {
	if !domain.ValidJobType(jobType) {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = r.cfg.DefaultMaxRetries
	}

	jobID := uuid.New().String()
	now := r.now().UTC()

	fields := map[string]interface{}{
		"id":            jobID,
		"type":          string(jobType),
		"status":        string(domain.JobStatusPending),
		"priority":      opts.Priority,
		"payload":       string(payload),
		"progress":      0,
		"retry_count":   0,
		"max_retries":   maxRetries,
		"project_id":    opts.ProjectID,
		"segment_id":    opts.SegmentID,
		"created_at":    now.Format(time.RFC3339Nano),
		"created_at_ms": now.UnixMilli(),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.jobKey(jobID), fields)
	pipe.ZAdd(ctx, r.pendingKey(), redis.Z{
		Score:  pendingScore(opts.Priority, now.UnixMilli()),
		Member: jobID,
	})
	if opts.ProjectID != "" {
		pipe.SAdd(ctx, r.projectJobsKey(opts.ProjectID), jobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.ErrorContext(ctx, "failed to enqueue job", "error", err, "job_type", jobType)
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	r.logger.InfoContext(ctx, "job enqueued",
		"job_id", jobID,
		"job_type", jobType,
		"priority", opts.Priority,
		"project_id", opts.ProjectID,
		"segment_id", opts.SegmentID)
	return jobID, nil
}

// Dequeue claims the highest-priority pending job for workerID. Delayed jobs
// whose backoff elapsed are promoted first so retries become visible without a
// separate scheduler tick.
func (r *jobRepository) Dequeue(ctx context.Context, workerID string) (*domain.Job, error) {
	if workerID == "" {
		return nil, fmt.Errorf("worker ID cannot be empty")
	}

	if _, err := r.PromoteDue(ctx); err != nil {
		r.logger.WarnContext(ctx, "failed to promote due jobs before dequeue", "error", err)
	}

	startedAt := r.now().UTC().Format(time.RFC3339Nano)
	res, err := claimScript.Run(ctx, r.client,
		[]string{r.pendingKey()},
		r.jobKeyPrefix(), workerID, startedAt,
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "failed to claim job", "error", err, "worker_id", workerID)
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	jobID, ok := res.(string)
	if !ok || jobID == "" {
		return nil, nil
	}

	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed job %s: %w", jobID, err)
	}

	r.logger.InfoContext(ctx, "job claimed", "job_id", jobID, "worker_id", workerID, "job_type", job.Type)
	return job, nil
}

// GetJob loads a job record by id.
func (r *jobRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID cannot be empty")
	}

	fields, err := r.client.HGetAll(ctx, r.jobKey(jobID)).Result()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to get job", "error", err, "job_id", jobID)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	return jobFromHash(fields)
}

// UpdateProgress records poll progress. It is monotonic: regressions and writes
// to terminal jobs are no-ops so late provider responses cannot move a job
// backwards.
func (r *jobRepository) UpdateProgress(ctx context.Context, jobID string, percent int) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	vals, err := r.client.HMGet(ctx, r.jobKey(jobID), "status", "progress").Result()
	if err != nil {
		return fmt.Errorf("failed to read job progress: %w", err)
	}
	status, _ := vals[0].(string)
	if status == "" {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if status == string(domain.JobStatusCompleted) || status == string(domain.JobStatusFailed) {
		return nil
	}

	current := 0
	if s, ok := vals[1].(string); ok {
		current, _ = strconv.Atoi(s)
	}
	if percent <= current {
		return nil
	}

	if err := r.client.HSet(ctx, r.jobKey(jobID), "progress", percent).Err(); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// SetExternalHandle records the provider handle on the in-flight job.
func (r *jobRepository) SetExternalHandle(ctx context.Context, jobID, handle string) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if err := r.client.HSet(ctx, r.jobKey(jobID), "external_handle", handle).Err(); err != nil {
		return fmt.Errorf("failed to set external handle: %w", err)
	}
	return nil
}

// Complete records a successful outcome. Idempotent on terminal jobs.
func (r *jobRepository) Complete(ctx context.Context, jobID string, output json.RawMessage) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}

	completedAt := r.now().UTC().Format(time.RFC3339Nano)
	res, err := completeScript.Run(ctx, r.client,
		[]string{r.jobKey(jobID), r.pendingKey(), r.delayedKey()},
		string(output), completedAt, jobID,
	).Text()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to complete job", "error", err, "job_id", jobID)
		return fmt.Errorf("failed to complete job: %w", err)
	}

	switch res {
	case "missing":
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	case "noop":
		r.logger.DebugContext(ctx, "complete on terminal job ignored", "job_id", jobID)
		return nil
	}

	r.logger.InfoContext(ctx, "job completed", "job_id", jobID)
	return r.retain(ctx, r.completedKey(), jobID, r.cfg.CompletedRetention)
}

// Fail records a failure, re-enqueueing with exponential backoff while retry
// budget remains. Idempotent on terminal jobs.
func (r *jobRepository) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	if jobID == "" {
		return false, fmt.Errorf("job ID cannot be empty")
	}

	now := r.now().UTC()
	res, err := failScript.Run(ctx, r.client,
		[]string{r.jobKey(jobID), r.delayedKey(), r.pendingKey()},
		errMsg,
		now.Format(time.RFC3339Nano),
		r.cfg.RetryBaseDelay.Milliseconds(),
		now.UnixMilli(),
		jobID,
	).Text()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to fail job", "error", err, "job_id", jobID)
		return false, fmt.Errorf("failed to fail job: %w", err)
	}

	switch res {
	case "missing":
		return false, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	case "noop":
		r.logger.DebugContext(ctx, "fail on terminal job ignored", "job_id", jobID)
		return false, nil
	case "retried":
		r.logger.InfoContext(ctx, "job re-enqueued for retry", "job_id", jobID, "error", errMsg)
		return true, nil
	}

	r.logger.WarnContext(ctx, "job failed permanently", "job_id", jobID, "error", errMsg)
	return false, r.retain(ctx, r.failedKey(), jobID, r.cfg.FailedRetention)
}

// Abort terminally fails a job without consulting the retry budget. Used for
// cancellation; idempotent on terminal jobs.
func (r *jobRepository) Abort(ctx context.Context, jobID string, reason string) error {
	if jobID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}

	completedAt := r.now().UTC().Format(time.RFC3339Nano)
	res, err := abortScript.Run(ctx, r.client,
		[]string{r.jobKey(jobID), r.pendingKey(), r.delayedKey()},
		reason, completedAt, jobID,
	).Text()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to abort job", "error", err, "job_id", jobID)
		return fmt.Errorf("failed to abort job: %w", err)
	}

	switch res {
	case "missing":
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	case "noop":
		return nil
	}

	r.logger.InfoContext(ctx, "job aborted", "job_id", jobID, "reason", reason)
	return r.retain(ctx, r.failedKey(), jobID, r.cfg.FailedRetention)
}

// PromoteDue moves delayed jobs whose backoff elapsed into the pending set.
func (r *jobRepository) PromoteDue(ctx context.Context) (int, error) {
	nowMs := r.now().UnixMilli()
	due, err := r.client.ZRangeByScore(ctx, r.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(nowMs, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan delayed jobs: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, jobID := range due {
		// ZREM doubles as the claim: whoever removes the member promotes it.
		removed, err := r.client.ZRem(ctx, r.delayedKey(), jobID).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to remove delayed job %s: %w", jobID, err)
		}
		if removed == 0 {
			continue
		}

		vals, err := r.client.HMGet(ctx, r.jobKey(jobID), "priority", "created_at_ms").Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to read delayed job %s: %w", jobID, err)
		}
		priority := 0
		if s, ok := vals[0].(string); ok {
			priority, _ = strconv.Atoi(s)
		}
		var createdAtMs int64
		if s, ok := vals[1].(string); ok {
			createdAtMs, _ = strconv.ParseInt(s, 10, 64)
		}

		if err := r.client.ZAdd(ctx, r.pendingKey(), redis.Z{
			Score:  pendingScore(priority, createdAtMs),
			Member: jobID,
		}).Err(); err != nil {
			return promoted, fmt.Errorf("failed to promote job %s: %w", jobID, err)
		}
		promoted++
	}

	if promoted > 0 {
		r.logger.DebugContext(ctx, "promoted delayed jobs", "count", promoted)
	}
	return promoted, nil
}

// RequestCancel raises the cooperative cancel flag for a project.
func (r *jobRepository) RequestCancel(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	if err := r.client.Set(ctx, r.cancelKey(projectID), "1", cancelTTL).Err(); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	r.logger.InfoContext(ctx, "project cancel requested", "project_id", projectID)
	return nil
}

// IsCancelRequested reports whether the project cancel flag is set. Workers
// check it between poll iterations.
func (r *jobRepository) IsCancelRequested(ctx context.Context, projectID string) (bool, error) {
	if projectID == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.cancelKey(projectID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return n > 0, nil
}

// JobsForProject returns the ids of all jobs ever enqueued for a project that
// are still retained.
func (r *jobRepository) JobsForProject(ctx context.Context, projectID string) ([]string, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID cannot be empty")
	}
	ids, err := r.client.SMembers(ctx, r.projectJobsKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list project jobs: %w", err)
	}
	return ids, nil
}

// QueueDepths returns the pending and delayed set sizes for metrics.
func (r *jobRepository) QueueDepths(ctx context.Context) (int64, int64, error) {
	pending, err := r.client.ZCard(ctx, r.pendingKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read pending depth: %w", err)
	}
	delayed, err := r.client.ZCard(ctx, r.delayedKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read delayed depth: %w", err)
	}
	return pending, delayed, nil
}

// retain pushes a terminal job onto its retention ring and prunes record
// hashes that fall off the end. Pruning only ever touches terminal jobs.
func (r *jobRepository) retain(ctx context.Context, listKey, jobID string, keep int) error {
	if err := r.client.LPush(ctx, listKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to record terminal job: %w", err)
	}

	for {
		size, err := r.client.LLen(ctx, listKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read retention list: %w", err)
		}
		if size <= int64(keep) {
			return nil
		}
		dropped, err := r.client.RPop(ctx, listKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("failed to prune retention list: %w", err)
		}
		if err := r.client.Del(ctx, r.jobKey(dropped)).Err(); err != nil {
			return fmt.Errorf("failed to delete pruned job %s: %w", dropped, err)
		}
		r.logger.DebugContext(ctx, "pruned terminal job", "job_id", dropped)
	}
}

// jobFromHash maps a redis hash into a domain job.
func jobFromHash(fields map[string]string) (*domain.Job, error) {
	job := &domain.Job{
		ID:             fields["id"],
		Type:           domain.JobType(fields["type"]),
		Status:         domain.JobStatus(fields["status"]),
		ExternalHandle: fields["external_handle"],
		WorkerID:       fields["worker_id"],
		ProjectID:      fields["project_id"],
		SegmentID:      fields["segment_id"],
	}

	job.Priority, _ = strconv.Atoi(fields["priority"])
	job.Progress, _ = strconv.Atoi(fields["progress"])
	job.RetryCount, _ = strconv.Atoi(fields["retry_count"])
	job.MaxRetries, _ = strconv.Atoi(fields["max_retries"])

	if payload := fields["payload"]; payload != "" {
		job.Payload = json.RawMessage(payload)
	}
	if output := fields["output"]; output != "" {
		job.Output = json.RawMessage(output)
	}
	if errMsg := fields["error"]; errMsg != "" {
		job.Error = &errMsg
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at on job %s: %w", job.ID, err)
	}
	job.CreatedAt = createdAt

	if s := fields["started_at"]; s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			job.StartedAt = &t
		}
	}
	if s := fields["completed_at"]; s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			job.CompletedAt = &t
		}
	}

	return job, nil
}
