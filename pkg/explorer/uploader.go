package explorer

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
)

// TaskStatus is the lifecycle state of one queued upload
type TaskStatus string

const (
	StatusWaiting   TaskStatus = "waiting"
	StatusUploading TaskStatus = "uploading"
	StatusSuccess   TaskStatus = "success"
	StatusError     TaskStatus = "error"
)

// Task is one queued upload. Progress and status are owned by the queue's
// lock; read them through TaskStates.
type Task struct {
	Name    string
	Size    int64
	Content io.Reader

	progress float64
	status   TaskStatus
	err      error
}

// TaskState is a snapshot of a task's progress
type TaskState struct {
	Name     string
	Size     int64
	Progress float64
	Status   TaskStatus
	Err      error
}

// Uploader is the progress-reporting transport a queue drains into
type Uploader interface {
	Upload(ctx context.Context, name string, size int64, content io.Reader, onProgress func(percent float64)) error
}

// Queue processes uploads with a bounded number of workers, one at a time by
// default. After every queued task settles it triggers exactly one refresh,
// never one per task.
type Queue struct {
	mu        sync.Mutex
	tasks     []*Task
	transport Uploader
	workers   int
	refresh   func(ctx context.Context)
}

// NewQueue creates an upload queue. workers <= 0 means sequential, matching
// the reference behavior. refresh may be nil.
func NewQueue(transport Uploader, workers int, refresh func(ctx context.Context)) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		transport: transport,
		workers:   workers,
		refresh:   refresh,
	}
}

// Add appends a task to the queue in waiting state
func (q *Queue) Add(name string, size int64, content io.Reader) *Task {
	task := &Task{
		Name:    name,
		Size:    size,
		Content: content,
		status:  StatusWaiting,
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	return task
}

// TaskStates returns a snapshot of every queued task
func (q *Queue) TaskStates() []TaskState {
	q.mu.Lock()
	defer q.mu.Unlock()

	states := make([]TaskState, 0, len(q.tasks))
	for _, t := range q.tasks {
		states = append(states, TaskState{
			Name:     t.Name,
			Size:     t.Size,
			Progress: t.progress,
			Status:   t.status,
			Err:      t.err,
		})
	}
	return states
}

// OverallProgress is the arithmetic mean of per-task percentages. It is not
// byte-weighted: a tiny file moves the aggregate as much as a huge one.
func (q *Queue) OverallProgress() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range q.tasks {
		total += t.progress
	}
	return total / float64(len(q.tasks))
}

// Run drains the queue and blocks until every task settles, then triggers
// the refresh callback once. Per-task failures land on the tasks, not here.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	pending := make([]*Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		if t.status == StatusWaiting {
			pending = append(pending, t)
		}
	}
	q.mu.Unlock()

	work := make(chan *Task)
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range work {
				q.process(ctx, task)
			}
		}()
	}

	for _, task := range pending {
		select {
		case work <- task:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(work)
	wg.Wait()

	if q.refresh != nil {
		q.refresh(ctx)
	}
	return ctx.Err()
}

func (q *Queue) process(ctx context.Context, task *Task) {
	q.setStatus(task, StatusUploading, nil)

	err := q.transport.Upload(ctx, task.Name, task.Size, task.Content, func(percent float64) {
		q.setProgress(task, percent)
	})
	if err != nil {
		log.Error().Err(err).Str("name", task.Name).Msg("upload failed")
		q.setStatus(task, StatusError, err)
		return
	}
	q.setProgress(task, 100)
	q.setStatus(task, StatusSuccess, nil)
}

func (q *Queue) setStatus(task *Task, status TaskStatus, err error) {
	q.mu.Lock()
	task.status = status
	task.err = err
	q.mu.Unlock()
}

func (q *Queue) setProgress(task *Task, percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	q.mu.Lock()
	task.progress = percent
	q.mu.Unlock()
}

// HTTPUploader posts multipart uploads to the cabinet's upload endpoint,
// reporting progress from bytes consumed off the content reader.
type HTTPUploader struct {
	// Endpoint is the full upload URL, e.g. https://host/api/v1/cabinet/upload
	Endpoint string
	// DestPrefix is the destination prefix relative to the managed root
	DestPrefix string
	Token      string
	APIKey     string
	Client     *http.Client
}

// Upload sends one file and streams progress through onProgress
func (u *HTTPUploader) Upload(ctx context.Context, name string, size int64, content io.Reader, onProgress func(percent float64)) error {
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		reader := &progressReader{reader: content, total: size, onProgress: onProgress}
		if _, err := io.Copy(part, reader); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	endpoint := u.Endpoint
	if u.DestPrefix != "" {
		endpoint += "?path=" + url.QueryEscape(u.DestPrefix)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}
	if u.APIKey != "" {
		req.Header.Set("X-API-Key", u.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type progressReader struct {
	reader     io.Reader
	total      int64
	read       int64
	onProgress func(percent float64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)
	if r.onProgress != nil && r.total > 0 {
		r.onProgress(float64(r.read) / float64(r.total) * 100)
	}
	return n, err
}
