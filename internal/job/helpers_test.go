package job

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

// mockJobRepo はマップで求人を保持するJobRepository。
type mockJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	findErr   error
	createErr error
	deleted   []string
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *mockJobRepo) put(job *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

func (m *mockJobRepo) FindByID(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) FindBySourceGUID(_ context.Context, employerID, guid string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.EmployerID == employerID && j.SourceGUID == guid {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepo) ListActive(_ context.Context, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.IsActive {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].PostedDate.After(out[b].PostedDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobRepo) ListByEmployer(_ context.Context, employerID string) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.EmployerID == employerID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepo) Create(_ context.Context, job *model.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.put(job)
	return nil
}

func (m *mockJobRepo) Update(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockJobRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

var _ repository.JobRepository = (*mockJobRepo)(nil)

// openGuard は検証を行わず、指定クライアントを返すURLGuard。
type openGuard struct {
	client      *http.Client
	validateErr error
}

func (g openGuard) ValidateURL(string) error { return g.validateErr }

func (g openGuard) Client() *http.Client { return g.client }

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}
