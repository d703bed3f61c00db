package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	opts  [][]asynq.Option
	errs  []error
}

func (c *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &asynq.TaskInfo{ID: "id"}, nil
}

type fakeInspector struct {
	state   asynq.TaskState
	deleted []string
}

func (i *fakeInspector) GetTaskInfo(_, id string) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: id, State: i.state}, nil
}

func (i *fakeInspector) DeleteTask(_, id string) error {
	i.deleted = append(i.deleted, id)
	return nil
}

func TestTriggerEnqueuesPerApplication(t *testing.T) {
	client := &fakeClient{}
	e := &Enqueuer{client: client, queue: "certificates", log: zerolog.Nop()}

	require.NoError(t, e.Trigger(context.Background(), "app-1"))
	require.Len(t, client.tasks, 1)
	assert.Equal(t, GenerateTask, client.tasks[0].Type())

	var payload Payload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, "app-1", payload.ApplicationID)

	var id, queue string
	for _, o := range client.opts[0] {
		switch o.Type() {
		case asynq.TaskIDOpt:
			id = o.Value().(string)
		case asynq.QueueOpt:
			queue = o.Value().(string)
		}
	}
	assert.Equal(t, "app-1", id)
	assert.Equal(t, "certificates", queue)
}

func TestTriggerTreatsQueuedTaskAsSuccess(t *testing.T) {
	client := &fakeClient{errs: []error{asynq.ErrTaskIDConflict}}
	inspector := &fakeInspector{state: asynq.TaskStatePending}
	e := &Enqueuer{client: client, inspector: inspector, queue: "certificates", log: zerolog.Nop()}

	require.NoError(t, e.Trigger(context.Background(), "app-1"))
	assert.Len(t, client.tasks, 1)
	assert.Empty(t, inspector.deleted)
}

func TestTriggerReplacesArchivedTask(t *testing.T) {
	client := &fakeClient{errs: []error{asynq.ErrTaskIDConflict, nil}}
	inspector := &fakeInspector{state: asynq.TaskStateArchived}
	e := &Enqueuer{client: client, inspector: inspector, queue: "certificates", log: zerolog.Nop()}

	require.NoError(t, e.Trigger(context.Background(), "app-1"))
	assert.Len(t, client.tasks, 2)
	assert.Equal(t, []string{"app-1"}, inspector.deleted)
}

func TestTriggerReportsQueueErrors(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("redis down")}}
	e := &Enqueuer{client: client, queue: "certificates", log: zerolog.Nop()}

	err := e.Trigger(context.Background(), "app-1")
	assert.ErrorContains(t, err, "redis down")
}

func completedState() *workflow.ApplicationState {
	at := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	by := "librarian"
	return &workflow.ApplicationState{
		ID:                 "app-1",
		RegistrationNo:     "A1",
		EntryKind:          models.EntryStandard,
		AggregateStatus:    models.AggregateCompleted,
		CertificateState:   models.CertificatePending,
		ReapplicationCount: 1,
		Approvals: []workflow.ApprovalView{
			{Department: "accounts", Status: models.ApprovalApproved, ActionAt: &at},
			{Department: "library", Status: models.ApprovalApproved, ActionAt: &at, ActionBy: &by},
		},
	}
}

func TestRender(t *testing.T) {
	reg, err := registry.Parse([]byte("departments:\n  - name: library\n    display_name: Central Library\n    order: 10\n  - name: accounts\n    order: 20\n"))
	require.NoError(t, err)
	r := NewRenderer(reg)
	r.now = func() time.Time { return time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) }

	doc, err := r.Render(completedState())
	require.NoError(t, err)
	text := string(doc)
	assert.Contains(t, text, "Registration No : A1")
	assert.Contains(t, text, "Issued          : 2026-03-03T00:00:00Z")
	assert.Contains(t, text, "Central Library")
	assert.Contains(t, text, "by librarian")
	assert.Contains(t, text, "Reapplications  : 1")

	manual := completedState()
	manual.EntryKind = models.EntryManual
	manual.Approvals = nil
	doc, err = NewRenderer(nil).Render(manual)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Cleared by manual review.")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "certificates/A1.txt", ObjectKey("A1"))
	assert.Equal(t, "certificates/CS%2F2026%2F7.txt", ObjectKey("CS/2026/7"))
}

type fakeEngine struct {
	state    *workflow.ApplicationState
	recorded []workflow.CertificateInput
	err      error
}

func (f *fakeEngine) GetApplicationState(context.Context, string) (*workflow.ApplicationState, error) {
	return f.state, nil
}

func (f *fakeEngine) RecordCertificate(_ context.Context, in workflow.CertificateInput) (*workflow.ApplicationState, error) {
	f.recorded = append(f.recorded, in)
	return f.state, f.err
}

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func generateTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := newTask(id)
	require.NoError(t, err)
	return task
}

func TestProcessorGenerates(t *testing.T) {
	engine := &fakeEngine{state: completedState()}
	store := &memStore{}
	p := NewProcessor(engine, store, NewRenderer(nil), zerolog.Nop())

	require.NoError(t, p.handleGenerate(context.Background(), generateTask(t, "app-1")))
	require.Contains(t, store.objects, "certificates/A1.txt")
	assert.True(t, strings.HasPrefix(string(store.objects["certificates/A1.txt"]), "NO DUES CERTIFICATE"))

	require.Len(t, engine.recorded, 1)
	assert.Equal(t, models.CertificateGenerated, engine.recorded[0].Outcome)
	assert.Equal(t, "certificates/A1.txt", engine.recorded[0].Reference)
	assert.Equal(t, workflow.SystemActor, engine.recorded[0].Actor)
}

func TestProcessorSkipsWhenNotPending(t *testing.T) {
	state := completedState()
	state.CertificateState = models.CertificateGenerated
	engine := &fakeEngine{state: state}
	store := &memStore{}
	p := NewProcessor(engine, store, NewRenderer(nil), zerolog.Nop())

	require.NoError(t, p.handleGenerate(context.Background(), generateTask(t, "app-1")))
	assert.Empty(t, store.objects)
	assert.Empty(t, engine.recorded)
}

func TestProcessorMarksFailedOnFinalAttempt(t *testing.T) {
	engine := &fakeEngine{state: completedState()}
	store := &memStore{err: errors.New("bucket gone")}
	p := NewProcessor(engine, store, NewRenderer(nil), zerolog.Nop())

	err := p.handleGenerate(context.Background(), generateTask(t, "app-1"))
	assert.ErrorContains(t, err, "bucket gone")
	require.Len(t, engine.recorded, 1)
	assert.Equal(t, models.CertificateFailed, engine.recorded[0].Outcome)
	assert.Equal(t, "bucket gone", engine.recorded[0].Detail)
}

func TestProcessorDropsResultWhenStateMoved(t *testing.T) {
	for name, err := range map[string]error{
		"conflict": &workflow.TransitionError{Subject: "certificate", Conflict: true},
		"moved":    &workflow.TransitionError{Subject: "certificate", From: "generated", To: "generated"},
	} {
		t.Run(name, func(t *testing.T) {
			engine := &fakeEngine{state: completedState(), err: err}
			p := NewProcessor(engine, &memStore{}, NewRenderer(nil), zerolog.Nop())

			require.NoError(t, p.handleGenerate(context.Background(), generateTask(t, "app-1")))
			require.Len(t, engine.recorded, 1)
		})
	}

	engine := &fakeEngine{state: completedState(), err: errors.New("database down")}
	p := NewProcessor(engine, &memStore{}, NewRenderer(nil), zerolog.Nop())
	assert.ErrorContains(t, p.handleGenerate(context.Background(), generateTask(t, "app-1")), "database down")
}

func TestProcessorRejectsBadPayload(t *testing.T) {
	p := NewProcessor(&fakeEngine{}, &memStore{}, NewRenderer(nil), zerolog.Nop())

	err := p.handleGenerate(context.Background(), asynq.NewTask(GenerateTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.handleGenerate(context.Background(), asynq.NewTask(GenerateTask, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
