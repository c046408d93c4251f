package employees_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/staffdesk/internal/metrics"
	"github.com/UnknownOlympus/staffdesk/internal/models"
	"github.com/UnknownOlympus/staffdesk/internal/notifier"
	"github.com/UnknownOlympus/staffdesk/internal/repository"
	"github.com/UnknownOlympus/staffdesk/internal/services/employees"
	mocks "github.com/UnknownOlympus/staffdesk/mock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tamathecxder/randomail"
)

func newRoster(
	t *testing.T,
	repo repository.EmployeeRepoIface,
	dispatcher notifier.Dispatcher,
) (*employees.Roster, *metrics.Metrics) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())

	return employees.NewRoster(logger, repo, dispatcher, appMetrics, 10*time.Second), appMetrics
}

func assertSettled(t *testing.T, roster *employees.Roster) {
	t.Helper()

	state := roster.State()
	assert.False(t, state.Loading, "loading must be settled")
	assert.Nil(t, state.EmailSendingID, "email sending marker must be settled")
}

func strPtr(s string) *string { return &s }

var (
	employeeA = models.Employee{ID: 1, Name: "A", Email: "a@x.com", EmployeeNumber: "E1"}
	employeeB = models.Employee{ID: 2, Name: "B", Email: "b@x.com", EmployeeNumber: "E2"}
)

func TestFetchAll(t *testing.T) {
	t.Parallel()

	t.Run("should replace the list", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, appMetrics := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA, employeeB}, nil).Once()

		notices := roster.FetchAll(t.Context())

		assert.Empty(t, notices)
		assert.Equal(t, []models.Employee{employeeA, employeeB}, roster.State().Employees)
		assert.InDelta(t, 2, testutil.ToFloat64(appMetrics.EmployeesLoaded), 0)
		assertSettled(t, roster)
	})

	t.Run("should keep an empty list when the store has no rows", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return(nil, nil).Once()

		notices := roster.FetchAll(t.Context())

		assert.Empty(t, notices)
		assert.NotNil(t, roster.State().Employees)
		assert.Empty(t, roster.State().Employees)
	})

	t.Run("should keep the stale list on failure", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, appMetrics := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
		mockRepo.On("ListEmployees", mock.Anything).Return(nil, assert.AnError).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		notices := roster.FetchAll(t.Context())

		require.Len(t, notices, 1)
		assert.Equal(t, employees.Notice{
			Action:  employees.ActionFetch,
			Status:  employees.NoticeFailure,
			Message: "Failed to load employees",
		}, notices[0])
		assert.True(t, notices.Failed())
		assert.Equal(t, []models.Employee{employeeA}, roster.State().Employees)
		assert.InDelta(t, 1,
			testutil.ToFloat64(appMetrics.Operations.WithLabelValues(employees.ActionFetch, "failure")), 0)
		assertSettled(t, roster)
	})

	t.Run("should report loading while the fetch is in flight", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		started := make(chan struct{})
		release := make(chan struct{})
		mockRepo.On("ListEmployees", mock.Anything).
			Run(func(_ mock.Arguments) {
				close(started)
				<-release
			}).
			Return([]models.Employee{employeeA}, nil).Once()

		done := make(chan employees.Notices)
		go func() { done <- roster.FetchAll(context.Background()) }()

		<-started
		assert.True(t, roster.State().Loading)
		close(release)
		<-done

		assertSettled(t, roster)
	})

	t.Run("should not be aborted by a cancelled caller", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		mockRepo.On("ListEmployees", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })).
			Return([]models.Employee{employeeA}, nil).Once()

		assert.Empty(t, roster.FetchAll(ctx))
		assert.Equal(t, []models.Employee{employeeA}, roster.State().Employees)
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("should store, refetch and leave creation mode", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		draft := models.Draft{Name: "B", Email: randomail.GenerateRandomEmail(), EmployeeNumber: "E2"}
		created := models.Employee{ID: 2, Name: draft.Name, Email: draft.Email, EmployeeNumber: draft.EmployeeNumber}

		mockRepo.On("SaveEmployee", mock.Anything, draft).Return(int64(2), nil).Once()
		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA, created}, nil).Once()

		roster.OpenForm()
		require.Equal(t, employees.ModeForm, roster.State().Mode())

		notices := roster.Create(t.Context(), draft)

		assert.False(t, notices.Failed())
		assert.Equal(t, employees.Notices{{
			Action: employees.ActionCreate, Status: employees.NoticeSuccess, Message: "Employee created",
		}}, notices)

		state := roster.State()
		assert.False(t, state.ShowForm)
		assert.Equal(t, employees.ModeBrowsing, state.Mode())
		assert.Contains(t, state.Employees, created)
		assertSettled(t, roster)
	})

	t.Run("should stay in creation mode on failure", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("SaveEmployee", mock.Anything, mock.Anything).Return(int64(0), assert.AnError).Once()

		roster.OpenForm()
		notices := roster.Create(t.Context(), models.Draft{Name: "B"})

		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to create employee", notices[0].Message)
		assert.True(t, roster.State().ShowForm)
		assert.Empty(t, roster.State().Employees)
		mockRepo.AssertNotCalled(t, "ListEmployees", mock.Anything)
		assertSettled(t, roster)
	})

	t.Run("should report a failed resync after a successful insert", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("SaveEmployee", mock.Anything, mock.Anything).Return(int64(3), nil).Once()
		mockRepo.On("ListEmployees", mock.Anything).Return(nil, assert.AnError).Once()

		roster.OpenForm()
		notices := roster.Create(t.Context(), models.Draft{Name: "C"})

		require.Len(t, notices, 2)
		assert.Equal(t, employees.NoticeSuccess, notices[0].Status)
		assert.Equal(t, "Failed to load employees", notices[1].Message)
		assert.False(t, roster.State().ShowForm)
		assertSettled(t, roster)
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	t.Run("should rename the employee and clear editing", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		renamed := employeeA
		renamed.Name = "B"
		patch := models.Patch{Name: strPtr("B")}

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
		mockRepo.On("UpdateEmployee", mock.Anything, int64(1), patch).Return(nil).Once()
		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{renamed}, nil).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		require.NoError(t, roster.Edit(1))
		require.Equal(t, employees.ModeForm, roster.State().Mode())

		notices, err := roster.Update(t.Context(), 1, patch)

		require.NoError(t, err)
		assert.False(t, notices.Failed())

		state := roster.State()
		assert.Nil(t, state.Editing)
		assert.Equal(t, employees.ModeBrowsing, state.Mode())
		assert.Equal(t, []models.Employee{
			{ID: 1, Name: "B", Email: "a@x.com", EmployeeNumber: "E1"},
		}, state.Employees)
		assertSettled(t, roster)
	})

	t.Run("should refuse an employee that is not being edited", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		notices, err := roster.Update(t.Context(), 1, models.Patch{Name: strPtr("B")})

		require.ErrorIs(t, err, employees.ErrNotEditing)
		assert.Nil(t, notices)
		mockRepo.AssertNotCalled(t, "UpdateEmployee", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should keep the editing selection on failure", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
		mockRepo.On("UpdateEmployee", mock.Anything, int64(1), mock.Anything).Return(assert.AnError).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		require.NoError(t, roster.Edit(1))

		notices, err := roster.Update(t.Context(), 1, models.Patch{Name: strPtr("B")})

		require.NoError(t, err)
		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to update employee", notices[0].Message)
		require.NotNil(t, roster.State().Editing)
		assert.Equal(t, employeeA, *roster.State().Editing)
		assert.Equal(t, []models.Employee{employeeA}, roster.State().Employees)
		assertSettled(t, roster)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	t.Run("should refetch after delete", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA, employeeB}, nil).Once()
		mockRepo.On("DeleteEmployee", mock.Anything, int64(1)).Return(nil).Once()
		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeB}, nil).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		notices := roster.Delete(t.Context(), 1)

		assert.Equal(t, employees.Notices{{
			Action: employees.ActionDelete, Status: employees.NoticeSuccess, Message: "Employee deleted",
		}}, notices)
		assert.Equal(t, []models.Employee{employeeB}, roster.State().Employees)
		assertSettled(t, roster)
	})

	t.Run("should fail for an unknown employee and keep the list", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
		mockRepo.On("DeleteEmployee", mock.Anything, int64(99)).
			Return(fmt.Errorf("failed to delete employee 99: %w", repository.ErrEmployeeNotFound)).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		notices := roster.Delete(t.Context(), 99)

		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to delete employee", notices[0].Message)
		assert.Equal(t, employees.NoticeFailure, notices[0].Status)
		assert.Equal(t, []models.Employee{employeeA}, roster.State().Employees)
		assertSettled(t, roster)
	})
}

func TestSendNotification(t *testing.T) {
	t.Parallel()

	t.Run("should confirm the recipient", func(t *testing.T) {
		t.Parallel()

		mockDispatcher := mocks.NewDispatcher(t)
		roster, appMetrics := newRoster(t, mocks.NewEmployeeRepoIface(t), mockDispatcher)

		started := make(chan struct{})
		release := make(chan struct{})
		mockDispatcher.On("Send", mock.Anything, employeeA.Notification()).
			Run(func(_ mock.Arguments) {
				close(started)
				<-release
			}).
			Return(nil).Once()

		done := make(chan employees.Notices)
		go func() { done <- roster.SendNotification(context.Background(), employeeA) }()

		<-started
		sending := roster.State().EmailSendingID
		require.NotNil(t, sending)
		assert.Equal(t, int64(1), *sending)
		close(release)
		notices := <-done

		assert.Equal(t, employees.Notices{{
			Action: employees.ActionNotify, Status: employees.NoticeSuccess, Message: "Email sent to a@x.com!",
		}}, notices)
		assert.InDelta(t, 1,
			testutil.ToFloat64(appMetrics.Operations.WithLabelValues(employees.ActionNotify, "success")), 0)
		assertSettled(t, roster)
	})

	t.Run("should include the webhook message", func(t *testing.T) {
		t.Parallel()

		mockDispatcher := mocks.NewDispatcher(t)
		roster, _ := newRoster(t, mocks.NewEmployeeRepoIface(t), mockDispatcher)

		mockDispatcher.On("Send", mock.Anything, mock.Anything).
			Return(&notifier.ResponseError{StatusCode: 400, Message: "mailbox unavailable"}).Once()

		notices := roster.SendNotification(t.Context(), employeeA)

		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to send email: mailbox unavailable", notices[0].Message)
		assertSettled(t, roster)
	})

	t.Run("should fall back to the transport error", func(t *testing.T) {
		t.Parallel()

		mockDispatcher := mocks.NewDispatcher(t)
		roster, _ := newRoster(t, mocks.NewEmployeeRepoIface(t), mockDispatcher)

		mockDispatcher.On("Send", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		notices := roster.SendNotification(t.Context(), employeeA)

		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to send email: "+assert.AnError.Error(), notices[0].Message)
	})

	t.Run("should time out instead of hanging", func(t *testing.T) {
		t.Parallel()

		mockDispatcher := mocks.NewDispatcher(t)
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		roster := employees.NewRoster(logger, mocks.NewEmployeeRepoIface(t), mockDispatcher,
			metrics.NewMetrics(prometheus.NewRegistry()), 50*time.Millisecond)

		mockDispatcher.On("Send", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, _ models.Notification) error {
				<-ctx.Done()
				return ctx.Err()
			}).Once()

		startTime := time.Now()
		notices := roster.SendNotification(t.Context(), employeeA)

		assert.Less(t, time.Since(startTime), 5*time.Second)
		require.Len(t, notices, 1)
		assert.Equal(t, "Failed to send email: request timed out", notices[0].Message)
		assertSettled(t, roster)
	})

	t.Run("should not touch the employee list", func(t *testing.T) {
		t.Parallel()

		mockRepo := mocks.NewEmployeeRepoIface(t)
		mockDispatcher := mocks.NewDispatcher(t)
		roster, _ := newRoster(t, mockRepo, mockDispatcher)

		mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
		mockDispatcher.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

		require.Empty(t, roster.FetchAll(t.Context()))
		roster.SendNotification(t.Context(), employeeA)

		assert.Equal(t, []models.Employee{employeeA}, roster.State().Employees)
		mockRepo.AssertNumberOfCalls(t, "ListEmployees", 1)
	})

	t.Run("should track the latest in-flight employee", func(t *testing.T) {
		t.Parallel()

		mockDispatcher := mocks.NewDispatcher(t)
		roster, _ := newRoster(t, mocks.NewEmployeeRepoIface(t), mockDispatcher)

		startedA, releaseA := make(chan struct{}), make(chan struct{})
		startedB, releaseB := make(chan struct{}), make(chan struct{})
		mockDispatcher.On("Send", mock.Anything, employeeA.Notification()).
			Run(func(_ mock.Arguments) { close(startedA); <-releaseA }).Return(nil).Once()
		mockDispatcher.On("Send", mock.Anything, employeeB.Notification()).
			Run(func(_ mock.Arguments) { close(startedB); <-releaseB }).Return(nil).Once()

		doneA := make(chan struct{})
		doneB := make(chan struct{})
		go func() { defer close(doneA); roster.SendNotification(context.Background(), employeeA) }()
		<-startedA
		go func() { defer close(doneB); roster.SendNotification(context.Background(), employeeB) }()
		<-startedB

		close(releaseA)
		<-doneA

		sending := roster.State().EmailSendingID
		require.NotNil(t, sending, "finishing A must not clear the marker of B")
		assert.Equal(t, int64(2), *sending)

		close(releaseB)
		<-doneB

		assertSettled(t, roster)
	})
}

func TestModes(t *testing.T) {
	t.Parallel()

	mockRepo := mocks.NewEmployeeRepoIface(t)
	roster, _ := newRoster(t, mockRepo, mocks.NewDispatcher(t))

	mockRepo.On("ListEmployees", mock.Anything).Return([]models.Employee{employeeA}, nil).Once()
	require.Empty(t, roster.FetchAll(t.Context()))

	assert.Equal(t, employees.ModeBrowsing, roster.State().Mode())

	require.ErrorIs(t, roster.Edit(42), employees.ErrUnknownEmployee)
	assert.Equal(t, employees.ModeBrowsing, roster.State().Mode())

	roster.OpenForm()
	assert.True(t, roster.State().ShowForm)

	require.NoError(t, roster.Edit(1))
	state := roster.State()
	assert.False(t, state.ShowForm)
	require.NotNil(t, state.Editing)
	assert.Equal(t, int64(1), state.Editing.ID)

	roster.Cancel()
	assert.Equal(t, employees.ModeBrowsing, roster.State().Mode())
	assert.Nil(t, roster.State().Editing)

	found, ok := roster.Find(1)
	assert.True(t, ok)
	assert.Equal(t, employeeA, found)
	_, ok = roster.Find(2)
	assert.False(t, ok)
}

// memoryStore is an in-memory stand-in for the employees table.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Employee
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, rows: make(map[int64]models.Employee)}
}

func (m *memoryStore) ListEmployees(_ context.Context) ([]models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.Employee, 0, len(m.rows))
	for _, employee := range m.rows {
		result = append(result, employee)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (m *memoryStore) SaveEmployee(_ context.Context, draft models.Draft) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identifier := m.nextID
	m.nextID++
	m.rows[identifier] = models.Employee{
		ID: identifier, Name: draft.Name, Email: draft.Email, EmployeeNumber: draft.EmployeeNumber,
	}

	return identifier, nil
}

func (m *memoryStore) UpdateEmployee(_ context.Context, identifier int64, patch models.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	employee, ok := m.rows[identifier]
	if !ok {
		return repository.ErrEmployeeNotFound
	}
	if patch.Name != nil {
		employee.Name = *patch.Name
	}
	if patch.Email != nil {
		employee.Email = *patch.Email
	}
	if patch.EmployeeNumber != nil {
		employee.EmployeeNumber = *patch.EmployeeNumber
	}
	m.rows[identifier] = employee

	return nil
}

func (m *memoryStore) DeleteEmployee(_ context.Context, identifier int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[identifier]; !ok {
		return repository.ErrEmployeeNotFound
	}
	delete(m.rows, identifier)

	return nil
}

func TestRoster_ConvergesWithStore(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	roster, _ := newRoster(t, store, mocks.NewDispatcher(t))
	ctx := t.Context()

	for index := range 5 {
		roster.OpenForm()
		notices := roster.Create(ctx, models.Draft{
			Name:           fmt.Sprintf("Employee %d", index),
			Email:          randomail.GenerateRandomEmail(),
			EmployeeNumber: fmt.Sprintf("E%d", index),
		})
		require.False(t, notices.Failed())
	}

	require.NoError(t, roster.Edit(2))
	notices, err := roster.Update(ctx, 2, models.Patch{Name: strPtr("Renamed")})
	require.NoError(t, err)
	require.False(t, notices.Failed())

	require.False(t, roster.Delete(ctx, 4).Failed())
	require.True(t, roster.Delete(ctx, 4).Failed(), "second delete of the same id must fail")

	fresh, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, roster.State().Employees)
	assert.Len(t, fresh, 4)
	assertSettled(t, roster)
}
