package employees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/staffdesk/internal/lib/logger/sl"
	"github.com/UnknownOlympus/staffdesk/internal/metrics"
	"github.com/UnknownOlympus/staffdesk/internal/models"
	"github.com/UnknownOlympus/staffdesk/internal/notifier"
	"github.com/UnknownOlympus/staffdesk/internal/repository"
)

var (
	ErrNotEditing      = errors.New("employee is not selected for editing")
	ErrUnknownEmployee = errors.New("employee is not in the current list")
)

type Mode string

const (
	ModeBrowsing Mode = "browsing"
	ModeForm     Mode = "form"
)

// State is a snapshot of what the presentation layer renders.
type State struct {
	Employees      []models.Employee `json:"employees"`
	Loading        bool              `json:"loading"`
	EmailSendingID *int64            `json:"emailSendingId"`
	ShowForm       bool              `json:"showForm"`
	Editing        *models.Employee  `json:"editingEmployee"`
}

// Mode reports whether a create or edit form is active.
func (s State) Mode() Mode {
	if s.ShowForm || s.Editing != nil {
		return ModeForm
	}
	return ModeBrowsing
}

// Roster owns the in-memory employee list and keeps it in step with the store.
// The list is only ever replaced by a successful fetch; mutations go to the store and are
// followed by a fresh fetch.
type Roster struct {
	log           *slog.Logger
	repo          repository.EmployeeRepoIface
	dispatcher    notifier.Dispatcher
	metrics       *metrics.Metrics
	notifyTimeout time.Duration

	mu             sync.RWMutex
	employees      []models.Employee
	fetching       int
	emailSendingID *int64
	showForm       bool
	editing        *models.Employee
}

func NewRoster(
	log *slog.Logger,
	repo repository.EmployeeRepoIface,
	dispatcher notifier.Dispatcher,
	metrics *metrics.Metrics,
	notifyTimeout time.Duration,
) *Roster {
	return &Roster{
		log:           log,
		repo:          repo,
		dispatcher:    dispatcher,
		metrics:       metrics,
		notifyTimeout: notifyTimeout,
		employees:     []models.Employee{},
	}
}

func (r *Roster) initLogger(opn string) *slog.Logger {
	return r.log.With(
		slog.String("op", opn),
		slog.String("division", "employee"),
	)
}

func (r *Roster) record(action string, notice Notice) Notice {
	r.metrics.Operations.WithLabelValues(action, string(notice.Status)).Inc()
	return notice
}

// State returns a copy of the current state.
func (r *Roster) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := State{
		Employees: make([]models.Employee, 0, len(r.employees)),
		Loading:   r.fetching > 0,
		ShowForm:  r.showForm,
	}
	for _, employee := range r.employees {
		state.Employees = append(state.Employees, employee.Clone())
	}
	if r.emailSendingID != nil {
		id := *r.emailSendingID
		state.EmailSendingID = &id
	}
	if r.editing != nil {
		editing := r.editing.Clone()
		state.Editing = &editing
	}

	return state
}

// Find looks the employee up in the last fetched list.
func (r *Roster) Find(identifier int64) (models.Employee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, employee := range r.employees {
		if employee.ID == identifier {
			return employee.Clone(), true
		}
	}
	return models.Employee{}, false
}

// OpenForm switches to creation mode.
func (r *Roster) OpenForm() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.editing = nil
	r.showForm = true
}

// Edit selects an employee from the last fetched list for editing.
func (r *Roster) Edit(identifier int64) error {
	employee, ok := r.Find(identifier)
	if !ok {
		return fmt.Errorf("edit employee %d: %w", identifier, ErrUnknownEmployee)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.showForm = false
	r.editing = &employee

	return nil
}

// Cancel leaves the create or edit form and returns to browsing.
func (r *Roster) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.editing = nil
	r.showForm = false
}

// FetchAll replaces the list with what the store holds. On failure the previous list stays visible.
func (r *Roster) FetchAll(pctx context.Context) Notices {
	const opn = "Roster.FetchAll"
	log := r.initLogger(opn)
	ctx := context.WithoutCancel(pctx)

	r.mu.Lock()
	r.fetching++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.fetching--
		r.mu.Unlock()
	}()

	employees, err := r.repo.ListEmployees(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Error fetching employees", sl.Err(err))
		return Notices{r.record(ActionFetch, failure(ActionFetch, "Failed to load employees"))}
	}
	if employees == nil {
		employees = []models.Employee{}
	}

	r.mu.Lock()
	r.employees = employees
	r.mu.Unlock()

	r.metrics.EmployeesLoaded.Set(float64(len(employees)))
	r.metrics.Operations.WithLabelValues(ActionFetch, string(NoticeSuccess)).Inc()
	log.DebugContext(ctx, "Employees fetched", "count", len(employees))

	return nil
}

// Create stores the draft as is, resynchronizes the list and leaves creation mode.
// On failure creation mode stays active.
func (r *Roster) Create(pctx context.Context, draft models.Draft) Notices {
	const opn = "Roster.Create"
	log := r.initLogger(opn)
	ctx := context.WithoutCancel(pctx)

	identifier, err := r.repo.SaveEmployee(ctx, draft)
	if err != nil {
		log.ErrorContext(ctx, "Error creating employee", sl.Err(err))
		return Notices{r.record(ActionCreate, failure(ActionCreate, "Failed to create employee"))}
	}
	log.InfoContext(ctx, "Employee created", sl.EmployeeID(identifier))

	notices := Notices{r.record(ActionCreate, success(ActionCreate, "Employee created"))}
	notices = append(notices, r.FetchAll(ctx)...)

	r.mu.Lock()
	r.showForm = false
	r.mu.Unlock()

	return notices
}

// Update applies patch to the employee currently selected for editing. Calling it for any other
// identifier is a programming error and returns ErrNotEditing without touching the store.
func (r *Roster) Update(pctx context.Context, identifier int64, patch models.Patch) (Notices, error) {
	const opn = "Roster.Update"
	log := r.initLogger(opn)
	ctx := context.WithoutCancel(pctx)

	if !r.isEditing(identifier) {
		return nil, fmt.Errorf("update employee %d: %w", identifier, ErrNotEditing)
	}

	if err := r.repo.UpdateEmployee(ctx, identifier, patch); err != nil {
		log.ErrorContext(ctx, "Error updating employee", sl.EmployeeID(identifier), sl.Err(err))
		return Notices{r.record(ActionUpdate, failure(ActionUpdate, "Failed to update employee"))}, nil
	}
	log.InfoContext(ctx, "Employee updated", sl.EmployeeID(identifier))

	notices := Notices{r.record(ActionUpdate, success(ActionUpdate, "Employee updated"))}
	notices = append(notices, r.FetchAll(ctx)...)

	r.mu.Lock()
	if r.editing != nil && r.editing.ID == identifier {
		r.editing = nil
	}
	r.mu.Unlock()

	return notices, nil
}

// Delete removes the employee from the store and resynchronizes the list.
// The caller is responsible for having confirmed the deletion.
func (r *Roster) Delete(pctx context.Context, identifier int64) Notices {
	const opn = "Roster.Delete"
	log := r.initLogger(opn)
	ctx := context.WithoutCancel(pctx)

	if err := r.repo.DeleteEmployee(ctx, identifier); err != nil {
		log.ErrorContext(ctx, "Error deleting employee", sl.EmployeeID(identifier), sl.Err(err))
		return Notices{r.record(ActionDelete, failure(ActionDelete, "Failed to delete employee"))}
	}
	log.InfoContext(ctx, "Employee deleted", sl.EmployeeID(identifier))

	notices := Notices{r.record(ActionDelete, success(ActionDelete, "Employee deleted"))}

	return append(notices, r.FetchAll(ctx)...)
}

// SendNotification asks the webhook to email the employee. It never touches the list.
func (r *Roster) SendNotification(pctx context.Context, employee models.Employee) Notices {
	const opn = "Roster.SendNotification"
	log := r.initLogger(opn)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(pctx), r.notifyTimeout)
	defer cancel()

	identifier := employee.ID
	r.mu.Lock()
	r.emailSendingID = &identifier
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.emailSendingID != nil && *r.emailSendingID == identifier {
			r.emailSendingID = nil
		}
		r.mu.Unlock()
	}()

	if err := r.dispatcher.Send(ctx, employee.Notification()); err != nil {
		log.ErrorContext(ctx, "Error sending email", sl.EmployeeID(identifier), sl.Err(err))
		return Notices{r.record(ActionNotify,
			failure(ActionNotify, "Failed to send email: "+notifier.Reason(err)))}
	}
	log.InfoContext(ctx, "Email sent", sl.EmployeeID(identifier), "email", employee.Email)

	return Notices{r.record(ActionNotify, success(ActionNotify, fmt.Sprintf("Email sent to %s!", employee.Email)))}
}

func (r *Roster) isEditing(identifier int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.editing != nil && r.editing.ID == identifier
}
