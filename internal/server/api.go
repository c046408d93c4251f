package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/UnknownOlympus/staffdesk/internal/models"
	"github.com/UnknownOlympus/staffdesk/internal/services/employees"
	"github.com/gorilla/mux"
)

// ConfirmDeleteHeader must be "true" on delete requests; the API does not delete unconfirmed.
const ConfirmDeleteHeader = "X-Confirm-Delete"

const maxRequestBody = 1 << 20

// Roster is the set of intents the API forwards to the employee roster.
type Roster interface {
	State() employees.State
	Find(identifier int64) (models.Employee, bool)
	OpenForm()
	Edit(identifier int64) error
	Cancel()
	FetchAll(ctx context.Context) employees.Notices
	Create(ctx context.Context, draft models.Draft) employees.Notices
	Update(ctx context.Context, identifier int64, patch models.Patch) (employees.Notices, error)
	Delete(ctx context.Context, identifier int64) employees.Notices
	SendNotification(ctx context.Context, employee models.Employee) employees.Notices
}

type intentResponse struct {
	Notices employees.Notices `json:"notices"`
	State   employees.State   `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type API struct {
	log    *slog.Logger
	roster Roster
}

func NewAPI(log *slog.Logger, roster Roster) *API {
	return &API{log: log, roster: roster}
}

// Router builds the routes of the employee API.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/employees", a.handleState).Methods(http.MethodGet)
	api.HandleFunc("/employees", a.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/employees/refresh", a.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id:[0-9]+}", a.handleUpdate).Methods(http.MethodPatch)
	api.HandleFunc("/employees/{id:[0-9]+}", a.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/employees/{id:[0-9]+}/edit", a.handleEdit).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id:[0-9]+}/notify", a.handleNotify).Methods(http.MethodPost)
	api.HandleFunc("/form", a.handleOpenForm).Methods(http.MethodPost)
	api.HandleFunc("/form", a.handleCancel).Methods(http.MethodDelete)

	return router
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, http.StatusOK, a.roster.FetchAll(r.Context()))
}

func (a *API) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	a.roster.OpenForm()
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	a.roster.Cancel()
	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := decodeBody(w, r, &draft); err != nil {
		a.fail(w, r, http.StatusBadRequest, err)
		return
	}

	a.respond(w, r, http.StatusOK, a.roster.Create(r.Context(), draft))
}

func (a *API) handleEdit(w http.ResponseWriter, r *http.Request) {
	identifier, ok := a.identifier(w, r)
	if !ok {
		return
	}

	if err := a.roster.Edit(identifier); err != nil {
		a.fail(w, r, http.StatusNotFound, err)
		return
	}

	a.respond(w, r, http.StatusOK, nil)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identifier, ok := a.identifier(w, r)
	if !ok {
		return
	}

	var patch models.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		a.fail(w, r, http.StatusBadRequest, err)
		return
	}

	notices, err := a.roster.Update(r.Context(), identifier, patch)
	if err != nil {
		if errors.Is(err, employees.ErrNotEditing) {
			a.fail(w, r, http.StatusConflict, err)
			return
		}
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	a.respond(w, r, http.StatusOK, notices)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	identifier, ok := a.identifier(w, r)
	if !ok {
		return
	}

	if confirmed, _ := strconv.ParseBool(r.Header.Get(ConfirmDeleteHeader)); !confirmed {
		a.fail(w, r, http.StatusPreconditionRequired, errors.New("deletion must be confirmed with "+ConfirmDeleteHeader))
		return
	}

	a.respond(w, r, http.StatusOK, a.roster.Delete(r.Context(), identifier))
}

func (a *API) handleNotify(w http.ResponseWriter, r *http.Request) {
	identifier, ok := a.identifier(w, r)
	if !ok {
		return
	}

	employee, found := a.roster.Find(identifier)
	if !found {
		a.fail(w, r, http.StatusNotFound, employees.ErrUnknownEmployee)
		return
	}

	a.respond(w, r, http.StatusOK, a.roster.SendNotification(r.Context(), employee))
}

func (a *API) identifier(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identifier, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, errors.New("invalid employee id"))
		return 0, false
	}
	return identifier, true
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, code int, notices employees.Notices) {
	if notices == nil {
		notices = employees.Notices{}
	}
	a.writeJSON(w, r, code, intentResponse{Notices: notices, State: a.roster.State()})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, code int, err error) {
	a.log.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", code, "error", err)
	a.writeJSON(w, r, code, errorResponse{Error: err.Error()})
}

func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.ErrorContext(r.Context(), "Failed to write response", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dest); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}
