package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"crudgate.org/internal/api"
	"crudgate.org/internal/audit"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/obs"
	"crudgate.org/internal/store"
	"crudgate.org/internal/stream"
)

// safeFieldName rejects anything that could smuggle SQL through a filter or
// sort parameter.
var safeFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var filterParam = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

func (a *API) handleRecords(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	entry, ok := a.registry.Lookup(parts[0])
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown entity type")
		return
	}

	if len(parts) == 1 || parts[1] == "" {
		switch r.Method {
		case http.MethodGet:
			a.listRecords(w, r, entry)
		case http.MethodPost:
			a.createRecord(w, r, entry)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
		return
	}

	id := strings.TrimSuffix(parts[1], "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getRecord(w, r, entry, id)
	case http.MethodPut:
		a.updateRecord(w, r, entry, id)
	case http.MethodDelete:
		a.deleteRecord(w, r, entry, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// resolveRecord loads a record by its wire identifier: the external id field
// for types using that strategy, the numeric primary id otherwise.
func (a *API) resolveRecord(r *http.Request, entry *api.Entry, id string) (*store.Record, error) {
	sch := entry.Schema
	if sch.Options.UseExternalID {
		return a.store.ByField(r.Context(), sch.Type, sch.ExternalIDField(), id)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, store.ErrNotFound
	}
	return a.store.ByID(r.Context(), sch.Type, n)
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request, entry *api.Entry) {
	principal := principalFrom(r)
	readable := entry.Schema.ReadableFields()

	q := store.Query{Filters: map[string]any{}}
	for key, values := range r.URL.Query() {
		m := filterParam.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		field := m[1]
		// unsafe or unexposed fields are dropped, not errored, mirroring
		// the sort handling below
		if !safeFieldName.MatchString(field) || !fieldExposed(readable, field) {
			continue
		}
		q.Filters[field] = values[0]
	}

	if sortParam := strings.TrimSpace(r.URL.Query().Get("sort")); sortParam != "" {
		fields := strings.Fields(sortParam)
		field := fields[0]
		if safeFieldName.MatchString(field) && fieldExposed(readable, field) {
			q.Sort = field
			if len(fields) == 2 && strings.EqualFold(fields[1], "DESC") {
				q.SortDesc = true
			}
		}
	}

	limit, err := parseBoundedInt(r.URL.Query().Get("limit"), 25, 1, 100, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := parseBoundedInt(r.URL.Query().Get("page"), 1, 1, 1000000, "page")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q.Limit = limit
	q.Offset = (page - 1) * limit

	records, total, err := a.store.List(r.Context(), entry.Schema.Type, q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if !entry.Caps.CanView(principal, rec) {
			continue
		}
		view, err := a.ser.ToView(r.Context(), rec)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": views,
		"pagination": map[string]any{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request, entry *api.Entry, id string) {
	rec, err := a.resolveRecord(r, entry, id)
	if err != nil {
		a.recordError(w, r, err)
		return
	}
	principal := principalFrom(r)
	if !entry.Caps.CanView(principal, rec) {
		a.denied(w, r, principal)
		return
	}
	view, err := a.ser.ToView(r.Context(), rec)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, view)
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request, entry *api.Entry) {
	principal := principalFrom(r)
	if !entry.Caps.CanCreate(principal) {
		a.denied(w, r, principal)
		return
	}

	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec := store.NewRecord(entry.Schema.Type)
	problems, err := a.ser.ApplyUpdate(r.Context(), rec, data)
	if len(problems) > 0 {
		writeValidationErrors(w, r, problems)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.recordMutated(r, entry, rec, stream.ActionCreate)

	view, err := a.ser.ToView(r.Context(), rec)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/%s/%v", entry.Schema.Type, a.ser.APIID(rec)))
	writeData(w, http.StatusCreated, view)
}

func (a *API) updateRecord(w http.ResponseWriter, r *http.Request, entry *api.Entry, id string) {
	rec, err := a.resolveRecord(r, entry, id)
	if err != nil {
		a.recordError(w, r, err)
		return
	}
	principal := principalFrom(r)
	if !entry.Caps.CanEdit(principal, rec) {
		a.denied(w, r, principal)
		return
	}

	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	problems, err := a.ser.ApplyUpdate(r.Context(), rec, data)
	if len(problems) > 0 {
		writeValidationErrors(w, r, problems)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.recordMutated(r, entry, rec, stream.ActionUpdate)

	view, err := a.ser.ToView(r.Context(), rec)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, view)
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request, entry *api.Entry, id string) {
	rec, err := a.resolveRecord(r, entry, id)
	if err != nil {
		a.recordError(w, r, err)
		return
	}
	principal := principalFrom(r)
	if !entry.Caps.CanDelete(principal, rec) {
		a.denied(w, r, principal)
		return
	}

	if err := a.store.Delete(r.Context(), entry.Schema.Type, rec.ID); err != nil {
		a.recordError(w, r, err)
		return
	}

	a.recordMutated(r, entry, rec, stream.ActionDelete)
	w.WriteHeader(http.StatusNoContent)
}

// recordMutated publishes the change to live subscribers and bumps metrics.
func (a *API) recordMutated(r *http.Request, entry *api.Entry, rec *store.Record, action string) {
	entity := entry.Schema.Type
	obs.RecordMutation(entity, action)
	_ = audit.LogEvent(r.Context(), "record."+action, map[string]any{
		"entity": entity,
		"id":     fmt.Sprint(a.ser.APIID(rec)),
	})
	if a.events != nil {
		a.events.Publish(stream.MutationEvent{
			Action: action,
			Entity: entity,
			ID:     fmt.Sprint(a.ser.APIID(rec)),
		})
	}
}

func (a *API) recordError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownType):
		writeError(w, r, http.StatusNotFound, "record not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// denied distinguishes "log in first" from "logged in but not allowed".
func (a *API) denied(w http.ResponseWriter, r *http.Request, principal *auth.Principal) {
	if principal == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeError(w, r, http.StatusForbidden, "permission denied")
}

func fieldExposed(readable []string, name string) bool {
	if name == "ID" || name == "Created" || name == "LastEdited" {
		return true
	}
	for _, f := range readable {
		if f == name {
			return true
		}
	}
	return false
}

func parseBoundedInt(raw string, def, min, max int, name string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return val, nil
}
