package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmv4/ghlkit/internal/ghl"
	"github.com/jmv4/ghlkit/internal/guard"
	"github.com/jmv4/ghlkit/internal/query"
)

type resourceIDKey struct{}

// API answers the JSON surface from the hook layer. Read endpoints subscribe
// for the duration of the request; the engine's grace period keeps the entry
// warm between calls so repeated requests hit the cache.
type API struct {
	hooks  *ghl.Hooks
	cache  *query.Cache
	logger *slog.Logger
	guards map[string]*guard.Guard
}

// NewAPI compiles the parameter guards and wires the handlers.
func NewAPI(hooks *ghl.Hooks, cache *query.Cache, logger *slog.Logger) (*API, error) {
	guards := map[string]*guard.Guard{}
	for name, expr := range map[string]string{
		"appointments": `"calendarId" in params && params["calendarId"] != ""`,
		"slots":        `"calendarId" in params && params["calendarId"] != ""`,
		"messages":     `"conversationId" in params && params["conversationId"] != ""`,
	} {
		g, err := guard.New(expr)
		if err != nil {
			return nil, fmt.Errorf("server: compile %s guard: %w", name, err)
		}
		guards[name] = g
	}
	return &API{
		hooks:  hooks,
		cache:  cache,
		logger: logger.With(slog.String("agent", "hook_api")),
		guards: guards,
	}, nil
}

// RequestWithResourceID stashes the path-derived resource ID for handlers.
func (a *API) RequestWithResourceID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), resourceIDKey{}, id))
}

func resourceID(r *http.Request) string {
	id, _ := r.Context().Value(resourceIDKey{}).(string)
	return id
}

// ServeHealth reports liveness plus the live entry count.
func (a *API) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"cacheEntries": a.cache.Len(),
	})
}

// ServeContacts answers GET /v1/contacts.
func (a *API) ServeContacts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, _ := strconv.Atoi(values.Get("page"))
	h := a.hooks.Contacts(ghl.ContactSearchParams{
		LocationID: values.Get("locationId"),
		Query:      values.Get("query"),
		Page:       page,
	}, query.QueryOptions{})
	defer h.Close()
	data, res := h.Wait(r.Context())
	a.writeResult(w, data, res)
}

// ServeCreateContact answers POST /v1/contacts.
func (a *API) ServeCreateContact(w http.ResponseWriter, r *http.Request) {
	var in ghl.ContactInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := a.hooks.CreateContact(query.MutationOptions{}).MutateAsync(r.Context(), in)
	if err != nil {
		a.WriteError(w, statusFor(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusCreated, data)
}

// ServeMessages answers GET /v1/conversations/{id}/messages.
func (a *API) ServeMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := resourceID(r)
	if err := a.guards["messages"].Check(map[string]string{"conversationId": conversationID}); err != nil {
		a.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	values := r.URL.Query()
	limit, _ := strconv.Atoi(values.Get("limit"))
	h := a.hooks.Messages(conversationID, ghl.MessageParams{
		Limit:         limit,
		LastMessageID: values.Get("lastMessageId"),
	}, query.QueryOptions{})
	defer h.Close()
	feed, res := h.WaitFeed(r.Context())
	if res.Err != nil {
		a.WriteError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, feed)
}

// ServeSendMessage answers POST /v1/conversations/{id}/messages.
func (a *API) ServeSendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := resourceID(r)
	if err := a.guards["messages"].Check(map[string]string{"conversationId": conversationID}); err != nil {
		a.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in ghl.MessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := a.hooks.SendMessage(conversationID, query.MutationOptions{}).MutateAsync(r.Context(), in)
	if err != nil {
		a.WriteError(w, statusFor(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}

// ServeOpportunities answers GET /v1/opportunities.
func (a *API) ServeOpportunities(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, _ := strconv.Atoi(values.Get("page"))
	h := a.hooks.Opportunities(ghl.OpportunitySearchParams{
		LocationID: values.Get("locationId"),
		PipelineID: values.Get("pipelineId"),
		Status:     values.Get("status"),
		Query:      values.Get("query"),
		Page:       page,
	}, query.QueryOptions{})
	defer h.Close()
	opportunities, pagination, res := h.WaitPage(r.Context())
	if res.Err != nil {
		a.WriteError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opportunities,
		"pagination":    pagination,
	})
}

// ServeUpdateOpportunity answers PUT /v1/opportunities/{id}.
func (a *API) ServeUpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	var fields ghl.OpportunityInput
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		a.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	update := ghl.OpportunityUpdate{ID: resourceID(r), Fields: fields}
	data, err := a.hooks.UpdateOpportunity(query.MutationOptions{}).MutateAsync(r.Context(), update)
	if err != nil {
		a.WriteError(w, statusFor(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}

// ServeAppointments answers GET /v1/calendars/{id}/appointments.
func (a *API) ServeAppointments(w http.ResponseWriter, r *http.Request) {
	calendarID := resourceID(r)
	if err := a.guards["appointments"].Check(map[string]string{"calendarId": calendarID}); err != nil {
		a.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	values := r.URL.Query()
	h := a.hooks.Appointments(ghl.AppointmentParams{
		LocationID: values.Get("locationId"),
		CalendarID: calendarID,
		StartTime:  values.Get("startTime"),
		EndTime:    values.Get("endTime"),
	}, query.QueryOptions{})
	defer h.Close()
	data, res := h.Wait(r.Context())
	a.writeResult(w, data, res)
}

// ServeBookAppointment answers POST /v1/calendars/{id}/appointments.
func (a *API) ServeBookAppointment(w http.ResponseWriter, r *http.Request) {
	var in ghl.AppointmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.CalendarID == "" {
		in.CalendarID = resourceID(r)
	}
	data, err := a.hooks.BookAppointment(query.MutationOptions{}).MutateAsync(r.Context(), in)
	if err != nil {
		a.WriteError(w, statusFor(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusCreated, data)
}

// ServeSlots answers GET /v1/calendars/{id}/slots.
func (a *API) ServeSlots(w http.ResponseWriter, r *http.Request) {
	calendarID := resourceID(r)
	if err := a.guards["slots"].Check(map[string]string{"calendarId": calendarID}); err != nil {
		a.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	values := r.URL.Query()
	h := a.hooks.FreeSlots(calendarID, ghl.FreeSlotParams{
		StartDate: values.Get("startDate"),
		EndDate:   values.Get("endDate"),
		Timezone:  values.Get("timezone"),
	}, query.QueryOptions{})
	defer h.Close()
	data, res := h.Wait(r.Context())
	a.writeResult(w, data, res)
}

// WriteError emits the uniform error envelope.
func (a *API) WriteError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

func (a *API) writeResult(w http.ResponseWriter, data any, res query.Result) {
	if res.Err != nil {
		a.WriteError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("response encode failed", slog.Any("error", err))
	}
}

// statusFor maps the engine's error taxonomy onto HTTP statuses: caller
// mistakes are 400s, platform failures 502, transport trouble 504.
func statusFor(err error) int {
	switch query.KindOf(err) {
	case query.KindValidation:
		return http.StatusBadRequest
	case query.KindApplication:
		return http.StatusBadGateway
	case query.KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
