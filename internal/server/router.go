package server

import (
	"net/http"
	"strings"
)

// HookHTTP defines the minimal surface the router needs from the hook API to
// serve HTTP requests.
type HookHTTP interface {
	ServeContacts(http.ResponseWriter, *http.Request)
	ServeCreateContact(http.ResponseWriter, *http.Request)
	ServeMessages(http.ResponseWriter, *http.Request)
	ServeSendMessage(http.ResponseWriter, *http.Request)
	ServeOpportunities(http.ResponseWriter, *http.Request)
	ServeUpdateOpportunity(http.ResponseWriter, *http.Request)
	ServeAppointments(http.ResponseWriter, *http.Request)
	ServeBookAppointment(http.ResponseWriter, *http.Request)
	ServeSlots(http.ResponseWriter, *http.Request)
	ServeHealth(http.ResponseWriter, *http.Request)
	RequestWithResourceID(*http.Request, string) *http.Request
	WriteError(http.ResponseWriter, int, string)
}

// NewHookHandler wires URL dispatch to the hook API so the lifecycle server
// owns routing without embedding it into the hook layer.
func NewHookHandler(api HookHTTP) http.Handler {
	if api == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "hook api unavailable", http.StatusServiceUnavailable)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trimmed := strings.Trim(r.URL.Path, "/")
		if trimmed == "health" || trimmed == "healthz" {
			api.ServeHealth(w, r)
			return
		}
		parts := strings.Split(trimmed, "/")
		if len(parts) < 2 || parts[0] != "v1" {
			http.NotFound(w, r)
			return
		}
		parts = parts[1:]

		switch parts[0] {
		case "contacts":
			if len(parts) != 1 {
				break
			}
			switch r.Method {
			case http.MethodGet:
				api.ServeContacts(w, r)
			case http.MethodPost:
				api.ServeCreateContact(w, r)
			default:
				api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		case "conversations":
			if len(parts) != 3 || parts[2] != "messages" || parts[1] == "" {
				break
			}
			r = api.RequestWithResourceID(r, parts[1])
			switch r.Method {
			case http.MethodGet:
				api.ServeMessages(w, r)
			case http.MethodPost:
				api.ServeSendMessage(w, r)
			default:
				api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			}
			return
		case "opportunities":
			// A shape that matches with the wrong method is a 405; an unknown
			// shape falls through to 404.
			switch {
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					api.ServeOpportunities(w, r)
				default:
					api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				}
				return
			case len(parts) == 2 && parts[1] != "":
				switch r.Method {
				case http.MethodPut:
					api.ServeUpdateOpportunity(w, api.RequestWithResourceID(r, parts[1]))
				default:
					api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				}
				return
			}
		case "calendars":
			if len(parts) != 3 || parts[1] == "" {
				break
			}
			r = api.RequestWithResourceID(r, parts[1])
			switch parts[2] {
			case "appointments":
				switch r.Method {
				case http.MethodGet:
					api.ServeAppointments(w, r)
				case http.MethodPost:
					api.ServeBookAppointment(w, r)
				default:
					api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				}
				return
			case "slots":
				switch r.Method {
				case http.MethodGet:
					api.ServeSlots(w, r)
				default:
					api.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
				}
				return
			}
			// Unknown calendar subresources fall through to 404.
		}
		http.NotFound(w, r)
	})
}
