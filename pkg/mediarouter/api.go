package mediarouter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lmig/csserver/pkg/logger"
)

// API exposes the Media Router's request/reply commands over HTTP. Every
// handler writes a plain-text body starting with "OK" or "NOK", matching
// the wire contract; chi only supplies the transport framing.
type API struct {
	router *Router
	log    *logger.Logger
}

// NewAPI creates an API bound to a Router.
func NewAPI(r *Router, log *logger.Logger) *API {
	return &API{router: r, log: log.WithComponent("mediarouter.api")}
}

// Routes builds the chi router for the Media Router's command set.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/active-calls", a.handleGetActiveCalls)
	r.Get("/call-history", a.handleGetCallHistory)
	r.Post("/interception/start", a.handleStartInterception)
	r.Post("/interception/stop", a.handleStopInterception)
	r.Post("/playback/start", a.handleStartPlayCall)
	r.Post("/playback/stop", a.handleStopPlayCall)
	return r
}

func ok(w http.ResponseWriter, payload string) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK %s", payload)
}

func nok(w http.ResponseWriter, reason string) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "NOK %s", reason)
}

func (a *API) handleGetActiveCalls(w http.ResponseWriter, r *http.Request) {
	ids := a.router.ActiveCallIDs()
	payload := ""
	for i, id := range ids {
		if i > 0 {
			payload += ","
		}
		payload += strconv.FormatUint(uint64(id), 10)
	}
	ok(w, payload)
}

func (a *API) handleGetCallHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	indi, group, err := a.router.CallHistory(limit)
	if err != nil {
		nok(w, "storage error")
		return
	}
	payload := fmt.Sprintf("indi=%d,group=%d", len(indi), len(group))
	ok(w, payload)
}

func (a *API) handleStartInterception(w http.ResponseWriter, r *http.Request) {
	callID, err := parseCallID(r)
	if err != nil {
		nok(w, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "wav"
	}

	url, succeeded, reason := a.router.StartCallInterception(callID, format)
	if !succeeded {
		nok(w, reason)
		return
	}
	ok(w, url)
}

func (a *API) handleStopInterception(w http.ResponseWriter, r *http.Request) {
	callID, err := parseCallID(r)
	if err != nil {
		nok(w, err.Error())
		return
	}
	if succeeded, reason := a.router.StopCallInterception(callID); !succeeded {
		nok(w, reason)
		return
	}
	ok(w, "")
}

func (a *API) handleStartPlayCall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callDbID, err := strconv.ParseUint(q.Get("call_db_id"), 10, 64)
	if err != nil {
		nok(w, "missing or invalid call_db_id")
		return
	}
	callID, err := parseCallID(r)
	if err != nil {
		nok(w, err.Error())
		return
	}
	kind := q.Get("type")
	format := q.Get("format")
	if format == "" {
		format = "wav"
	}
	session := q.Get("session")

	url, succeeded, reason := a.router.StartPlayCall(callDbID, callID, kind, format, session)
	if !succeeded {
		nok(w, reason)
		return
	}
	ok(w, url)
}

func (a *API) handleStopPlayCall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callDbID, err := strconv.ParseUint(q.Get("call_db_id"), 10, 64)
	if err != nil {
		nok(w, "missing or invalid call_db_id")
		return
	}
	callID, err := parseCallID(r)
	if err != nil {
		nok(w, err.Error())
		return
	}
	format := q.Get("format")
	if format == "" {
		format = "wav"
	}
	session := q.Get("session")

	if succeeded, reason := a.router.StopPlayCall(callDbID, callID, format, session); !succeeded {
		nok(w, reason)
		return
	}
	ok(w, "")
}

func parseCallID(r *http.Request) (uint32, error) {
	v := r.URL.Query().Get("call_id")
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("missing or invalid call_id")
	}
	return uint32(id), nil
}
