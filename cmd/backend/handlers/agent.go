package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
	"github.com/testdeckhq/testdeck/suite"
)

// AgentHandler handles agent registration, liveness and the work queue.
type AgentHandler struct {
	agents    agent.Store
	tracker   *agent.Tracker
	jobs      job.Store
	tests     nocodetest.Store
	suites    suite.Store
	publisher notifier.Publisher
	logger    logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents agent.Store, tracker *agent.Tracker, jobs job.Store, tests nocodetest.Store, suites suite.Store, publisher notifier.Publisher, log logger.Logger) *AgentHandler {
	return &AgentHandler{
		agents:    agents,
		tracker:   tracker,
		jobs:      jobs,
		tests:     tests,
		suites:    suites,
		publisher: publisher,
		logger:    log,
	}
}

// AgentRegisterRequest represents an agent registration request.
type AgentRegisterRequest struct {
	AgentID  string   `json:"agent_id"`
	Name     string   `json:"name"`
	Browsers []string `json:"browsers"`
	Capacity int      `json:"capacity"`
}

// AgentRegisterResponse carries the created agent and its one-time token.
type AgentRegisterResponse struct {
	Agent *AgentView `json:"agent"`
	Token string     `json:"token"`
}

// AgentView is an agent plus its derived effective status.
type AgentView struct {
	*agent.Agent
	EffectiveStatus agent.Status `json:"effective_status"`
}

func newAgentView(a *agent.Agent, now time.Time) *AgentView {
	return &AgentView{Agent: a, EffectiveStatus: agent.EffectiveStatus(a, now)}
}

// Register handles agent registration. The raw bearer token appears in this
// response only; afterwards the backend holds just its hash.
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req AgentRegisterRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, rawToken, err := agent.Register(r.Context(), h.agents, req.AgentID, req.Name, agent.Tags(req.Browsers), req.Capacity)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrInvalidAgentID), errors.Is(err, agent.ErrInvalidAgentName), errors.Is(err, agent.ErrInvalidCapacity):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, agent.ErrDuplicateAgentID):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to register agent")
		}
		return
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeAgentUpdated, Payload: a})

	respondJSON(w, http.StatusCreated, AgentRegisterResponse{
		Agent: newAgentView(a, time.Now().UTC()),
		Token: rawToken,
	})
}

// HeartbeatRequest represents an agent liveness report.
type HeartbeatRequest struct {
	Status   agent.Status `json:"status"`
	Capacity int          `json:"capacity"`
	Browsers []string     `json:"browsers"`
}

// Heartbeat records a liveness signal from the authenticated agent.
func (h *AgentHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	a, ok := GetAgent(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "agent token required")
		return
	}

	var req HeartbeatRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := req.Status
	if status == "" {
		status = agent.StatusOnline
	}
	if !status.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid agent status")
		return
	}

	capacity := req.Capacity
	if capacity < 1 {
		capacity = a.Capacity
	}

	browsers := agent.Tags(req.Browsers)
	if browsers == nil {
		browsers = a.Browsers
	}

	if err := h.agents.Heartbeat(r.Context(), a.AgentID, status, capacity, browsers); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "agent not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeAgentUpdated, Payload: a.AgentID})

	respondSuccess(w, "heartbeat recorded")
}

// Poll claims the next pending job for the authenticated agent. Responds 204
// when the queue has nothing.
func (h *AgentHandler) Poll(w http.ResponseWriter, r *http.Request) {
	a, ok := GetAgent(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "agent token required")
		return
	}

	j, err := h.jobs.ClaimNext(r.Context(), a.AgentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to claim job")
		return
	}
	if j == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.agents.AdjustRunningJobs(r.Context(), a.AgentID, 1); err != nil {
		h.logger.Warn(r.Context(), "failed to bump running jobs", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": a.AgentID,
		})
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeJobUpdated, Payload: j})

	respondJSON(w, http.StatusOK, j)
}

// JobResultRequest represents an agent's terminal job report.
type JobResultRequest struct {
	Status       job.Status  `json:"status"`
	Result       job.JSONMap `json:"result,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Result records the terminal outcome of a job the agent claimed.
func (h *AgentHandler) Result(w http.ResponseWriter, r *http.Request) {
	a, ok := GetAgent(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "agent token required")
		return
	}

	jobID, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	var req JobResultRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if j.AgentID == nil || *j.AgentID != a.AgentID {
		respondError(w, http.StatusForbidden, "job is not assigned to this agent")
		return
	}

	if err := h.jobs.Complete(r.Context(), jobID, req.Status, req.Result, req.ErrorMessage); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotRunning):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, job.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to complete job")
		}
		return
	}

	if err := h.agents.AdjustRunningJobs(r.Context(), a.AgentID, -1); err != nil {
		h.logger.Warn(r.Context(), "failed to drop running jobs", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": a.AgentID,
		})
	}

	updated, err := h.jobs.GetByID(r.Context(), jobID)
	if err == nil {
		h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeJobUpdated, Payload: updated})
		h.recordSuiteResult(r, updated)
	}

	// Mirror the terminal outcome onto the owning test row, best-effort.
	testStatus := nocodetest.StatusFailed
	if req.Status == job.StatusCompleted {
		testStatus = nocodetest.StatusPassed
	}
	if err := h.tests.Update(r.Context(), j.TestID, nocodetest.SetStatus(testStatus)); err != nil {
		h.logger.Warn(r.Context(), "failed to update test status", map[string]interface{}{
			"error":   err.Error(),
			"test_id": j.TestID.String(),
		})
	}

	respondSuccess(w, "result recorded")
}

// recordSuiteResult folds a finished suite job into its aggregate.
func (h *AgentHandler) recordSuiteResult(r *http.Request, j *job.Job) {
	if j.SuiteExecutionID == nil {
		return
	}

	name := ""
	if t, err := h.tests.GetByID(r.Context(), j.TestID); err == nil {
		name = t.Name
	}

	passed := j.Status == job.StatusCompleted
	status := "failed"
	if passed {
		status = "passed"
	}
	summary := suite.TestSummary{
		TestID: j.TestID,
		Name:   name,
		Status: status,
		Error:  j.ErrorMessage,
	}
	if err := h.suites.RecordResult(r.Context(), *j.SuiteExecutionID, summary, passed); err != nil {
		h.logger.Warn(r.Context(), "failed to record suite result from job", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": j.SuiteExecutionID.String(),
			"job_id":             j.ID.String(),
		})
		return
	}

	if se, err := h.suites.GetExecutionByID(r.Context(), *j.SuiteExecutionID); err == nil {
		h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeSuiteExecutionUpdated, Payload: se})
	}
}

// List returns the merged agent view: persisted rows plus active local agents,
// each with its derived effective status.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.tracker.Snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}

	now := time.Now().UTC()
	views := make([]*AgentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, newAgentView(a, now))
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(views, len(views), len(views), 0))
}

// Delete removes a persisted agent.
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	if err := h.agents.Delete(r.Context(), agentID); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "agent not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete agent")
		return
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeAgentUpdated, Payload: agentID})

	respondSuccess(w, "agent deleted")
}

// LocalAgentRequest represents a local simulated agent activation.
type LocalAgentRequest struct {
	AgentID  string   `json:"agent_id"`
	Name     string   `json:"name"`
	Browsers []string `json:"browsers"`
}

// ActivateLocal turns on an ephemeral local agent. Nothing is persisted; the
// agent exists only in the presence snapshot while active.
func (h *AgentHandler) ActivateLocal(w http.ResponseWriter, r *http.Request) {
	var req LocalAgentRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		respondError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	name := req.Name
	if name == "" {
		name = req.AgentID
	}

	h.tracker.ActivateLocal(req.AgentID, name, agent.Tags(req.Browsers))
	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeAgentUpdated, Payload: req.AgentID})

	respondSuccess(w, "local agent activated")
}

// DeactivateLocal turns off an ephemeral local agent.
func (h *AgentHandler) DeactivateLocal(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	if agentID == "" {
		respondError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	h.tracker.DeactivateLocal(agentID)
	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeAgentUpdated, Payload: agentID})

	respondSuccess(w, "local agent deactivated")
}
