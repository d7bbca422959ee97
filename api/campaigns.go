package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/talentmail/internal/campaign"
	"github.com/garnizeh/talentmail/internal/models"
)

// Machine is one stateful campaign workflow.
type Machine interface {
	State(ctx context.Context) (models.CampaignState, error)
	Generate(ctx context.Context) campaign.Result
	SendTest(ctx context.Context) campaign.Result
	SendToAll(ctx context.Context) campaign.Result
	Reset(ctx context.Context) campaign.Result
}

type CampaignHandler struct {
	machines map[models.Campaign]Machine
}

func NewCampaignHandler(machines map[models.Campaign]Machine) *CampaignHandler {
	return &CampaignHandler{machines: machines}
}

func (h *CampaignHandler) machine(w http.ResponseWriter, r *http.Request) (Machine, bool) {
	c := models.Campaign(mux.Vars(r)["campaign"])
	m, ok := h.machines[c]
	if !c.Valid() || !ok {
		writeJSON(w, errorResponse{Error: "Not Found", Message: "unknown campaign " + string(c)}, http.StatusNotFound)
		return nil, false
	}
	return m, true
}

func (h *CampaignHandler) State(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	s, err := m.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "state": s}, http.StatusOK)
}

// action adapts a transition to a handler. A client disconnect does not
// cancel a transition that is already running.
func (h *CampaignHandler) action(run func(Machine, context.Context) campaign.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := h.machine(w, r)
		if !ok {
			return
		}
		writeResult(w, run(m, context.WithoutCancel(r.Context())))
	}
}

func (h *CampaignHandler) Generate() http.HandlerFunc  { return h.action(Machine.Generate) }
func (h *CampaignHandler) SendTest() http.HandlerFunc  { return h.action(Machine.SendTest) }
func (h *CampaignHandler) SendToAll() http.HandlerFunc { return h.action(Machine.SendToAll) }
func (h *CampaignHandler) Reset() http.HandlerFunc     { return h.action(Machine.Reset) }
