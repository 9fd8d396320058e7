package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"resit/internal/log"
)

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.opts.Claims.ListTeams(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	NewResponse().Data(map[string]any{"teams": out}).Write(w, r)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}
	team, err := s.opts.Claims.CreateTeam(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/teams/"+team.ID).
		Data(toTeamResponse(team)).
		Write(w, r)
}

func (s *Server) handleTeamStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "team")
	if !ok {
		return
	}
	stats, err := s.opts.Claims.TeamStats(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	NewResponse().Data(stats).Write(w, r)
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseClaimFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	page, err := s.opts.Claims.ListClaims(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().Data(toClaimListResponse(page)).Write(w, r)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}
	c, err := req.toClaim()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.opts.Claims.CreateClaim(r.Context(), c)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/claims/"+created.ID).
		Data(toClaimResponse(created)).
		Write(w, r)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	c, err := s.opts.Claims.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().Data(toClaimResponse(c)).Write(w, r)
}

// handleDecideClaim approves or rejects a pending claim. Deciding twice is a
// conflict.
func (s *Server) handleDecideClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "claim")
	if !ok {
		return
	}
	var req ClaimStatusRequest
	if resp := decodeJSON(w, r, &req); resp != nil {
		resp.Write(w, r)
		return
	}
	c, err := s.opts.Claims.DecideClaim(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().Data(toClaimResponse(c)).Write(w, r)
}

func pathID(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		BadRequestError("missing " + kind + " id").Write(w, r)
		return "", false
	}
	return id, true
}
