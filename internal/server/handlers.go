package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.Registry.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	session, err := s.Registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, session)
}

func (s *Server) handleReleaseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Registry.Release(id); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "released"})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.Queue.Pending()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, map[string]interface{}{"actions": actions})
}

func (s *Server) handleRequeueAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	newID, err := s.Queue.Requeue(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, map[string]string{"id": newID})
}

func (s *Server) handleReadChannel(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	envelope, err := s.Memory.Read(channel)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if envelope == nil {
		respondError(w, http.StatusNotFound, "channel "+channel+" has never been published")
		return
	}
	respondJSON(w, envelope)
}

func (s *Server) handleGetDrift(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["session"]
	state, err := s.Drift.LoadSession(sid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, state)
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	sid := mux.Vars(r)["session"]
	cp, found, err := s.Pressure.Load(sid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no checkpoint for session "+sid)
		return
	}
	respondJSON(w, cp)
}
