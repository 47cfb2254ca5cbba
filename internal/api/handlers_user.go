package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleCreateUser handles POST /api/users - Register a user
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}

	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := s.userService.RegisterUser(r.Context(), req.UserID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"userId": req.UserID})
}

// handleListUsers handles GET /api/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// handleDeleteUser handles DELETE /api/users/{id}. Deleting an unknown
// user succeeds.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.userService.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAddresses handles GET /api/users/{id}/addresses
func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	addresses, err := s.userService.ListAddresses(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if addresses == nil {
		addresses = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"addresses": addresses,
	})
}

// handleLinkAddress handles POST /api/users/{id}/addresses
func (s *Server) handleLinkAddress(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req struct {
		Address string `json:"address"`
	}
	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	address, err := s.userService.LinkAddress(r.Context(), userID, req.Address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"userId":  userID,
		"address": address,
	})
}

// handleUnlinkAddress handles DELETE /api/users/{id}/addresses/{address}
func (s *Server) handleUnlinkAddress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.userService.UnlinkAddress(r.Context(), vars["id"], vars["address"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
