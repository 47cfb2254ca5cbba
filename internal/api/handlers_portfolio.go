package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
)

const (
	defaultHistoryLimit = 30
	defaultDumpLimit    = 100
	maxListLimit        = 1000
)

// handleRecompute handles POST /api/users/{id}/recompute
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	result, err := s.portfolioService.Recompute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleChainBreakdown handles GET /api/users/{id}/chains
func (s *Server) handleChainBreakdown(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	rows, err := s.portfolioService.ChainBreakdown(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.ChainBreakdownRow{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"chains": rows,
	})
}

// handleTokenBreakdown handles GET /api/users/{id}/tokens?spam=exclude&minUsd=&chain=&wallet=
func (s *Server) handleTokenBreakdown(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	q := r.URL.Query()

	excludeSpam, err := parseSpamParam(q.Get("spam"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	filter := models.TokenFilter{
		ExcludeSpam: excludeSpam,
		Chain:       strings.TrimSpace(q.Get("chain")),
		Wallet:      strings.TrimSpace(q.Get("wallet")),
	}
	if raw := q.Get("minUsd"); raw != "" {
		minUSD, err := decimal.NewFromString(raw)
		if err != nil {
			respondServiceError(w, r, apperrors.NewInvalidParameterError("minUsd", "must be a decimal number"))
			return
		}
		filter.MinUSD = decimal.NewNullDecimal(minUSD)
	}

	rows, err := s.portfolioService.TokenBreakdown(r.Context(), userID, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.TokenBreakdownRow{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"tokens": rows,
	})
}

// handleTokenNames handles GET /api/users/{id}/tokens/names?spam=exclude
func (s *Server) handleTokenNames(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	excludeSpam, err := parseSpamParam(r.URL.Query().Get("spam"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	names, err := s.portfolioService.TokenNames(r.Context(), userID, excludeSpam)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"names":  names,
	})
}

// handleGetSpamTokens handles GET /api/users/{id}/spam-tokens
func (s *Server) handleGetSpamTokens(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	tokens, err := s.portfolioService.SpamTokens(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"tokens": tokens,
	})
}

// handleSetSpamTokens handles PUT /api/users/{id}/spam-tokens. The list
// replaces the previous filter; unknown token names are rejected with 422.
func (s *Server) handleSetSpamTokens(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req struct {
		Tokens []string `json:"tokens"`
	}
	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	saved, err := s.portfolioService.SetSpamTokens(r.Context(), userID, req.Tokens)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId": userID,
		"tokens": saved,
	})
}

// handleWalletChainTotals handles GET /api/users/{id}/wallets/{address}/chains
func (s *Server) handleWalletChainTotals(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	totals, err := s.portfolioService.WalletChainTotals(r.Context(), vars["id"], vars["address"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if totals == nil {
		totals = []models.WalletChainTotal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":  vars["id"],
		"address": vars["address"],
		"chains":  totals,
	})
}

// handleHistory handles GET /api/users/{id}/history?limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	totals, err := s.portfolioService.History(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"snapshots": totals,
	})
}

// handleDumpTable handles GET /api/admin/tables/{table}?limit=
func (s *Server) handleDumpTable(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultDumpLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	dump, err := s.portfolioService.DumpTable(r.Context(), mux.Vars(r)["table"], limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dump)
}

func parseSpamParam(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "include":
		return false, nil
	case "exclude":
		return true, nil
	default:
		return false, apperrors.NewInvalidParameterError("spam", "must be include or exclude")
	}
}

func parseLimit(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, apperrors.NewInvalidParameterError("limit", "must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
