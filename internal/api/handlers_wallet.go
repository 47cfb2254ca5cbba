package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wallet-portfolio/internal/provider"
)

const defaultMaxBodyBytes = 8 << 20

// handleRefreshWallet handles POST /api/wallets/{address}/refresh. The body
// carries the provider payloads for the address:
// {totalBalance, tokens, nfts, solana, bitcoin}, each optional.
func (s *Server) handleRefreshWallet(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	payloads, err := provider.DecodePayloads(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := s.refreshService.RefreshWallet(r.Context(), address, payloads)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":  result.Address,
		"family":   result.Family,
		"written":  result.Written(),
		"failed":   result.Failed(),
		"entities": result.Entities,
	})
}
