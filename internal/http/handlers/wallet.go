package handlers

import (
	"net/http"

	"rendersync/internal/billing"
)

// WalletGet reports the caller's current ledger balance.
func (a *App) WalletGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Wallets.Balance(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("wallet: balance query failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"balance_cents":   balance,
		"balance_display": billing.FormatCents(balance),
	})
}
