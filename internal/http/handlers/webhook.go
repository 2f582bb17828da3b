package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"rendersync/internal/reconcile"
)

const maxWebhookBytes = 1 << 20

// WebhookRender ingests provider callbacks. Unknown jobs still get a 200 so
// the provider stops redelivering; only payloads we could never process get a
// 4xx.
func (a *App) WebhookRender(w http.ResponseWriter, r *http.Request) {
	if a.Cfg != nil && a.Cfg.WebhookToken != "" && r.URL.Query().Get("token") != a.Cfg.WebhookToken {
		a.countWebhook("unauthorized")
		a.json(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "invalid token"})
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		a.countWebhook("unsupported_media")
		a.json(w, http.StatusUnsupportedMediaType, map[string]any{"ok": false, "error": "expected application/json"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		a.countWebhook("read_error")
		a.json(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}

	outcome, err := a.Reconciler.HandleWebhook(r.Context(), body)
	if err != nil {
		if errors.Is(err, reconcile.ErrBadPayload) {
			a.Logger.Warn().Err(err).Msg("webhook: rejected payload")
			a.countWebhook("bad_payload")
			a.json(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		a.Logger.Error().Err(err).Msg("webhook: processing failed")
		a.countWebhook("error")
		a.json(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "processing failed"})
		return
	}

	a.countWebhook(string(outcome))
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) countWebhook(outcome string) {
	if a.Metrics != nil {
		a.Metrics.WebhooksReceived.WithLabelValues(outcome).Inc()
	}
}

// PollTrigger runs one reconciliation batch on demand. The scheduled poller
// calls the same code path on a timer.
func (a *App) PollTrigger(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if a.Cfg != nil {
		limit = a.Cfg.PollBatchSize
	}
	checked, updates, err := a.Reconciler.PollBatch(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("poll: batch failed")
		a.json(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "poll batch failed"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "checked": checked, "updates": updates})
}
