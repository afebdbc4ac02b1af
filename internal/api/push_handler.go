package api

import (
	"io"
	"net/http"

	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

const maxPushBody = 10 * 1024 * 1024 // 10 MB

// Push принимает push-доставку Pub/Sub или background-событие топика.
//
// 2xx подтверждает сообщение. Постоянные ошибки тоже подтверждаются
// (200 с ok=false), временные возвращают 500, и Pub/Sub повторит доставку.
func (h *Handler) Push(topic mq.Topic, handle EventHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
		if err != nil {
			BadRequest(w, "failed to read body")
			return
		}

		logger := h.logger.With("topic", topic)

		msg, err := event.DecodePush(body)
		if err == nil {
			err = handle(r.Context(), msg)
		}

		switch {
		case err == nil:
			telemetry.MessagesProcessed.WithLabelValues(string(topic), telemetry.ResultOK).Inc()
			JSON(w, http.StatusOK, PushResponse{OK: true})
		case event.IsPermanent(err):
			telemetry.MessagesProcessed.WithLabelValues(string(topic), telemetry.ResultPermanent).Inc()
			logger.Error("error processing message", "error", err)
			JSON(w, http.StatusOK, PushResponse{OK: false, Error: err.Error()})
		default:
			telemetry.MessagesProcessed.WithLabelValues(string(topic), telemetry.ResultRetry).Inc()
			logger.Warn("message will be redelivered", "error", err)
			JSON(w, http.StatusInternalServerError, PushResponse{OK: false, Error: err.Error()})
		}
	})
}
