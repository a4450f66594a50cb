package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codesage/codesage/internal/queue"
)

// GitHubWebhookHandler accepts GitHub webhook deliveries. Pull request
// events with an analyzable action are enqueued and acknowledged with 202
// before any analysis work happens. Everything else is acknowledged with
// 200 so GitHub does not retry deliveries we deliberately ignore.
func (s *Server) GitHubWebhookHandler(c echo.Context) error {
	eventKind := c.Request().Header.Get("X-GitHub-Event")
	if eventKind != "pull_request" {
		log.Printf("[INFO] webhook: ignoring event kind %q", eventKind)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read payload"})
	}

	ev, err := queue.DecodeEvent(body)
	if err != nil {
		if errors.Is(err, queue.ErrMalformedEvent) {
			log.Printf("[WARN] webhook: malformed payload: %v", err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to decode payload"})
	}

	if !ev.Analyzable() {
		log.Printf("[INFO] webhook: ignoring action %q for %s/%s#%d",
			ev.Action, ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	if err := s.queue.Enqueue(ev); err != nil {
		log.Printf("[ERROR] webhook: failed to enqueue %s/%s#%d: %v",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue analysis"})
	}

	log.Printf("[INFO] webhook: queued %s/%s#%d (%s)",
		ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, ev.Action)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}
