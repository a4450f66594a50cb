// Package queue moves pull request events between the webhook ingress and
// the analysis workers over Kafka.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codesage/codesage/internal/domain"
)

// ErrMalformedEvent signals a message that cannot be decoded into an
// analysis event. Such messages are logged and dropped, never retried.
var ErrMalformedEvent = errors.New("malformed analysis event")

// webhookPayload mirrors the subset of GitHub's pull_request webhook body
// that analysis needs.
type webhookPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
		Base struct {
			Repo struct {
				Name  string `json:"name"`
				Owner struct {
					Login string `json:"login"`
				} `json:"owner"`
			} `json:"repo"`
		} `json:"base"`
	} `json:"pull_request"`
}

// DecodeEvent parses a GitHub pull_request webhook body into an analysis
// event. Payloads missing the repository identity or PR number are malformed.
func DecodeEvent(data []byte) (domain.AnalysisEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.AnalysisEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := domain.AnalysisEvent{
		Action:          payload.Action,
		RepositoryOwner: payload.PullRequest.Base.Repo.Owner.Login,
		RepositoryName:  payload.PullRequest.Base.Repo.Name,
		PRNumber:        payload.PullRequest.Number,
		PRTitle:         payload.PullRequest.Title,
		PRAuthor:        payload.PullRequest.User.Login,
		PRURL:           payload.PullRequest.HTMLURL,
	}

	if ev.RepositoryOwner == "" || ev.RepositoryName == "" || ev.PRNumber <= 0 {
		return domain.AnalysisEvent{}, fmt.Errorf("%w: missing repository identity or PR number", ErrMalformedEvent)
	}

	return ev, nil
}

// EncodeEvent serializes an analysis event in the same shape the webhook
// delivers, so producer and consumer agree on the wire format.
func EncodeEvent(ev domain.AnalysisEvent) ([]byte, error) {
	var payload webhookPayload
	payload.Action = ev.Action
	payload.PullRequest.Number = ev.PRNumber
	payload.PullRequest.Title = ev.PRTitle
	payload.PullRequest.HTMLURL = ev.PRURL
	payload.PullRequest.User.Login = ev.PRAuthor
	payload.PullRequest.Base.Repo.Name = ev.RepositoryName
	payload.PullRequest.Base.Repo.Owner.Login = ev.RepositoryOwner

	return json.Marshal(payload)
}
