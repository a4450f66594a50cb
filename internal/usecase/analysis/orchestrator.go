// Package analysis coordinates the review pipeline: fetch the diff, run the
// AI analysis, persist the result, and post the PR comment.
package analysis

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/codesage/codesage/internal/adapter/llm"
	"github.com/codesage/codesage/internal/domain"
	"github.com/codesage/codesage/internal/parser"
)

// Store defines the outbound port for review persistence. Create reports a
// taken (owner, name, PR) key as domain.ErrDuplicateReview; FindByKey reports
// a miss as domain.ErrReviewNotFound.
type Store interface {
	Create(ctx context.Context, review *domain.Review) error
	Update(ctx context.Context, review *domain.Review) error
	FindByKey(ctx context.Context, owner, name string, prNumber int) (domain.Review, error)
}

// SourceControl defines the outbound port for the code hosting platform.
type SourceControl interface {
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Analyzer defines the outbound port for the AI provider chain.
type Analyzer interface {
	Analyze(ctx context.Context, diff string) (llm.Result, error)
}

// Deps bundles the orchestrator's collaborators. Format renders a completed
// review into the PR comment body; leaving it nil disables comment posting.
type Deps struct {
	Store         Store
	SourceControl SourceControl
	Analyzer      Analyzer
	Format        func(domain.Review) string
	Now           func() time.Time
}

// Orchestrator runs one analysis per queue event. It never propagates
// failures to the caller: every outcome ends as a COMPLETED or FAILED
// review record, or a logged skip.
type Orchestrator struct {
	store         Store
	sourceControl SourceControl
	analyzer      Analyzer
	format        func(domain.Review) string
	now           func() time.Time
}

// NewOrchestrator wires the pipeline. Deps.Now defaults to time.Now.
func NewOrchestrator(deps Deps) *Orchestrator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		store:         deps.Store,
		sourceControl: deps.SourceControl,
		analyzer:      deps.Analyzer,
		format:        deps.Format,
		now:           now,
	}
}

// Handle processes one pull request event end to end.
func (o *Orchestrator) Handle(ctx context.Context, ev domain.AnalysisEvent) {
	if !ev.Analyzable() {
		log.Printf("[INFO] analysis: ignoring action %q for %s/%s#%d",
			ev.Action, ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber)
		return
	}

	log.Printf("[INFO] analysis: starting %s/%s#%d (%s)",
		ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, ev.Action)

	// Idempotency: a review for this PR means the event was already handled.
	if _, err := o.store.FindByKey(ctx, ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber); err == nil {
		log.Printf("[INFO] analysis: review already exists for %s/%s#%d, skipping",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber)
		return
	} else if !errors.Is(err, domain.ErrReviewNotFound) {
		log.Printf("[ERROR] analysis: dedup lookup failed for %s/%s#%d: %v",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, err)
		return
	}

	review := domain.NewPendingReview(ev, o.now())
	if err := o.store.Create(ctx, &review); err != nil {
		if errors.Is(err, domain.ErrDuplicateReview) {
			// A concurrent worker won the insert race. Same outcome as the
			// dedup check above.
			log.Printf("[INFO] analysis: concurrent review exists for %s/%s#%d, skipping",
				ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber)
			return
		}
		log.Printf("[ERROR] analysis: failed to create review for %s/%s#%d: %v",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, err)
		return
	}

	diff, err := o.sourceControl.FetchDiff(ctx, ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber)
	if err != nil {
		o.fail(ctx, &review, "failed to fetch diff: "+err.Error())
		return
	}

	result, err := o.analyzer.Analyze(ctx, diff)
	if err != nil {
		o.fail(ctx, &review, "analysis failed: "+err.Error())
		return
	}

	parsed, err := parser.Parse(result.RawText)
	if err != nil {
		o.fail(ctx, &review, "failed to parse analysis: "+err.Error())
		return
	}

	review.Complete(parsed.Score, parsed.Summary, result.Provider, result.Model, parsed.Issues, o.now())
	if err := o.store.Update(ctx, &review); err != nil {
		log.Printf("[ERROR] analysis: failed to persist completed review %s/%s#%d: %v",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, err)
		return
	}

	log.Printf("[INFO] analysis: completed %s/%s#%d score=%.1f provider=%s issues=%d",
		ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber,
		review.QualityScore, review.Provider, len(review.Issues))

	// Comment posting is best effort. The review is already durable, so a
	// platform failure here only loses the notification.
	if o.format == nil {
		return
	}
	comment := o.format(review)
	if err := o.sourceControl.PostComment(ctx, ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, comment); err != nil {
		log.Printf("[WARN] analysis: failed to post comment for %s/%s#%d: %v",
			ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, err)
	}
}

// fail marks the review FAILED and persists it. A persistence failure at
// this point can only be logged.
func (o *Orchestrator) fail(ctx context.Context, review *domain.Review, message string) {
	log.Printf("[ERROR] analysis: %s/%s#%d: %s",
		review.RepositoryOwner, review.RepositoryName, review.PRNumber, message)

	review.Fail(message, o.now())
	if err := o.store.Update(ctx, review); err != nil {
		log.Printf("[ERROR] analysis: failed to persist FAILED review %s/%s#%d: %v",
			review.RepositoryOwner, review.RepositoryName, review.PRNumber, err)
	}
}
