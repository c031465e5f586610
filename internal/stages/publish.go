package stages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/ratelimit"
	"github.com/tenkay/filing-pipeline/internal/render"
	"github.com/tenkay/filing-pipeline/internal/resilience"
	"github.com/tenkay/filing-pipeline/internal/store"
	"github.com/tenkay/filing-pipeline/pkg/resend"
)

// ErrNoSubscribers is returned when the selected tier has no enabled
// subscribers. The content stays publishable.
var ErrNoSubscribers = eris.New("publish: no subscribers")

// completeTimeout bounds the write that releases a delivery claim, which
// runs even after the batch context is canceled.
const completeTimeout = 10 * time.Second

var tagValueRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// PublishOptions configures the email broadcast.
type PublishOptions struct {
	From           string
	ReplyTo        string
	Tier           model.Tier
	UnsubscribeURL string
	Retry          resilience.RetryConfig
}

// Broadcast is the outcome of sending one content record.
type Broadcast struct {
	Delivery *model.Delivery
	// Claimed is false when another worker holds or finished the delivery.
	Claimed bool
	lastErr error
}

// PublishStage emails rendered content to subscribers.
type PublishStage struct {
	store   store.Store
	email   resend.Client
	limiter ratelimit.Limiter
	breaker *resilience.CircuitBreaker
	opts    PublishOptions
	done    pipeline.Guard
}

var (
	_ pipeline.Stage[model.Content, *Broadcast] = (*PublishStage)(nil)
	_ pipeline.Validator[model.Content]         = (*PublishStage)(nil)
	_ pipeline.FailureRecorder[model.Content]   = (*PublishStage)(nil)
)

// NewPublishStage creates the publish stage. limiter and breaker are
// shared by every worker sending email.
func NewPublishStage(st store.Store, email resend.Client, limiter ratelimit.Limiter, breaker *resilience.CircuitBreaker, opts PublishOptions) *PublishStage {
	if opts.Tier == "" {
		opts.Tier = model.TierAll
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("resend", resilience.DefaultCircuitBreakerConfig())
	}
	sent := func(ctx context.Context, contentID string) (bool, error) {
		return st.DeliveryExists(ctx, contentID, model.ChannelEmail)
	}
	return &PublishStage{
		store: st, email: email, limiter: limiter, breaker: breaker, opts: opts,
		done: pipeline.GuardFunc(sent),
	}
}

// Name implements pipeline.Stage.
func (s *PublishStage) Name() string { return NamePublish }

// FetchCandidates returns rendered content with no sent email delivery.
func (s *PublishStage) FetchCandidates(ctx context.Context, limit int) ([]model.Content, error) {
	return s.store.ListPublishCandidates(ctx, model.ChannelEmail, limit)
}

// SkipIfDone reports whether the content was already emailed.
func (s *PublishStage) SkipIfDone(ctx context.Context, c model.Content) (bool, error) {
	return s.done.AlreadyDone(ctx, c.ID)
}

// Validate checks the email body and that the tier has subscribers.
func (s *PublishStage) Validate(ctx context.Context, c model.Content) error {
	if c.EmailHTML == "" {
		return eris.New("content has no email body")
	}
	subs, err := s.store.ListSubscribers(ctx, s.opts.Tier)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return eris.Wrapf(ErrNoSubscribers, "tier %s", s.opts.Tier)
	}
	return nil
}

// Process claims the delivery and sends one email per subscriber. Once the
// claim is taken Process never fails; Persist releases the claim with the
// final counts.
func (s *PublishStage) Process(ctx context.Context, c model.Content) (*Broadcast, error) {
	v, err := s.store.GetContent(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubscribers(ctx, s.opts.Tier)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, eris.Wrapf(ErrNoSubscribers, "tier %s", s.opts.Tier)
	}

	d := &model.Delivery{ContentID: c.ID, Channel: model.ChannelEmail, Recipients: len(subs)}
	claimed, err := s.store.ClaimDelivery(ctx, d)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return &Broadcast{Delivery: d}, nil
	}

	log := zap.L().With(zap.String("stage", NamePublish), zap.String("content_id", c.ID))
	b := &Broadcast{Delivery: d, Claimed: true}
	subject := subjectFor(v)
	for i, sub := range subs {
		id, err := s.send(ctx, v, sub, subject)
		if err != nil {
			d.FailedCount++
			b.lastErr = err
			log.Warn("send failed", zap.String("subscriber", sub.ID), zap.Error(err))
			if errors.Is(err, resilience.ErrCircuitOpen) || ctx.Err() != nil {
				d.FailedCount += len(subs) - i - 1
				break
			}
			continue
		}
		d.SentCount++
		d.ProviderIDs = append(d.ProviderIDs, id)
	}
	return b, nil
}

func (s *PublishStage) send(ctx context.Context, v *model.ContentView, sub model.Subscriber, subject string) (string, error) {
	unsub := s.unsubscribeURL(sub)
	email := resend.Email{
		From:    s.opts.From,
		To:      []string{sub.Email},
		Subject: subject,
		HTML:    render.Personalize(v.EmailHTML, sub, unsub, true),
		Text:    render.Personalize(v.EmailText, sub, unsub, false),
		ReplyTo: s.opts.ReplyTo,
		Tags: []resend.Tag{
			{Name: "ticker", Value: tagValueRe.ReplaceAllString(v.Filing.Ticker, "_")},
			{Name: "filing_type", Value: tagValueRe.ReplaceAllString(string(v.Filing.FilingType), "_")},
			{Name: "tier", Value: string(sub.Tier)},
		},
		IdempotencyKey: v.ID + "/" + sub.ID,
	}

	retry := s.opts.Retry
	retry.OnRetry = resilience.RetryLogger("resend", "send")
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
			if err := s.limiter.Acquire(ctx); err != nil {
				return "", err
			}
			return s.email.Send(ctx, email)
		})
	})
}

func (s *PublishStage) unsubscribeURL(sub model.Subscriber) string {
	if s.opts.UnsubscribeURL == "" {
		return ""
	}
	u, err := url.Parse(s.opts.UnsubscribeURL)
	if err != nil {
		return s.opts.UnsubscribeURL
	}
	q := u.Query()
	q.Set("email", sub.Email)
	u.RawQuery = q.Encode()
	return u.String()
}

func subjectFor(v *model.ContentView) string {
	return fmt.Sprintf("%s %s %s %d: %s",
		v.Filing.Ticker, v.Filing.FilingType, v.Filing.FiscalPeriod, v.Filing.FiscalYear, v.Analysis.Headline)
}

// Persist releases the claim. A broadcast that reached nobody is recorded
// as failed and reported as an error so the next run can reclaim it.
func (s *PublishStage) Persist(ctx context.Context, _ model.Content, b *Broadcast) error {
	if !b.Claimed {
		return pipeline.ErrAlreadyDone
	}
	d := b.Delivery
	d.Status = model.DeliverySent
	if d.SentCount == 0 {
		d.Status = model.DeliveryFailed
		if b.lastErr != nil {
			d.ErrorMessage = b.lastErr.Error()
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()
	if err := s.store.CompleteDelivery(ctx, d); err != nil {
		return err
	}

	if d.Status == model.DeliveryFailed {
		if b.lastErr == nil {
			return eris.Errorf("all %d sends failed", d.Recipients)
		}
		err := eris.Wrapf(b.lastErr, "all %d sends failed", d.Recipients)
		if errors.Is(b.lastErr, resilience.ErrCircuitOpen) {
			return resilience.NewTransientError(err, 0)
		}
		return err
	}
	zap.L().Info("content published",
		zap.String("content_id", d.ContentID),
		zap.Int("sent", d.SentCount),
		zap.Int("failed", d.FailedCount),
	)
	return nil
}

// RecordFailure marks the filing failed for permanent errors. A missing
// audience is not a defect of the content.
func (s *PublishStage) RecordFailure(ctx context.Context, c model.Content, cause error) error {
	if errors.Is(cause, ErrNoSubscribers) {
		return nil
	}
	return markFailed(ctx, s.store, NamePublish, c.FilingID, cause)
}
