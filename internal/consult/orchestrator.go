// Package consult runs one consultation: the primary advisor first, then
// the secondary advisors it names (sequentially), then a synthesis call,
// streaming progress events as it goes.
package consult

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/gate"
	"github.com/agentoven/boardroom/internal/integrate"
	"github.com/agentoven/boardroom/internal/ledger"
	"github.com/agentoven/boardroom/internal/retry"
	"github.com/agentoven/boardroom/internal/validate"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EmitFunc delivers one event to the consumer. A non-nil error means the
// consumer is gone; the orchestrator writes nothing further.
type EmitFunc func(models.Event) error

// ErrStreamClosed is returned by Run when the consumer stopped accepting events.
var ErrStreamClosed = errors.New("event stream closed")

// RequestError is a missing or invalid inbound parameter.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// Options tunes call parameters and pacing.
type Options struct {
	Retry                     retry.Policy
	CallTimeout               time.Duration
	SecondaryPause            time.Duration
	PartialOnSynthesisFailure bool
	Temperature               float64
	MaxTokens                 int
}

// Orchestrator is shared by all consultations. Per-consultation state
// lives in a session created by Run.
type Orchestrator struct {
	client   completion.Client
	gate     *gate.Gate
	registry *advisors.Registry
	opts     Options
	tracer   trace.Tracer

	now   func() time.Time
	newID func() string
}

// New creates an orchestrator.
func New(client completion.Client, g *gate.Gate, registry *advisors.Registry, opts Options) *Orchestrator {
	return &Orchestrator{
		client:   client,
		gate:     g,
		registry: registry,
		opts:     opts,
		tracer:   otel.Tracer("boardroom/consult"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Registry returns the advisor dispatch table.
func (o *Orchestrator) Registry() *advisors.Registry { return o.registry }

type session struct {
	id      string
	query   string
	company *models.CompanyContext

	statuses      map[models.Role]models.AdvisorStatus
	primary       *models.AdvisorResponse
	consultations []models.Consultation
	ledger        *ledger.Ledger

	emit EmitFunc
}

func (s *session) snapshot() map[models.Role]models.AdvisorStatus {
	out := make(map[models.Role]models.AdvisorStatus, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

func (s *session) set(role models.Role, state models.AdvisorState, at time.Time, msg string) {
	st, ok := s.statuses[role]
	if !ok {
		st = models.NewAdvisorStatus(role, models.StateUninitialized)
	}
	st.Transition(state, at)
	if state == models.StateErrored {
		st.ErrorMessage = msg
	}
	s.statuses[role] = st
}

// activate marks role active and every other non-terminal role pending.
func (s *session) activate(role models.Role, at time.Time) {
	for r, st := range s.statuses {
		if r != role && st.State() == models.StateActive {
			st.Transition(models.StatePending, at)
			s.statuses[r] = st
		}
	}
	s.set(role, models.StateActive, at, "")
}

func (s *session) send(ev models.Event) error {
	ev.ConsultationID = s.id
	if err := s.emit(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}
	return nil
}

func (s *session) sendStatus() error {
	return s.send(models.Event{Type: models.EventStatus, ExecutiveStatuses: s.snapshot()})
}

func (s *session) partial() *models.PartialResult {
	return &models.PartialResult{
		CEOResponse:       s.primary,
		Consultations:     append([]models.Consultation{}, s.consultations...),
		ExecutiveStatuses: s.snapshot(),
		CostReport:        s.ledger.Drain(),
	}
}

// Run executes one consultation, emitting events in protocol order. Exactly
// one terminal event (final or error) is emitted unless the consumer goes
// away first. The returned error is nil only after a final event.
func (o *Orchestrator) Run(ctx context.Context, req models.ConsultRequest, emit EmitFunc) error {
	s := &session{
		id:       o.newID(),
		query:    strings.TrimSpace(req.Query),
		company:  req.CompanyContext,
		statuses: make(map[models.Role]models.AdvisorStatus),
		ledger:   ledger.New(),
		emit:     emit,
	}

	ctx, span := o.tracer.Start(ctx, "consultation",
		trace.WithAttributes(attribute.String("consultation.id", s.id)))
	defer span.End()

	err := o.run(ctx, s, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context, s *session, req models.ConsultRequest) error {
	logger := log.With().Str("consultation", s.id).Logger()

	extra, err := parseRequest(s.query, req.Executive)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected consultation request")
		return o.fail(s, err, nil)
	}
	logger.Info().Str("query", truncate(s.query, 80)).Msg("🏛️ Consultation started")

	// 1. Primary advisor active.
	primaryRole := models.PrimaryRole
	s.set(primaryRole, models.StateActive, o.now(), "")
	if err := s.sendStatus(); err != nil {
		return err
	}

	// 2. Primary call. Any failure is fatal.
	primary, err := o.consultAdvisor(ctx, s, primaryRole)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error().Err(err).Msg("Primary advisor failed")
		return o.fail(s, err, nil)
	}
	s.primary = primary
	s.set(primaryRole, models.StateResponded, o.now(), "")
	if err := s.send(models.Event{
		Type:              models.EventResponse,
		Executive:         primaryRole,
		Response:          primary,
		ExecutiveStatuses: s.snapshot(),
	}); err != nil {
		return err
	}

	// 3. Data-dependent fan-out.
	secondaries := requestedRoles(primary.ExecutivesToConsult, extra)
	if len(secondaries) > 0 {
		for _, role := range secondaries {
			s.set(role, models.StatePending, o.now(), "")
		}
		if err := s.sendStatus(); err != nil {
			return err
		}
	}

	// 4. Secondary advisors, one at a time. Failures are recorded, not fatal.
	for i, role := range secondaries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && o.opts.SecondaryPause > 0 {
			if err := sleep(ctx, o.opts.SecondaryPause); err != nil {
				return err
			}
		}

		s.activate(role, o.now())
		if err := s.sendStatus(); err != nil {
			return err
		}

		resp, err := o.consultAdvisor(ctx, s, role)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			msg := advisorErrorMessage(err)
			logger.Warn().Err(err).Str("role", string(role)).Msg("Secondary advisor failed, continuing")
			s.set(role, models.StateErrored, o.now(), msg)
			if err := s.sendStatus(); err != nil {
				return err
			}
			continue
		}

		s.set(role, models.StateResponded, o.now(), "")
		s.consultations = append(s.consultations, models.Consultation{
			Title:     role,
			Response:  resp,
			Timestamp: o.now().UTC(),
		})
		if err := s.send(models.Event{
			Type:              models.EventResponse,
			Executive:         role,
			Response:          resp,
			ExecutiveStatuses: s.snapshot(),
		}); err != nil {
			return err
		}
	}

	// 5. Synthesis on the primary advisor.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.activate(primaryRole, o.now())
	if err := s.sendStatus(); err != nil {
		return err
	}

	synth, err := o.synthesize(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error().Err(err).Msg("Synthesis failed")
		s.set(primaryRole, models.StateErrored, o.now(), "Synthesis failed")
		var partial *models.PartialResult
		if o.opts.PartialOnSynthesisFailure {
			partial = s.partial()
		}
		return o.fail(s, fmt.Errorf("synthesis: %w", err), partial)
	}

	integrated := integrate.Integrate(s.primary, s.consultations, o.now().UTC())
	integrate.ApplySynthesis(integrated, synth)
	if err := validate.Validate(integrated); err != nil {
		logger.Error().Err(err).Msg("Integrated response failed validation")
		s.set(primaryRole, models.StateErrored, o.now(), "Validation failed")
		var partial *models.PartialResult
		if o.opts.PartialOnSynthesisFailure {
			partial = s.partial()
		}
		return o.fail(s, err, partial)
	}
	warnings := validate.FindWarnings(integrated)
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	s.set(primaryRole, models.StateResponded, o.now(), "")
	if err := s.sendStatus(); err != nil {
		return err
	}

	// 6. Terminal event.
	report := s.ledger.Drain()
	logger.Info().
		Int64("tokens", report.TotalTokens).
		Float64("cost", report.TotalCost).
		Int("consultations", len(s.consultations)).
		Float64("confidence", integrated.OverallConfidence).
		Msg("✅ Consultation complete")

	return s.send(models.Event{
		Type:              models.EventFinal,
		CEOResponse:       s.primary,
		Consultations:     s.consultations,
		ExecutiveStatuses: s.snapshot(),
		Synthesis:         integrated,
		CostReport:        report,
		Warnings:          warnings,
	})
}

// fail emits the single terminal error event and returns err.
func (o *Orchestrator) fail(s *session, err error, partial *models.PartialResult) error {
	ev := models.Event{
		Type:    models.EventError,
		Message: UserMessage(err),
		Partial: partial,
	}
	var ve *validate.ValidationError
	if errors.As(err, &ve) {
		ev.Violations = ve.Violations
	}
	if sendErr := s.send(ev); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

// consultAdvisor dispatches one role through the registry.
func (o *Orchestrator) consultAdvisor(ctx context.Context, s *session, role models.Role) (*models.AdvisorResponse, error) {
	adv, err := o.registry.Lookup(role)
	if err != nil {
		return nil, err
	}

	req := &completion.Request{
		Model:       adv.Model,
		Messages:    adv.Prompt(s.query, s.company),
		Temperature: adv.Temperature,
		MaxTokens:   adv.MaxTokens,
	}
	if req.Temperature == 0 {
		req.Temperature = o.opts.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = o.opts.MaxTokens
	}

	text, usage, err := o.call(ctx, s, role, req)
	if err != nil {
		return nil, err
	}
	parsed, err := adv.Parse(text)
	if err != nil {
		return nil, err
	}
	parsed.Usage = usage
	return parsed, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, s *session) (*models.Synthesis, error) {
	req := &completion.Request{
		Messages:    advisors.SynthesisPrompt(s.query, s.company, s.primary, s.consultations),
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	}
	if adv, err := o.registry.Lookup(models.PrimaryRole); err == nil {
		req.Model = adv.Model
	}
	text, _, err := o.call(ctx, s, models.PrimaryRole, req)
	if err != nil {
		return nil, err
	}
	return advisors.ParseSynthesis(text)
}

// call runs one completion through the gate and retry policy and charges
// the session ledger. Each attempt is admitted separately. Once admitted,
// the attempt runs on a context detached from the caller so a client
// disconnect never aborts a call mid-flight; CallTimeout bounds it instead.
func (o *Orchestrator) call(ctx context.Context, s *session, role models.Role, req *completion.Request) (string, models.Usage, error) {
	ctx, span := o.tracer.Start(ctx, "advisor.call", trace.WithAttributes(
		attribute.String("advisor.role", string(role)),
		attribute.String("completion.model", req.Model),
	))
	defer span.End()

	attempts := 0
	resp, err := retry.Do(ctx, o.opts.Retry, func(ctx context.Context) (*completion.Response, error) {
		attempts++
		var resp *completion.Response
		err := o.gate.Do(ctx, func() error {
			callCtx := context.WithoutCancel(ctx)
			if o.opts.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(callCtx, o.opts.CallTimeout)
				defer cancel()
			}
			var err error
			resp, err = o.client.Complete(callCtx, req)
			return err
		})
		return resp, err
	})
	span.SetAttributes(attribute.Int("advisor.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", models.Usage{}, err
	}

	s.ledger.Record(models.UsageEvent{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Cost:             resp.Usage.EstimatedCost,
		Model:            resp.Model,
		Role:             role,
	})
	span.SetAttributes(attribute.Int64("completion.total_tokens", resp.Usage.TotalTokens))

	log.Debug().
		Str("consultation", s.id).
		Str("role", string(role)).
		Str("model", resp.Model).
		Int64("tokens", resp.Usage.TotalTokens).
		Float64("cost", resp.Usage.EstimatedCost).
		Int("attempts", attempts).
		Dur("latency", resp.Latency).
		Int("ledger_events", s.ledger.Len()).
		Int64("consultation_tokens", s.ledger.Snapshot().TotalTokens).
		Msg("Advisor call completed")

	return resp.Text, resp.Usage, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
