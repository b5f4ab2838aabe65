package consult

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/gate"
	"github.com/agentoven/boardroom/internal/retry"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ceoJSON = `{
  "summary": "Expand to Europe in stages",
  "keyTakeaways": ["Growth supports expansion"],
  "executivesToConsult": ["Chief Marketing Officer"],
  "strategicDirection": ["UK first"],
  "risks": ["GDPR"],
  "actionPlan": {"immediate": ["research"], "shortTerm": ["hire"], "longTerm": ["scale"]},
  "confidence": 0.8
}`

const cmoJSON = `{
  "summary": "Localize positioning",
  "keyTakeaways": ["Awareness is low"],
  "risks": ["Local competitors"],
  "metrics": {"kpis": ["CAC"], "targets": ["500 trials"], "timeline": "6 months"},
  "confidence": 0.7
}`

const synthesisJSON = `{
  "summary": "Staged UK-led entry",
  "keyTakeaways": ["UK first"],
  "executiveAlignment": {"agreements": ["localize"], "differences": [], "synergies": []},
  "integratedStrategy": ["Staged entry"],
  "implementationPlan": {"immediate": ["research"], "shortTerm": [], "longTerm": []},
  "confidence": 0.85
}`

type reply struct {
	text string
	err  error
	// block waits for the call context to end.
	block bool
}

// fakeClient answers by advisor: the abbreviation in the system prompt, or
// "synthesis". Replies are consumed in order; the last one repeats.
type fakeClient struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []string
}

var abbrevRe = regexp.MustCompile(`\(([A-Z]{3,4})\)`)

func keyFor(req *completion.Request) string {
	for _, m := range req.Messages {
		if m.Role != "system" {
			continue
		}
		if strings.Contains(m.Content, "synthesis") {
			return "synthesis"
		}
		if sub := abbrevRe.FindStringSubmatch(m.Content); sub != nil {
			return sub[1]
		}
	}
	return ""
}

func (f *fakeClient) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	key := keyFor(req)
	f.mu.Lock()
	f.calls = append(f.calls, key)
	queue := f.replies[key]
	var r reply
	switch len(queue) {
	case 0:
		r = reply{text: `{"summary": "generic", "keyTakeaways": ["g"], "confidence": 0.7}`}
	case 1:
		r = queue[0]
	default:
		r = queue[0]
		f.replies[key] = queue[1:]
	}
	f.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, &completion.Error{Kind: completion.KindTimeout, Provider: "fake", Err: ctx.Err()}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &completion.Response{
		Text:  r.text,
		Model: "gpt-4",
		Usage: models.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, EstimatedCost: 0.006},
	}, nil
}

func (f *fakeClient) callsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func newFake(replies map[string][]reply) *fakeClient {
	return &fakeClient{replies: replies}
}

func europeReplies() map[string][]reply {
	return map[string][]reply{
		"CEO":       {{text: ceoJSON}},
		"CMO":       {{text: cmoJSON}},
		"synthesis": {{text: synthesisJSON}},
	}
}

func newOrchestrator(client completion.Client) *Orchestrator {
	return New(client, gate.New(6000, 3), advisors.NewDefaultRegistry(), Options{
		Retry:                     retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2},
		CallTimeout:               time.Second,
		PartialOnSynthesisFailure: true,
		Temperature:               0.7,
		MaxTokens:                 1000,
	})
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) emit(ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []models.EventType {
	out := make([]models.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) count(t models.EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) last() models.Event {
	return r.events[len(r.events)-1]
}

func europeRequest() models.ConsultRequest {
	return models.ConsultRequest{
		Query:          "Should we expand to Europe?",
		CompanyContext: &models.CompanyContext{CompanyName: "Acme", MissionStatement: "Ship widgets"},
	}
}

func TestRun_ExpandToEurope(t *testing.T) {
	client := newFake(europeReplies())
	rec := &recorder{}

	err := newOrchestrator(client).Run(context.Background(), europeRequest(), rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []models.EventType{
		models.EventStatus,   // CEO active
		models.EventResponse, // CEO
		models.EventStatus,   // CMO pending
		models.EventStatus,   // CMO active
		models.EventResponse, // CMO
		models.EventStatus,   // CEO active for synthesis
		models.EventStatus,   // CEO responded
		models.EventFinal,
	}, rec.types())
	assert.Equal(t, 1, rec.count(models.EventFinal))

	final := rec.last()
	require.NotNil(t, final.Synthesis)
	assert.Equal(t, []models.Role{models.RoleCEO, models.RoleCMO}, final.Synthesis.ContributingAgents)
	assert.InDelta(t, 0.85, final.Synthesis.OverallConfidence, 1e-9)
	require.NotNil(t, final.CostReport)
	assert.Greater(t, final.CostReport.TotalTokens, int64(0))
	assert.Equal(t, int64(450), final.CostReport.TotalTokens)
	assert.Equal(t, 2, final.CostReport.ExecutiveBreakdown[models.RoleCEO].Calls)
	assert.Equal(t, 1, final.CostReport.ExecutiveBreakdown[models.RoleCMO].Calls)
	require.Len(t, final.Consultations, 1)
	assert.Equal(t, models.RoleCMO, final.Consultations[0].Title)
	assert.Equal(t, "Expand to Europe in stages", final.CEOResponse.Summary)
	assert.Equal(t, int64(150), final.CEOResponse.Usage.TotalTokens)

	for _, ev := range rec.events {
		assert.Equal(t, final.ConsultationID, ev.ConsultationID)
	}
	assert.NotEmpty(t, final.ConsultationID)
}

func TestRun_StreamReconstructsFinalStatuses(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, newOrchestrator(newFake(europeReplies())).Run(context.Background(), europeRequest(), rec.emit))

	rebuilt := map[models.Role]models.AdvisorStatus{}
	for _, ev := range rec.events[:len(rec.events)-1] {
		for role, st := range ev.ExecutiveStatuses {
			rebuilt[role] = st
		}
	}
	assert.Equal(t, rec.last().ExecutiveStatuses, rebuilt)

	for _, st := range rec.last().ExecutiveStatuses {
		assert.Equal(t, models.StateResponded, st.State())
		assert.NotNil(t, st.Timestamp)
	}
}

func TestRun_ExactlyOneStateFlagPerStatus(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, newOrchestrator(newFake(europeReplies())).Run(context.Background(), europeRequest(), rec.emit))

	for _, ev := range rec.events {
		for role, st := range ev.ExecutiveStatuses {
			n := 0
			for _, b := range []bool{st.IsPending, st.IsActive, st.HasResponded, st.Error} {
				if b {
					n++
				}
			}
			assert.Equal(t, 1, n, "%s in %s event", role, ev.Type)
		}
	}
}

func TestRun_NotImplementedSecondaryContinues(t *testing.T) {
	replies := europeReplies()
	replies["CEO"] = []reply{{text: strings.Replace(ceoJSON, "Chief Marketing Officer", "Chief Human Resources Officer", 1)}}
	client := newFake(replies)
	rec := &recorder{}

	err := newOrchestrator(client).Run(context.Background(), europeRequest(), rec.emit)
	require.NoError(t, err)

	final := rec.last()
	require.Equal(t, models.EventFinal, final.Type)
	st := final.ExecutiveStatuses[models.RoleCHRO]
	assert.True(t, st.Error)
	assert.Equal(t, "Implementation not available", st.ErrorMessage)
	assert.Equal(t, []models.Role{models.RoleCEO}, final.Synthesis.ContributingAgents)
	assert.Empty(t, final.Consultations)
	assert.Equal(t, 0, client.callsFor("CHRO"))
	assert.Equal(t, 0, rec.count(models.EventError))
}

func TestRun_PrimaryQuotaExhausted(t *testing.T) {
	client := newFake(map[string][]reply{
		"CEO": {{err: &completion.Error{Kind: completion.KindQuotaExhausted, Provider: "fake", StatusCode: 429, Message: "insufficient_quota"}}},
	})
	rec := &recorder{}

	err := newOrchestrator(client).Run(context.Background(), europeRequest(), rec.emit)
	require.Error(t, err)
	assert.True(t, completion.IsQuotaExhausted(err))

	assert.Equal(t, 1, rec.count(models.EventError))
	assert.Equal(t, models.EventError, rec.last().Type)
	assert.Zero(t, rec.count(models.EventResponse))
	assert.Zero(t, rec.count(models.EventFinal))
	assert.Contains(t, rec.last().Message, "billing")
	assert.Equal(t, 1, client.callsFor("CEO"))
	assert.Equal(t, 0, client.callsFor("synthesis"))
}

func TestRun_EmptyQueryIsRequestError(t *testing.T) {
	client := newFake(europeReplies())
	rec := &recorder{}

	err := newOrchestrator(client).Run(context.Background(), models.ConsultRequest{Query: "   "}, rec.emit)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "query", reqErr.Field)
	assert.Equal(t, []models.EventType{models.EventError}, rec.types())
	assert.Empty(t, client.calls)
}

func TestRun_UnknownExecutiveIsRequestError(t *testing.T) {
	rec := &recorder{}
	err := newOrchestrator(newFake(europeReplies())).Run(context.Background(),
		models.ConsultRequest{Query: "q", Executive: "Chief Vibes Officer"}, rec.emit)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, []models.EventType{models.EventError}, rec.types())
}

func TestRun_RequestedExecutiveIsConsulted(t *testing.T) {
	client := newFake(europeReplies())
	rec := &recorder{}
	req := europeRequest()
	req.Executive = "CFO"

	require.NoError(t, newOrchestrator(client).Run(context.Background(), req, rec.emit))

	final := rec.last()
	assert.Equal(t, []models.Role{models.RoleCEO, models.RoleCMO, models.RoleCFO}, final.Synthesis.ContributingAgents)
	assert.Equal(t, 1, client.callsFor("CFO"))
}

func TestRun_MalformedSecondaryIsIsolated(t *testing.T) {
	replies := europeReplies()
	replies["CMO"] = []reply{{text: "I would rather not answer in JSON."}}
	rec := &recorder{}

	require.NoError(t, newOrchestrator(newFake(replies)).Run(context.Background(), europeRequest(), rec.emit))

	st := rec.last().ExecutiveStatuses[models.RoleCMO]
	assert.True(t, st.Error)
	assert.True(t, strings.HasPrefix(st.ErrorMessage, "Consultation failed"))
	// Tokens were billed even though the response could not be parsed.
	assert.Equal(t, 1, rec.last().CostReport.ExecutiveBreakdown[models.RoleCMO].Calls)
}

func TestRun_TransientPrimaryFailureIsRetried(t *testing.T) {
	replies := europeReplies()
	replies["CEO"] = []reply{
		{err: &completion.Error{Kind: completion.KindRateLimited, Provider: "fake", StatusCode: 429}},
		{err: &completion.Error{Kind: completion.KindUnavailable, Provider: "fake", StatusCode: 503}},
		{text: ceoJSON},
	}
	client := newFake(replies)
	rec := &recorder{}

	require.NoError(t, newOrchestrator(client).Run(context.Background(), europeRequest(), rec.emit))
	assert.Equal(t, 3, client.callsFor("CEO"))
	assert.Equal(t, models.EventFinal, rec.last().Type)
	// Failed attempts are not billed.
	assert.Equal(t, 2, rec.last().CostReport.ExecutiveBreakdown[models.RoleCEO].Calls)
}

func TestRun_CallTimeoutIsRetriedThenFatal(t *testing.T) {
	client := newFake(map[string][]reply{"CEO": {{block: true}}})
	o := newOrchestrator(client)
	o.opts.CallTimeout = 10 * time.Millisecond
	rec := &recorder{}

	err := o.Run(context.Background(), europeRequest(), rec.emit)
	require.Error(t, err)
	assert.Equal(t, completion.KindTimeout, completion.KindOf(err))
	assert.Equal(t, 3, client.callsFor("CEO"))
	assert.Equal(t, models.EventError, rec.last().Type)
}

func TestRun_SynthesisFailureCarriesPartial(t *testing.T) {
	replies := europeReplies()
	replies["synthesis"] = []reply{{err: &completion.Error{Kind: completion.KindUpstream, Provider: "fake", StatusCode: 500}}}
	rec := &recorder{}

	err := newOrchestrator(newFake(replies)).Run(context.Background(), europeRequest(), rec.emit)
	require.Error(t, err)

	last := rec.last()
	assert.Equal(t, models.EventError, last.Type)
	assert.Zero(t, rec.count(models.EventFinal))
	require.NotNil(t, last.Partial)
	assert.Equal(t, "Expand to Europe in stages", last.Partial.CEOResponse.Summary)
	require.Len(t, last.Partial.Consultations, 1)
	assert.Equal(t, models.RoleCMO, last.Partial.Consultations[0].Title)
	assert.True(t, last.Partial.ExecutiveStatuses[models.RoleCEO].Error)
	assert.Equal(t, int64(300), last.Partial.CostReport.TotalTokens)
}

func TestRun_SynthesisFailureWithoutPartial(t *testing.T) {
	replies := europeReplies()
	replies["synthesis"] = []reply{{text: "not json"}}
	o := newOrchestrator(newFake(replies))
	o.opts.PartialOnSynthesisFailure = false
	rec := &recorder{}

	require.Error(t, o.Run(context.Background(), europeRequest(), rec.emit))
	assert.Nil(t, rec.last().Partial)
	assert.Equal(t, 1, rec.count(models.EventError))
}

func TestRun_ValidationFailureListsViolations(t *testing.T) {
	replies := europeReplies()
	replies["synthesis"] = []reply{{text: strings.Replace(synthesisJSON, "0.85", "0.2", 1)}}
	rec := &recorder{}

	err := newOrchestrator(newFake(replies)).Run(context.Background(), europeRequest(), rec.emit)
	require.Error(t, err)

	last := rec.last()
	assert.Equal(t, models.EventError, last.Type)
	assert.Contains(t, last.Violations, "Overall confidence is too low for a reliable response")
	assert.Contains(t, last.Message, "confidence")
}

func TestRun_StopsWhenConsumerGoesAway(t *testing.T) {
	client := newFake(europeReplies())
	n := 0
	emit := func(models.Event) error {
		n++
		if n == 2 {
			return errors.New("broken pipe")
		}
		return nil
	}

	err := newOrchestrator(client).Run(context.Background(), europeRequest(), emit)
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, client.callsFor("CMO"))
}

func TestRun_CancelledContextStopsBeforeNextStep(t *testing.T) {
	client := newFake(europeReplies())
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	emit := func(ev models.Event) error {
		if ev.Type == models.EventResponse {
			cancel()
		}
		return rec.emit(ev)
	}

	err := newOrchestrator(client).Run(ctx, europeRequest(), emit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.callsFor("CEO"))
	assert.Equal(t, 0, client.callsFor("CMO"))
	assert.Zero(t, rec.count(models.EventFinal))
	assert.Zero(t, rec.count(models.EventError))
}

func TestRun_ConcurrentConsultationsKeepSeparateUsage(t *testing.T) {
	o := newOrchestrator(newFake(europeReplies()))

	var wg sync.WaitGroup
	recs := make([]*recorder, 4)
	for i := range recs {
		recs[i] = &recorder{}
		wg.Add(1)
		go func(r *recorder) {
			defer wg.Done()
			assert.NoError(t, o.Run(context.Background(), europeRequest(), r.emit))
		}(recs[i])
	}
	wg.Wait()

	for _, r := range recs {
		assert.Equal(t, int64(450), r.last().CostReport.TotalTokens)
	}
}

func TestRequestedRoles(t *testing.T) {
	got := requestedRoles([]string{"CMO", "Chief Marketing Officer", "Chief Executive Officer", "Chief Vibes Officer", "cfo"}, models.RoleCMO)
	assert.Equal(t, []models.Role{models.RoleCMO, models.Role("Chief Vibes Officer"), models.RoleCFO}, got)

	assert.Equal(t, []models.Role{models.RoleCTO}, requestedRoles(nil, models.RoleCTO))
	assert.Empty(t, requestedRoles(nil, ""))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 80))

	// "é" is two bytes; cutting at 2 would split it.
	got := truncate("aéb", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate(strings.Repeat("日本", 50), 80)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 83)
}
