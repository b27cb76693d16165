package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openlgu/badyet/internal/jurisdiction"
	"github.com/openlgu/badyet/internal/lineitem"
	"github.com/openlgu/badyet/internal/pipeline"
	"github.com/openlgu/badyet/internal/scope"
)

// PipelineClient is the engine's view of the retrieval pipeline service.
type PipelineClient interface {
	EmbedQuery(ctx context.Context, text, model string) (*pipeline.EmbedResult, error)
	ChatAnswer(ctx context.Context, req pipeline.AnswerRequest) (*pipeline.ChatAnswer, error)
}

// LineItemReader is the engine's view of the structured line-item store.
type LineItemReader interface {
	GetByID(ctx context.Context, id string) (*lineitem.LineItem, error)
	TotalInvestment(ctx context.Context, fiscalYear int, targets []scope.Target) (float64, int, error)
	CountByJurisdiction(ctx context.Context, jurisdictionID string) (int, error)
}

// Config tunes the engine's retrieval behavior.
type Config struct {
	EmbedModel    string
	TopK          int
	MinSimilarity float64
	// NearTieWindow groups candidates whose score is within this margin of
	// the best hit; two or more in the group trigger a clarification.
	NearTieWindow float64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = pipeline.DefaultTopK
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = pipeline.DefaultMinSimilarity
	}
	if c.NearTieWindow <= 0 {
		c.NearTieWindow = 0.08
	}
	return c
}

// Engine is the query-understanding and clarification core. It is stateless
// between invocations except for what it reads from and writes to the chat
// store.
type Engine struct {
	store    *Store
	resolver *scope.Resolver
	dir      jurisdiction.Directory
	pipe     PipelineClient
	searcher lineitem.Searcher
	items    LineItemReader
	cfg      Config
	logger   *slog.Logger
}

// NewEngine wires the engine. A nil logger defaults to slog.Default.
func NewEngine(store *Store, resolver *scope.Resolver, dir jurisdiction.Directory, pipe PipelineClient, searcher lineitem.Searcher, items LineItemReader, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		dir:      dir,
		pipe:     pipe,
		searcher: searcher,
		items:    items,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// HandleTurn processes one conversational turn and returns the engine
// response. The turn and the response are both appended to the session's
// message history.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, content string) (*EngineResponse, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	if _, err := e.store.AppendMessage(ctx, sessionID, "user", content, nil); err != nil {
		return nil, err
	}

	pending, err := e.store.GetPendingClarification(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var resp *EngineResponse
	if pending != nil {
		resp, err = e.handlePendingTurn(ctx, sess, pending, content)
	} else {
		resp, err = e.processQuestion(ctx, sess, content, nil)
	}
	if err != nil {
		return nil, err
	}

	if _, err := e.store.AppendMessage(ctx, sessionID, "assistant", resp.Content, &resp.RetrievalMeta); err != nil {
		return nil, err
	}
	return resp, nil
}

// handlePendingTurn runs the awaiting_selection transitions: selection
// parsers first, then the fresh-question heuristic, then the reminder.
func (e *Engine) handlePendingTurn(ctx context.Context, sess *Session, pending *PendingClarification, content string) (*EngineResponse, error) {
	sel := ParseSelection(content, pending.Options)

	if sel == nil {
		if looksLikeFreshQuestion(content) {
			// The pending clarification is implicitly abandoned by a new
			// question.
			if err := e.store.SetPendingClarification(ctx, sess.ID, nil); err != nil {
				return nil, err
			}
			return e.processQuestion(ctx, sess, content, nil)
		}
		// Opaque short reply: re-issue the prompt verbatim, keep the state,
		// spend no retrieval round-trip.
		e.logTurn("clarification_reminder", IntentLineItem, RouteRowSQL, false, "")
		return Clarify(pending.Context.Prompt, pending.Options, RouteRowSQL, ""), nil
	}

	if sel.Cancelled {
		if err := e.store.SetPendingClarification(ctx, sess.ID, nil); err != nil {
			return nil, err
		}
		e.logTurn("clarification_cancelled", IntentLineItem, RouteNone, true, "")
		return Answer("Okay. Please restate your question, or give me the AIP ref code you're after.", RouteNone, ""), nil
	}

	switch pending.Kind {
	case KindLineItemDisambiguation:
		return e.resolveLineItemSelection(ctx, sess, sel.Option)
	case KindCityAIPMissingFallback:
		return e.resolveFallbackSelection(ctx, sess, pending, sel.Option)
	default:
		return nil, fmt.Errorf("unknown clarification kind %q", pending.Kind)
	}
}

// resolveLineItemSelection turns a numeric or ref-code choice into the full
// line-item answer. The candidate set was fixed in the prior turn, so no
// embedding or similarity search runs here.
func (e *Engine) resolveLineItemSelection(ctx context.Context, sess *Session, opt *ClarificationOption) (*EngineResponse, error) {
	li, err := e.items.GetByID(ctx, opt.LineItemID)
	if err != nil {
		e.logTurn("refusal", IntentLineItem, RouteRowSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "I couldn't read that line item from the records. Please try again.", RouteRowSQL), nil
	}
	if li == nil {
		e.logTurn("refusal", IntentLineItem, RouteRowSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "That line item is no longer in the published records.", RouteRowSQL), nil
	}

	if err := e.store.SetPendingClarification(ctx, sess.ID, nil); err != nil {
		return nil, err
	}
	e.logTurn("clarification_resolved", IntentLineItem, RouteRowSQL, true, "")
	return Answer(formatLineItemAnswer(li), RouteRowSQL, ""), nil
}

// resolveFallbackSelection handles the use-barangays-in-city / cancel choice.
func (e *Engine) resolveFallbackSelection(ctx context.Context, sess *Session, pending *PendingClarification, opt *ClarificationOption) (*EngineResponse, error) {
	if err := e.store.SetPendingClarification(ctx, sess.ID, nil); err != nil {
		return nil, err
	}

	if opt.Action != ActionUseBarangays {
		e.logTurn("clarification_cancelled", IntentLineItem, RouteNone, true, "")
		return Answer("Okay. Please restate your question, or give me the AIP ref code you're after.", RouteNone, ""), nil
	}

	children, err := e.dir.PublishedChildren(ctx, pending.Context.CityID)
	if err != nil {
		e.logTurn("refusal", IntentLineItem, RouteNone, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "I couldn't list the barangays of "+pending.Context.CityName+". Please try again.", RouteNone), nil
	}

	targets := make([]scope.Target, len(children))
	for i, c := range children {
		targets[i] = scope.Target{Type: c.Type, ID: c.ID, Name: c.Name}
	}
	override := &scope.RetrievalScope{Mode: scope.ModeNamedScopes, Targets: targets}
	e.logTurn("clarification_resolved", IntentLineItem, RouteRowSQL, false, "")
	return e.processQuestion(ctx, sess, pending.Context.Question, override)
}

// processQuestion is the no_pending path. scopeOverride, when non-nil, skips
// resolution (used by the city fallback re-run).
func (e *Engine) processQuestion(ctx context.Context, sess *Session, question string, scopeOverride *scope.RetrievalScope) (*EngineResponse, error) {
	intent := ClassifyIntent(question)

	// Document-limitation and unsupported intents refuse before any scope
	// resolution: their message is more specific than anything the resolver
	// could add, and the round-trip would be wasted.
	if intent == IntentContractor {
		e.logTurn("refusal", intent, RouteNone, false, RefusalDocumentLimitation)
		return Refuse(RefusalDocumentLimitation,
			"Published AIP documents list programs and amounts, not contractors or bidding results. Procurement records are kept by the BAC secretariat, not in this dataset.",
			RouteNone), nil
	}
	if intent == IntentDataEdit {
		e.logTurn("refusal", intent, RouteNone, false, RefusalUnsupported)
		return Refuse(RefusalUnsupported,
			"I can only answer questions about published budget data; I can't change any records.",
			RouteNone), nil
	}

	retScope := scopeOverride
	mode := scope.ModeNamedScopes
	if retScope == nil {
		res, err := e.resolver.Resolve(ctx, question, scope.ActorContext{BarangayID: sess.BarangayID})
		if err != nil {
			e.logTurn("refusal", intent, RouteNone, false, RefusalRetrievalFailure)
			return Refuse(RefusalRetrievalFailure, "I couldn't check the jurisdiction directory. Please try again.", RouteNone), nil
		}
		if res.Mode == scope.ModeAmbiguous {
			e.logTurn("refusal", intent, RouteNone, false, RefusalAmbiguousScope)
			return Refuse(RefusalAmbiguousScope, res.ClarificationMessage, RouteNone), nil
		}
		retScope = res.RetrievalScope
		mode = res.Mode
	}

	result, err := RouteTotals(intent,
		func() (*EngineResponse, error) { return e.resolveTotals(ctx, question, retScope, mode) },
		func() (*EngineResponse, error) { return e.resolveNormal(ctx, sess, intent, question, retScope, mode) },
	)
	if err != nil {
		return nil, err
	}
	return result.Response, nil
}

// resolveTotals answers the fixed total-investment intent from structured
// aggregates, bypassing the pipeline.
func (e *Engine) resolveTotals(ctx context.Context, question string, retScope *scope.RetrievalScope, mode scope.Mode) (*EngineResponse, error) {
	fiscalYear := ExtractFiscalYear(question)
	if fiscalYear == 0 {
		e.logTurn("refusal", IntentTotalInvestment, RouteTotalsSQL, false, RefusalMissingParameter)
		return Refuse(RefusalMissingParameter,
			"Which fiscal year's total investment program do you mean? Please include the year, for example \"total investment program for 2024\".",
			RouteTotalsSQL), nil
	}

	var targets []scope.Target
	if retScope != nil {
		targets = retScope.Targets
	}
	total, count, err := e.items.TotalInvestment(ctx, fiscalYear, targets)
	if err != nil {
		e.logTurn("refusal", IntentTotalInvestment, RouteTotalsSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "I couldn't compute the total from the published records. Please try again.", RouteTotalsSQL), nil
	}

	content := fmt.Sprintf("The total Annual Investment Program for FY %d %s is %s across %d line items.",
		fiscalYear, scopeLabel(targets), lineitem.FormatPeso(total), count)
	e.logTurn("answer", IntentTotalInvestment, RouteTotalsSQL, true, "")
	return Answer(content, RouteTotalsSQL, mode), nil
}

func (e *Engine) resolveNormal(ctx context.Context, sess *Session, intent Intent, question string, retScope *scope.RetrievalScope, mode scope.Mode) (*EngineResponse, error) {
	if intent == IntentLineItem {
		return e.resolveLineItem(ctx, sess, question, retScope, mode)
	}
	return e.resolveGeneral(ctx, intent, question, retScope, mode)
}

// resolveLineItem embeds the question once, runs the structured similarity
// search, and either answers directly, asks for disambiguation, or falls
// back to general retrieval.
func (e *Engine) resolveLineItem(ctx context.Context, sess *Session, question string, retScope *scope.RetrievalScope, mode scope.Mode) (*EngineResponse, error) {
	emb, err := e.pipe.EmbedQuery(ctx, question, e.cfg.EmbedModel)
	if err != nil {
		e.logTurn("refusal", IntentLineItem, RouteRowSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "The retrieval service is unavailable right now. Please try again shortly.", RouteRowSQL), nil
	}

	filter := lineitem.SearchFilter{MinScore: e.cfg.MinSimilarity}
	if retScope != nil {
		for _, t := range retScope.Targets {
			filter.JurisdictionIDs = append(filter.JurisdictionIDs, t.ID)
		}
	}

	matches, err := e.searcher.SimilaritySearch(ctx, emb.Embedding, e.cfg.TopK, filter)
	if err != nil {
		e.logTurn("refusal", IntentLineItem, RouteRowSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "Searching the published line items failed. Please try again.", RouteRowSQL), nil
	}

	if len(matches) == 0 {
		if fb, err := e.maybeCityFallback(ctx, sess, question, retScope); fb != nil || err != nil {
			return fb, err
		}
		return e.resolveGeneral(ctx, IntentLineItem, question, retScope, mode)
	}

	group := nearTies(matches, e.cfg.NearTieWindow)
	if len(group) >= 2 {
		options := buildLineItemOptions(group)
		prompt := buildClarificationPrompt(options)
		pc := &PendingClarification{
			Kind:    KindLineItemDisambiguation,
			Options: options,
			Context: ClarificationContext{Question: question, Prompt: prompt},
		}
		if err := e.store.SetPendingClarification(ctx, sess.ID, pc); err != nil {
			return nil, err
		}
		e.logTurn("clarification_needed", IntentLineItem, RouteRowSQL, false, "")
		return Clarify(prompt, options, RouteRowSQL, mode), nil
	}

	li, err := e.items.GetByID(ctx, matches[0].LineItemID)
	if err != nil || li == nil {
		e.logTurn("refusal", IntentLineItem, RouteRowSQL, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "I couldn't read the matching line item from the records. Please try again.", RouteRowSQL), nil
	}
	e.logTurn("answer", IntentLineItem, RouteRowSQL, true, "")
	return Answer(formatLineItemAnswer(li), RouteRowSQL, mode), nil
}

// maybeCityFallback offers the barangay-rollup clarification when a single
// city scope has no published AIP rows but does have published barangays.
// Returns nil when the fallback does not apply.
func (e *Engine) maybeCityFallback(ctx context.Context, sess *Session, question string, retScope *scope.RetrievalScope) (*EngineResponse, error) {
	if retScope == nil || len(retScope.Targets) != 1 {
		return nil, nil
	}
	city := retScope.Targets[0]
	if city.Type != jurisdiction.TypeCity {
		return nil, nil
	}

	count, err := e.items.CountByJurisdiction(ctx, city.ID)
	if err != nil || count > 0 {
		return nil, nil
	}
	children, err := e.dir.PublishedChildren(ctx, city.ID)
	if err != nil || len(children) == 0 {
		return nil, nil
	}

	options := []ClarificationOption{
		{Number: 1, Label: fmt.Sprintf("Search the published barangay AIPs within %s (%d barangays)", city.Name, len(children)), Action: ActionUseBarangays},
		{Number: 2, Label: "Cancel and restate the question", Action: ActionCancel},
	}
	prompt := fmt.Sprintf("%s has not published a city-level AIP yet, but %d of its barangays have. Should I search those instead?\n\n%s",
		city.Name, len(children), renderOptions(options))
	pc := &PendingClarification{
		Kind:    KindCityAIPMissingFallback,
		Options: options,
		Context: ClarificationContext{Question: question, Prompt: prompt, CityID: city.ID, CityName: city.Name},
	}
	if err := e.store.SetPendingClarification(ctx, sess.ID, pc); err != nil {
		return nil, err
	}
	e.logTurn("clarification_needed", IntentLineItem, RouteRowSQL, false, "")
	return Clarify(prompt, options, RouteRowSQL, retScope.Mode), nil
}

// resolveGeneral delegates to the pipeline's retrieval + answer generation.
func (e *Engine) resolveGeneral(ctx context.Context, intent Intent, question string, retScope *scope.RetrievalScope, mode scope.Mode) (*EngineResponse, error) {
	ans, err := e.pipe.ChatAnswer(ctx, pipeline.AnswerRequest{
		Question:      question,
		Scope:         retScope,
		TopK:          e.cfg.TopK,
		MinSimilarity: e.cfg.MinSimilarity,
	})
	if err != nil {
		e.logTurn("refusal", intent, RoutePipeline, false, RefusalRetrievalFailure)
		return Refuse(RefusalRetrievalFailure, "The retrieval service is unavailable right now. Please try again shortly.", RoutePipeline), nil
	}
	if ans.Refused {
		e.logTurn("refusal", intent, RoutePipeline, false, RefusalDocumentLimitation)
		return Refuse(RefusalDocumentLimitation, ans.Answer, RoutePipeline), nil
	}

	resp := Answer(ans.Answer, RoutePipeline, mode)
	resp.RetrievalMeta.Citations = ans.Citations
	e.logTurn("answer", intent, RoutePipeline, true, "")
	return resp, nil
}

// logTurn emits the per-turn structured event. The refusal_reason key is
// attached only on refusals.
func (e *Engine) logTurn(event string, intent Intent, route string, answered bool, reason RefusalReason) {
	attrs := []any{
		slog.String("event", event),
		slog.String("intent", string(intent)),
		slog.String("route", route),
		slog.Bool("answered", answered),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("refusal_reason", string(reason)))
	}
	e.logger.Info("chat_turn", attrs...)
}

// nearTies returns the leading group of matches whose score is within window
// of the best hit. matches must be ordered by ascending distance.
func nearTies(matches []lineitem.Match, window float64) []lineitem.Match {
	if len(matches) == 0 {
		return nil
	}
	best := matches[0].Score
	group := matches[:1]
	for _, m := range matches[1:] {
		if best-m.Score > window {
			break
		}
		group = append(group, m)
	}
	return group
}

func buildLineItemOptions(matches []lineitem.Match) []ClarificationOption {
	options := make([]ClarificationOption, len(matches))
	for i, m := range matches {
		label := fmt.Sprintf("%s (Ref %s, FY %d, %s)", m.ProgramTitle, m.AIPRefCode, m.FiscalYear, m.BarangayName)
		if m.AmountTotal > 0 {
			label += " - " + lineitem.FormatPeso(m.AmountTotal)
		}
		options[i] = ClarificationOption{
			Number:     i + 1,
			Label:      label,
			LineItemID: m.LineItemID,
			AIPRefCode: m.AIPRefCode,
			FiscalYear: m.FiscalYear,
			Barangay:   m.BarangayName,
		}
		if m.AmountTotal > 0 {
			options[i].Total = lineitem.FormatPeso(m.AmountTotal)
		}
	}
	return options
}

func buildClarificationPrompt(options []ClarificationOption) string {
	return "I found several budget line items that could match your question:\n\n" +
		renderOptions(options) +
		"\nReply with the number or the ref code, or say \"none of the above\"."
}

func renderOptions(options []ClarificationOption) string {
	var b strings.Builder
	for _, o := range options {
		fmt.Fprintf(&b, "%d. %s\n", o.Number, o.Label)
	}
	return b.String()
}

func formatLineItemAnswer(li *lineitem.LineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (Ref %s, FY %d) in %s has a total allocation of %s.",
		li.ProgramTitle, li.AIPRefCode, li.FiscalYear, li.BarangayName, lineitem.FormatPeso(li.AmountTotal))
	if li.AmountPS > 0 || li.AmountMOOE > 0 || li.AmountCO > 0 {
		fmt.Fprintf(&b, " Breakdown: personal services %s, maintenance and other operating expenses %s, capital outlay %s.",
			lineitem.FormatPeso(li.AmountPS), lineitem.FormatPeso(li.AmountMOOE), lineitem.FormatPeso(li.AmountCO))
	}
	if li.ScheduleStart != "" && li.ScheduleEnd != "" {
		fmt.Fprintf(&b, " Implementation is scheduled from %s to %s.", li.ScheduleStart, li.ScheduleEnd)
	}
	return b.String()
}

func scopeLabel(targets []scope.Target) string {
	if len(targets) == 0 {
		return "across all published jurisdictions"
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	if len(names) <= 3 {
		return "in " + strings.Join(names, ", ")
	}
	return fmt.Sprintf("in %s and %d more", strings.Join(names[:3], ", "), len(names)-3)
}
