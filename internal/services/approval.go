// Package services – Approval
//
// Approval is the state machine behind the recipient dialogue. It interprets
// decoded inbound actions against the current status of a payment record,
// persists the resulting transition and replies through the Sender.
//
// Every step that depends on the current status refreshes the record from the
// store first, so an agreed record can never be walked through the approval
// prompts a second time because of a stale cache entry.

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/cache"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var approvalTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payroll_approval_transitions_total",
		Help: "Record status transitions applied by the approval state machine.",
	},
	[]string{"from", "to"},
)

func init() {
	prometheus.MustRegister(approvalTransitions)
}

const persistAttempts = 3

// Approval drives one recipient's dialogue for a payment record.
type Approval struct {
	store      Records
	cache      *cache.Cache
	rows       RowResolver
	render     *content.Renderer
	send       Sender
	complaints Complainer
	now        func() time.Time
	backoff    time.Duration
	log        zerolog.Logger
}

// ApprovalDeps groups the collaborators of the state machine. Complaints may
// be nil.
type ApprovalDeps struct {
	Store      Records
	Cache      *cache.Cache
	Rows       RowResolver
	Renderer   *content.Renderer
	Sender     Sender
	Complaints Complainer
}

// NewApproval builds the state machine.
func NewApproval(d ApprovalDeps) *Approval {
	return &Approval{
		store:      d.Store,
		cache:      d.Cache,
		rows:       d.Rows,
		render:     d.Renderer,
		send:       d.Sender,
		complaints: d.Complaints,
		now:        func() time.Time { return time.Now().UTC() },
		backoff:    50 * time.Millisecond,
		log:        log.With().Str("component", "approval").Logger(),
	}
}

// Handle processes one inbound action to completion. Missing records are
// answered with the "not found" text and are not an error. Any other failure
// tells the recipient an operator will follow up, files a complaint and is
// returned for logging.
func (a *Approval) Handle(ctx context.Context, ev domain.Inbound) error {
	tr := otel.Tracer("services/Approval")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.Int64("recipient.id", ev.RecipientID),
			attribute.String("action", fmt.Sprintf("%T", ev.Action)),
		),
	)
	defer span.End()

	rid := ev.RecipientID
	var err error
	switch act := ev.Action.(type) {
	case domain.ConfirmPayment:
		err = a.confirmPayment(ctx, rid, act.Ref, act.Agree)
	case domain.VerifyIdentity:
		err = a.verifyIdentity(ctx, rid, act)
	case domain.ConfirmContract:
		err = a.confirmContract(ctx, rid, act)
	case domain.SelectCategory:
		err = a.selectCategory(ctx, rid, act)
	case domain.DecidePoint:
		err = a.decidePoint(ctx, rid, act)
	case domain.AgreeFromList:
		err = a.agreeFromList(ctx, rid, act)
	case domain.FinalAgreement:
		err = a.finalAgreement(ctx, rid, act)
	case domain.OpenStatement:
		err = a.openStatement(ctx, rid, act.Ref)
	case domain.ShowList:
		err = a.showList(ctx, rid, act.Page)
	case domain.OpenByIndex:
		err = a.openByIndex(ctx, rid, act.Index)
	case domain.QuickReply:
		err = a.quickReply(ctx, rid, act.Agree)
	case domain.Start:
		a.reply(ctx, rid, content.TextGreeting, notify.ChatBottomKeyboard())
	case domain.FreeText:
		// Free text after an operator hand-off is meant for the operator.
		a.log.Debug().Int64("recipient_id", rid).Msg("free text ignored")
	case domain.Unknown:
		a.log.Warn().Int64("recipient_id", rid).Str("payload", act.Raw).Msg("unknown command")
		a.reply(ctx, rid, content.TextGreeting, notify.ChatBottomKeyboard())
	default:
		err = fmt.Errorf("unhandled action %T", act)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRecordGone) {
		a.reply(ctx, rid, content.TextNotFound, nil)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	a.log.Error().Err(err).Int64("recipient_id", rid).Msg("dialogue step failed")
	a.reply(ctx, rid, content.TextActionFailed, nil)
	a.publish(ctx, domain.Complaint{RecipientID: rid, Reason: domain.ReasonActionFailed})
	return err
}

// load resolves ref for rid, refreshing the record from the store and
// attaching its content row when it can be read.
func (a *Approval) load(ctx context.Context, rid int64, ref domain.RecordRef) (cache.Entry, error) {
	id := ref.ID
	if id == 0 {
		if ref.Token == "" {
			return cache.Entry{}, ErrRecordGone
		}
		rec, err := a.store.FindByToken(ctx, ref.Token)
		if errors.Is(err, repo.ErrNotFound) {
			return cache.Entry{}, ErrRecordGone
		}
		if err != nil {
			return cache.Entry{}, fmt.Errorf("find by token: %w", err)
		}
		id = rec.ID
	}

	e, err := a.cache.Refresh(ctx, rid, id)
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, cache.ErrNotOwned) {
		return cache.Entry{}, ErrRecordGone
	}
	if err != nil {
		return cache.Entry{}, fmt.Errorf("refresh record %d: %w", id, err)
	}
	if e.Row == nil {
		row, err := a.rows.Row(e.Record.ContentRef, rid)
		if err != nil {
			a.log.Debug().Err(err).Uint("record_id", id).Str("content_ref", e.Record.ContentRef).Msg("content row unavailable")
		} else {
			e = a.cache.Put(e.Record, row)
		}
	}
	return e, nil
}

// settled replies for records no dialogue step may move and reports whether
// it did.
func (a *Approval) settled(ctx context.Context, e cache.Entry) bool {
	switch e.Record.Status {
	case domain.StatusAgreed:
		a.reply(ctx, e.Record.RecipientID, content.TextAlreadyAgreed, nil)
		return true
	case domain.StatusDisagreed:
		a.reply(ctx, e.Record.RecipientID, content.TextOperatorFollow, nil)
		return true
	}
	return false
}

// transition moves e to status, cache first, then store. A store failure
// other than "gone" is logged and tolerated; the next refresh reconciles.
func (a *Approval) transition(ctx context.Context, e cache.Entry, to domain.Status, reason *string) (cache.Entry, error) {
	rec := e.Record
	from := rec.Status
	var confirmed *time.Time
	if to.Terminal() {
		t := a.now()
		confirmed = &t
	}

	a.cache.SetStatus(rec.ID, to, reason)
	if err := a.persist(ctx, rec.ID, to, reason, confirmed); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			a.cache.Drop(rec.ID)
			return e, ErrRecordGone
		}
		a.log.Error().Err(err).
			Uint("record_id", rec.ID).
			Int64("recipient_id", rec.RecipientID).
			Str("status", string(to)).
			Msg("status update failed")
	}
	if from != to {
		approvalTransitions.WithLabelValues(string(from), string(to)).Inc()
		a.log.Info().
			Uint("record_id", rec.ID).
			Int64("recipient_id", rec.RecipientID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("status changed")
	}

	e.Record.Status = to
	e.Record.DisagreeReason = reason
	e.Record.ConfirmedAt = confirmed
	return e, nil
}

func (a *Approval) persist(ctx context.Context, id uint, to domain.Status, reason *string, confirmed *time.Time) error {
	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		err = a.store.UpdateStatus(ctx, id, to, reason, confirmed)
		if err == nil || errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if serr := sleepCtx(ctx, a.backoff*time.Duration(attempt+1)); serr != nil {
			return err
		}
	}
	return err
}

func (a *Approval) reply(ctx context.Context, rid int64, text string, kb *notify.Keyboard) {
	if err := a.send.Send(ctx, rid, text, kb); err != nil {
		a.log.Warn().Err(err).Int64("recipient_id", rid).Msg("reply not delivered")
	}
}

func (a *Approval) publish(ctx context.Context, c domain.Complaint) {
	if a.complaints == nil {
		return
	}
	a.complaints.Publish(ctx, c)
}

func (a *Approval) complain(ctx context.Context, e cache.Entry, reason string) {
	kind := kindOf(e)
	a.publish(ctx, domain.Complaint{
		RecipientID: e.Record.RecipientID,
		Reason:      reason,
		BatchFile:   e.Record.BatchFile,
		ContentRef:  e.Record.ContentRef,
		DisplayName: displayName(kind, e.Row),
		Kind:        kind,
	})
}

func kindOf(e cache.Entry) domain.Kind {
	if e.Record.Kind != "" {
		return e.Record.Kind
	}
	if e.Row != nil {
		return e.Row.Kind()
	}
	return domain.KindCurator
}

func displayName(kind domain.Kind, row domain.Row) string {
	if kind == domain.KindTutor {
		return row.Get("Репетитор", "fio", "ФИО", "name")
	}
	return row.Get("name", "curator", "fio", "ФИО")
}

func refOf(e cache.Entry) domain.RecordRef { return domain.RecordRef{ID: e.Record.ID} }

// reprompt re-renders the prompt that belongs to the record's status.
func (a *Approval) reprompt(ctx context.Context, e cache.Entry) {
	rid, ref := e.Record.RecipientID, refOf(e)
	switch e.Record.Status {
	case domain.StatusAgreed:
		a.reply(ctx, rid, content.TextAlreadyAgreed, nil)
	case domain.StatusDisagreed:
		a.reply(ctx, rid, content.TextOperatorFollow, nil)
	case domain.StatusAgreePendingVerify:
		a.reply(ctx, rid, content.IdentityPrompt(kindOf(e), e.Row), notify.IdentityKeyboard(ref))
	case domain.StatusAgreePendingPro:
		a.reply(ctx, rid, content.TextContractPrompt, notify.ContractKeyboard(ref))
	case domain.StatusDisagreeSelectPoint:
		a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(ref))
	default:
		a.reply(ctx, rid, a.render.Statement(e.Record.BatchFile, kindOf(e), e.Row), notify.ConfirmKeyboard(ref))
	}
}

func (a *Approval) confirmPayment(ctx context.Context, rid int64, ref domain.RecordRef, agree bool) error {
	e, err := a.load(ctx, rid, ref)
	if err != nil {
		return err
	}
	if a.settled(ctx, e) {
		return nil
	}
	if agree {
		return a.startVerification(ctx, e)
	}

	if kindOf(e) == domain.KindTutor {
		reason := domain.TutorDisagreeReason
		if e, err = a.transition(ctx, e, domain.StatusDisagreed, &reason); err != nil {
			return err
		}
		a.complain(ctx, e, reason)
		a.reply(ctx, rid, content.TextTutorDisagree, nil)
		return nil
	}
	if e, err = a.transition(ctx, e, domain.StatusDisagreeSelectPoint, nil); err != nil {
		return err
	}
	a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(refOf(e)))
	return nil
}

func (a *Approval) startVerification(ctx context.Context, e cache.Entry) error {
	e, err := a.transition(ctx, e, domain.StatusAgreePendingVerify, nil)
	if err != nil {
		return err
	}
	a.reply(ctx, e.Record.RecipientID, content.IdentityPrompt(kindOf(e), e.Row), notify.IdentityKeyboard(refOf(e)))
	return nil
}

func (a *Approval) verifyIdentity(ctx context.Context, rid int64, act domain.VerifyIdentity) error {
	e, err := a.load(ctx, rid, act.Ref)
	if err != nil {
		return err
	}
	if a.settled(ctx, e) {
		return nil
	}
	if e.Record.Status != domain.StatusAgreePendingVerify {
		a.reprompt(ctx, e)
		return nil
	}

	if act.Yes {
		if e, err = a.transition(ctx, e, domain.StatusAgreePendingPro, nil); err != nil {
			return err
		}
		a.reply(ctx, rid, content.TextContractPrompt, notify.ContractKeyboard(refOf(e)))
		return nil
	}
	if e, err = a.transition(ctx, e, domain.StatusAgreeDataMismatch, nil); err != nil {
		return err
	}
	a.reply(ctx, rid, content.TextDataMismatch, nil)
	a.complain(ctx, e, domain.ReasonIdentityMismatch)
	return nil
}

func (a *Approval) confirmContract(ctx context.Context, rid int64, act domain.ConfirmContract) error {
	e, err := a.load(ctx, rid, act.Ref)
	if err != nil {
		return err
	}
	if a.settled(ctx, e) {
		return nil
	}
	if e.Record.Status != domain.StatusAgreePendingPro {
		a.reprompt(ctx, e)
		return nil
	}

	if act.Yes {
		if _, err = a.transition(ctx, e, domain.StatusAgreed, nil); err != nil {
			return err
		}
		a.reply(ctx, rid, content.TextAgreed, nil)
		return nil
	}
	if e, err = a.transition(ctx, e, domain.StatusAgreeProPending, nil); err != nil {
		return err
	}
	a.reply(ctx, rid, content.TextProPending, nil)
	a.complain(ctx, e, domain.ReasonProNotAccepted)
	return nil
}

// selectingPoint loads ref and reports whether it is in the category step.
// Records elsewhere get their own prompt re-rendered.
func (a *Approval) selectingPoint(ctx context.Context, rid int64, ref domain.RecordRef) (cache.Entry, bool, error) {
	e, err := a.load(ctx, rid, ref)
	if err != nil {
		return e, false, err
	}
	if a.settled(ctx, e) {
		return e, false, nil
	}
	if e.Record.Status != domain.StatusDisagreeSelectPoint {
		a.reprompt(ctx, e)
		return e, false, nil
	}
	return e, true, nil
}

func (a *Approval) selectCategory(ctx context.Context, rid int64, act domain.SelectCategory) error {
	e, ok, err := a.selectingPoint(ctx, rid, act.Ref)
	if err != nil || !ok {
		return err
	}
	cat, known := domain.CategoryByLabel(act.Reason)
	if !known {
		a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(refOf(e)))
		return nil
	}

	reason := cat.Label
	if cat.IsOther() {
		if e, err = a.transition(ctx, e, domain.StatusDisagreed, &reason); err != nil {
			return err
		}
		a.complain(ctx, e, domain.OtherReasonLabel)
		a.reply(ctx, rid, content.TextOperatorHandoff, nil)
		return nil
	}

	if e, err = a.transition(ctx, e, domain.StatusDisagreeSelectPoint, &reason); err != nil {
		return err
	}
	a.complain(ctx, e, domain.ReasonPointSelected+reason)
	a.reply(ctx, rid, a.render.Explain(cat.Type, e.Row), notify.DecisionKeyboard(refOf(e), reason))
	return nil
}

func (a *Approval) decidePoint(ctx context.Context, rid int64, act domain.DecidePoint) error {
	e, ok, err := a.selectingPoint(ctx, rid, act.Ref)
	if err != nil || !ok {
		return err
	}
	if act.Agree {
		a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(refOf(e)))
		return nil
	}

	reason := act.Reason
	if _, known := domain.CategoryByLabel(reason); !known {
		reason = e.Record.Reason()
	}
	if reason == "" {
		a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(refOf(e)))
		return nil
	}
	if e, err = a.transition(ctx, e, domain.StatusDisagreed, &reason); err != nil {
		return err
	}
	a.complain(ctx, e, domain.ReasonPointDisagreed+reason)
	a.reply(ctx, rid, content.TextOperatorHandoff, nil)
	return nil
}

func (a *Approval) agreeFromList(ctx context.Context, rid int64, act domain.AgreeFromList) error {
	e, ok, err := a.selectingPoint(ctx, rid, act.Ref)
	if err != nil || !ok {
		return err
	}
	a.reply(ctx, rid, content.TextConfirmAgree, notify.FinalAgreementKeyboard(refOf(e)))
	return nil
}

func (a *Approval) finalAgreement(ctx context.Context, rid int64, act domain.FinalAgreement) error {
	e, ok, err := a.selectingPoint(ctx, rid, act.Ref)
	if err != nil || !ok {
		return err
	}
	if act.Yes {
		return a.startVerification(ctx, e)
	}
	a.reply(ctx, rid, content.TextSelectPoint, notify.CategoryKeyboard(refOf(e)))
	return nil
}

// openStatement shows a record. Records waiting on the initial choice get the
// statement with agree/disagree controls; records mid-dialogue get the
// statement followed by their current prompt.
func (a *Approval) openStatement(ctx context.Context, rid int64, ref domain.RecordRef) error {
	e, err := a.load(ctx, rid, ref)
	if err != nil {
		return err
	}
	a.cache.SetLastOpened(rid, e.Record.ID)
	if e.Record.Status == domain.StatusAgreed {
		a.log.Info().Int64("recipient_id", rid).Uint("record_id", e.Record.ID).Msg("reopened agreed statement")
		a.reply(ctx, rid, content.TextAlreadyAgreed, nil)
		return nil
	}

	statement := a.render.Statement(e.Record.BatchFile, kindOf(e), e.Row)
	switch e.Record.Status {
	case domain.StatusNew, domain.StatusAgreeDataMismatch, domain.StatusAgreeProPending:
		a.reply(ctx, rid, statement, notify.ConfirmKeyboard(refOf(e)))
	default:
		a.reply(ctx, rid, statement, nil)
		a.reprompt(ctx, e)
	}
	return nil
}

func (a *Approval) active(ctx context.Context, rid int64) ([]domain.PaymentRecord, error) {
	recs, err := a.store.ListActiveForRecipient(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("list records of %d: %w", rid, err)
	}
	return recs, nil
}

func (a *Approval) showList(ctx context.Context, rid int64, page int) error {
	recs, err := a.active(ctx, rid)
	if err != nil {
		return err
	}
	items := make([]notify.ListItem, 0, len(recs))
	for i, rec := range recs {
		var row domain.Row
		if e, ok := a.cache.Peek(rec.ID); ok && e.Row != nil {
			row = e.Row
		} else if r, err := a.rows.Row(rec.ContentRef, rid); err == nil {
			row = r
		}
		a.cache.Put(rec, row)
		items = append(items, notify.ListItem{
			ID:     rec.ID,
			Label:  content.ListLabel(rec.BatchFile, row.Get("groups"), i+1, rec.CreatedAt),
			Agreed: rec.Status == domain.StatusAgreed,
		})
	}
	if err := a.send.SendList(ctx, rid, items, page); err != nil {
		a.log.Warn().Err(err).Int64("recipient_id", rid).Msg("list not delivered")
	}
	return nil
}

func (a *Approval) openByIndex(ctx context.Context, rid int64, idx int) error {
	recs, err := a.active(ctx, rid)
	if err != nil {
		return err
	}
	if idx < 1 || idx > len(recs) {
		a.reply(ctx, rid, content.TextBadIndex, nil)
		return nil
	}
	return a.openStatement(ctx, rid, domain.RecordRef{ID: recs[idx-1].ID})
}

func (a *Approval) quickReply(ctx context.Context, rid int64, agree bool) error {
	id, ok := a.cache.LastOpened(rid)
	if !ok {
		a.reply(ctx, rid, content.TextOpenFirst, nil)
		return nil
	}
	return a.confirmPayment(ctx, rid, domain.RecordRef{ID: id}, agree)
}
