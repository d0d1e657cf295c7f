package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// Reconciler folds provider webhook events into booking state. Two
// properties drive its shape:
//
//   - Idempotence: an event id enters the processed-events ledger
//     only after its effect is persisted, so a redelivery of an
//     applied event is a no-op while a failed apply stays retryable.
//   - State-function semantics: the outcome depends only on the
//     booking's current persisted status, never on assumed event
//     ordering. A refunded booking stays refunded no matter how late
//     a stale confirmation arrives, because refunded is terminal in
//     the state machine.
type Reconciler struct {
	store    repository.BookingStore
	notifier queue.Notifier
	now      func() time.Time
}

// NewReconciler wires a Reconciler. notifier may be queue.NopNotifier.
func NewReconciler(store repository.BookingStore, notifier queue.Notifier) *Reconciler {
	return &Reconciler{store: store, notifier: notifier, now: time.Now}
}

// ApplyPaymentEvent consumes one provider webhook event. Replaying the
// same event (same provider event id) leaves state and counters
// untouched. Events that match no local booking are durably parked in
// the unmatched queue and reported as ErrUnmatched, never dropped.
func (r *Reconciler) ApplyPaymentEvent(ctx context.Context, ev Event) error {
	if ev.ProviderEventID == "" || ev.PaymentRef == "" {
		return errors.New("payment event missing id or reference")
	}
	received := ev.ReceivedAt
	if received.IsZero() {
		received = r.now().UTC()
	}

	seen, err := r.store.WasEventProcessed(ctx, ev.ProviderEventID)
	if err != nil {
		return err
	}
	if seen {
		log.Printf("payment: event %s already applied, skipping", ev.ProviderEventID)
		return nil
	}

	b, err := r.store.GetBookingByPaymentRef(ctx, ev.PaymentRef)
	if errors.Is(err, repository.ErrNotFound) {
		if recErr := r.store.RecordUnmatched(ctx, repository.UnmatchedEvent{
			ProviderEventID: ev.ProviderEventID,
			PaymentRef:      ev.PaymentRef,
			EventType:       ev.Type,
			Payload:         ev.Payload,
			ReceivedAt:      received,
		}); recErr != nil {
			return recErr
		}
		log.Printf("payment: event %s (%s) matches no booking, queued for recovery", ev.ProviderEventID, ev.Type)
		return ErrUnmatched
	}
	if err != nil {
		return err
	}

	switch ev.Type {
	case EventPaymentSucceeded, EventChargeSucceeded:
		err = r.applyConfirmation(ctx, ev, b)
	case EventChargeRefunded, EventDisputeCreated:
		err = r.applyRefund(ctx, ev, b)
	case EventPaymentFailed:
		err = r.applyFailure(ctx, ev, b)
	default:
		log.Printf("payment: event type %s not handled", ev.Type)
	}
	if err != nil {
		// Ledger stays untouched so the provider's redelivery gets
		// another attempt at the transition.
		return err
	}

	// The ledger row lands only after the effect is persisted. Two
	// concurrent deliveries may both reach the apply step, but the
	// status machine makes the second a no-op, and the unique event
	// id collapses the duplicate ledger insert.
	if _, err := r.store.MarkEventProcessed(ctx, repository.ProcessedEvent{
		ProviderEventID: ev.ProviderEventID,
		PaymentRef:      ev.PaymentRef,
		EventType:       ev.Type,
		ReceivedAt:      received,
	}); err != nil {
		return err
	}
	return nil
}

// applyConfirmation moves a pending or reserved booking to confirmed.
// Any other current status means the event is stale or out of order;
// it is acknowledged without effect.
func (r *Reconciler) applyConfirmation(ctx context.Context, ev Event, b *model.Booking) error {
	if b.Status != model.StatusPending && b.Status != model.StatusReserved {
		log.Printf("payment: confirmation %s for booking %d in status %s, ignoring", ev.ProviderEventID, b.ID, b.Status)
		return nil
	}
	updated, err := r.store.TransitionStatus(ctx, b.ID, model.StatusConfirmed)
	if errors.Is(err, repository.ErrInvalidTransition) {
		// Another delivery raced us past this state; nothing to do.
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.store.RecordReconciliation(ctx, repository.Reconciliation{
		BookingID:       updated.ID,
		ProviderEventID: ev.ProviderEventID,
		Action:          "confirm",
	}); err != nil {
		return err
	}
	r.notifyConfirmed(ctx, updated)
	return nil
}

// applyRefund moves a confirmed booking to refunded, or cancels a
// booking that never got confirmed. The counter restore rides in the
// same store transaction as the status change.
func (r *Reconciler) applyRefund(ctx context.Context, ev Event, b *model.Booking) error {
	target := ""
	switch b.Status {
	case model.StatusConfirmed:
		target = model.StatusRefunded
	case model.StatusPending, model.StatusReserved:
		target = model.StatusCancelled
	default:
		log.Printf("payment: refund %s for booking %d in status %s, ignoring", ev.ProviderEventID, b.ID, b.Status)
		return nil
	}
	updated, err := r.store.TransitionStatus(ctx, b.ID, target)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return nil
	}
	if err != nil {
		return err
	}
	tableDelta := int32(0)
	if updated.TableID != nil {
		tableDelta = 1
	}
	if err := r.store.RecordReconciliation(ctx, repository.Reconciliation{
		BookingID:       updated.ID,
		ProviderEventID: ev.ProviderEventID,
		Action:          "refund",
		SeatDelta:       int32(updated.PartySize),
		TableDelta:      tableDelta,
	}); err != nil {
		return err
	}
	if target == model.StatusRefunded {
		r.notifyRefunded(ctx, updated)
	}
	return nil
}

// applyFailure cancels a pending booking whose payment failed,
// returning its seats to the event.
func (r *Reconciler) applyFailure(ctx context.Context, ev Event, b *model.Booking) error {
	if b.Status != model.StatusPending {
		log.Printf("payment: failure %s for booking %d in status %s, ignoring", ev.ProviderEventID, b.ID, b.Status)
		return nil
	}
	updated, err := r.store.TransitionStatus(ctx, b.ID, model.StatusCancelled)
	if errors.Is(err, repository.ErrInvalidTransition) {
		return nil
	}
	if err != nil {
		return err
	}
	tableDelta := int32(0)
	if updated.TableID != nil {
		tableDelta = 1
	}
	return r.store.RecordReconciliation(ctx, repository.Reconciliation{
		BookingID:       updated.ID,
		ProviderEventID: ev.ProviderEventID,
		Action:          "cancel",
		SeatDelta:       int32(updated.PartySize),
		TableDelta:      tableDelta,
	})
}

// notifyConfirmed publishes the confirmation email event. Failures
// are logged only: the status change is already persisted and final,
// and notification is independently retryable.
func (r *Reconciler) notifyConfirmed(ctx context.Context, b *model.Booking) {
	title := ""
	startsAt := ""
	if ev, err := r.store.GetEvent(ctx, b.EventID); err == nil {
		title = ev.Title
		startsAt = ev.StartsAt.Format(time.RFC3339)
	}
	tableLabel := ""
	if b.TableID != nil {
		if t, err := r.store.GetTable(ctx, *b.TableID); err == nil {
			tableLabel = t.Label
		}
	}
	msg := queue.BookingConfirmedEvent{
		BookingID:     b.ID,
		Reference:     b.Reference,
		EventID:       b.EventID,
		EventTitle:    title,
		StartsAt:      startsAt,
		TableLabel:    tableLabel,
		CustomerEmail: b.CustomerEmail,
		PartySize:     b.PartySize,
		GuestNames:    b.GuestNames,
		ConfirmedAt:   r.now().UTC().Format(time.RFC3339),
	}
	if err := r.notifier.BookingConfirmed(ctx, msg); err != nil {
		log.Printf("payment: confirmation notify failed for booking %d: %v", b.ID, err)
	}
}

func (r *Reconciler) notifyRefunded(ctx context.Context, b *model.Booking) {
	msg := queue.BookingRefundedEvent{
		BookingID:     b.ID,
		Reference:     b.Reference,
		EventID:       b.EventID,
		CustomerEmail: b.CustomerEmail,
		PartySize:     b.PartySize,
		RefundedAt:    r.now().UTC().Format(time.RFC3339),
	}
	if err := r.notifier.BookingRefunded(ctx, msg); err != nil {
		log.Printf("payment: refund notify failed for booking %d: %v", b.ID, err)
	}
}
