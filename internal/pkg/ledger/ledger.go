// Package ledger owns the subscription lifecycle: purchase, lookup, and
// cancellation with grace-period semantics. All writes for one user are
// serialized in-process through striped locks; the UNIQUE(user_id, active)
// database index is the cross-process guard against double purchases.
package ledger

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
)

var (
	// ErrPlanNotFound is returned when the requested plan does not exist or
	// is retired from the catalog.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrAlreadySubscribed is returned when the user already holds an active
	// subscription.
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
	// ErrNoActiveSubscription is returned by Active and Cancel when the user
	// holds no active subscription. For Active this is a normal outcome the
	// gateway renders as has_plan=false, not an error envelope.
	ErrNoActiveSubscription = errors.New("no active subscription found")
)

const lockStripes = 64

// Ledger applies subscription state transitions through the repository layer.
type Ledger struct {
	plans     repository.PlanRepository
	subs      repository.SubscriptionRepository
	discounts repository.DiscountRepository
	locks     [lockStripes]sync.Mutex

	// now is swappable in tests
	now func() time.Time
}

// New creates a ledger over the given repositories. discounts may be nil, in
// which case purchases always snapshot the list price.
func New(plans repository.PlanRepository, subs repository.SubscriptionRepository, discounts repository.DiscountRepository) *Ledger {
	return &Ledger{
		plans:     plans,
		subs:      subs,
		discounts: discounts,
		now:       time.Now,
	}
}

func (l *Ledger) userLock(userID uint) *sync.Mutex {
	return &l.locks[userID%lockStripes]
}

// Purchase creates a new active subscription for the user, snapshotting the
// plan price at purchase time. Fails with ErrPlanNotFound for unknown or
// retired plans and ErrAlreadySubscribed when an active subscription exists.
func (l *Ledger) Purchase(userID, planID uint) (*models.Subscription, error) {
	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	plan, err := l.plans.GetByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	if _, err := l.subs.GetActiveByUserID(userID); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := l.now()
	sub := models.NewActiveSubscription(userID, plan, now)
	sub.PricePaid = l.effectivePrice(plan, now)
	if err := l.subs.CreateActive(sub); err != nil {
		// Two requests can both pass the check above across processes; the
		// unique index turns the loser into the same conflict.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadySubscribed
		}
		return nil, err
	}

	sub.Plan = *plan
	return sub, nil
}

// effectivePrice applies the best currently running discount to the list
// price. The result is what gets snapshotted into the ledger row.
func (l *Ledger) effectivePrice(plan *models.Plan, now time.Time) float64 {
	price := plan.MonthlyPrice
	if l.discounts == nil {
		return price
	}
	current, err := l.discounts.GetCurrent(now)
	if err != nil {
		// Discount lookup failures never block a purchase.
		return price
	}
	for i := range current {
		d := &current[i]
		if d.PlanID != nil && *d.PlanID != plan.ID {
			continue
		}
		if p := d.DiscountedPrice(plan.MonthlyPrice); p < price {
			price = p
		}
	}
	return price
}

// Active returns the user's active subscription, or ErrNoActiveSubscription.
func (l *Ledger) Active(userID uint) (*models.Subscription, error) {
	sub, err := l.subs.GetActiveByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// Cancel transitions the user's active subscription to cancelled. Access
// persists until the end of the running billing cycle. Retrying while the
// cancelled subscription is still inside its paid window returns the same
// record instead of an error, so client retries are harmless.
func (l *Ledger) Cancel(userID uint) (*models.Subscription, error) {
	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()

	sub, err := l.subs.GetActiveByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// Idempotent retry: a cancelled subscription still inside its paid
		// window is treated as the successful outcome of this call.
		latest, lerr := l.subs.GetLatestByUserID(userID)
		if lerr == nil && latest.IsCancelled() && latest.WithinPaidWindow(now) {
			return latest, nil
		}
		return nil, ErrNoActiveSubscription
	}

	sub.MarkCancelled(now)
	if err := l.subs.Update(sub); err != nil {
		return nil, err
	}
	return sub, nil
}
