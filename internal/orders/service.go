package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/actor"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/stores"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-hyperlocal-orders/internal/orders")

const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

// Ledger is all the order lifecycle may do to stock. Counter edits stay
// with the catalog.
type Ledger interface {
	TryPurchase(ctx context.Context, productID string, qty int) (inventory.Product, error)
	Restock(ctx context.Context, productID string, qty int) (inventory.Product, error)
}

// Notifier gets ctx so the trace of the change travels with the event.
type Notifier interface {
	ProductChanged(ctx context.Context, p inventory.Product)
}

type Service struct {
	ledger  Ledger
	repo    Repository
	dir     stores.Directory
	notify  Notifier
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewService(ledger Ledger, repo Repository, dir stores.Directory, notify Notifier, log *zap.Logger, persistTimeout time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if persistTimeout <= 0 {
		persistTimeout = 3 * time.Second
	}
	return &Service{
		ledger:  ledger,
		repo:    repo,
		dir:     dir,
		notify:  notify,
		log:     log,
		timeout: persistTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Purchase takes qty units of one product and records a placed order with a
// snapshot of the product as sold. If anything fails after the stock left
// the shelf, the units are put back.
func (s *Service) Purchase(ctx context.Context, a actor.Actor, productID string, qty int) (Order, inventory.Product, error) {
	ctx, span := tracer.Start(ctx, "orders.Purchase")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("qty", qty))

	if a.Role != actor.RoleCustomer || a.ID == "" {
		return Order{}, inventory.Product{}, ErrForbidden
	}
	if productID == "" {
		return Order{}, inventory.Product{}, fmt.Errorf("%w: productId is required", ErrInvalidInput)
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	p, err := s.ledger.TryPurchase(pctx, productID, qty)
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Order{}, inventory.Product{}, err
	}

	pctx, cancel = context.WithTimeout(ctx, s.timeout)
	store, err := s.dir.Get(pctx, p.StoreID)
	cancel()
	if err == nil && !store.IsActive {
		err = fmt.Errorf("%w: store %s is not active", stores.ErrNotFound, p.StoreID)
	}
	if err != nil {
		s.compensate(ctx, p, qty, err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, inventory.Product{}, err
	}

	o := NewOrder(uuid.NewString(), a.ID, p.StoreID, []Item{{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
		Image:     p.FirstImage(),
	}}, s.now())

	pctx, cancel = context.WithTimeout(ctx, s.timeout)
	err = s.repo.Create(pctx, o)
	cancel()
	if err != nil {
		s.compensate(ctx, p, qty, err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, inventory.Product{}, fmt.Errorf("save order: %w", err)
	}

	s.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("customer_id", a.ID),
		zap.String("store_id", o.StoreID),
		zap.String("product_id", p.ID),
		zap.Int("qty", qty),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.String("trace_id", trace.SpanContextFromContext(ctx).TraceID().String()),
	)
	s.notify.ProductChanged(ctx, p)
	span.SetStatus(codes.Ok, "")
	return o, p, nil
}

// compensate puts back stock taken for an order that was never recorded.
// It runs on a context detached from the caller so a cancelled request
// still gets its units returned.
func (s *Service) compensate(ctx context.Context, p inventory.Product, qty int, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	restored, err := s.ledger.Restock(cctx, p.ID, qty)
	if err != nil {
		s.log.Error("purchase compensation failed",
			zap.String("product_id", p.ID), zap.Int("qty", qty),
			zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.log.Warn("purchase compensated",
		zap.String("product_id", p.ID), zap.Int("qty", qty), zap.NamedError("cause", cause))
	s.notify.ProductChanged(ctx, restored)
}

func (s *Service) Cancel(ctx context.Context, a actor.Actor, orderID string) (Order, error) {
	return s.UpdateStatus(ctx, a, orderID, StatusCancelled)
}

// UpdateStatus moves an order along the transition table for the role the
// actor holds on it. Cancellation puts every line item back on the shelf.
func (s *Service) UpdateStatus(ctx context.Context, a actor.Actor, orderID string, next Status) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.next_status", string(next)))

	if !next.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, next)
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	role, err := s.roleOn(ctx, a, o)
	if err != nil {
		return Order{}, err
	}
	if o.Status.Terminal() || !CanTransition(role, o.Status, next) {
		return Order{}, &TransitionError{From: o.Status, To: next}
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	moved, err := s.repo.UpdateStatus(pctx, orderID, o.Status, next)
	cancel()
	if errors.Is(err, errStatusMoved) {
		// lost the race; report against what is there now
		cur, gerr := s.get(ctx, orderID)
		if gerr != nil {
			return Order{}, gerr
		}
		return Order{}, &TransitionError{From: cur.Status, To: next}
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}

	s.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("actor_id", a.ID),
		zap.String("role", string(role)),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
	)
	// items never change after creation, so the lines read before the move
	// are the ones to put back
	o.Status, o.UpdatedAt = moved.Status, moved.UpdatedAt
	if next == StatusCancelled {
		s.restock(ctx, o)
	}
	return o, nil
}

// restock is best effort: a failed line is logged and skipped, never retried,
// and the cancellation stands.
func (s *Service) restock(ctx context.Context, o Order) {
	base := context.WithoutCancel(ctx)
	for _, it := range o.Items() {
		rctx, cancel := context.WithTimeout(base, s.timeout)
		p, err := s.ledger.Restock(rctx, it.ProductID, it.Quantity)
		cancel()
		if err != nil {
			lvl := s.log.Error
			if errors.Is(err, inventory.ErrNotFound) {
				lvl = s.log.Warn
			}
			lvl("restock after cancel failed",
				zap.String("order_id", o.ID),
				zap.String("product_id", it.ProductID),
				zap.Int("qty", it.Quantity),
				zap.Error(err))
			continue
		}
		s.notify.ProductChanged(ctx, p)
	}
}

// ForceStatus is the admin break-glass path. It skips the transition table
// and touches no stock.
func (s *Service) ForceStatus(ctx context.Context, a actor.Actor, orderID string, to Status) (Order, error) {
	if !a.IsAdmin() {
		return Order{}, ErrForbidden
	}
	if !to.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	moved, err := s.repo.SetStatus(pctx, orderID, to)
	if err != nil {
		return Order{}, err
	}
	from := o.Status
	o.Status, o.UpdatedAt = moved.Status, moved.UpdatedAt
	s.log.Warn("order status overridden",
		zap.String("order_id", orderID),
		zap.String("admin_id", a.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return o, nil
}

func (s *Service) Get(ctx context.Context, a actor.Actor, orderID string) (Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if a.IsAdmin() {
		return o, nil
	}
	if _, err := s.roleOn(ctx, a, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Service) ListForCustomer(ctx context.Context, a actor.Actor, f Filter, limit int) ([]Order, error) {
	if a.Role != actor.RoleCustomer || a.ID == "" {
		return nil, ErrForbidden
	}
	statuses, limit, err := listArgs(f, limit)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.ListByCustomer(pctx, a.ID, statuses, limit)
}

func (s *Service) ListForStore(ctx context.Context, a actor.Actor, storeID string, f Filter, limit int) ([]Order, error) {
	statuses, limit, err := listArgs(f, limit)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() {
		if err := s.ownsStore(ctx, a, storeID); err != nil {
			return nil, err
		}
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.ListByStore(pctx, storeID, statuses, limit)
}

// ListAll is the admin view across stores. status is one order status, or
// "all" (the default) for every status.
func (s *Service) ListAll(ctx context.Context, a actor.Actor, status string, limit int) ([]Order, error) {
	if !a.IsAdmin() {
		return nil, ErrForbidden
	}
	var statuses []Status
	if st := Status(status); status != "" && status != string(FilterAll) {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		statuses = []Status{st}
	}
	_, limit, err := listArgs(FilterAll, limit)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.ListAll(pctx, statuses, limit)
}

func listArgs(f Filter, limit int) ([]Status, int, error) {
	statuses, ok := f.Statuses()
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, f)
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxListLimit)
	}
	return statuses, limit, nil
}

func (s *Service) get(ctx context.Context, orderID string) (Order, error) {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Get(pctx, orderID)
}

// roleOn resolves which row of the transition table applies to a.
func (s *Service) roleOn(ctx context.Context, a actor.Actor, o Order) (actor.Role, error) {
	switch a.Role {
	case actor.RoleAdmin:
		return actor.RoleAdmin, nil
	case actor.RoleCustomer:
		if a.ID != "" && a.ID == o.CustomerID {
			return actor.RoleCustomer, nil
		}
	case actor.RoleSeller:
		if err := s.ownsStore(ctx, a, o.StoreID); err != nil {
			return "", err
		}
		return actor.RoleSeller, nil
	}
	return "", ErrForbidden
}

func (s *Service) ownsStore(ctx context.Context, a actor.Actor, storeID string) error {
	if a.Role != actor.RoleSeller {
		return ErrForbidden
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	st, err := s.dir.Get(pctx, storeID)
	if errors.Is(err, stores.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if st.SellerID != a.ID {
		return ErrForbidden
	}
	return nil
}
