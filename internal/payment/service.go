package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
)

var (
	ErrNotFound           = errors.New("payment not found")
	ErrOrderNotFound      = order.ErrNotFound
	ErrTerminal           = errors.New("payment is already settled")
	ErrAlreadyPaid        = errors.New("order is already paid")
	ErrGateway            = errors.New("payment provider unavailable")
	ErrInvalidMethod      = errors.New("invalid payment method")
	ErrSimulationDisabled = errors.New("payment simulation is only available in mock mode")
)

type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*order.Order, error)
}

type Publisher interface {
	PublishPaymentSucceeded(ctx context.Context, p Payment) error
	PublishPaymentFailed(ctx context.Context, p Payment) error
}

// Notifier pushes status changes to clients watching an order.
type Notifier interface {
	Broadcast(orderID string, v any)
}

type Options struct {
	ReturnURL             string
	DefaultPickupLocation string
}

type Service struct {
	repo      Repository
	orders    OrderReader
	gateway   Gateway
	publisher Publisher
	notifier  Notifier
	logger    *log.Logger
	opts      Options
}

func NewService(repo Repository, orders OrderReader, gateway Gateway, publisher Publisher, notifier Notifier, logger *log.Logger, opts Options) *Service {
	return &Service{
		repo:      repo,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
	}
}

// Start opens a new payment attempt for the order and makes it current.
func (s *Service) Start(ctx context.Context, orderID string, method Method, pickupLocation string) (*Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.IsPaid() {
		return nil, ErrAlreadyPaid
	}

	p := &Payment{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Method:  method,
		Amount:  o.Total,
		Status:  StatusPending,
	}

	switch method {
	case MethodTransfer:
		p.ExternalReference = transferReference()
	case MethodCash:
		p.PickupLocation = strings.TrimSpace(pickupLocation)
		if p.PickupLocation == "" {
			p.PickupLocation = s.opts.DefaultPickupLocation
		}
	case MethodTransbank:
		resp, err := s.gateway.Create(ctx, CreateRequest{
			BuyOrder:  buyOrder(p.ID),
			SessionID: o.ID,
			Amount:    o.Total,
			ReturnURL: s.opts.ReturnURL,
		})
		if err != nil {
			s.logger.Printf("order %s: gateway create: %v", o.ID, err)
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		p.ExternalReference = resp.Token
		p.RedirectURL = resp.RedirectURL()
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	if err := s.repo.CreateAttempt(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Printf("order %s: payment %s started (%s, %s)", o.ID, p.ID, p.Method, p.Amount.StringFixed(2))
	s.notify(*p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, paymentID string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns every attempt for the order, newest first.
func (s *Service) List(ctx context.Context, orderID string) ([]Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) MarkPaid(ctx context.Context, paymentID string) (*Payment, error) {
	return s.settle(ctx, paymentID, StatusPaid, "")
}

func (s *Service) MarkFailed(ctx context.Context, paymentID, reason string) (*Payment, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "payment rejected"
	}
	return s.settle(ctx, paymentID, StatusFailed, reason)
}

// ConfirmGateway resolves a gateway transaction when the buyer returns with its token.
func (s *Service) ConfirmGateway(ctx context.Context, token string) (*Payment, error) {
	p, err := s.repo.GetByReference(ctx, MethodTransbank, token)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Terminal() {
		return p, fmt.Errorf("%w: payment %s is %s", ErrTerminal, p.ID, p.Status)
	}

	res, err := s.gateway.Commit(ctx, token)
	if err != nil {
		s.logger.Printf("payment %s: gateway commit: %v", p.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if res.Authorized {
		return s.MarkPaid(ctx, p.ID)
	}
	return s.MarkFailed(ctx, p.ID, fmt.Sprintf("gateway status %s (code %d)", res.Status, res.ResponseCode))
}

// AbortGateway fails the attempt when the buyer cancels on the gateway's page.
// Nothing is committed with the gateway.
func (s *Service) AbortGateway(ctx context.Context, token string) (*Payment, error) {
	p, err := s.repo.GetByReference(ctx, MethodTransbank, token)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Terminal() {
		return p, fmt.Errorf("%w: payment %s is %s", ErrTerminal, p.ID, p.Status)
	}
	return s.MarkFailed(ctx, p.ID, "cancelled by buyer")
}

// Simulate settles a pending payment locally. Only available with the mock gateway.
func (s *Service) Simulate(ctx context.Context, paymentID string, paid bool) (*Payment, error) {
	mock, ok := s.gateway.(*MockGateway)
	if !ok {
		return nil, ErrSimulationDisabled
	}

	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if p.Method == MethodTransbank {
		mock.SetResult(p.ExternalReference, paid)
		return s.ConfirmGateway(ctx, p.ExternalReference)
	}
	if paid {
		return s.MarkPaid(ctx, paymentID)
	}
	return s.MarkFailed(ctx, paymentID, "simulated failure")
}

func (s *Service) settle(ctx context.Context, paymentID string, to Status, reason string) (*Payment, error) {
	p, err := s.repo.Transition(ctx, paymentID, to, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("order %s: payment %s %s", p.OrderID, p.ID, p.Status)

	var pubErr error
	if to == StatusPaid {
		pubErr = s.publisher.PublishPaymentSucceeded(ctx, *p)
	} else {
		pubErr = s.publisher.PublishPaymentFailed(ctx, *p)
	}
	if pubErr != nil {
		s.logger.Printf("payment %s: publish %s: %v", p.ID, to, pubErr)
	}

	s.notify(*p)
	return p, nil
}

func (s *Service) notify(p Payment) {
	if s.notifier != nil {
		s.notifier.Broadcast(p.OrderID, p)
	}
}

func transferReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRF-" + strings.ToUpper(id[:8])
}

// buyOrder derives the gateway order reference, limited to 26 characters.
func buyOrder(paymentID string) string {
	id := strings.ReplaceAll(paymentID, "-", "")
	if len(id) > 26 {
		id = id[:26]
	}
	return id
}
