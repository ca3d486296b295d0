// Package ledger orchestrates the referral-gated onboarding state machine:
// invite issuance, one-time activation, wallet ownership proofs, wallet binding
// and one-time member batch issuance. Every mutating operation runs inside a
// single transaction so it either fully applies or leaves no trace.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	credservice "invitegate/internal/credential/service"
	"invitegate/internal/events"
	"invitegate/internal/ledger/metrics"
	"invitegate/internal/signature"
	walletservice "invitegate/internal/wallet/service"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/requestcontext"
)

// DefaultInvitesPerMember is the size of a member's one-time batch.
const DefaultInvitesPerMember = 8

// Stores are the persistence handles valid for one transaction.
type Stores struct {
	Credentials credservice.Store
	Wallets     walletservice.Store
	Outbox      events.Recorder
}

// TxRunner provides the ledger-wide transactional boundary. RunInTx serializes
// mutations and discards every write, outbox events included, when fn fails.
// View runs fn against a consistent read-only snapshot.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
	View(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// SignatureVerifier checks wallet ownership proofs and exposes the challenge.
type SignatureVerifier interface {
	walletservice.SignatureVerifier
	Challenge(scheme signature.Scheme, addr domain.Address) ([]byte, error)
	Schemes() []signature.Scheme
	Accepts(scheme signature.Scheme) bool
	Message() string
}

type Service struct {
	tx               TxRunner
	verifier         SignatureVerifier
	invitesPerMember int
	logger           *slog.Logger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithInvitesPerMember sets the exact batch size a member must issue.
func WithInvitesPerMember(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.invitesPerMember = n
		}
	}
}

func New(tx TxRunner, verifier SignatureVerifier, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("ledger: transaction runner is required")
	}
	if verifier == nil {
		return nil, errors.New("ledger: signature verifier is required")
	}
	s := &Service{
		tx:               tx,
		verifier:         verifier,
		invitesPerMember: DefaultInvitesPerMember,
		logger:           slog.Default(),
		tracer:           otel.Tracer("invitegate/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// InvitesPerMember returns the configured batch size.
func (s *Service) InvitesPerMember() int {
	return s.invitesPerMember
}

// components binds the registries to the stores of one transaction.
type components struct {
	credentials *credservice.Service
	wallets     *walletservice.Service
	outbox      events.Recorder
}

func (s *Service) components(st Stores) components {
	creds := credservice.New(st.Credentials, st.Outbox)
	return components{
		credentials: creds,
		wallets:     walletservice.New(st.Wallets, s.verifier, creds, st.Outbox),
		outbox:      st.Outbox,
	}
}

// transition runs fn as one atomic ledger operation with a span and metrics.
func (s *Service) transition(ctx context.Context, op string, fn func(ctx context.Context, c components) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	defer span.End()
	ctx = pinTime(ctx)

	start := time.Now()
	err := s.tx.RunInTx(ctx, func(ctx context.Context, st Stores) error {
		return fn(ctx, s.components(st))
	})
	err = normalize(err, "transaction failed")
	s.finish(ctx, span, op, start, err)
	return err
}

func (s *Service) view(ctx context.Context, op string, fn func(ctx context.Context, c components) error) error {
	ctx, span := s.tracer.Start(ctx, "ledger."+op)
	defer span.End()

	err := s.tx.View(ctx, func(ctx context.Context, st Stores) error {
		return fn(ctx, s.components(st))
	})
	err = normalize(err, "read failed")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "ledger read failed", "operation", op, "error", err)
		}
	}
	return err
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	if err == nil {
		s.metrics.ObserveTransition(op, start, "")
		return
	}
	code := dErrors.CodeOf(err)
	s.metrics.ObserveTransition(op, start, string(code))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))

	args := []any{"operation", op, "code", string(code), "error", err}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		s.logger.ErrorContext(ctx, "ledger transition failed", args...)
		return
	}
	s.logger.WarnContext(ctx, "ledger transition rejected", args...)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if subject := requestcontext.Subject(ctx); subject != "" {
		attributes = append(attributes, "actor", subject)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

// pinTime fixes "now" for the whole transition so every record shares a timestamp.
func pinTime(ctx context.Context) context.Context {
	if _, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); ok {
		return ctx
	}
	return requestcontext.WithTime(ctx, time.Now().UTC())
}

// normalize guarantees every error leaving the ledger carries a code.
func normalize(err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
