package events_test

//go:generate mockgen -source=relay.go -destination=mocks/publisher_mock.go -package=mocks Publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"invitegate/internal/events"
	"invitegate/internal/events/mocks"
	"invitegate/internal/events/store"
	"invitegate/pkg/domain"
	"invitegate/pkg/platform/circuit"
)

type RelaySuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	publisher *mocks.MockPublisher
	outbox    *store.InMemoryOutbox
	metrics   *events.Metrics
	breaker   *circuit.Breaker
	relay     *events.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.outbox = store.NewInMemoryOutbox()
	s.metrics = events.NewMetrics(prometheus.NewRegistry())
	s.breaker = circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s.relay = events.NewRelay(s.outbox, s.publisher,
		events.WithBatchSize(2),
		events.WithBreaker(s.breaker),
		events.WithMetrics(s.metrics),
		events.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelaySuite) record(n int) []events.Event {
	addr := domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	out := make([]events.Event, n)
	for i := range n {
		out[i] = events.InviteIssued(s.ctx, domain.TokenID(i+1), addr, "C")
		s.Require().NoError(s.outbox.Record(s.ctx, out[i]))
	}
	return out
}

func (s *RelaySuite) TestFlushPublishesInBatchesAndMarksPublished() {
	recorded := s.record(3)

	s.publisher.EXPECT().Publish(gomock.Any(), recorded[:2]).Return(nil)
	n, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	s.publisher.EXPECT().Publish(gomock.Any(), recorded[2:]).Return(nil)
	n, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(float64(3), testutil.ToFloat64(s.metrics.Published))
}

func (s *RelaySuite) TestFailedPublishKeepsEventsPending() {
	recorded := s.record(1)

	s.publisher.EXPECT().Publish(gomock.Any(), recorded).Return(errors.New("broker down"))
	_, err := s.relay.Flush(s.ctx)
	s.Require().Error(err)

	pending, err := s.outbox.Pending(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PublishFailures))
}

func (s *RelaySuite) TestOpenCircuitSkipsPublisher() {
	recorded := s.record(1)

	s.publisher.EXPECT().Publish(gomock.Any(), recorded).Return(errors.New("broker down")).Times(2)
	_, _ = s.relay.Flush(s.ctx)
	_, _ = s.relay.Flush(s.ctx)
	s.True(s.breaker.IsOpen())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitBreakerState))

	// No further Publish calls are expected while the circuit is open.
	n, err := s.relay.Flush(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	relay := events.NewRelay(s.outbox, s.publisher, events.WithInterval(time.Millisecond))
	s.ErrorIs(relay.Run(ctx), context.Canceled)
}
