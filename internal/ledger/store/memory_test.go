package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"invitegate/internal/credential/models"
	"invitegate/internal/events"
	"invitegate/internal/ledger"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/requestcontext"
)

var alice = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

type MemoryTxSuite struct {
	suite.Suite
	tx  *MemoryTx
	ctx context.Context
}

func TestMemoryTxSuite(t *testing.T) {
	suite.Run(t, new(MemoryTxSuite))
}

func (s *MemoryTxSuite) SetupTest() {
	s.tx = NewMemory()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func (s *MemoryTxSuite) issue(ctx context.Context, st ledger.Stores, code string) error {
	id, err := st.Credentials.NextTokenID(ctx)
	if err != nil {
		return err
	}
	c, err := models.NewCredential(id, alice, code, "ipfs://"+code, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := st.Credentials.Insert(ctx, c); err != nil {
		return err
	}
	return st.Outbox.Record(ctx, events.InviteIssued(ctx, id, alice, code))
}

func (s *MemoryTxSuite) pending() []events.Event {
	out, err := s.tx.Outbox().Pending(s.ctx, 100)
	s.Require().NoError(err)
	return out
}

func (s *MemoryTxSuite) TestCommit() {
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context, st ledger.Stores) error {
		return s.issue(ctx, st, "A")
	})
	s.Require().NoError(err)

	err = s.tx.View(s.ctx, func(ctx context.Context, st ledger.Stores) error {
		c, err := st.Credentials.FindByCode(ctx, "A")
		s.Require().NoError(err)
		s.Equal(domain.TokenID(1), c.TokenID)
		return nil
	})
	s.Require().NoError(err)
	s.Len(s.pending(), 1)
}

func (s *MemoryTxSuite) TestRollback() {
	s.Run("error restores every store", func() {
		boom := errors.New("boom")
		err := s.tx.RunInTx(s.ctx, func(ctx context.Context, st ledger.Stores) error {
			s.Require().NoError(s.issue(ctx, st, "A"))
			s.Require().NoError(st.Wallets.MarkVerified(ctx, alice, requestcontext.Now(ctx)))
			return boom
		})
		s.ErrorIs(err, boom)

		s.NoError(s.tx.View(s.ctx, func(ctx context.Context, st ledger.Stores) error {
			_, err := st.Credentials.FindByCode(ctx, "A")
			s.Error(err)
			_, err = st.Wallets.Find(ctx, alice)
			s.Error(err)
			next, err := st.Credentials.NextTokenID(ctx)
			s.Require().NoError(err)
			s.Equal(domain.TokenID(1), next)
			return nil
		}))
		s.Empty(s.pending())
	})

	s.Run("panic restores and repanics", func() {
		s.Panics(func() {
			_ = s.tx.RunInTx(s.ctx, func(ctx context.Context, st ledger.Stores) error {
				s.Require().NoError(s.issue(ctx, st, "B"))
				panic("boom")
			})
		})
		s.Empty(s.pending())
	})
}

func (s *MemoryTxSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	called := false
	err := s.tx.RunInTx(ctx, func(context.Context, ledger.Stores) error {
		called = true
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.False(called)

	err = s.tx.View(ctx, func(context.Context, ledger.Stores) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *MemoryTxSuite) TestDefaultDeadline() {
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context, _ ledger.Stores) error {
		deadline, ok := ctx.Deadline()
		s.True(ok)
		s.WithinDuration(time.Now().Add(DefaultTxTimeout), deadline, time.Second)
		return nil
	})
	s.NoError(err)
}
