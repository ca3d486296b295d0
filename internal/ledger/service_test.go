package ledger_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"invitegate/internal/artifact"
	"invitegate/internal/credential/models"
	credstore "invitegate/internal/credential/store"
	"invitegate/internal/events"
	eventstore "invitegate/internal/events/store"
	"invitegate/internal/identity"
	"invitegate/internal/ledger"
	"invitegate/internal/ledger/metrics"
	"invitegate/internal/ledger/store"
	"invitegate/internal/signature"
	walletstore "invitegate/internal/wallet/store"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/requestcontext"
)

const ecosystem = "Estonians888InviteNFT"

var (
	issuer = ledger.Issuer("ops@invitegate")
	ownerX = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
)

type LedgerSuite struct {
	suite.Suite
	ctx      context.Context
	tx       *store.MemoryTx
	verifier *signature.Verifier
	metrics  *metrics.Metrics
	service  *ledger.Service
	keyY     *ecdsa.PrivateKey
	walletY  domain.Address
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-test")
	s.tx = store.NewMemory()
	s.build(s.tx)

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.keyY = key
	s.walletY = signature.AddressOf(key)
}

func (s *LedgerSuite) build(tx ledger.TxRunner) {
	verifier, err := signature.NewVerifier(ecosystem)
	s.Require().NoError(err)
	s.verifier = verifier
	s.metrics = metrics.New(prometheus.NewRegistry())
	service, err := ledger.New(tx, verifier,
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.service = service
}

func (s *LedgerSuite) sign(key *ecdsa.PrivateKey, addr domain.Address) []byte {
	digest, err := s.verifier.Challenge(signature.SchemePacked, addr)
	s.Require().NoError(err)
	sig, err := signature.SignChallenge(key, digest)
	s.Require().NoError(err)
	return sig
}

func (s *LedgerSuite) eventTypes() []events.Type {
	pending, err := s.tx.Outbox().Pending(s.ctx, 1000)
	s.Require().NoError(err)
	out := make([]events.Type, len(pending))
	for i, e := range pending {
		out[i] = e.Type
	}
	return out
}

func batchCodes(prefix string) []string {
	codes := make([]string, ledger.DefaultInvitesPerMember)
	for i := range codes {
		codes[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return codes
}

// onboard drives code through mint, activation, verification and binding to walletY.
func (s *LedgerSuite) onboard(code, rawIdentity string) domain.TokenID {
	_, err := s.service.MintInvite(s.ctx, issuer, ownerX, code, "ipfs://"+code)
	s.Require().NoError(err)
	_, err = s.service.ActivateInvite(s.ctx, issuer, code, rawIdentity)
	s.Require().NoError(err)
	s.Require().NoError(s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY)))
	tokenID, err := s.service.ConnectWallet(s.ctx, issuer, rawIdentity, s.walletY)
	s.Require().NoError(err)
	return tokenID
}

func (s *LedgerSuite) TestNew() {
	_, err := ledger.New(nil, s.verifier)
	s.Error(err)
	_, err = ledger.New(s.tx, nil)
	s.Error(err)

	svc, err := ledger.New(s.tx, s.verifier, ledger.WithInvitesPerMember(3))
	s.Require().NoError(err)
	s.Equal(3, svc.InvitesPerMember())
}

func (s *LedgerSuite) TestMintInvite() {
	s.Run("issuer mints with custody at recipient", func() {
		cred, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A1", "ipfs://a")
		s.Require().NoError(err)
		s.Equal(domain.TokenID(1), cred.TokenID)
		s.Equal(models.StateIssued, cred.State())

		owner, err := s.service.OwnerOf(s.ctx, cred.TokenID)
		s.Require().NoError(err)
		s.Equal(ownerX, owner)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.InvitesIssued))
	})

	s.Run("duplicate code leaves the store unchanged", func() {
		_, err := s.service.MintInvite(s.ctx, issuer, s.walletY, "A1", "ipfs://other")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCode))

		cred, err := s.service.Credential(s.ctx, "A1")
		s.Require().NoError(err)
		s.Equal(ownerX, cred.Recipient)
		s.Equal("ipfs://a", cred.ArtifactLocator)
		tokens, err := s.service.TokensOf(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.Empty(tokens)
		s.Equal([]events.Type{events.TypeInviteIssued}, s.eventTypes())
	})

	s.Run("rejects non issuers", func() {
		for _, auth := range []ledger.Authority{{}, ledger.Member(ownerX)} {
			_, err := s.service.MintInvite(s.ctx, auth, ownerX, "A2", "ipfs://a")
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}
	})

	s.Run("rejects invalid input", func() {
		_, err := s.service.MintInvite(s.ctx, issuer, domain.ZeroAddress, "A3", "ipfs://a")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.MintInvite(s.ctx, issuer, ownerX, "", "ipfs://a")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.MintInvite(s.ctx, issuer, ownerX, "A3", " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LedgerSuite) TestActivateInvite() {
	_, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A1", "ipfs://a")
	s.Require().NoError(err)

	s.Run("validate is true before activation", func() {
		ok, err := s.service.ValidateCode(s.ctx, "A1")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("activation stores only the commitment", func() {
		commitment, err := s.service.ActivateInvite(s.ctx, issuer, "A1", "u@x.io")
		s.Require().NoError(err)
		s.Equal(identity.Commit("u@x.io"), commitment)

		cred, err := s.service.Credential(s.ctx, "A1")
		s.Require().NoError(err)
		s.Equal(models.StateActivated, cred.State())
		s.Require().NotNil(cred.Commitment)
		s.Equal(commitment, *cred.Commitment)
	})

	s.Run("validate is permanently false afterwards", func() {
		ok, err := s.service.ValidateCode(s.ctx, "A1")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("re-activation is rejected without touching the commitment", func() {
		_, err := s.service.ActivateInvite(s.ctx, issuer, "A1", "other@x.io")
		s.True(dErrors.HasCode(err, dErrors.CodeCodeNotAvailable))

		cred, err := s.service.Credential(s.ctx, "A1")
		s.Require().NoError(err)
		s.Equal(identity.Commit("u@x.io"), *cred.Commitment)
	})

	s.Run("unknown code is not available", func() {
		_, err := s.service.ActivateInvite(s.ctx, issuer, "missing", "u@x.io")
		s.True(dErrors.HasCode(err, dErrors.CodeCodeNotAvailable))
		ok, err := s.service.ValidateCode(s.ctx, "missing")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("one identity holds at most one invite", func() {
		_, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A2", "ipfs://a2")
		s.Require().NoError(err)
		_, err = s.service.ActivateInvite(s.ctx, issuer, "A2", "u@x.io")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyActivated))

		ok, err := s.service.ValidateCode(s.ctx, "A2")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("requires issuer and identity", func() {
		_, err := s.service.ActivateInvite(s.ctx, ledger.Member(ownerX), "A2", "v@x.io")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		_, err = s.service.ActivateInvite(s.ctx, issuer, "A2", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LedgerSuite) TestVerifyWallet() {
	s.Run("accepts a signature by the address", func() {
		s.Require().NoError(s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY)))
		w, err := s.service.Wallet(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.True(w.Verified)
	})

	s.Run("second verification is rejected", func() {
		err := s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY))
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	})

	s.Run("signature for another address fails", func() {
		other, err := crypto.GenerateKey()
		s.Require().NoError(err)
		otherAddr := signature.AddressOf(other)

		// valid signature by other, but over walletY's challenge
		err = s.service.VerifyWallet(s.ctx, otherAddr, s.sign(other, s.walletY))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
		// walletY's key signing other's challenge
		err = s.service.VerifyWallet(s.ctx, otherAddr, s.sign(s.keyY, otherAddr))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))

		w, err := s.service.Wallet(s.ctx, otherAddr)
		s.Require().NoError(err)
		s.False(w.Verified)
	})

	s.Run("malformed signature fails", func() {
		err := s.service.VerifyWallet(s.ctx, ownerX, []byte{1, 2, 3})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})
}

func (s *LedgerSuite) TestOnboardingScenario() {
	tokenID := s.onboard("A1", "u@x.io")

	ok, err := s.service.ValidateCode(s.ctx, "A1")
	s.Require().NoError(err)
	s.False(ok)

	forCode, err := s.service.TokenIDForCode(s.ctx, "A1")
	s.Require().NoError(err)
	s.Equal(tokenID, forCode)

	owner, err := s.service.OwnerOf(s.ctx, tokenID)
	s.Require().NoError(err)
	s.Equal(s.walletY, owner)

	w, err := s.service.Wallet(s.ctx, s.walletY)
	s.Require().NoError(err)
	s.Require().NotNil(w.LinkedIdentity)
	s.Equal(identity.Commit("u@x.io"), *w.LinkedIdentity)

	cred, err := s.service.CredentialByToken(s.ctx, tokenID)
	s.Require().NoError(err)
	s.Equal(models.StateBound, cred.State())
	s.Equal(ownerX, cred.Recipient)

	s.Equal([]events.Type{
		events.TypeInviteIssued,
		events.TypeInviteActivated,
		events.TypeWalletVerified,
		events.TypeWalletLinked,
	}, s.eventTypes())
}

func (s *LedgerSuite) TestConnectWallet() {
	_, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A1", "ipfs://a")
	s.Require().NoError(err)
	_, err = s.service.ActivateInvite(s.ctx, issuer, "A1", "u@x.io")
	s.Require().NoError(err)

	s.Run("unverified wallet", func() {
		_, err := s.service.ConnectWallet(s.ctx, issuer, "u@x.io", s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
	})

	s.Require().NoError(s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY)))

	s.Run("unknown identity", func() {
		_, err := s.service.ConnectWallet(s.ctx, issuer, "nobody@x.io", s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownIdentity))
	})

	s.Run("member authority is rejected", func() {
		_, err := s.service.ConnectWallet(s.ctx, ledger.Member(s.walletY), "u@x.io", s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("binds once", func() {
		_, err := s.service.ConnectWallet(s.ctx, issuer, "u@x.io", s.walletY)
		s.Require().NoError(err)

		_, err = s.service.ConnectWallet(s.ctx, issuer, "u@x.io", s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinked))
	})

	s.Run("wallet holding another identity", func() {
		_, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A2", "ipfs://a2")
		s.Require().NoError(err)
		_, err = s.service.ActivateInvite(s.ctx, issuer, "A2", "v@x.io")
		s.Require().NoError(err)

		_, err = s.service.ConnectWallet(s.ctx, issuer, "v@x.io", s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinked))

		tokenID, err := s.service.TokenIDForCode(s.ctx, "A2")
		s.Require().NoError(err)
		owner, err := s.service.OwnerOf(s.ctx, tokenID)
		s.Require().NoError(err)
		s.Equal(ownerX, owner)
	})
}

func (s *LedgerSuite) TestConnectWalletToRecipientIsFinal() {
	_, err := s.service.MintInvite(s.ctx, issuer, s.walletY, "R1", "ipfs://r1")
	s.Require().NoError(err)
	_, err = s.service.ActivateInvite(s.ctx, issuer, "R1", "r@x.io")
	s.Require().NoError(err)
	s.Require().NoError(s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY)))
	tokenID, err := s.service.ConnectWallet(s.ctx, issuer, "r@x.io", s.walletY)
	s.Require().NoError(err)

	keyZ, err := crypto.GenerateKey()
	s.Require().NoError(err)
	walletZ := signature.AddressOf(keyZ)
	s.Require().NoError(s.service.VerifyWallet(s.ctx, walletZ, s.sign(keyZ, walletZ)))
	before := s.eventTypes()

	_, err = s.service.ConnectWallet(s.ctx, issuer, "r@x.io", walletZ)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinked))

	owner, err := s.service.OwnerOf(s.ctx, tokenID)
	s.Require().NoError(err)
	s.Equal(s.walletY, owner)
	z, err := s.service.Wallet(s.ctx, walletZ)
	s.Require().NoError(err)
	s.Nil(z.LinkedIdentity)
	s.Equal(before, s.eventTypes())
}

type failingCustody struct {
	*credstore.InMemory
}

func (failingCustody) SetOwner(context.Context, domain.TokenID, domain.Address, time.Time) error {
	return errors.New("custody unavailable")
}

func (s *LedgerSuite) TestConnectWalletIsAtomic() {
	outbox := eventstore.NewInMemoryOutbox()
	wallets := walletstore.NewInMemory()
	s.tx = store.NewMemoryWith(ledger.Stores{
		Credentials: failingCustody{credstore.NewInMemory()},
		Wallets:     wallets,
		Outbox:      outbox,
	}, outbox)
	s.build(s.tx)

	_, err := s.service.MintInvite(s.ctx, issuer, ownerX, "A1", "ipfs://a")
	s.Require().NoError(err)
	_, err = s.service.ActivateInvite(s.ctx, issuer, "A1", "u@x.io")
	s.Require().NoError(err)
	s.Require().NoError(s.service.VerifyWallet(s.ctx, s.walletY, s.sign(s.keyY, s.walletY)))
	before := s.eventTypes()

	_, err = s.service.ConnectWallet(s.ctx, issuer, "u@x.io", s.walletY)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	w, err := s.service.Wallet(s.ctx, s.walletY)
	s.Require().NoError(err)
	s.True(w.Verified)
	s.Nil(w.LinkedIdentity)
	s.Equal(before, s.eventTypes())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.TransitionFailures.WithLabelValues("connect_wallet", "internal_error")))
}

func (s *LedgerSuite) TestBatchIssue() {
	s.onboard("A1", "u@x.io")
	member := ledger.Member(s.walletY)

	s.Run("wrong batch size", func() {
		_, err := s.service.BatchIssue(s.ctx, member, s.walletY, []string{"B1"}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("member of another address", func() {
		_, err := s.service.BatchIssue(s.ctx, ledger.Member(ownerX), s.walletY, batchCodes("B"), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("colliding code aborts the whole batch", func() {
		codes := batchCodes("B")
		codes[5] = "A1"
		_, err := s.service.BatchIssue(s.ctx, member, s.walletY, codes, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCode))

		codes = batchCodes("B")
		codes[7] = codes[0]
		_, err = s.service.BatchIssue(s.ctx, member, s.walletY, codes, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCode))

		ok, err := s.service.ValidateCode(s.ctx, "B1")
		s.Require().NoError(err)
		s.False(ok)
		issued, err := s.service.HasBatchIssued(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.False(issued)
	})

	s.Run("issues eight placeholder invites once", func() {
		batch, err := s.service.BatchIssue(s.ctx, member, s.walletY, batchCodes("B"), nil)
		s.Require().NoError(err)
		s.Len(batch, ledger.DefaultInvitesPerMember)
		for i, cred := range batch {
			s.Equal(domain.TokenID(i+2), cred.TokenID)
			s.Equal(s.walletY, cred.Recipient)
			s.False(cred.Activated)
			s.True(artifact.IsPlaceholder(cred.ArtifactLocator))
		}

		tokens, err := s.service.TokensOf(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.Len(tokens, 1+ledger.DefaultInvitesPerMember)
		issued, err := s.service.HasBatchIssued(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.True(issued)
	})

	s.Run("second batch is exhausted and adds nothing", func() {
		_, err := s.service.BatchIssue(s.ctx, issuer, s.walletY, batchCodes("C"), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeQuotaExhausted))

		ok, err := s.service.ValidateCode(s.ctx, "C1")
		s.Require().NoError(err)
		s.False(ok)
		tokens, err := s.service.TokensOf(s.ctx, s.walletY)
		s.Require().NoError(err)
		s.Len(tokens, 1+ledger.DefaultInvitesPerMember)
	})

	s.Run("one batch event", func() {
		var batches int
		for _, t := range s.eventTypes() {
			if t == events.TypeInvitesBatchIssued {
				batches++
			}
		}
		s.Equal(1, batches)
	})
}

func (s *LedgerSuite) TestBatchIssueLocators() {
	codes := batchCodes("L")
	locators := make([]string, len(codes))
	locators[0] = "ipfs://first"

	s.Run("length mismatch", func() {
		_, err := s.service.BatchIssue(s.ctx, issuer, ownerX, codes, locators[:3])
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("supplied locators are kept", func() {
		batch, err := s.service.BatchIssue(s.ctx, issuer, ownerX, codes, locators)
		s.Require().NoError(err)
		s.Equal("ipfs://first", batch[0].ArtifactLocator)
		s.Equal(artifact.Placeholder("L2"), batch[1].ArtifactLocator)
	})

	s.Run("artifact replaces placeholder once", func() {
		s.Require().NoError(s.service.AttachArtifact(s.ctx, issuer, "L2", "ipfs://second"))
		cred, err := s.service.Credential(s.ctx, "L2")
		s.Require().NoError(err)
		s.Equal("ipfs://second", cred.ArtifactLocator)

		err = s.service.AttachArtifact(s.ctx, issuer, "L2", "ipfs://again")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		err = s.service.AttachArtifact(s.ctx, ledger.Member(ownerX), "L3", "ipfs://x")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *LedgerSuite) TestChallenge() {
	s.Run("default scheme", func() {
		ch, err := s.service.Challenge("", s.walletY)
		s.Require().NoError(err)
		s.Equal(signature.SchemePacked, ch.Scheme)
		s.Equal("Verify wallet for "+ecosystem, ch.Message)
		s.Len(ch.Digest, 32)
	})

	s.Run("scheme not accepted", func() {
		_, err := s.service.Challenge(signature.SchemeLegacy, s.walletY)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("zero address", func() {
		_, err := s.service.Challenge("", domain.ZeroAddress)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LedgerSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.service.MintInvite(ctx, issuer, ownerX, "A1", "ipfs://a")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	_, err = s.service.Credential(ctx, "A1")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	ok, err := s.service.ValidateCode(s.ctx, "A1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *LedgerSuite) TestReadErrors() {
	_, err := s.service.Credential(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownCode))
	_, err = s.service.CredentialByToken(s.ctx, 42)
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownToken))
	_, err = s.service.OwnerOf(s.ctx, 42)
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownToken))
	_, err = s.service.TokenIDForCode(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownCode))

	w, err := s.service.Wallet(s.ctx, ownerX)
	s.Require().NoError(err)
	s.False(w.Verified)
	s.Nil(w.LinkedIdentity)
}
