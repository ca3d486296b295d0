package handler

import (
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"invitegate/internal/artifact"
	"invitegate/internal/credential/models"
	"invitegate/internal/identity"
	"invitegate/internal/ledger"
	"invitegate/internal/ledger/handler/mocks"
	"invitegate/internal/ledger/store"
	"invitegate/internal/signature"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks Service

const ecosystem = "Estonians888InviteNFT"

var ownerX = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, ecosystem, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestMintInvite() {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Run("issuer token reaches the ledger as issuer authority", func() {
		s.service.EXPECT().
			MintInvite(gomock.Any(), ledger.Issuer("ops"), ownerX, "A1", "ipfs://a").
			Return(&models.Credential{
				Code: "A1", TokenID: 1, ArtifactLocator: "ipfs://a",
				Recipient: ownerX, Owner: ownerX, IssuedAt: issuedAt,
			}, nil)

		req := testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites", map[string]string{
			"recipient": ownerX.Hex(), "code": "A1", "artifact_locator": "ipfs://a",
		}), "ops")
		w := s.do(req)

		s.Equal(http.StatusCreated, w.Code)
		resp := testutil.DecodeJSON[CredentialResponse](s.T(), w)
		s.Equal(domain.TokenID(1), resp.TokenID)
		s.Equal("issued", resp.State)
		s.Equal(ownerX.Hex(), resp.Owner)
	})

	s.Run("invalid recipient never reaches the ledger", func() {
		w := s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites", map[string]string{
			"recipient": "not-an-address", "code": "A1", "artifact_locator": "ipfs://a",
		}), "ops"))
		testutil.AssertDomainError(s.T(), w, http.StatusBadRequest, dErrors.CodeValidation)
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites", map[string]string{
			"recipient": ownerX.Hex(), "code": "A1", "artifact_locator": "ipfs://a", "owner": "x",
		}), "ops"))
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "issuer authority required"), http.StatusUnauthorized},
		{"not available", dErrors.New(dErrors.CodeCodeNotAvailable, "invite code is not available"), http.StatusUnprocessableEntity},
		{"already activated", dErrors.New(dErrors.CodeAlreadyActivated, "identity already holds an invite"), http.StatusConflict},
		{"timeout", dErrors.New(dErrors.CodeTimeout, "transaction aborted"), http.StatusGatewayTimeout},
		{"internal", dErrors.New(dErrors.CodeInternal, "db exploded at 10.0.0.1"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().
				ActivateInvite(gomock.Any(), ledger.Authority{}, "A1", "u@x.io").
				Return(identity.Commitment{}, tc.err)

			w := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites/A1/activate", map[string]string{"identity": "u@x.io"}))
			body := testutil.AssertDomainError(s.T(), w, tc.status, dErrors.CodeOf(tc.err))
			if tc.status == http.StatusInternalServerError {
				s.Empty(body.Description)
			}
		})
	}
}

func (s *HandlerSuite) TestMemberAuthority() {
	s.Run("member token becomes member authority", func() {
		s.service.EXPECT().
			BatchIssue(gomock.Any(), ledger.Member(ownerX), ownerX, []string{"B1"}, nil).
			Return(nil, dErrors.New(dErrors.CodeValidation, "batch must contain exactly 8 codes, got 1"))

		req := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/wallets/"+ownerX.Hex()+"/invites",
			map[string]any{"codes": []string{"B1"}}), ownerX.Hex())
		w := s.do(req)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("member token with a bad wallet claim is anonymous", func() {
		s.service.EXPECT().
			BatchIssue(gomock.Any(), ledger.Authority{}, ownerX, []string{"B1"}, nil).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "only an issuer or the address itself may batch issue"))

		req := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/wallets/"+ownerX.Hex()+"/invites",
			map[string]any{"codes": []string{"B1"}}), "garbage")
		w := s.do(req)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *HandlerSuite) TestChallengeScheme() {
	s.Run("unknown scheme", func() {
		w := s.do(httptest.NewRequest(http.MethodGet, "/wallets/"+ownerX.Hex()+"/challenge?scheme=weird", nil))
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("explicit scheme is passed through", func() {
		s.service.EXPECT().
			Challenge(signature.SchemeLegacy, ownerX).
			Return(ledger.Challenge{Scheme: signature.SchemeLegacy, Message: "Verify wallet for x", Digest: make([]byte, 32)}, nil)

		w := s.do(httptest.NewRequest(http.MethodGet, "/wallets/"+ownerX.Hex()+"/challenge?scheme=legacy", nil))
		s.Equal(http.StatusOK, w.Code)
		resp := testutil.DecodeJSON[ChallengeResponse](s.T(), w)
		s.Equal("legacy", resp.Scheme)
		s.Len(resp.Digest, 66)
	})
}

func (s *HandlerSuite) TestPathValidation() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/tokens/0", nil))
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/owners/0x0000000000000000000000000000000000000000/tokens", nil))
	s.Equal(http.StatusBadRequest, w.Code)
}

// FlowSuite drives the full onboarding flow through HTTP against a real
// in-memory ledger.
type FlowSuite struct {
	suite.Suite
	router   chi.Router
	verifier *signature.Verifier
	key      *ecdsa.PrivateKey
	wallet   domain.Address
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	verifier, err := signature.NewVerifier(ecosystem)
	s.Require().NoError(err)
	s.verifier = verifier
	svc, err := ledger.New(store.NewMemory(), verifier)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, ecosystem, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)

	s.key, err = crypto.GenerateKey()
	s.Require().NoError(err)
	s.wallet = signature.AddressOf(s.key)
}

func (s *FlowSuite) do(req *http.Request, status int) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(status, w.Code, w.Body.String())
	return w
}

func (s *FlowSuite) TestOnboarding() {
	base := "/wallets/" + s.wallet.Hex()

	s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites", map[string]string{
		"recipient": ownerX.Hex(), "code": "A1", "artifact_locator": "ipfs://a",
	}), "ops"), http.StatusCreated)

	var avail AvailabilityResponse
	s.Require().NoError(json.Unmarshal(s.do(httptest.NewRequest(http.MethodGet, "/invites/A1/availability", nil), http.StatusOK).Body.Bytes(), &avail))
	s.True(avail.Available)

	s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites/A1/activate", map[string]string{"identity": "u@x.io"}), http.StatusUnauthorized)
	s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites/A1/activate", map[string]string{"identity": "u@x.io"}), "ops"), http.StatusOK)
	s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/invites/A1/activate", map[string]string{"identity": "u@x.io"}), "ops"), http.StatusUnprocessableEntity)

	var ch ChallengeResponse
	s.Require().NoError(json.Unmarshal(s.do(httptest.NewRequest(http.MethodGet, base+"/challenge", nil), http.StatusOK).Body.Bytes(), &ch))
	digest, err := s.verifier.Challenge(signature.Scheme(ch.Scheme), s.wallet)
	s.Require().NoError(err)
	sig, err := signature.SignChallenge(s.key, digest)
	s.Require().NoError(err)

	s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/verify", map[string]string{"signature": signature.Encode(sig)}), http.StatusOK)
	s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/verify", map[string]string{"signature": signature.Encode(sig)}), http.StatusConflict)

	var connected ConnectResponse
	s.Require().NoError(json.Unmarshal(s.do(testutil.AsIssuer(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/connect",
		map[string]string{"identity": "u@x.io"}), "ops"), http.StatusOK).Body.Bytes(), &connected))
	s.Equal(domain.TokenID(1), connected.TokenID)

	var token TokenResponse
	s.Require().NoError(json.Unmarshal(s.do(httptest.NewRequest(http.MethodGet, "/tokens/1", nil), http.StatusOK).Body.Bytes(), &token))
	s.Equal(s.wallet.Hex(), token.Owner)
	s.Equal("bound", token.State)

	codes := []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	member := func() *http.Request {
		return testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/invites", map[string]any{"codes": codes}), s.wallet.Hex())
	}
	s.do(member(), http.StatusCreated)
	s.do(member(), http.StatusConflict)

	var tokens TokensResponse
	s.Require().NoError(json.Unmarshal(s.do(httptest.NewRequest(http.MethodGet, "/owners/"+s.wallet.Hex()+"/tokens", nil), http.StatusOK).Body.Bytes(), &tokens))
	s.Equal(9, tokens.Balance)

	w := s.do(httptest.NewRequest(http.MethodGet, "/tokens/2/metadata", nil), http.StatusOK)
	var meta artifact.Metadata
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &meta))
	s.Equal(ecosystem+" Invite NFT", meta.Name)
	s.Empty(meta.Image)
	s.NotEmpty(w.Header().Get("ETag"))

	var wallet WalletResponse
	s.Require().NoError(json.Unmarshal(s.do(httptest.NewRequest(http.MethodGet, base, nil), http.StatusOK).Body.Bytes(), &wallet))
	s.True(wallet.Verified)
	s.True(wallet.BatchIssued)
	s.NotEmpty(wallet.LinkedIdentity)
}

func (s *FlowSuite) TestUnknownLookups() {
	s.do(httptest.NewRequest(http.MethodGet, "/invites/missing", nil), http.StatusNotFound)
	s.do(httptest.NewRequest(http.MethodGet, "/tokens/7", nil), http.StatusNotFound)
	s.do(httptest.NewRequest(http.MethodGet, "/invites/missing/availability", nil), http.StatusOK)
}
