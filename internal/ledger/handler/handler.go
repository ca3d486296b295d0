package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"invitegate/internal/artifact"
	"invitegate/internal/credential/models"
	"invitegate/internal/identity"
	"invitegate/internal/ledger"
	"invitegate/internal/signature"
	walletmodels "invitegate/internal/wallet/models"
	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	"invitegate/pkg/platform/httputil"
	authmw "invitegate/pkg/platform/middleware/auth"
	"invitegate/pkg/requestcontext"
)

// Service defines the ledger operations exposed over HTTP.
type Service interface {
	MintInvite(ctx context.Context, auth ledger.Authority, recipient domain.Address, code, locator string) (*models.Credential, error)
	ActivateInvite(ctx context.Context, auth ledger.Authority, code, rawIdentity string) (identity.Commitment, error)
	VerifyWallet(ctx context.Context, addr domain.Address, sig []byte) error
	ConnectWallet(ctx context.Context, auth ledger.Authority, rawIdentity string, addr domain.Address) (domain.TokenID, error)
	BatchIssue(ctx context.Context, auth ledger.Authority, addr domain.Address, codes, locators []string) ([]*models.Credential, error)
	AttachArtifact(ctx context.Context, auth ledger.Authority, code, locator string) error

	ValidateCode(ctx context.Context, code string) (bool, error)
	Credential(ctx context.Context, code string) (*models.Credential, error)
	CredentialByToken(ctx context.Context, tokenID domain.TokenID) (*models.Credential, error)
	TokensOf(ctx context.Context, owner domain.Address) ([]domain.TokenID, error)
	Wallet(ctx context.Context, addr domain.Address) (*walletmodels.Wallet, error)
	HasBatchIssued(ctx context.Context, addr domain.Address) (bool, error)
	Challenge(scheme signature.Scheme, addr domain.Address) (ledger.Challenge, error)
}

// Handler serves the ledger API.
type Handler struct {
	service   Service
	ecosystem string
	logger    *slog.Logger
}

func New(service Service, ecosystem string, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		ecosystem: ecosystem,
		logger:    logger,
	}
}

// Register mounts the ledger endpoints on r. Authentication middleware is the
// caller's concern; handlers read the authority from the request context.
func (h *Handler) Register(r chi.Router) {
	r.Route("/invites", func(r chi.Router) {
		r.Post("/", h.HandleMintInvite)
		r.Get("/{code}", h.HandleGetInvite)
		r.Get("/{code}/availability", h.HandleAvailability)
		r.Post("/{code}/activate", h.HandleActivate)
		r.Put("/{code}/artifact", h.HandleAttachArtifact)
	})
	r.Route("/wallets/{address}", func(r chi.Router) {
		r.Get("/", h.HandleGetWallet)
		r.Get("/challenge", h.HandleChallenge)
		r.Post("/verify", h.HandleVerify)
		r.Post("/connect", h.HandleConnect)
		r.Post("/invites", h.HandleBatchIssue)
	})
	r.Get("/tokens/{tokenID}", h.HandleGetToken)
	r.Get("/tokens/{tokenID}/metadata", h.HandleTokenMetadata)
	r.Get("/owners/{address}/tokens", h.HandleTokensOf)
}

// authority builds the caller's capability from authenticated claims.
func authority(ctx context.Context) ledger.Authority {
	switch ledger.Role(authmw.GetRole(ctx)) {
	case ledger.RoleIssuer:
		return ledger.Issuer(requestcontext.Subject(ctx))
	case ledger.RoleMember:
		wallet, err := domain.ParseAddress(authmw.GetWallet(ctx))
		if err != nil {
			return ledger.Authority{}
		}
		return ledger.Member(wallet)
	default:
		return ledger.Authority{}
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"code", string(dErrors.CodeOf(err)),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}

func addressParam(r *http.Request) (domain.Address, error) {
	return domain.ParseAddress(chi.URLParam(r, "address"))
}

func tokenIDParam(r *http.Request) (domain.TokenID, error) {
	return domain.ParseTokenID(chi.URLParam(r, "tokenID"))
}

// HandleMintInvite handles POST /invites.
func (h *Handler) HandleMintInvite(w http.ResponseWriter, r *http.Request) {
	var req MintInviteRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid mint request", err)
		return
	}
	cred, err := h.service.MintInvite(r.Context(), authority(r.Context()), req.recipient, req.Code, req.ArtifactLocator)
	if err != nil {
		h.fail(w, r, "mint invite failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCredential(cred))
}

// HandleGetInvite handles GET /invites/{code}.
func (h *Handler) HandleGetInvite(w http.ResponseWriter, r *http.Request) {
	cred, err := h.service.Credential(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "invite lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCredential(cred))
}

// HandleAvailability handles GET /invites/{code}/availability.
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.ValidateCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "availability check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AvailabilityResponse{Available: available})
}

// HandleActivate handles POST /invites/{code}/activate.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid activation request", err)
		return
	}
	commitment, err := h.service.ActivateInvite(r.Context(), authority(r.Context()), chi.URLParam(r, "code"), req.Identity)
	if err != nil {
		h.fail(w, r, "activation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActivateResponse{Activated: true, Commitment: commitment.Hex()})
}

// HandleAttachArtifact handles PUT /invites/{code}/artifact.
func (h *Handler) HandleAttachArtifact(w http.ResponseWriter, r *http.Request) {
	var req AttachArtifactRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid artifact request", err)
		return
	}
	if err := h.service.AttachArtifact(r.Context(), authority(r.Context()), chi.URLParam(r, "code"), req.ArtifactLocator); err != nil {
		h.fail(w, r, "attach artifact failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetWallet handles GET /wallets/{address}.
func (h *Handler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	wallet, err := h.service.Wallet(r.Context(), addr)
	if err != nil {
		h.fail(w, r, "wallet lookup failed", err)
		return
	}
	issued, err := h.service.HasBatchIssued(r.Context(), addr)
	if err != nil {
		h.fail(w, r, "wallet lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWallet(wallet, issued))
}

// HandleChallenge handles GET /wallets/{address}/challenge.
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	var scheme signature.Scheme
	if raw := r.URL.Query().Get("scheme"); raw != "" {
		if scheme, err = signature.ParseScheme(raw); err != nil {
			h.fail(w, r, "invalid challenge scheme", err)
			return
		}
	}
	ch, err := h.service.Challenge(scheme, addr)
	if err != nil {
		h.fail(w, r, "challenge failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromChallenge(addr, ch))
}

// HandleVerify handles POST /wallets/{address}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	var req VerifyRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid verification request", err)
		return
	}
	if err := h.service.VerifyWallet(r.Context(), addr, req.signature); err != nil {
		h.fail(w, r, "wallet verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Address: addr.Hex(), Verified: true})
}

// HandleConnect handles POST /wallets/{address}/connect.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	var req ConnectRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid connect request", err)
		return
	}
	tokenID, err := h.service.ConnectWallet(r.Context(), authority(r.Context()), req.Identity, addr)
	if err != nil {
		h.fail(w, r, "connect wallet failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ConnectResponse{Address: addr.Hex(), TokenID: tokenID})
}

// HandleBatchIssue handles POST /wallets/{address}/invites.
func (h *Handler) HandleBatchIssue(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	var req BatchIssueRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "invalid batch request", err)
		return
	}
	batch, err := h.service.BatchIssue(r.Context(), authority(r.Context()), addr, req.Codes, req.ArtifactLocators)
	if err != nil {
		h.fail(w, r, "batch issue failed", err)
		return
	}
	resp := BatchIssueResponse{Address: addr.Hex(), Invites: make([]CredentialResponse, len(batch))}
	for i, cred := range batch {
		resp.Invites[i] = *FromCredential(cred)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleGetToken handles GET /tokens/{tokenID}.
func (h *Handler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid token id", err)
		return
	}
	cred, err := h.service.CredentialByToken(r.Context(), tokenID)
	if err != nil {
		h.fail(w, r, "token lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromToken(cred))
}

// HandleTokenMetadata handles GET /tokens/{tokenID}/metadata and sets the
// content identifier of the document in the ETag header.
func (h *Handler) HandleTokenMetadata(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid token id", err)
		return
	}
	cred, err := h.service.CredentialByToken(r.Context(), tokenID)
	if err != nil {
		h.fail(w, r, "token lookup failed", err)
		return
	}
	meta := artifact.NewMetadata(h.ecosystem, cred.Code, cred.ArtifactLocator)
	id, err := meta.CID()
	if err != nil {
		h.fail(w, r, "metadata encoding failed", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode metadata"))
		return
	}
	w.Header().Set("ETag", strconv.Quote(id.String()))
	httputil.WriteJSON(w, http.StatusOK, meta)
}

// HandleTokensOf handles GET /owners/{address}/tokens.
func (h *Handler) HandleTokensOf(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		h.fail(w, r, "invalid address", err)
		return
	}
	ids, err := h.service.TokensOf(r.Context(), addr)
	if err != nil {
		h.fail(w, r, "token listing failed", err)
		return
	}
	if ids == nil {
		ids = []domain.TokenID{}
	}
	httputil.WriteJSON(w, http.StatusOK, TokensResponse{Owner: addr.Hex(), Balance: len(ids), TokenIDs: ids})
}
