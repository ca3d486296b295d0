package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"invitegate/internal/identity"
	dErrors "invitegate/pkg/domain-errors"
)

func TestWalletTransitions(t *testing.T) {
	var w Wallet
	assert.NoError(t, w.CanVerify())
	assert.True(t, dErrors.HasCode(w.CanLink(identity.Commit("a")), dErrors.CodeNotVerified))

	w.Verified = true
	assert.True(t, dErrors.HasCode(w.CanVerify(), dErrors.CodeAlreadyVerified))
	assert.NoError(t, w.CanLink(identity.Commit("a")))

	linked := identity.Commit("a")
	w.LinkedIdentity = &linked
	assert.True(t, w.IsLinked())
	assert.NoError(t, w.CanLink(identity.Commit("a")))
	assert.True(t, dErrors.HasCode(w.CanLink(identity.Commit("b")), dErrors.CodeAlreadyLinked))
}
