package businessflow

import (
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationLink(t *testing.T) {
	id := uuid.MustParse("0b7d6a52-3f0e-4a4e-9a55-2f4c1f7f1c11")

	assert.Empty(t, invitationLink("", id, "abc"))

	link := invitationLink("https://kargo.example.com", id, "c0de+/=")
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "kargo.example.com", u.Host)
	assert.Equal(t, "/register", u.Path)
	assert.Equal(t, id.String(), u.Query().Get("prospect"))
	assert.Equal(t, "c0de+/=", u.Query().Get("code"))
}
