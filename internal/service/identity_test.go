package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_IssueVerify(t *testing.T) {
	svc := NewIdentityService("secret")

	id, token := svc.Issue()
	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(token, id+"."))

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other, _ := svc.Issue()
	assert.NotEqual(t, id, other)
}

func TestIdentityService_RejectsForgeries(t *testing.T) {
	svc := NewIdentityService("secret")
	id, token := svc.Issue()
	_, foreign := NewIdentityService("other-secret").Issue()
	otherID, _ := svc.Issue()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no signature", id},
		{"empty signature", id + "."},
		{"not a uuid", "admin." + strings.SplitN(token, ".", 2)[1]},
		{"signature of another id", otherID + "." + strings.SplitN(token, ".", 2)[1]},
		{"different secret", foreign},
		{"tampered", token + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
