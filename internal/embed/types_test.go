package embed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredential_ExpiredWithin(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	cred := Credential{Token: "t", ExpiresAt: now.Add(60 * time.Second)}

	assert.False(t, cred.ExpiredWithin(now, 30*time.Second))
	assert.True(t, cred.ExpiredWithin(now, 60*time.Second), "expiry exactly at the margin counts as expired")
	assert.True(t, cred.ExpiredWithin(now.Add(45*time.Second), 30*time.Second))
	assert.Equal(t, 60*time.Second, cred.Remaining(now))
	assert.Negative(t, int64(cred.Remaining(now.Add(2*time.Minute))))
}

func TestEmbedSession_CloneIsIndependent(t *testing.T) {
	orig := EmbedSession{
		ID:      "report-a",
		Options: ViewOptions{OptionNavContentPane: true},
	}

	clone := orig.Clone()
	clone.Options[OptionNavContentPane] = false
	clone.Options[OptionFilterPane] = true

	assert.True(t, orig.Options.Enabled(OptionNavContentPane))
	assert.False(t, orig.Options.Enabled(OptionFilterPane))
}

func TestViewOptions_CloneNil(t *testing.T) {
	var opts ViewOptions
	assert.Nil(t, opts.Clone())
	assert.False(t, opts.Enabled(OptionFilterPane))
}
