package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/config"
)

func TestSendDevModeIsNoop(t *testing.T) {
	m := New(config.EmailConfig{FromAddress: "noreply@example.com"}, zap.NewNop())
	assert.NoError(t, m.Send("someone@example.com", "hello", "body"))
}
