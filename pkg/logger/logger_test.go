package logx

import (
	"bytes"
	"testing"

	"github.com/edahouse/shopcore/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitProductionWritesJSONAtInfo(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Output: &buf})

	Debug().Msg("hidden")
	Info().Str("key", "value").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestComponentTagsEntries(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	var buf bytes.Buffer
	Init(LoggerOpts{Environment: core.Production, Output: &buf})

	l := Component("cart")
	l.Info().Msg("added")
	assert.Contains(t, buf.String(), `"component":"cart"`)
}
