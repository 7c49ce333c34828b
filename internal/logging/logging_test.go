package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("asset_id", "0xabc").Info("asset minted")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "asset minted", entry["msg"])
	assert.Equal(t, "0xabc", entry["asset_id"])
}

func TestNew_Errors(t *testing.T) {
	var buf bytes.Buffer
	_, err := New("loud", "json", &buf)
	assert.Error(t, err)

	_, err = New("info", "xml", &buf)
	assert.Error(t, err)

	_, err = New("info", "text", &buf)
	assert.NoError(t, err)
}
