package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weilai0412/dormwatt/internal/config"
)

const validDoc = `{
  "username": "2022080912016",
  "password": "secret",
  "check_interval": 600,
  "alert_balance": 10.5,
  "smtp": {
    "server": "smtp.example.com",
    "port": 465,
    "username": "alerts@example.com",
    "password": "smtp-secret",
    "security": "ssl"
  },
  "queries": [
    {
      "room_name": "121604",
      "recipients": ["me@example.com", "roommate@example.com"],
      "server_chan": {
        "enabled": true,
        "recipients": [{"uid": "1234", "sendkey": "SCTkey"}]
      }
    }
  ]
}`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "active")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := config.Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	assert.Equal(t, "2022080912016", cfg.Username)
	assert.Equal(t, 600, cfg.CheckInterval)
	assert.InDelta(t, 10.5, cfg.AlertBalance, 0.001)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Server)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "ssl", cfg.SMTP.Security)
	require.Len(t, cfg.Queries, 1)
	assert.Equal(t, "121604", cfg.Queries[0].RoomName)
	assert.Len(t, cfg.Queries[0].Recipients, 2)
	assert.True(t, cfg.Queries[0].ServerChan.Enabled)
	require.Len(t, cfg.Queries[0].ServerChan.Recipients, 1)
	assert.Equal(t, "1234", cfg.Queries[0].ServerChan.Recipients[0].UID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := config.Load(writeDoc(t, `{"username": `))
	assert.Error(t, err)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": 0, "alert_balance": 1,
  "surprise": true,
  "smtp": {"server": "smtp.example.com", "port": 25, "username": "u", "password": "p", "security": "none"},
  "queries": [{"room_name": "0123", "recipients": ["a@b.cn"], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": 0,
  "smtp": {"server": "smtp.example.com", "port": 25, "username": "u", "password": "p", "security": "none"},
  "queries": [{"room_name": "0123", "recipients": ["a@b.cn"], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	assert.Error(t, err)
}

func TestLoad_BadSecurityMode(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": 0, "alert_balance": 1,
  "smtp": {"server": "smtp.example.com", "port": 25, "username": "u", "password": "p", "security": "starttls"},
  "queries": [{"room_name": "0123", "recipients": ["a@b.cn"], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	assert.Error(t, err)
}

func TestLoad_PortOutOfRange(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": 0, "alert_balance": 1,
  "smtp": {"server": "smtp.example.com", "port": 70000, "username": "u", "password": "p", "security": "none"},
  "queries": [{"room_name": "0123", "recipients": ["a@b.cn"], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	assert.Error(t, err)
}

func TestLoad_EmptyRecipientsRejected(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": 0, "alert_balance": 1,
  "smtp": {"server": "smtp.example.com", "port": 25, "username": "u", "password": "p", "security": "none"},
  "queries": [{"room_name": "0123", "recipients": [], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	assert.Error(t, err)
}

func TestLoad_NegativeIntervalRejected(t *testing.T) {
	doc := `{
  "username": "u", "password": "p", "check_interval": -5, "alert_balance": 1,
  "smtp": {"server": "smtp.example.com", "port": 25, "username": "u", "password": "p", "security": "none"},
  "queries": [{"room_name": "0123", "recipients": ["a@b.cn"], "server_chan": {"enabled": false, "recipients": []}}]
}`
	_, err := config.Load(writeDoc(t, doc))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	cfg, err := config.Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	s := cfg.Summary()
	assert.Contains(t, s, "121604")
	assert.Contains(t, s, "email: 2")
	assert.Contains(t, s, "push: 1")
	assert.NotContains(t, s, "secret")
}
