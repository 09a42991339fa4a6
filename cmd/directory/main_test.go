package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/directory"
)

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	path := filepath.Join(t.TempDir(), "directory.db")
	c := &cli{t: t, base: []string{"-driver", "sqlite3", "-d", path, "-cost", "4"}}

	code, _, stderr := c.run("", "init")
	require.Equal(t, exitOK, code, stderr)
	return c
}

func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(append([]string{}, c.base...), args...),
		strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLI_RegisterLoginGet(t *testing.T) {
	c := newCLI(t)

	code, out, stderr := c.run("s3cret\n", "register", "alice", "Alice", "Liddell", "+1-555-0100")
	require.Equal(t, exitOK, code, stderr)
	assert.NotContains(t, out, "password")
	assert.NotContains(t, out, "$2a$")

	var got struct {
		Username    string `json:"username"`
		FirstName   string `json:"firstName"`
		Phone       string `json:"phone"`
		JoinedAt    string `json:"joinedAt"`
		LastLoginAt string `json:"lastLoginAt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, "+1-555-0100", got.Phone)
	assert.Equal(t, got.JoinedAt, got.LastLoginAt)

	code, out, _ = c.run("s3cret", "login", "alice")
	assert.Equal(t, exitOK, code)
	assert.JSONEq(t, `{"authenticated": true}`, out)

	code, out, _ = c.run("nope\n", "authenticate", "alice")
	assert.Equal(t, exitDenied, code)
	assert.JSONEq(t, `{"authenticated": false}`, out)

	code, out, _ = c.run("", "get", "alice")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, `"username": "alice"`)
}

func TestCLI_ErrorStatuses(t *testing.T) {
	c := newCLI(t)

	code, _, _ := c.run("pw\n", "register", "bob", "Bob", "Builder")
	require.Equal(t, exitOK, code)

	code, _, _ = c.run("pw\n", "register", "bob", "Robert", "Builder")
	assert.Equal(t, exitConflict, code)

	code, _, _ = c.run("", "get", "nobody")
	assert.Equal(t, exitNotFound, code)

	code, _, _ = c.run("", "record-login", "nobody")
	assert.Equal(t, exitNotFound, code)

	code, _, _ = c.run("\n", "register", "carol", "Carol", "C")
	assert.Equal(t, exitInvalid, code)

	code, _, _ = c.run("", "get")
	assert.Equal(t, exitUsage, code)

	code, _, _ = c.run("", "frobnicate")
	assert.Equal(t, exitUsage, code)
}

func TestCLI_ListAndMessages(t *testing.T) {
	c := newCLI(t)
	for _, u := range []string{"zed", "amy"} {
		code, _, stderr := c.run("pw\n", "register", u, u, "Tester")
		require.Equal(t, exitOK, code, stderr)
	}

	code, out, _ := c.run("", "list")
	require.Equal(t, exitOK, code)
	var profiles []struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	require.Len(t, profiles, 2)
	assert.Equal(t, "amy", profiles[0].Username)
	assert.Equal(t, "zed", profiles[1].Username)

	code, out, _ = c.run("", "inbox", "amy")
	assert.Equal(t, exitOK, code)
	assert.JSONEq(t, `[]`, out)

	code, out, _ = c.run("", "sent", "amy")
	assert.Equal(t, exitOK, code)
	assert.JSONEq(t, `[]`, out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitNotFound, exitCode(&directory.Error{Kind: directory.KindNotFound, Err: db.ErrNotFound}))
	assert.Equal(t, exitConflict, exitCode(&directory.Error{Kind: directory.KindConflict, Err: db.ErrDuplicateKey}))
	assert.Equal(t, exitInvalid, exitCode(&directory.Error{Kind: directory.KindInvalid}))
	assert.Equal(t, exitUnavailable, exitCode(&directory.Error{Kind: directory.KindStoreFailure, Err: db.ErrTimeout}))
	assert.Equal(t, exitFailure, exitCode(&directory.Error{Kind: directory.KindStoreFailure, Err: errors.New("boom")}))
	assert.Equal(t, exitFailure, exitCode(errors.New("plain")))
}
