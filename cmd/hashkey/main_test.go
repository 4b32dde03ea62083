package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRun_HashesFlagOrStdin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-key", "s3cret", "-cost", "4"}, strings.NewReader(""), &out))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out.String())), []byte("s3cret")))

	out.Reset()
	require.NoError(t, run([]string{"-cost", "4"}, strings.NewReader("from-stdin\n"), &out))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out.String())), []byte("from-stdin")))
}

func TestRun_RejectsEmptyKey(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(nil, strings.NewReader("\n"), &out))
	assert.Empty(t, out.String())
}
