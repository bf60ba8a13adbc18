package iocli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestPrintlnAndPrintf(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader(""), &out)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s", 1, "abc")
	_, err := stdio.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "hello world\ntest 1 abc!", out.String())
}

func TestReadInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "line", input: "user input\n", want: "user input"},
		{name: "trims spaces", input: "  alice \r\n", want: "alice"},
		{name: "last line without newline", input: "bob", want: "bob"},
		{name: "empty input", input: "", wantErr: ErrNoInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			stdio := New(strings.NewReader(tt.input), &out)

			result, err := stdio.ReadInput("Prompt: ")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
			assert.Equal(t, "Prompt: ", out.String())
		})
	}
}

// Несколько чтений подряд используют общий буфер
func TestReadSequence(t *testing.T) {
	var out bytes.Buffer
	stdio := New(strings.NewReader("alice\nSecret1\n"), &out)

	username, err := stdio.ReadInput("Username: ")
	require.NoError(t, err)
	password, err := stdio.ReadPassword("Password: ")
	require.NoError(t, err)

	assert.Equal(t, "alice", username)
	assert.Equal(t, "Secret1", password)
}

// Pipe не является терминалом, пароль читается как обычная строка
func TestReadPassword_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	go func() {
		_, _ = w.Write([]byte("Secret1\n"))
		_ = w.Close()
	}()

	var out bytes.Buffer
	stdio := New(r, &out)

	result, err := stdio.ReadPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "Secret1", result)
}
