package sqltrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObfuscate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT * FROM users WHERE id = 42", "SELECT * FROM users WHERE id = ?"},
		{"SELECT * FROM users WHERE name = 'O''Brien'", "SELECT * FROM users WHERE name = ?"},
		{"SELECT * FROM t1 WHERE price > 9.99", "SELECT * FROM t1 WHERE price > ?"},
		{"UPDATE users SET name = $1 WHERE id = $2", "UPDATE users SET name = $1 WHERE id = $2"},
		{"SELECT  1,\n\t2", "SELECT ?, ?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Obfuscate(tt.in), tt.in)
	}
}
