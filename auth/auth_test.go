package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MyVeryStr0ngPassw0rd!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password
	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompare_Invalid_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "$argon2id$broken")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "ComplexPass123!"}, false},
		{"Username too short", RegisterRequest{"al", "ComplexPass123!"}, true},
		{"Username not alphanumeric", RegisterRequest{"alice smith", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
