package application

import (
	"errors"
	"testing"
)

var testArgon2Params = Argon2idParams{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("open-sesame", testArgon2Params)
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}

	if err := VerifySecret(hash, "open-sesame"); err != nil {
		t.Fatalf("expected secret to verify, got %v", err)
	}
	if err := VerifySecret(hash, "wrong"); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
	if err := VerifySecret("$bcrypt$nope", "open-sesame"); !errors.Is(err, ErrInvalidSecretHash) {
		t.Fatalf("expected ErrInvalidSecretHash, got %v", err)
	}
	if _, err := HashSecret("", testArgon2Params); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}
