// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testParams)
	require.NoError(t, err)
	return h
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := newTestHasher(t)

	long := strings.Repeat("p@ss", 256)
	for _, pw := range []string{"correct horse", "ümlaut-пароль", long} {
		digest, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(digest, "$argon2id$"))

		assert.True(t, h.Verify(pw, digest))
		assert.False(t, h.Verify(pw+"x", digest))
		assert.False(t, h.Verify("", digest))
	}
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_EmptyRejected(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPasswordHasher_MalformedDigestIsFalse(t *testing.T) {
	h := newTestHasher(t)

	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1,t=1,p=1$$",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$2b$10$tooshort",
	} {
		assert.False(t, h.Verify("anything", digest), digest)
	}
}

func TestPasswordHasher_LegacyBcrypt(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("imported"), bcrypt.MinCost)
	require.NoError(t, err)

	valid, rehash := h.VerifyWithRehash("imported", string(legacy))
	assert.True(t, valid)
	require.NotEmpty(t, rehash)
	assert.True(t, strings.HasPrefix(rehash, "$argon2id$"))
	assert.True(t, h.Verify("imported", rehash))

	valid, rehash = h.VerifyWithRehash("wrong", string(legacy))
	assert.False(t, valid)
	assert.Empty(t, rehash)
}

func TestPasswordHasher_RehashOnParamChange(t *testing.T) {
	old := newTestHasher(t)
	digest, err := old.Hash("pw-1234567")
	require.NoError(t, err)

	stronger, err := NewPasswordHasher(Argon2Params{
		Time: 2, Memory: 8 * 1024, Threads: 1, KeyLen: 32,
	})
	require.NoError(t, err)

	valid, rehash := stronger.VerifyWithRehash("pw-1234567", digest)
	assert.True(t, valid)
	assert.NotEmpty(t, rehash)

	valid, rehash = old.VerifyWithRehash("pw-1234567", digest)
	assert.True(t, valid)
	assert.Empty(t, rehash)
}

func TestPasswordHasher_TimingSafeMissingPrincipal(t *testing.T) {
	h := newTestHasher(t)

	valid, rehash := h.VerifyTimingSafe("dummy_password_for_timing_attack_prevention", nil)
	assert.False(t, valid)
	assert.Empty(t, rehash)

	empty := ""
	valid, _ = h.VerifyTimingSafe("x", &empty)
	assert.False(t, valid)
}

func TestGenerateEphemeralToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tok, err := GenerateEphemeralToken(now, 20*time.Minute)
	require.NoError(t, err)

	assert.Len(t, tok.Plaintext, 64)
	assert.Equal(t, HashToken(tok.Plaintext), tok.Digest)
	assert.NotEqual(t, tok.Plaintext, tok.Digest)
	assert.Equal(t, now.Add(20*time.Minute), tok.ExpiresAt)

	other, err := GenerateEphemeralToken(now, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Plaintext, other.Plaintext)
}

func TestHashTokenDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashToken("abc"),
	)
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("0300 1234567", "PK")
	require.NoError(t, err)
	assert.Equal(t, "+923001234567", got)

	got, err = NormalizePhone("+1 650-253-0000", "PK")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)

	_, err = NormalizePhone("12", "PK")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NormalizePhone("", "PK")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("jane_doe42"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("Jane"))
	assert.False(t, ValidUsername("has-dash"))
	assert.False(t, ValidUsername(strings.Repeat("a", 21)))
}
