package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"name":"Media"}`)

	sealed, err := Encrypt(plaintext, "correct horse")
	require.NoError(t, err)
	require.True(t, IsEncrypted(sealed))
	require.NotContains(t, string(sealed), "Media", "plaintext must not leak into the output")

	opened, err := Decrypt(sealed, "correct horse")
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestDecryptWrongPassword(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "right")
	require.NoError(t, err)

	_, err = Decrypt(sealed, "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestDecryptPlainFile(t *testing.T) {
	_, err := Decrypt([]byte(`{"name":"Media"}`), "whatever")
	require.ErrorIs(t, err, ErrNotEncrypted)
}

func TestDecryptTruncatedFile(t *testing.T) {
	sealed, err := Encrypt([]byte("secret"), "pw")
	require.NoError(t, err)

	_, err = Decrypt(sealed[:len(encMagic)+4], "pw")
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestIsEncrypted(t *testing.T) {
	require.False(t, IsEncrypted(nil))
	require.False(t, IsEncrypted([]byte("{}")))
	require.False(t, IsEncrypted(encMagic))
}
