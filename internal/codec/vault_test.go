package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"katalog-linkow/internal/tree"
)

func TestVaultGlobalPassword(t *testing.T) {
	dir := t.TempDir()
	vault, err := NewVault(dir)
	require.NoError(t, err)

	require.False(t, vault.HasGlobal())
	require.False(t, vault.VerifyGlobal("anything"))

	require.NoError(t, vault.SetGlobal("tajne"))
	require.True(t, vault.HasGlobal())
	require.True(t, vault.VerifyGlobal("tajne"))
	require.False(t, vault.VerifyGlobal("wrong"))

	// Hashe przeżywają restart.
	reopened, err := NewVault(dir)
	require.NoError(t, err)
	require.True(t, reopened.VerifyGlobal("tajne"))
}

func TestVaultCategoryPasswords(t *testing.T) {
	vault, err := NewVault(t.TempDir())
	require.NoError(t, err)

	require.False(t, vault.HasCategory("Secrets"))
	require.NoError(t, vault.SetCategory("Secrets", "own-pw"))

	require.True(t, vault.HasCategory("secrets"), "lookup is case-insensitive")
	require.True(t, vault.VerifyCategory("SECRETS", "own-pw"))
	require.False(t, vault.VerifyCategory("Secrets", "wrong"))

	require.NoError(t, vault.RemoveCategory("Secrets"))
	require.False(t, vault.HasCategory("Secrets"))
}

func TestVaultRenameCategoryMovesHash(t *testing.T) {
	dir := t.TempDir()
	vault, err := NewVault(dir)
	require.NoError(t, err)

	require.NoError(t, vault.SetCategory("Stara", "own-pw"))
	require.NoError(t, vault.RenameCategory("Stara", "Nowa"))

	require.False(t, vault.HasCategory("Stara"))
	require.True(t, vault.VerifyCategory("Nowa", "own-pw"), "hash survives the move unchanged")

	// Brak starego klucza nie jest błędem.
	require.NoError(t, vault.RenameCategory("Widmo", "Inna"))
	require.False(t, vault.HasCategory("Inna"))

	reopened, err := NewVault(dir)
	require.NoError(t, err)
	require.True(t, reopened.VerifyCategory("Nowa", "own-pw"))
}

func TestChangeGlobalPasswordReencryptsRoots(t *testing.T) {
	store, secrets := newTestStore(t)
	vault, err := NewVault(store.Dir())
	require.NoError(t, err)

	secrets.SetGlobal("old-pw")
	require.NoError(t, vault.SetGlobal("old-pw"))

	protected := sampleRoot(t)
	protected.Category.PasswordProtection = tree.ProtectionGlobal
	require.NoError(t, store.SaveCategory(protected))

	plain := tree.NewCategoryNode("Public")
	require.NoError(t, store.SaveCategory(plain))

	forest := tree.NewForest()
	require.NoError(t, forest.AddRoot(protected))
	require.NoError(t, forest.AddRoot(plain))

	report, err := store.ChangeGlobalPassword(forest, vault, "old-pw", "new-pw")
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)
	require.Empty(t, report.Failures)
	require.True(t, vault.VerifyGlobal("new-pw"))

	// Plik daje się odczytać wyłącznie nowym hasłem.
	freshSecrets := NewSecretCache()
	freshStore, err := NewStore(store.Dir(), freshSecrets)
	require.NoError(t, err)
	_, err = freshStore.LoadCategory("Media")
	require.Error(t, err)

	freshSecrets.SetGlobal("new-pw")
	loaded, err := freshStore.LoadCategory("Media")
	require.NoError(t, err)
	require.Equal(t, "Media", loaded.Name())
}

func TestChangeGlobalPasswordRejectsWrongOldPassword(t *testing.T) {
	store, secrets := newTestStore(t)
	vault, err := NewVault(store.Dir())
	require.NoError(t, err)

	secrets.SetGlobal("old-pw")
	require.NoError(t, vault.SetGlobal("old-pw"))

	_, err = store.ChangeGlobalPassword(tree.NewForest(), vault, "wrong", "new-pw")
	require.ErrorIs(t, err, ErrGlobalPasswordMismatch)
	require.True(t, vault.VerifyGlobal("old-pw"), "mismatch must not change anything")
}
