package codec

import (
	"errors"
	"log"

	"katalog-linkow/internal/tree"
)

var ErrGlobalPasswordMismatch = errors.New("current global password does not match")

type ReencryptFailure struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// ReencryptReport summarizes a continue-on-error batch. Succeeded plus
// len(Failures) equals the number of roots on global protection.
type ReencryptReport struct {
	Succeeded int                `json:"succeeded"`
	Failures  []ReencryptFailure `json:"failures,omitempty"`
}

// ChangeGlobalPassword verifies the old global password, swaps in the
// new one and rewrites every root category currently protected by it.
// One failing category never aborts the batch; failures are collected
// and reported per category.
func (s *Store) ChangeGlobalPassword(forest *tree.Forest, vault *Vault, oldPassword, newPassword string) (ReencryptReport, error) {
	var report ReencryptReport

	if vault.HasGlobal() && !vault.VerifyGlobal(oldPassword) {
		return report, ErrGlobalPasswordMismatch
	}
	if err := vault.SetGlobal(newPassword); err != nil {
		return report, err
	}
	s.secrets.SetGlobal(newPassword)

	for _, root := range forest.Roots {
		if root.Category == nil || root.Category.PasswordProtection != tree.ProtectionGlobal {
			continue
		}
		if err := s.SaveCategory(root); err != nil {
			log.Printf("ERROR: Failed to re-encrypt category %q: %v", root.Name(), err)
			report.Failures = append(report.Failures, ReencryptFailure{
				Category: root.Name(),
				Reason:   err.Error(),
			})
			continue
		}
		report.Succeeded++
	}

	return report, nil
}
