// Package funds is the fungible-value collaborator: custody accounts for
// actors and one vault account per study. Transfer is the all-or-nothing
// primitive the study funding and reward disbursement steps call into.
package funds

import id "recrusearch/pkg/domain"

// AccountID names one custody pool. Identities and study vaults live in the
// same balance table so a transfer between them is a single atomic step.
type AccountID string

// CustodyAccount is the account holding an actor's own funds.
func CustodyAccount(identity id.Identity) AccountID {
	return AccountID("custody:" + identity.String())
}

// VaultAccount is the reward vault pre-associated with a study.
func VaultAccount(study id.StudyID) AccountID {
	return AccountID("vault:" + study.String())
}

func (a AccountID) String() string { return string(a) }
