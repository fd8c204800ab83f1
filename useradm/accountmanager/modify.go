package accountmanager

// ModifyAction enumerates the supported account modifications. The
// sealed interface forces ModifyAccount to handle every variant with a
// type switch instead of dispatching on strings.
type ModifyAction interface {
	modifyAction()
}

// AddGroup adds the account to the named supplementary group.
type AddGroup struct{ Group string }

// RemoveGroup removes the account from the named group.
type RemoveGroup struct{ Group string }

// ChangeShell sets the account's login shell.
type ChangeShell struct{ Shell string }

// Lock disables password authentication for the account.
type Lock struct{}

// Unlock re-enables password authentication.
type Unlock struct{}

// ResetPassword issues a fresh temporary credential that must be
// changed at next login.
type ResetPassword struct{}

func (AddGroup) modifyAction()      {}
func (RemoveGroup) modifyAction()   {}
func (ChangeShell) modifyAction()   {}
func (Lock) modifyAction()          {}
func (Unlock) modifyAction()        {}
func (ResetPassword) modifyAction() {}
