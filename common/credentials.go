package common

// Credentials carries the authentication material used when platform
// commands run with sudo or are executed on a remote host over SSH.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}
