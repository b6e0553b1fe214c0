package service

// Authorizer gates the administrative operations: fee setters and
// pooled-balance withdrawal.
type Authorizer interface {
	Authorize(caller string) bool
}

// OpenAccess admits every caller. This matches the original deployment,
// which restricted nothing despite claiming otherwise.
type OpenAccess struct{}

func (OpenAccess) Authorize(string) bool { return true }

// AdminKey admits only callers presenting the configured key.
type AdminKey string

func (k AdminKey) Authorize(caller string) bool { return caller == string(k) }
