package sea

import "errors"

// ErrSignatureInvalid is returned by Verify when a signature fails to
// validate, including by VerifyCertificate when the certificate's own
// signature does not verify. A grant that doesn't cover the attempted
// write is reported as ErrCertDenied instead.
var ErrSignatureInvalid = errors.New("sea: signature invalid")

// ErrAuthFailed is returned by Authenticate on a wrong password.
var ErrAuthFailed = errors.New("sea: authentication failed")

// ErrCertDenied is returned when a certificate doesn't authorize the
// attempted path/action.
var ErrCertDenied = errors.New("sea: certificate does not authorize this write")

// ErrCertExpired is returned when a certificate's expiry has passed.
var ErrCertExpired = errors.New("sea: certificate expired")
