package models

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"time"
)

// OwnerID tags every workflow operation with the acting user and activation
// for audit correlation.
type OwnerID struct {
	UserID       string
	ActivationID string
	Timestamp    time.Time
}

// NewOwnerID builds an OwnerID stamped with the current time.
func NewOwnerID(userID, activationID string) OwnerID {
	return OwnerID{UserID: userID, ActivationID: activationID, Timestamp: time.Now()}
}

// SecuredUserID derives a non-reversible identifier safe for logs and audit
// records: Base32 of SHA-256 over the raw user id.
func (o OwnerID) SecuredUserID() string {
	sum := sha256.Sum256([]byte(o.UserID))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	if len(enc) > 255 {
		enc = enc[:255]
	}
	return enc
}

// String renders the owner for log lines without exposing the raw user id.
func (o OwnerID) String() string {
	return fmt.Sprintf("user=%s activation=%s", o.SecuredUserID(), o.ActivationID)
}
