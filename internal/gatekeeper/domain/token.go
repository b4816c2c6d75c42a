package domain

import "time"

// TokenPair is what a successful login or rotation returns: a
// short-lived access JWT and a long-lived refresh JWT.
type TokenPair struct {
	AccessToken  string        `json:"access"`
	RefreshToken string        `json:"refresh"`
	TokenType    string        `json:"token_type,omitempty"` // "Bearer"
	ExpiresIn    time.Duration `json:"-"`                    // access token lifetime
}

// RevocationReason records why a token or family was invalidated.
type RevocationReason string

const (
	ReasonLogout  RevocationReason = "logout"
	ReasonRotated RevocationReason = "rotated"
	ReasonAdmin   RevocationReason = "admin"
	ReasonReuse   RevocationReason = "reuse-detected"
)

// RefreshFamily tracks the lineage of refresh tokens descending from
// one login. Exactly one member, the tip, is valid at any time;
// rotation advances the tip and increments the sequence. Revoking the
// family invalidates every token that carries its id, access tokens
// included.
type RefreshFamily struct {
	ID           string
	Subject      string // identity id
	TipJTI       string
	Sequence     int64
	ExpiresAt    time.Time // natural expiry of the current tip
	RevokedAt    *time.Time
	RevokeReason RevocationReason
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Revoked reports whether the family has been invalidated.
func (f RefreshFamily) Revoked() bool { return f.RevokedAt != nil }

// RevocationRecord is one append-only entry in the revocation store. A
// jti listed here is permanently invalid; records may be purged only
// after ExpiresAt, when the expiry check rejects the token anyway.
type RevocationRecord struct {
	JTI       string
	FamilyID  string
	Reason    RevocationReason
	RevokedAt time.Time
	ExpiresAt time.Time // natural expiry of the revoked token
}
