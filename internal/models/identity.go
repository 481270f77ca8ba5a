package models

// Identity describes the signed-in dashboard user. It is owned by the session and
// treated as read-only everywhere else.
type Identity struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Authenticated reports whether the identity carries a user and a known role.
func (i *Identity) Authenticated() bool {
	return i != nil && i.ID != "" && i.Role.Valid()
}
