package settings

import (
	"math/rand/v2"
)

// Identity is a display name plus avatar picture reference
type Identity struct {
	Name    string
	Picture string
}

var identities = []Identity{
	{Name: "Ada", Picture: "avatars/ada.png"},
	{Name: "Grace", Picture: "avatars/grace.png"},
	{Name: "Alan", Picture: "avatars/alan.png"},
	{Name: "Margaret", Picture: "avatars/margaret.png"},
	{Name: "Linus", Picture: "avatars/linus.png"},
	{Name: "Barbara", Picture: "avatars/barbara.png"},
	{Name: "Dennis", Picture: "avatars/dennis.png"},
	{Name: "Frances", Picture: "avatars/frances.png"},
	{Name: "Ken", Picture: "avatars/ken.png"},
	{Name: "Radia", Picture: "avatars/radia.png"},
}

// RandomIdentity picks one of the built-in identities
func RandomIdentity() Identity {
	return identities[rand.IntN(len(identities))]
}

// EnsureIdentity fills an empty display name or picture with a random
// identity and reports whether anything changed
func (s *UserSettings) EnsureIdentity() bool {
	if s.DisplayName != "" && s.Picture != "" {
		return false
	}
	id := RandomIdentity()
	if s.DisplayName == "" {
		s.DisplayName = id.Name
	}
	if s.Picture == "" {
		s.Picture = id.Picture
	}
	return true
}
