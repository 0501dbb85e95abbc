// Package identity is the station's directory of metas and profiles.
package identity

import (
	"context"
	"strconv"
	"strings"

	"e2e_station/internal/cryptographic/signature"
	"e2e_station/internal/model"
)

type Directory interface {
	SaveMeta(ctx context.Context, id model.ID, meta *model.Meta) (bool, error)
	Meta(ctx context.Context, id model.ID) (*model.Meta, error)
	SaveProfile(ctx context.Context, profile *model.Profile) (bool, error)
	Profile(ctx context.Context, id model.ID) (*model.Profile, error)
	Search(ctx context.Context, keywords []string, limit int) (map[model.ID]*model.Meta, error)
	Name(ctx context.Context, id model.ID) string
}

// verifyProfile checks the profile data against the owner's signing key.
func verifyProfile(meta *model.Meta, profile *model.Profile) bool {
	if meta == nil || profile == nil {
		return false
	}
	return signature.ED25519Verify(meta.Key.Sign, []byte(profile.Data), profile.Signature)
}

func digits(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

// matches is the in-memory form of the keyword rule: identifier substring
// or search number (with or without dashes).
func matches(id model.ID, meta *model.Meta, keyword string) bool {
	if strings.Contains(string(id), keyword) {
		return true
	}
	n := meta.Number()
	return strings.Contains(model.FormatNumber(n), keyword) || strings.Contains(digits(n), keyword)
}

func searchable(meta *model.Meta) bool {
	return meta.Type.IsUser() || meta.Type.IsGroup()
}

// displayName prefers the profile name, then the identifier seed.
func displayName(profile *model.Profile, id model.ID) string {
	if name := profile.Name(); name != "" {
		return name
	}
	if name := id.Name(); name != "" {
		return name
	}
	return string(id)
}
