package identity

import (
	"strings"

	"github.com/janisto/astro-identity/internal/service/profile"
)

const minUserIDSuffix = 6

// Resolve reports whether candidate's full name collides with any profile in
// existing and which disambiguation method the group uses. Profiles with the
// candidate's ID are ignored, so existing may already contain the candidate.
//
// The method depends only on the colliding set, never on slice order:
//  1. email_prefix when two members share an email local part
//  2. registration_date when every member registered on a different UTC day
//  3. user_id otherwise
func Resolve(candidate profile.Profile, existing []profile.Profile) DuplicateNameContext {
	group := collidingSet(candidate, existing)
	if len(group) == 1 {
		return DuplicateNameContext{TotalCount: 1, DisambiguationMethod: MethodRegistrationDate}
	}
	return DuplicateNameContext{
		HasDuplicates:        true,
		TotalCount:           len(group),
		DisambiguationMethod: chooseMethod(group),
	}
}

// Display builds the display projection of p within existing.
func Display(p profile.Profile, existing []profile.Profile) UserDisplayInfo {
	info := UserDisplayInfo{
		ProfileID:   p.ID,
		UserID:      p.UserID,
		FullName:    p.FullName,
		DisplayName: p.FullName,
	}
	group := collidingSet(p, existing)
	if len(group) == 1 {
		return info
	}

	info.Method = chooseMethod(group)
	info.DisplayName = p.FullName + " (" + marker(p, group, info.Method) + ")"
	return info
}

// collidingSet returns candidate followed by every other profile sharing its folded name.
func collidingSet(candidate profile.Profile, existing []profile.Profile) []profile.Profile {
	key := profile.FoldName(candidate.FullName)
	group := []profile.Profile{candidate}
	seen := map[string]struct{}{candidate.ID: {}}
	for _, e := range existing {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if profile.FoldName(e.FullName) != key {
			continue
		}
		seen[e.ID] = struct{}{}
		group = append(group, e)
	}
	return group
}

func chooseMethod(group []profile.Profile) DisambiguationMethod {
	prefixes := make(map[string]struct{}, len(group))
	for _, p := range group {
		local := localPart(p.Email)
		if _, shared := prefixes[local]; shared {
			return MethodEmailPrefix
		}
		prefixes[local] = struct{}{}
	}

	days := make(map[string]struct{}, len(group))
	for _, p := range group {
		day := p.CreatedAt.UTC().Format(DateLayout)
		if _, same := days[day]; same {
			return MethodUserID
		}
		days[day] = struct{}{}
	}
	return MethodRegistrationDate
}

func marker(p profile.Profile, group []profile.Profile, method DisambiguationMethod) string {
	switch method {
	case MethodEmailPrefix:
		local := localPart(p.Email)
		for _, other := range group {
			if other.ID != p.ID && localPart(other.Email) == local {
				// Shared local part; the full address is unique.
				return profile.NormalizeEmail(p.Email)
			}
		}
		return local
	case MethodRegistrationDate:
		return p.CreatedAt.UTC().Format(DateLayout)
	default:
		return "#" + userIDSuffix(p, group)
	}
}

// userIDSuffix returns the shortest suffix of p.UserID, at least
// minUserIDSuffix long, that no other member's user id ends with.
func userIDSuffix(p profile.Profile, group []profile.Profile) string {
	id := p.UserID
	for n := min(minUserIDSuffix, len(id)); n < len(id); n++ {
		suffix := id[len(id)-n:]
		unique := true
		for _, other := range group {
			if other.ID != p.ID && strings.HasSuffix(other.UserID, suffix) {
				unique = false
				break
			}
		}
		if unique {
			return suffix
		}
	}
	return id
}

func localPart(email string) string {
	email = profile.NormalizeEmail(email)
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}
