package models

import "fmt"

// ParseVisibility validates a requested visibility setting.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPrivate, VisibilityRestricted:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility setting %q", s)
}

// ApplyVisibility returns a copy of p with the setting applied. RESTRICTED
// also blocks the profile; the other settings leave Blocked unchanged.
func ApplyVisibility(p Profile, setting Visibility) Profile {
	switch setting {
	case VisibilityPublic, VisibilityPrivate:
		p.Visibility = setting
	case VisibilityRestricted:
		p.Visibility = setting
		p.Blocked = true
	}
	return p
}
