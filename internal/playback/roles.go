package playback

import "strings"

// Role is a semantic category a stem is classified into.
type Role string

const (
	RoleFullMix Role = "full"
	RolePiano   Role = "piano"
	RoleViola   Role = "viola"
)

// Stem is an isolated audio track that can replace the full mix.
type Stem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
	// Duration in seconds; 0 when unknown.
	Duration float64 `json:"duration,omitempty"`
	// Role pins the stem to a role instead of matching on id and label.
	Role Role `json:"role,omitempty"`
}

// RoleSpec describes one role of the vocabulary.
type RoleSpec struct {
	Role     Role
	Label    string
	Keywords []string
	// Embedded roles are carried by the primary video's own audio track
	// and never engage the secondary element.
	Embedded bool
}

// DefaultVocabulary is the reference role set: full mix, piano, viola.
func DefaultVocabulary() []RoleSpec {
	return []RoleSpec{
		{Role: RoleFullMix, Label: "Full Mix", Keywords: []string{"full", "mix"}, Embedded: true},
		{Role: RolePiano, Label: "Piano", Keywords: []string{"piano"}},
		{Role: RoleViola, Label: "Viola", Keywords: []string{"viola"}},
	}
}

// Ambiguity records a stem whose id or label matched more than one role.
type Ambiguity struct {
	StemID string
	Roles  []Role
}

// Assignment maps roles to the stems classified into them.
type Assignment struct {
	vocab []RoleSpec
	stems map[Role]Stem

	// Ambiguous lists stems matched by several roles. Each role still takes
	// its first match.
	Ambiguous []Ambiguity
}

// Classify assigns stems to the roles of vocab. A stem with an explicit
// Role claims that role. Remaining roles take, in vocabulary order, the
// first stem whose id or label contains one of the role's keywords,
// case-insensitively. Roles with no match stay unassigned.
func Classify(stems []Stem, vocab []RoleSpec) Assignment {
	a := Assignment{vocab: vocab, stems: make(map[Role]Stem)}

	known := make(map[Role]bool, len(vocab))
	for _, spec := range vocab {
		known[spec.Role] = true
	}

	for _, st := range stems {
		if st.Role == "" || !known[st.Role] {
			continue
		}
		if _, taken := a.stems[st.Role]; !taken {
			a.stems[st.Role] = st
		}
	}

	for _, spec := range vocab {
		if _, taken := a.stems[spec.Role]; taken {
			continue
		}
		for _, st := range stems {
			if st.Role != "" {
				continue
			}
			if matches(st, spec) {
				a.stems[spec.Role] = st
				break
			}
		}
	}

	for _, st := range stems {
		if st.Role != "" {
			continue
		}
		var roles []Role
		for _, spec := range vocab {
			if matches(st, spec) {
				roles = append(roles, spec.Role)
			}
		}
		if len(roles) > 1 {
			a.Ambiguous = append(a.Ambiguous, Ambiguity{StemID: st.ID, Roles: roles})
		}
	}

	return a
}

func matches(st Stem, spec RoleSpec) bool {
	text := strings.ToLower(st.ID + " " + st.Label)
	for _, kw := range spec.Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Roles returns the vocabulary in display order.
func (a Assignment) Roles() []RoleSpec {
	out := make([]RoleSpec, len(a.vocab))
	copy(out, a.vocab)
	return out
}

// Spec returns the vocabulary entry for role.
func (a Assignment) Spec(role Role) (RoleSpec, bool) {
	for _, spec := range a.vocab {
		if spec.Role == role {
			return spec, true
		}
	}
	return RoleSpec{}, false
}

// Available reports whether role can be selected. Nothing is available
// without a primary source; beyond that, stem roles need a classified
// stem with a URL.
func (a Assignment) Available(role Role, hasPrimary bool) bool {
	spec, ok := a.Spec(role)
	if !ok || !hasPrimary {
		return false
	}
	if spec.Embedded {
		return true
	}
	st, ok := a.stems[role]
	return ok && st.URL != ""
}

// Stem returns the stem classified into role.
func (a Assignment) Stem(role Role) (Stem, bool) {
	st, ok := a.stems[role]
	return st, ok
}
