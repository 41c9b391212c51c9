package classify

import "encoding/json"

const profileKey = "classification"

// LoadProfileData pulls the classification record out of the player's
// opaque profileData blob, tolerating unknown sibling keys and malformed
// input (both yield a zero profile).
func LoadProfileData(blob string) (Profile, map[string]json.RawMessage) {
	rest := map[string]json.RawMessage{}
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &rest); err != nil {
			rest = map[string]json.RawMessage{}
		}
	}
	var p Profile
	if raw, ok := rest[profileKey]; ok {
		if err := json.Unmarshal(raw, &p); err != nil {
			p = Profile{}
		}
	}
	delete(rest, profileKey)
	return p, rest
}

// StoreProfileData folds the profile back into the blob, preserving the
// sibling keys returned by LoadProfileData.
func StoreProfileData(rest map[string]json.RawMessage, p Profile) (string, error) {
	if rest == nil {
		rest = map[string]json.RawMessage{}
	}
	enc, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	rest[profileKey] = enc
	out, err := json.Marshal(rest)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
