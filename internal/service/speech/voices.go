package speech

import "strings"

const (
	resourceStandard = "volc.service_type.10029"
	resourceMega     = "volc.megatts.default"
	resourceSeed     = "seed-tts-2.0"

	defaultSpeaker = "en_female_amy_jupiter_bigtts"
)

// speakerAliases maps friendly voice names to engine speaker ids.
var speakerAliases = map[string]string{
	"default": "",
	"calm":    "en_female_amy_jupiter_bigtts",
	"warm":    "en_female_skye_emo_v2_mars_bigtts",
	"gentle":  "en_female_candice_emo_v2_mars_bigtts",
	"steady":  "en_male_glen_emo_v2_mars_bigtts",
	"bright":  "en_male_corey_emo_v2_mars_bigtts",
}

// resolveSpeakerCandidates returns the speakers to try, requested first.
// Aliases are expanded and duplicates dropped case-insensitively.
func resolveSpeakerCandidates(requested, fallback string) []string {
	var candidates []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if mapped, ok := speakerAliases[strings.ToLower(s)]; ok {
			s = mapped
		}
		if s == "" {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	add(defaultSpeaker)

	return candidates
}

// resolveResourceCandidates guesses the resource ids a speaker is billed
// under. Cloned voices ("S_" prefix) live on the mega resource; the named
// big-model voices usually live on seed.
func resolveResourceCandidates(speaker string) []string {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return []string{resourceStandard, resourceSeed}
	}
	if strings.HasPrefix(speaker, "S_") {
		return []string{resourceMega}
	}

	normalized := strings.ToLower(speaker)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "neptune", "mercury", "pluto", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{resourceSeed, resourceStandard}
		}
	}
	return []string{resourceStandard, resourceSeed}
}
