package llm

import (
	"contentpipe/pkg/contracts/domain"
)

// styleTemplates shape the voice of the write stage.
var styleTemplates = map[domain.WritingStyle]string{
	domain.StyleProfessional: "Write in a formal, authoritative voice. Use precise terminology, " +
		"structured sections and measured conclusions. Avoid slang and rhetorical questions.",
	domain.StyleCasual: "Write in a relaxed, conversational voice. Use everyday language, " +
		"short sentences and direct address. Contractions are fine.",
	domain.StyleNews: "Write as a news report. Lead with the most important facts, use the " +
		"inverted pyramid, attribute claims and keep paragraphs short.",
}

// audienceProfiles adjust depth and vocabulary for the reader.
var audienceProfiles = map[domain.Audience]string{
	domain.AudienceGeneral: "The readers are the general public. Explain background where " +
		"needed and avoid unexplained jargon.",
	domain.AudienceTechnical: "The readers are practitioners in the field. Technical depth is " +
		"welcome; skip introductory explanations of basic concepts.",
	domain.AudienceBusiness: "The readers are business decision makers. Emphasize impact, " +
		"risks and opportunities over implementation detail.",
}

func styleInstruction(s domain.WritingStyle) string {
	if t, ok := styleTemplates[s]; ok {
		return t
	}
	return styleTemplates[domain.StyleProfessional]
}

func audienceInstruction(a domain.Audience) string {
	if p, ok := audienceProfiles[a]; ok {
		return p
	}
	return audienceProfiles[domain.AudienceGeneral]
}
