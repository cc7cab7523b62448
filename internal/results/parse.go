package results

import (
	"fmt"
	"strconv"
	"strings"
)

var genderWords = map[string]Gender{
	"m": GenderMale, "male": GenderMale, "man": GenderMale, "men": GenderMale,
	"м": GenderMale, "муж": GenderMale, "мужской": GenderMale, "мужчины": GenderMale,
	"f": GenderFemale, "w": GenderFemale, "female": GenderFemale, "woman": GenderFemale, "women": GenderFemale,
	"ж": GenderFemale, "жен": GenderFemale, "женский": GenderFemale, "женщины": GenderFemale,
	"x": GenderNonBinary, "nb": GenderNonBinary, "non-binary": GenderNonBinary, "nonbinary": GenderNonBinary,
}

// ParseGender maps platform gender text to a Gender. Unknown text yields GenderUnknown.
func ParseGender(text string) Gender {
	return genderWords[strings.ToLower(strings.TrimSpace(text))]
}

var statusWords = map[string]Status{
	"dnf": StatusDNF, "did not finish": StatusDNF, "сошел": StatusDNF, "сошёл": StatusDNF, "сход": StatusDNF,
	"dns": StatusDNS, "did not start": StatusDNS, "не стартовал": StatusDNS, "неявка": StatusDNS,
	"dq": StatusDQ, "dsq": StatusDQ, "disqualified": StatusDQ, "дисквалифицирован": StatusDQ, "дискв": StatusDQ,
}

// ParseResult derives the finish status and the finish time in centiseconds
// from a raw result text. An empty text is a non-finisher.
func ParseResult(text string) (Status, int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return StatusDNF, 0, nil
	}
	if status, ok := statusWords[strings.Trim(cleaned, ".")]; ok {
		return status, 0, nil
	}
	cs, err := ParseCentiseconds(cleaned)
	if err != nil {
		return "", 0, err
	}
	if cs == 0 {
		return StatusDNF, 0, nil
	}
	return StatusFinished, cs, nil
}

// ParseCentiseconds parses [[h:]m:]s[.fraction] into centiseconds. Fractions
// finer than hundredths are truncated; a comma is accepted as decimal mark.
func ParseCentiseconds(text string) (int64, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return 0, nil
	}
	clock, fraction, _ := strings.Cut(text, ".")
	parts := strings.Split(clock, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("parse time %q: too many fields", text)
	}
	var seconds int64
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse time %q: invalid field %q", text, part)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("parse time %q: field %q out of range", text, part)
		}
		seconds = seconds*60 + n
	}
	var hundredths int64
	if fraction != "" {
		for len(fraction) < 2 {
			fraction += "0"
		}
		n, err := strconv.ParseInt(fraction[:2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse time %q: invalid fraction", text)
		}
		hundredths = n
	}
	return seconds*100 + hundredths, nil
}

// FormatCentiseconds renders centiseconds as h:mm:ss[.cc].
func FormatCentiseconds(cs int64) string {
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	out := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	if frac := cs % 100; frac != 0 {
		out += fmt.Sprintf(".%02d", frac)
	}
	return out
}
