package sanitize

import "regexp"

// Plain email addresses (case-insensitive).
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +55 11 91234-5678, (11) 1234-5678, 08xx..., etc.
// At least 9 digits total so it does not fire on case numbers.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.\(\)]{7,}\d`)

// CPF (xxx.xxx.xxx-xx) and CNPJ (xx.xxx.xxx/xxxx-xx), dotted forms only;
// undotted sequences are already caught by the phone pattern.
var reCPFCNPJ = regexp.MustCompile(`\d{2,3}\.\d{3}\.\d{3}[/-]?\d{0,4}-?\d{2}`)

// RedactPII masks contact details and national ids in free text shown to
// lawyers before a case is engaged.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = reCPFCNPJ.ReplaceAllString(s, "[redacted document]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary trims text to max bytes on a word boundary for listing previews.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return s[:i] + "…"
}
