package catalog

import "strings"

// PhoneticKey encodes a word into a compact metaphone-style key so that
// differently-spelled but similar-sounding words collide ("chardonnay" and
// "shardonay" both encode to "XRTN"). The encoding is deterministic and is
// applied identically at indexing time and query time.
func PhoneticKey(word string) string {
	s := strings.ToUpper(strings.TrimSpace(word))
	// Letters only.
	var letters []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			letters = append(letters, s[i])
		}
	}
	if len(letters) == 0 {
		return ""
	}
	s = string(letters)

	// Leading silent pairs.
	for _, p := range []string{"KN", "GN", "PN", "WR"} {
		if strings.HasPrefix(s, p) {
			s = s[1:]
			break
		}
	}

	// Digraphs that change the leading sound.
	replacer := strings.NewReplacer(
		"SCH", "SK",
		"CH", "X",
		"SH", "X",
		"PH", "F",
		"TH", "T",
		"GH", "G",
		"CK", "K",
		"QU", "KW",
		"WH", "W",
	)
	s = replacer.Replace(s)

	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 'A', 'E', 'I', 'O', 'U', 'Y', 'H', 'W':
			// Vowels and near-vowels only survive in first position.
			if i == 0 {
				out = append(out, c)
			}
			continue
		case 'B', 'P':
			c = 'P'
		case 'C', 'K', 'Q':
			c = 'K'
		case 'D', 'T':
			c = 'T'
		case 'G', 'J':
			c = 'J'
		case 'S', 'Z':
			c = 'S'
		case 'F', 'V':
			c = 'F'
		case 'M', 'N':
			c = 'N'
		}
		if len(out) > 0 && out[len(out)-1] == c {
			continue
		}
		out = append(out, c)
	}

	if len(out) > 6 {
		out = out[:6]
	}
	return string(out)
}
