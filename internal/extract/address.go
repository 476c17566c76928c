package extract

import (
	"regexp"
	"strings"
)

var (
	namedAddressRe = regexp.MustCompile(`"?(.*?)"?\s*<([^>]+)>`)
	bareAddressRe  = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
)

// ParseAddressField splits a recipient line into "Name <email>" or bare
// email tokens. The input may still contain character references. When no
// angle-bracket form is present, every bare address in the text is returned.
func ParseAddressField(field string) []string {
	decoded := decodeEntities(field)

	result := make([]string, 0)
	for _, m := range namedAddressRe.FindAllStringSubmatch(decoded, -1) {
		name := strings.Trim(m[1], " \t\r\n,;\"")
		email := strings.TrimSpace(m[2])
		if name == "" || name == email {
			result = append(result, email)
			continue
		}
		result = append(result, name+" <"+email+">")
	}
	if len(result) > 0 {
		return result
	}

	return append(result, bareAddressRe.FindAllString(decoded, -1)...)
}
