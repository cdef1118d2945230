package util

import (
	"fmt"
	"strings"
)

// DomainPropertyPrefix marks a Search Console domain property rather
// than a URL-prefix property.
const DomainPropertyPrefix = "sc-domain:"

// NormaliseProperty canonicalises a property identifier. Domain
// properties keep their sc-domain: prefix with the bare domain
// lowercased; URL-prefix properties keep their scheme but lose any
// trailing slash.
func NormaliseProperty(property string) string {
	property = strings.TrimSpace(property)

	if strings.HasPrefix(property, DomainPropertyPrefix) {
		domain := strings.TrimPrefix(property, DomainPropertyPrefix)
		domain = strings.TrimPrefix(domain, "www.")
		domain = strings.TrimSuffix(domain, "/")
		return DomainPropertyPrefix + strings.ToLower(domain)
	}

	return strings.TrimSuffix(property, "/")
}

// ValidateProperty checks that a property identifier is either a
// sc-domain: property or an absolute http(s) URL prefix.
// Returns an error describing why the property is invalid, or nil if valid.
func ValidateProperty(property string) error {
	property = NormaliseProperty(property)

	if property == "" {
		return fmt.Errorf("property cannot be empty")
	}

	if strings.HasPrefix(property, DomainPropertyPrefix) {
		domain := strings.TrimPrefix(property, DomainPropertyPrefix)
		return validateDomain(domain)
	}

	if !strings.HasPrefix(property, "http://") && !strings.HasPrefix(property, "https://") {
		return fmt.Errorf("property must be a sc-domain: identifier or an absolute http(s) URL")
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(property, "https://"), "http://")
	if rest == "" {
		return fmt.Errorf("property URL has no host")
	}
	host := rest
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		host = rest[:idx]
	}
	return validateDomain(strings.TrimPrefix(host, "www."))
}

func validateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}

	// Must contain at least one dot (for TLD)
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("domain must contain a TLD (e.g., .com, .co.uk)")
	}

	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("domain contains empty segment")
		}

		for _, c := range part {
			isLower := c >= 'a' && c <= 'z'
			isUpper := c >= 'A' && c <= 'Z'
			isDigit := c >= '0' && c <= '9'
			isHyphen := c == '-'
			if !isLower && !isUpper && !isDigit && !isHyphen {
				return fmt.Errorf("domain contains invalid character: %c", c)
			}
		}

		if strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return fmt.Errorf("domain segment cannot start or end with hyphen")
		}
	}

	tld := parts[len(parts)-1]
	if len(tld) < 2 {
		return fmt.Errorf("TLD must be at least 2 characters")
	}

	return nil
}
