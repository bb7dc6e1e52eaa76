package davsdk

import (
	"strings"
)

const (
	ClassAddressBook    = "addressbook"
	ClassCalendarAccess = "calendar-access"
)

// Capabilities is the parsed OPTIONS response of a collection.
type Capabilities struct {
	Classes []string
	Methods []string
}

func parseCapabilities(dav, allow string) *Capabilities {
	return &Capabilities{
		Classes: splitHeaderList(dav),
		Methods: splitHeaderList(allow),
	}
}

// HasClass reports whether the DAV header advertised class.
func (c *Capabilities) HasClass(class string) bool {
	for _, cl := range c.Classes {
		if strings.EqualFold(cl, class) {
			return true
		}
	}
	return false
}

// Allows reports whether method is listed in Allow. An empty Allow header
// allows everything since many servers omit it.
func (c *Capabilities) Allows(method string) bool {
	if len(c.Methods) == 0 {
		return true
	}
	for _, m := range c.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func splitHeaderList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
