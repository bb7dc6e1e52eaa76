package davsdk

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

const (
	nsDAV            = "DAV:"
	nsCalendarServer = "http://calendarserver.org/ns/"
	nsCardDAV        = "urn:ietf:params:xml:ns:carddav"
	nsCalDAV         = "urn:ietf:params:xml:ns:caldav"
)

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href      string        `xml:"DAV: href"`
	Status    string        `xml:"DAV: status"`
	Propstats []davPropstat `xml:"DAV: propstat"`
}

type davPropstat struct {
	Prop   davProp `xml:"DAV: prop"`
	Status string  `xml:"DAV: status"`
}

type davProp struct {
	GetETag        *string          `xml:"DAV: getetag"`
	GetCTag        *string          `xml:"http://calendarserver.org/ns/ getctag"`
	GetContentType *string          `xml:"DAV: getcontenttype"`
	DisplayName    *string          `xml:"DAV: displayname"`
	ResourceType   *davResourceType `xml:"DAV: resourcetype"`
}

type davResourceType struct {
	Collection  *struct{} `xml:"DAV: collection"`
	AddressBook *struct{} `xml:"urn:ietf:params:xml:ns:carddav addressbook"`
	Calendar    *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

// Properties is the flattened, successfully retrieved property set of one
// response element. Absent properties are empty strings.
type Properties struct {
	Href          string
	ETag          string
	CTag          string
	ContentType   string
	DisplayName   string
	IsCollection  bool
	IsAddressBook bool
	IsCalendar    bool
}

func propfindBody(props ...string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<d:propfind xmlns:d="` + nsDAV + `" xmlns:cs="` + nsCalendarServer +
		`" xmlns:card="` + nsCardDAV + `" xmlns:cal="` + nsCalDAV + `"><d:prop>`)
	for _, p := range props {
		b.WriteString("<" + p + "/>")
	}
	b.WriteString(`</d:prop></d:propfind>`)
	return b.Bytes()
}

func parseMultistatus(body []byte, op string) ([]*Properties, error) {
	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, &DavError{Op: op, Message: "invalid multistatus body", Err: err}
	}

	result := make([]*Properties, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		if r.Href == "" {
			return nil, &DavError{Op: op, Message: "response without href"}
		}
		// response-level status means the resource itself failed (e.g. 404)
		if r.Status != "" && !statusOK(r.Status) {
			continue
		}

		props := &Properties{Href: strings.TrimSpace(r.Href)}
		for _, ps := range r.Propstats {
			if !statusOK(ps.Status) {
				continue
			}
			p := ps.Prop
			if p.GetETag != nil {
				props.ETag = UnquoteETag(*p.GetETag)
			}
			if p.GetCTag != nil {
				props.CTag = strings.TrimSpace(*p.GetCTag)
			}
			if p.GetContentType != nil {
				props.ContentType = strings.TrimSpace(*p.GetContentType)
			}
			if p.DisplayName != nil {
				props.DisplayName = strings.TrimSpace(*p.DisplayName)
			}
			if p.ResourceType != nil {
				props.IsCollection = p.ResourceType.Collection != nil
				props.IsAddressBook = p.ResourceType.AddressBook != nil
				props.IsCalendar = p.ResourceType.Calendar != nil
			}
		}
		result = append(result, props)
	}

	return result, nil
}

// statusOK checks a "HTTP/1.1 200 OK" status line. A missing status is OK.
func statusOK(status string) bool {
	status = strings.TrimSpace(status)
	if status == "" {
		return true
	}
	fields := strings.Fields(status)
	return len(fields) >= 2 && strings.HasPrefix(fields[1], "2")
}

// resolveHref makes an href from a multistatus response absolute against base.
func resolveHref(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid href %q: %w", href, err)
	}
	return base.ResolveReference(ref), nil
}
