package collections

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	iCalVersion = "2.0"
	iCalProdID  = "-//DavSync//DavSync//EN"
	iCalUTC     = "20060102T150405Z"
)

type icalCodec struct{}

// carriesUID reports whether a calendar child is identified by its own UID.
func carriesUID(comp *ical.Component) bool {
	switch comp.Name {
	case ical.CompEvent, ical.CompToDo, ical.CompJournal:
		return true
	}
	return false
}

func (icalCodec) decode(content string) (*ical.Calendar, error) {
	dec := ical.NewDecoder(strings.NewReader(withCRLF(content)))
	cal, err := dec.Decode()
	if errors.Is(err, io.EOF) {
		return nil, invalidContent("empty VCALENDAR", nil)
	}
	if err != nil {
		return nil, invalidContent("VCALENDAR", err)
	}
	if cal.Name != ical.CompCalendar {
		return nil, invalidContent("expected VCALENDAR, got "+cal.Name, nil)
	}

	if _, err := dec.Decode(); !errors.Is(err, io.EOF) {
		return nil, invalidContent("more than one VCALENDAR", err)
	}
	return cal, nil
}

func (c icalCodec) validate(content string) error {
	_, err := c.decode(content)
	return err
}

// uid returns the UID of the first event, task or journal entry. A UID on
// the calendar itself doesn't count.
func (c icalCodec) uid(content string) string {
	cal, err := c.decode(content)
	if err != nil {
		return ""
	}
	for _, child := range cal.Children {
		if !carriesUID(child) {
			continue
		}
		if prop := child.Props.Get(ical.PropUID); prop != nil {
			return strings.TrimSpace(prop.Value)
		}
	}
	return ""
}

func (c icalCodec) ensureUID(content, uid string) (string, error) {
	cal, err := c.decode(content)
	if err != nil {
		return "", err
	}

	stamp := time.Now().UTC().Format(iCalUTC)
	for _, child := range cal.Children {
		if !carriesUID(child) {
			continue
		}
		// the encoder refuses components without DTSTAMP
		if child.Props.Get(ical.PropDateTimeStamp) == nil {
			setProp(child, ical.PropDateTimeStamp, stamp)
		}
		if prop := child.Props.Get(ical.PropUID); prop != nil && strings.TrimSpace(prop.Value) != "" {
			continue
		}
		if uid == "" {
			return "", invalidContent("missing UID", nil)
		}
		setProp(child, ical.PropUID, uid)
	}
	if cal.Props.Get(ical.PropVersion) == nil {
		setProp(cal.Component, ical.PropVersion, iCalVersion)
	}
	if cal.Props.Get(ical.PropProductID) == nil {
		setProp(cal.Component, ical.PropProductID, iCalProdID)
	}

	var b strings.Builder
	if err := ical.NewEncoder(&b).Encode(cal); err != nil {
		return "", invalidContent("encode VCALENDAR", err)
	}
	return foldLines(b.String()), nil
}

func setProp(comp *ical.Component, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	comp.Props.Set(prop)
}
