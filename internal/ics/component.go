package ics

import (
	"bytes"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// Property is one content line, e.g. DTSTART;TZID=Europe/Paris:20250708T090000.
type Property struct {
	Name   string
	Params map[string][]string
	Value  string
}

// Param returns the first value of the named parameter.
func (p Property) Param(name string) (string, bool) {
	vs, ok := p.Params[strings.ToUpper(name)]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.Trim(vs[0], `"`), true
}

// Component is a node of the parsed calendar: VCALENDAR at the root, VEVENT,
// VTODO, VALARM and friends below it.
type Component struct {
	Name       string
	Properties []Property
	Components []Component
}

// Property returns the first property with the given name.
func (c Component) Property(name string) (Property, bool) {
	name = strings.ToUpper(name)
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Children returns the direct subcomponents with the given name.
func (c Component) Children(name string) []Component {
	var out []Component
	for _, sub := range c.Components {
		if sub.Name == name {
			out = append(out, sub)
		}
	}
	return out
}

// ParseCalendar turns raw iCalendar text into a component tree.
func ParseCalendar(body []byte) (Component, error) {
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return Component{}, errors.New("missing BEGIN:VCALENDAR")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return Component{}, err
	}

	root := Component{Name: "VCALENDAR"}
	for _, p := range cal.CalendarProperties {
		root.Properties = append(root.Properties, convertProperty(p.BaseProperty))
	}
	for _, sub := range cal.Components {
		root.Components = append(root.Components, convertComponent(sub))
	}
	return root, nil
}

func convertComponent(c ical.Component) Component {
	out := Component{Name: componentName(c)}
	for _, p := range c.UnknownPropertiesIANAProperties() {
		out.Properties = append(out.Properties, convertProperty(p.BaseProperty))
	}
	for _, sub := range c.SubComponents() {
		out.Components = append(out.Components, convertComponent(sub))
	}
	return out
}

func convertProperty(p ical.BaseProperty) Property {
	params := make(map[string][]string, len(p.ICalParameters))
	for k, v := range p.ICalParameters {
		params[strings.ToUpper(k)] = v
	}
	return Property{
		Name:   strings.ToUpper(p.IANAToken),
		Params: params,
		Value:  p.Value,
	}
}

func componentName(c ical.Component) string {
	switch v := c.(type) {
	case *ical.VEvent:
		return "VEVENT"
	case *ical.VTodo:
		return "VTODO"
	case *ical.VJournal:
		return "VJOURNAL"
	case *ical.VTimezone:
		return "VTIMEZONE"
	case *ical.VAlarm:
		return "VALARM"
	case *ical.GeneralComponent:
		return strings.ToUpper(v.Token)
	default:
		return "X-UNKNOWN"
	}
}
