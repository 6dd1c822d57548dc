package http

import (
	"errors"
	"net/url"
	"strings"

	"expenex/internal/core"
	"expenex/internal/pages"
)

var errMissingCredentials = errors.New("please fill in all fields")

// RangeQuery is the dashboard selection carried by a summary request.
// HasStart and HasEnd distinguish an absent bound from a cleared one.
type RangeQuery struct {
	Set      bool
	Preset   core.RangePreset
	Start    string
	End      string
	HasStart bool
	HasEnd   bool
}

// ParseRangeQuery reads range, start and end. A missing range means
// "keep the current selection".
func ParseRangeQuery(q url.Values) (RangeQuery, error) {
	rq := RangeQuery{
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
		HasStart: q.Has("start"),
		HasEnd:   q.Has("end"),
	}
	if !q.Has("range") {
		return rq, nil
	}
	p, err := core.ParsePreset(strings.TrimSpace(q.Get("range")))
	if err != nil {
		return rq, err
	}
	rq.Set = true
	rq.Preset = p
	return rq, nil
}

// ParseFormInput reads the create and edit fields of kind. The free text
// field is named after the wire field ("source" or "title").
func ParseFormInput(kind core.Kind, form url.Values) pages.FormInput {
	return pages.FormInput{
		Label:    sanitizeInput(form.Get(kind.LabelField())),
		Amount:   strings.TrimSpace(form.Get("amount")),
		Category: sanitizeInput(form.Get("category")),
	}
}

type credentials struct {
	Name     string
	Email    string
	Password string
}

// parseCredentials reads the login form, or the register form when
// withName is set. Passwords are taken verbatim.
func parseCredentials(form url.Values, withName bool) (credentials, error) {
	c := credentials{
		Name:     sanitizeInput(form.Get("name")),
		Email:    sanitizeInput(form.Get("email")),
		Password: form.Get("password"),
	}
	if c.Email == "" || c.Password == "" || (withName && c.Name == "") {
		return c, errMissingCredentials
	}
	return c, nil
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
