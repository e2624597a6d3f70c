package sanitizer

import (
	"strings"
	"unicode"

	"roombook/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// TrimAndNormalize trims s and collapses every whitespace run to one space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeRoom keeps the room's case (rooms are matched exactly) but turns
// control characters into spaces and collapses whitespace runs.
func SanitizeRoom(input string) string {
	p := Pipeline{
		dropControl,
		TrimAndNormalize,
	}
	return p.Apply(input)
}

func SanitizeEmail(input string) string {
	p := Pipeline{
		trimAndLower,
	}
	return p.Apply(input)
}

// SanitizeBooking normalizes the free-text fields of a booking in place.
func SanitizeBooking(b *model.Booking) {
	b.Room = SanitizeRoom(b.Room)
	b.RequesterEmail = SanitizeEmail(b.RequesterEmail)
}
