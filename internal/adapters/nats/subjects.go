package natsadapter

import "strings"

// DefaultPrefix is the subject namespace used when none is configured.
const DefaultPrefix = "gymmap"

// Subjects builds the NATS subjects used by the position feed and the
// session event stream.
type Subjects struct {
	Prefix string
}

func NewSubjects(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Subjects{Prefix: prefix}
}

// Position carries live fixes of one device.
func (s Subjects) Position(deviceID string) string {
	return s.Prefix + ".position." + Token(deviceID)
}

// CurrentPosition answers one-shot requests for the latest fix of one device.
func (s Subjects) CurrentPosition(deviceID string) string {
	return s.Position(deviceID) + ".current"
}

// AllCurrentPositions matches every device's one-shot request subject.
func (s Subjects) AllCurrentPositions() string {
	return s.Prefix + ".position.*.current"
}

// Session carries the events of one session.
func (s Subjects) Session(sessionID string) string {
	return s.Prefix + ".session." + Token(sessionID)
}

// AllSessions matches the events of every session.
func (s Subjects) AllSessions() string {
	return s.Prefix + ".session.>"
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// Token makes id safe to use as a single subject token.
func Token(id string) string {
	if id == "" {
		return "_"
	}
	return tokenReplacer.Replace(id)
}
