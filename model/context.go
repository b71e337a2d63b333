package model

import (
	"context"
	"slices"
)

// SecurityState identifies the signed-in user and what they may do. It is
// persisted under the "security-context" session key.
type SecurityState struct {
	Username    string       `json:"username,omitempty"`
	Authorities AuthoritySet `json:"authorities,omitempty"`
	// Token is the bearer token forwarded to the backend. It is never persisted.
	Token string `json:"-"`
}

// SignedIn reports whether a user is present.
func (s SecurityState) SignedIn() bool {
	return s.Username != ""
}

// Clone returns a deep copy of s.
func (s SecurityState) Clone() SecurityState {
	c := s
	c.Authorities = slices.Clone(s.Authorities)
	return c
}

// MasterLinkState is the topic and/or record the user is drilling down from.
// MasterRecordKind is always set; KindNone means no master record.
type MasterLinkState struct {
	MasterTopicID     string     `json:"masterTopicId,omitempty"`
	MasterTopicPath   string     `json:"masterTopicPath,omitempty"`
	MasterRecordID    string     `json:"masterRecordId,omitempty"`
	MasterRecordLabel string     `json:"masterRecordLabel,omitempty"`
	MasterRecordKind  EntityKind `json:"masterRecordKind"`
}

// DefaultMasterLinkState returns the state with no master topic or record.
func DefaultMasterLinkState() MasterLinkState {
	return MasterLinkState{MasterRecordKind: KindNone}
}

// HasMasterRecord reports whether a master record of a real kind is pinned.
func (m MasterLinkState) HasMasterRecord() bool {
	return m.MasterRecordKind != KindNone && m.MasterRecordKind != "" && m.MasterRecordID != ""
}

// Normalize fills in the sentinel kind and drops record fields that are
// meaningless without a real kind.
func (m MasterLinkState) Normalize() MasterLinkState {
	if m.MasterRecordKind == "" {
		m.MasterRecordKind = KindNone
	}
	if m.MasterRecordKind == KindNone {
		m.MasterRecordID = ""
		m.MasterRecordLabel = ""
	}
	return m
}

// SelectedRecordsMap remembers the last selected record of each kind across
// page remounts. It is persisted under the "selected-records" session key.
type SelectedRecordsMap map[EntityKind]Ref

// Clone returns a copy of m. A nil map clones to an empty one.
func (m SelectedRecordsMap) Clone() SelectedRecordsMap {
	c := make(SelectedRecordsMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type securityKey struct{}

// WithSecurityState attaches a SecurityState to the given context.
func WithSecurityState(ctx context.Context, s SecurityState) context.Context {
	return context.WithValue(ctx, securityKey{}, s)
}

// SecurityStateFrom extracts the SecurityState from the context. The second
// result is false when none is present.
func SecurityStateFrom(ctx context.Context) (SecurityState, bool) {
	s, ok := ctx.Value(securityKey{}).(SecurityState)
	return s, ok
}

type sessionKey struct{}

// WithSessionID attaches the browser session id to the given context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFrom returns the browser session id carried by ctx, or "".
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
