package model

import (
	"context"
	"testing"
)

func TestSecurityState_SignedIn(t *testing.T) {
	if (SecurityState{}).SignedIn() {
		t.Error("empty state should not be signed in")
	}
	if !(SecurityState{Username: "alice"}).SignedIn() {
		t.Error("state with a username should be signed in")
	}
}

func TestSecurityState_Clone(t *testing.T) {
	s := SecurityState{Username: "alice", Authorities: AuthoritySet{AuthorityRead}}
	c := s.Clone()
	c.Authorities[0] = AuthorityDelete
	if s.Authorities[0] != AuthorityRead {
		t.Error("Clone shares the authorities slice")
	}
}

// --- MasterLinkState ---

func TestDefaultMasterLinkState(t *testing.T) {
	m := DefaultMasterLinkState()
	if m.MasterRecordKind != KindNone {
		t.Errorf("MasterRecordKind = %q, want None", m.MasterRecordKind)
	}
	if m.HasMasterRecord() {
		t.Error("default state should have no master record")
	}
}

func TestMasterLinkState_HasMasterRecord(t *testing.T) {
	tests := []struct {
		name string
		m    MasterLinkState
		want bool
	}{
		{"kind and id", MasterLinkState{MasterRecordKind: KindPerson, MasterRecordID: "p1"}, true},
		{"kind only", MasterLinkState{MasterRecordKind: KindPerson}, false},
		{"none kind", MasterLinkState{MasterRecordKind: KindNone, MasterRecordID: "p1"}, false},
		{"empty kind", MasterLinkState{MasterRecordID: "p1"}, false},
	}
	for _, tc := range tests {
		if got := tc.m.HasMasterRecord(); got != tc.want {
			t.Errorf("%s: HasMasterRecord() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMasterLinkState_Normalize(t *testing.T) {
	m := MasterLinkState{MasterTopicID: "t1", MasterRecordID: "p1", MasterRecordLabel: "Ada"}.Normalize()
	if m.MasterRecordKind != KindNone {
		t.Errorf("MasterRecordKind = %q, want None", m.MasterRecordKind)
	}
	if m.MasterRecordID != "" || m.MasterRecordLabel != "" {
		t.Errorf("record fields = %q/%q, want cleared", m.MasterRecordID, m.MasterRecordLabel)
	}
	if m.MasterTopicID != "t1" {
		t.Errorf("MasterTopicID = %q, want t1 kept", m.MasterTopicID)
	}

	kept := MasterLinkState{MasterRecordKind: KindClaim, MasterRecordID: "c1"}.Normalize()
	if kept.MasterRecordID != "c1" {
		t.Errorf("MasterRecordID = %q, want c1 kept for a real kind", kept.MasterRecordID)
	}
}

func TestSelectedRecordsMap_Clone(t *testing.T) {
	var nilMap SelectedRecordsMap
	if c := nilMap.Clone(); c == nil {
		t.Error("Clone of nil should be an empty map")
	}

	m := SelectedRecordsMap{KindClaim: {ID: "1", Label: "warming"}}
	c := m.Clone()
	c[KindPerson] = Ref{ID: "p1"}
	if len(m) != 1 {
		t.Error("Clone shares the underlying map")
	}
}

// --- context helpers ---

func TestWithSecurityState_and_SecurityStateFrom(t *testing.T) {
	ctx := WithSecurityState(context.Background(), SecurityState{Username: "alice"})
	got, ok := SecurityStateFrom(ctx)
	if !ok || got.Username != "alice" {
		t.Errorf("SecurityStateFrom = %+v, %v, want alice, true", got, ok)
	}

	if _, ok := SecurityStateFrom(context.Background()); ok {
		t.Error("SecurityStateFrom on empty context should report false")
	}
}

func TestWithSessionID_and_SessionIDFrom(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s-1")
	if got := SessionIDFrom(ctx); got != "s-1" {
		t.Errorf("SessionIDFrom = %q, want s-1", got)
	}
	if got := SessionIDFrom(context.Background()); got != "" {
		t.Errorf("SessionIDFrom on empty context = %q, want empty", got)
	}
}
