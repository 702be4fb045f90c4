package domain

import "testing"

func TestDecideCurationTable(t *testing.T) {
	cases := []struct {
		curation Curation
		isOwner  bool
		want     Decision
	}{
		{CurationClosed, true, DecisionApprove},
		{CurationClosed, false, DecisionReject},
		{CurationCurated, true, DecisionApprove},
		{CurationCurated, false, DecisionPending},
		{CurationOpen, true, DecisionApprove},
		{CurationOpen, false, DecisionApprove},
	}
	for _, tc := range cases {
		if got := Decide(tc.curation, tc.isOwner); got != tc.want {
			t.Fatalf("Decide(%s, owner=%v) = %v, want %v", tc.curation, tc.isOwner, got, tc.want)
		}
	}
}
