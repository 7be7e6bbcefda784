package domain

import (
	"encoding/json"
	"testing"
	"time"
)

var noon = time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

func strptr(s string) *string { return &s }

func TestIsOverdue(t *testing.T) {
	cases := []struct {
		name string
		due  *string
		want bool
	}{
		{"past", strptr("2024-03-14"), true},
		{"today", strptr("2024-03-15"), false},
		{"future", strptr("2024-04-01"), false},
		{"none", nil, false},
		{"empty", strptr(""), false},
		{"garbage", strptr("soon"), false},
	}
	for _, tc := range cases {
		if got := IsOverdue(tc.due, noon); got != tc.want {
			t.Errorf("%s: IsOverdue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDaysUntilDue(t *testing.T) {
	if days, ok := DaysUntilDue(strptr("2024-03-18"), noon); !ok || days != 3 {
		t.Fatalf("got %d, %v", days, ok)
	}
	if days, ok := DaysUntilDue(strptr("2024-03-13"), noon); !ok || days != -2 {
		t.Fatalf("got %d, %v", days, ok)
	}
	if _, ok := DaysUntilDue(nil, noon); ok {
		t.Fatalf("no deadline should report ok=false")
	}
}

func TestPartnerLegacyUnmarshal(t *testing.T) {
	var ps []Partner
	if err := json.Unmarshal([]byte(`["Avi", {"name":"Sivan","email":"s@x"}]`), &ps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ps[0].Name != "Avi" || ps[0].Email != "" {
		t.Fatalf("bare string: %+v", ps[0])
	}
	if ps[1].Name != "Sivan" || ps[1].Email != "s@x" {
		t.Fatalf("structured: %+v", ps[1])
	}
}

func TestEnumMembership(t *testing.T) {
	if !ValidTaskStatus(StatusInProgress) || ValidTaskStatus("Blocked") {
		t.Fatalf("task status membership broken")
	}
	if !ValidTaskPriority(PriorityLow) || ValidTaskPriority("Urgent") {
		t.Fatalf("task priority membership broken")
	}
	if !ValidClientStatus(ClientStatusWon) || ValidClientStatus("Ghosted") {
		t.Fatalf("client status membership broken")
	}
}
