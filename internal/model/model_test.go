package model

import "testing"

func TestNormalizeRole(t *testing.T) {
	if NormalizeRole("APPRENANT") != RoleStudent {
		t.Fatalf("expected legacy role to map to STUDENT")
	}
	if NormalizeRole(RoleAdmin) != RoleAdmin {
		t.Fatalf("expected ADMIN unchanged")
	}
	if NormalizeRole(RoleStudent) != RoleStudent {
		t.Fatalf("expected STUDENT unchanged")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleStudent, "APPRENANT"} {
		if !ValidRole(role) {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	for _, role := range []string{"", "admin", "TEACHER"} {
		if ValidRole(role) {
			t.Fatalf("expected %s to be invalid", role)
		}
	}
}
