package main

import (
	"errors"
	"testing"

	"github.com/research-core/core-permissions/internal/profiles"
)

func TestReportLine(t *testing.T) {
	rep := profiles.SyncReport{
		UnitID:   7,
		UnitName: "Optics",
		Profile:  profiles.RoleAdmin,
		Group:    "PROFILE: Group Admin: Optics",
		Status:   profiles.StatusCreated,
	}
	if got := reportLine(rep); got != "created\tunit=7 Optics\tprofile=admin" {
		t.Fatalf("unexpected line: %q", got)
	}
}

func TestReportLineError(t *testing.T) {
	rep := profiles.SyncReport{
		UnitID: 404,
		Status: profiles.StatusError,
		Err:    errors.New("unit missing"),
	}
	if got := reportLine(rep); got != "error\tunit=404 \terr=unit missing" {
		t.Fatalf("unexpected line: %q", got)
	}
}
