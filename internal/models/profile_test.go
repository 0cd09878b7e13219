package models

import (
	"errors"
	"testing"
	"time"
)

func TestProfileCompleteness(t *testing.T) {
	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		profile UserProfile
		want    bool
	}{
		{"complete", UserProfile{Name: "王小明", Birthdate: birth, BloodType: BloodO}, true},
		{"missing name", UserProfile{Name: "  ", Birthdate: birth, BloodType: BloodO}, false},
		{"missing birthdate", UserProfile{Name: "王小明", BloodType: BloodA}, false},
		{"missing blood type", UserProfile{Name: "王小明", Birthdate: birth}, false},
		{"empty", UserProfile{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.profile.Complete(); got != tc.want {
				t.Fatalf("Complete() = %v, want %v", got, tc.want)
			}
			err := tc.profile.Validate()
			if tc.want && err != nil {
				t.Fatalf("unexpected validate error: %v", err)
			}
			if !tc.want && !errors.Is(err, ErrProfileIncomplete) {
				t.Fatalf("expected ErrProfileIncomplete, got %v", err)
			}
		})
	}
}

func TestProfileText(t *testing.T) {
	p := UserProfile{Name: "王小明", Birthdate: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), BloodType: BloodAB}
	want := "姓名: 王小明, 出生年月日: 1990-05-17, 血型: AB"
	if got := p.Text(); got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestParseBloodType(t *testing.T) {
	if bt, err := ParseBloodType(" ab "); err != nil || bt != BloodAB {
		t.Fatalf("ParseBloodType(ab) = %q, %v", bt, err)
	}
	if _, err := ParseBloodType("C"); !errors.Is(err, ErrInvalidBloodType) {
		t.Fatalf("expected ErrInvalidBloodType, got %v", err)
	}
}

func TestSourceRefDisplayAnswer(t *testing.T) {
	ref := SourceRef{Answer: "回覆 多休息並補充水分"}
	if got := ref.DisplayAnswer(); got != "多休息並補充水分" {
		t.Fatalf("DisplayAnswer() = %q", got)
	}
}
