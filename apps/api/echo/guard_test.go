package echoapi

import (
	"net/url"
	"strings"
	"testing"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/tests"
)

var testHosts = tenant.Hosts{AppHost: "app.darasa.academy", BaseDomain: "darasa.academy"}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback string
		want     string
	}{
		{name: "empty", value: "", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "blank", value: "   ", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "absolute url", value: "http://evil.com", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "absolute https url", value: "https://evil.com/teacher/home", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "protocol relative", value: "//evil.com", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "teacher login", value: "/teacher/login?x=1", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "student login", value: "/student/login", fallback: "/student/home", want: "/student/home"},
		{name: "login with fragment", value: "/teacher/login#top", fallback: "/teacher/home", want: "/teacher/home"},
		{name: "valid path", value: "/teacher/home", fallback: "/teacher/dashboard", want: "/teacher/home"},
		{name: "valid path with query", value: "/teacher/courses?tab=2", fallback: "/teacher/home", want: "/teacher/courses?tab=2"},
		{name: "missing leading slash", value: "teacher/courses", fallback: "/teacher/home", want: "/teacher/courses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeRedirect(tt.value, tt.fallback); got != tt.want {
				t.Errorf("SafeRedirect(%q, %q) = %q, want %q", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}

// realistic claim sets; a teacher assistant also carries the teacher prefix
var (
	studentClaims   = &Claims{IsStudent: true, Tenant: "alpha"}
	teacherClaims   = &Claims{IsTeacher: true, Tenant: "alpha"}
	assistantClaims = &Claims{IsTeacher: true, IsAssistant: true, Tenant: "alpha"}
	adminClaims     = &Claims{IsAdmin: true, Tenant: "alpha"}
)

func TestGuard_Decide(t *testing.T) {
	guard := NewGuard(testHosts, nil, testutil.NewLogger())

	tests := []struct {
		name         string
		target       Target
		claims       *Claims
		wantAction   GuardAction
		wantLocation string
		wantClear    bool
	}{
		{
			name:       "anonymous on public page",
			target:     Target{Host: "alpha.darasa.academy", Path: StudentLoginPath},
			wantAction: ActionAllow,
		},
		{
			name:         "anonymous on protected student page",
			target:       Target{Host: "alpha.darasa.academy", Path: "/student/courses", RequiresAuth: true},
			wantAction:   ActionCancel,
			wantLocation: StudentLoginPath + "?next=%2Fstudent%2Fcourses",
			wantClear:    true,
		},
		{
			name:         "anonymous on protected teacher page",
			target:       Target{Host: "app.darasa.academy", Path: "/teacher/roster", RequiresAuth: true},
			wantAction:   ActionCancel,
			wantLocation: TeacherLoginPath + "?next=%2Fteacher%2Froster",
			wantClear:    true,
		},
		{
			name:         "anonymous on assistant page",
			target:       Target{Host: "app.darasa.academy", Path: AssistantHomePath, RequiresAuth: true},
			wantAction:   ActionCancel,
			wantLocation: TeacherLoginPath + "?next=%2Fassistant%2Fdashboard",
			wantClear:    true,
		},
		{
			name:         "teacher on tenant host",
			target:       Target{Host: "alpha.darasa.academy", Path: TeacherHomePath, RequiresAuth: true},
			claims:       teacherClaims,
			wantAction:   ActionExternalRedirect,
			wantLocation: "https://app.darasa.academy" + TeacherHomePath,
		},
		{
			name:         "admin on tenant host",
			target:       Target{Host: "alpha.darasa.academy", Path: "/teacher/settings", RequiresAuth: true},
			claims:       adminClaims,
			wantAction:   ActionExternalRedirect,
			wantLocation: "https://app.darasa.academy/teacher/settings",
		},
		{
			name:         "assistant on teacher path",
			target:       Target{Host: "app.darasa.academy", Path: "/teacher/roster", RequiresAuth: true},
			claims:       assistantClaims,
			wantAction:   ActionRedirect,
			wantLocation: AssistantHomePath,
		},
		{
			name:         "student on teacher path",
			target:       Target{Host: "alpha.darasa.academy", Path: "/teacher/roster", RequiresAuth: true},
			claims:       studentClaims,
			wantAction:   ActionRedirect,
			wantLocation: StudentHomePath,
		},
		{
			name:         "teacher on student path",
			target:       Target{Host: "app.darasa.academy", Path: "/student/courses", RequiresAuth: true},
			claims:       teacherClaims,
			wantAction:   ActionRedirect,
			wantLocation: TeacherHomePath,
		},
		{
			name:         "admin on student login",
			target:       Target{Host: "app.darasa.academy", Path: StudentLoginPath},
			claims:       adminClaims,
			wantAction:   ActionRedirect,
			wantLocation: TeacherHomePath,
		},
		{
			name:         "authed student on student login",
			target:       Target{Host: "alpha.darasa.academy", Path: StudentLoginPath},
			claims:       studentClaims,
			wantAction:   ActionRedirect,
			wantLocation: StudentHomePath,
		},
		{
			name:         "authed student on student login with next",
			target:       Target{Host: "alpha.darasa.academy", Path: StudentLoginPath, Query: url.Values{"next": {"/student/courses"}}},
			claims:       studentClaims,
			wantAction:   ActionRedirect,
			wantLocation: "/student/courses",
		},
		{
			name:         "authed student on student login with unsafe next",
			target:       Target{Host: "alpha.darasa.academy", Path: StudentLoginPath, Query: url.Values{"next": {"http://evil.com"}}},
			claims:       studentClaims,
			wantAction:   ActionRedirect,
			wantLocation: StudentHomePath,
		},
		{
			name:         "authed teacher on teacher login",
			target:       Target{Host: "app.darasa.academy", Path: TeacherLoginPath},
			claims:       teacherClaims,
			wantAction:   ActionRedirect,
			wantLocation: TeacherHomePath,
		},
		{
			name:         "authed teacher on teacher login with redirect param",
			target:       Target{Host: "app.darasa.academy", Path: TeacherLoginPath, Query: url.Values{"redirect": {"/teacher/courses"}}},
			claims:       teacherClaims,
			wantAction:   ActionRedirect,
			wantLocation: "/teacher/courses",
		},
		{
			name:       "student on own portal",
			target:     Target{Host: "alpha.darasa.academy", Path: "/student/courses", RequiresAuth: true},
			claims:     studentClaims,
			wantAction: ActionAllow,
		},
		{
			name:       "teacher on own portal",
			target:     Target{Host: "app.darasa.academy", Path: "/teacher/roster", RequiresAuth: true},
			claims:     teacherClaims,
			wantAction: ActionAllow,
		},
		{
			name:       "assistant on own dashboard",
			target:     Target{Host: "app.darasa.academy", Path: AssistantHomePath, RequiresAuth: true},
			claims:     assistantClaims,
			wantAction: ActionAllow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.Decide(tt.target, tt.claims)
			if got.Action != tt.wantAction {
				t.Errorf("Decide() action = %v, want %v", got.Action, tt.wantAction)
			}
			if got.Location != tt.wantLocation {
				t.Errorf("Decide() location = %q, want %q", got.Location, tt.wantLocation)
			}
			if got.ClearAuth != tt.wantClear {
				t.Errorf("Decide() clearAuth = %v, want %v", got.ClearAuth, tt.wantClear)
			}
		})
	}
}

func TestGuard_Decide_assistantAllTeacherSuffixes(t *testing.T) {
	guard := NewGuard(testHosts, nil, testutil.NewLogger())

	for _, path := range []string{
		"/teacher",
		"/teacher/",
		"/teacher/roster",
		"/teacher/roster/groups/42",
		"/teacher/settings?tab=billing",
	} {
		target := Target{Host: "app.darasa.academy", Path: strings.SplitN(path, "?", 2)[0], RequiresAuth: true}
		got := guard.Decide(target, assistantClaims)
		if got.Action != ActionRedirect || got.Location != AssistantHomePath {
			t.Errorf("Decide(%q) = (%v, %q), want redirect to %q", path, got.Action, got.Location, AssistantHomePath)
		}
	}
}

func TestGuard_Decide_unauthenticatedNeverAllowed(t *testing.T) {
	guard := NewGuard(testHosts, nil, testutil.NewLogger())

	for _, path := range []string{"/student/home", "/teacher/home", "/assistant/dashboard", "/teacher/roster/groups"} {
		got := guard.Decide(Target{Host: "app.darasa.academy", Path: path, RequiresAuth: true}, nil)
		if got.Action == ActionAllow {
			t.Errorf("Decide(%q) allowed an unauthenticated navigation", path)
		}
	}
}
