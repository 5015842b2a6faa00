package domain

// Target is a navigation target produced by the quiz flow or the auth façade.
type Target string

const (
	TargetCounselorSignup    Target = "counselor-signup"
	TargetStudentSignup      Target = "student-signup"
	TargetStudentDashboard   Target = "student-dashboard"
	TargetCounselorDashboard Target = "counselor-dashboard"
	TargetOnboardingRedirect Target = "onboarding-redirect"
)

var routes = map[Target]string{
	TargetCounselorSignup:    "/auth/signup?type=counselor",
	TargetStudentSignup:      "/auth/signup?type=student",
	TargetStudentDashboard:   "/dashboard/student",
	TargetCounselorDashboard: "/dashboard/counselor",
	TargetOnboardingRedirect: "/?signup=true",
}

// Route returns the front-end path for the target, or "" for an unknown target.
func (t Target) Route() string {
	return routes[t]
}

// DashboardFor picks the dashboard for a role. Anything but a student lands on
// the counselor dashboard.
func DashboardFor(role Role) Target {
	if role == RoleStudent {
		return TargetStudentDashboard
	}
	return TargetCounselorDashboard
}
