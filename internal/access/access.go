// Package access decides whether a viewer may stream a video.
package access

// Role classifies a viewer.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "anonymous"
	}
}

// Reason explains a decision. It is returned to clients and logged.
type Reason string

const (
	ReasonAdmin      Reason = "admin"
	ReasonFreeVideo  Reason = "free_video"
	ReasonFreeCourse Reason = "free_course"
	ReasonGranted    Reason = "granted"
	ReasonNoGrant    Reason = "no_grant"
	ReasonSignIn     Reason = "sign_in_required"
)

// Input holds the four facts a decision depends on.
type Input struct {
	Role        Role
	VideoFree   bool
	CourseFree  bool
	GrantExists bool
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool   `json:"has_access"`
	Reason  Reason `json:"reason"`
}

// Decide applies, in order: admin, free video, free course, grant.
func Decide(in Input) Decision {
	switch {
	case in.Role == RoleAdmin:
		return Decision{Allowed: true, Reason: ReasonAdmin}
	case in.VideoFree:
		return Decision{Allowed: true, Reason: ReasonFreeVideo}
	case in.CourseFree:
		return Decision{Allowed: true, Reason: ReasonFreeCourse}
	case in.Role == RoleAnonymous:
		return Decision{Allowed: false, Reason: ReasonSignIn}
	case in.GrantExists:
		return Decision{Allowed: true, Reason: ReasonGranted}
	default:
		return Decision{Allowed: false, Reason: ReasonNoGrant}
	}
}

// HasAccess is Decide reduced to its boolean.
func HasAccess(in Input) bool {
	return Decide(in).Allowed
}

// NeedsGrantLookup reports whether the grant table has to be consulted for
// a viewer. Callers use it to skip the query when the answer is already known.
func NeedsGrantLookup(role Role, videoFree, courseFree bool) bool {
	return role == RoleUser && !videoFree && !courseFree
}
