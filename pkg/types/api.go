package types

import "strings"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims and lower-cases the email the way the backend stores it.
func (r LoginRequest) Normalize() LoginRequest {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return r
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
	Message      string `json:"message,omitempty"`
}

// SignupForm is the full signup form as collected from the student.
// Address parts are composed into a single address line on submit.
type SignupForm struct {
	FirstName       string `json:"firstName" yaml:"first_name" validate:"required"`
	LastName        string `json:"lastName" yaml:"last_name" validate:"required"`
	Email           string `json:"email" yaml:"email" validate:"required,email"`
	MobileNumber    string `json:"mobileNumber" yaml:"mobile_number" validate:"required,mobile_in"`
	Password        string `json:"password" yaml:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" yaml:"confirm_password" validate:"required,eqfield=Password"`
	DateOfBirth     string `json:"dateOfBirth" yaml:"date_of_birth" validate:"required,adult"`
	Gender          string `json:"gender" yaml:"gender" validate:"required"`
	Course          string `json:"course" yaml:"course" validate:"required"`
	Address         string `json:"address" yaml:"address" validate:"required"`
	City            string `json:"city" yaml:"city" validate:"required"`
	State           string `json:"state" yaml:"state" validate:"required"`
	Zip             string `json:"zip" yaml:"zip" validate:"required,pincode"`
	StudyMode       string `json:"studyMode" yaml:"study_mode" validate:"required"`
	ReferralCode    string `json:"referralCode,omitempty" yaml:"referral_code"`
	TermsAccepted   bool   `json:"termsAccepted" yaml:"terms_accepted" validate:"required"`
}

// ComposedAddress joins the non-empty address parts.
func (f SignupForm) ComposedAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{f.Address, f.City, f.State, f.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Request builds the wire payload for POST /auth/signup/student.
func (f SignupForm) Request() SignupRequest {
	return SignupRequest{
		FirstName:       strings.TrimSpace(f.FirstName),
		LastName:        strings.TrimSpace(f.LastName),
		Email:           strings.ToLower(strings.TrimSpace(f.Email)),
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		MobileNumber:    strings.TrimSpace(f.MobileNumber),
		DateOfBirth:     f.DateOfBirth,
		Gender:          f.Gender,
		Address:         f.ComposedAddress(),
		ReferralCode:    f.ReferralCode,
		SelectedCourse:  f.Course,
		TermsAccepted:   f.TermsAccepted,
		StudyMode:       f.StudyMode,
	}
}

// SignupRequest is the body of POST /auth/signup/student.
type SignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	MobileNumber    string `json:"mobileNumber"`
	DateOfBirth     string `json:"dateOfBirth"`
	Gender          string `json:"gender"`
	Address         string `json:"address"`
	ReferralCode    string `json:"referralCode,omitempty"`
	SelectedCourse  string `json:"selectedCourse"`
	TermsAccepted   bool   `json:"termsAccepted"`
	StudyMode       string `json:"studyMode,omitempty"`
}

// MessageResponse is the generic {success, message} acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VerifyEmailConfirmRequest is the body of POST /auth/verify-email/confirm.
type VerifyEmailConfirmRequest struct {
	VerificationID string `json:"verificationId" validate:"required"`
}

// VerifyEmailRequest is the body of POST /auth/verify-email/request.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// BasicProfileUpdate is the body of PUT /student/profile/basic.
type BasicProfileUpdate struct {
	FirstName    string `json:"firstName,omitempty" yaml:"first_name" validate:"omitempty,max=80"`
	LastName     string `json:"lastName,omitempty" yaml:"last_name" validate:"omitempty,max=80"`
	MobileNumber string `json:"mobileNumber,omitempty" yaml:"mobile_number" validate:"omitempty,mobile_in"`
	Bio          string `json:"bio,omitempty" yaml:"bio" validate:"omitempty,max=500"`
}

// EducationUpdate wraps the education section as the backend expects.
type EducationUpdate struct {
	Education Education `json:"education"`
}

// LinksUpdate wraps the links section as the backend expects.
type LinksUpdate struct {
	ProfileLinks ProfileLinks `json:"profileLinks"`
}

// EmbedTokenResponse is returned by GET /fermion/embed-token.
type EmbedTokenResponse struct {
	Token string `json:"token"`
}

// LiveSessionRequest is the body of the start/end live session endpoints.
type LiveSessionRequest struct {
	LectureID string `json:"lectureId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}

// CreateLiveSessionRequest is the body of POST /fermion/create-session.
type CreateLiveSessionRequest struct {
	LectureID  string `json:"lectureId" validate:"required"`
	EventTitle string `json:"eventTitle" validate:"required"`
	StartTime  string `json:"startTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime    string `json:"endTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	Error string `json:"error"`
	// HTTP status code.
	Code int `json:"code"`
	// Per-field validation messages, when the error is a validation failure.
	Fields map[string]string `json:"fields,omitempty"`
}

// ResourceResponse is the view-layer projection of one resource slot.
type ResourceResponse struct {
	Key       string  `json:"key"`
	Status    string  `json:"status"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	UpdatedAt int64   `json:"updated_at_unix,omitempty"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	// Authenticated reports whether a session token is present.
	Authenticated bool `json:"authenticated"`
	// Slots lists every resource slot created so far.
	Slots []ResourceResponse `json:"slots"`
	// Loading counts slots currently in flight.
	Loading int `json:"loading"`
	// Failed counts slots whose last fetch failed.
	Failed int `json:"failed"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// FormStatus tracks a profile form submission.
type FormStatus struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
