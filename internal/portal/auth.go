package portal

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portald/internal/apiclient"
	"portald/internal/session"
	"portald/internal/validate"
	"portald/pkg/types"
)

// Messages of the sign-in, signup and verification flows.
const (
	FixFieldsMessage       = "Please fix the highlighted fields."
	InvalidCredentials     = "Invalid email or password. Please try again."
	VerifyBeforeSignIn     = "Please verify your email before signing in. Check your inbox for the verification link."
	AccessDenied           = "Access denied. Please contact support."
	AccountLocked          = "Your account is temporarily locked due to multiple failed attempts. Please try again later."
	TooManyAttempts        = "Too many attempts. Please wait a moment before trying again."
	LoginServerIssue       = "We hit a server-side issue. Please retry in a minute or ping support."
	LoginFailed            = "We could not log you in. Please try again."
	SignupSucceeded        = "Signup successful! Please verify your email to activate your account."
	SignupServerIssue      = "We hit a server-side issue while sending the verification email. Please retry in a minute or ping support."
	SignupEmailTaken       = "This email address is already registered. Try signing in instead."
	SignupFailed           = "We couldn't create your account. Please try again."
	EmailVerified          = "Email verified successfully! You can now sign in to your account."
	VerificationLinkNeeded = "Enter your email to request a fresh verification link."
	VerificationExpired    = "This verification link has expired or is invalid."
	VerificationServer     = "We ran into a server issue while verifying your email."
	VerificationFailed     = "We could not verify your email. Please try again."
	VerificationSent       = "If the account exists, a verification email has been sent."
	VerificationResendFail = "We couldn't resend the verification email. Please try again."

	// CodeEmailVerificationRequired is the backend code for an unverified account.
	CodeEmailVerificationRequired = "EMAIL_VERIFICATION_REQUIRED"
)

// serverMessage is the "error" or "message" field of a backend rejection.
func serverMessage(err error) string {
	var ae *apiclient.Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return ""
}

func serverField(err error, pick func(*apiclient.Error) string) string {
	var ae *apiclient.Error
	if errors.As(err, &ae) {
		return strings.TrimSpace(pick(ae))
	}
	return ""
}

func fieldsError(op string, err error) *OperationError {
	fe, ok := validate.Fields(err)
	if !ok {
		return &OperationError{Op: op, Message: FixFieldsMessage, Err: err}
	}
	return &OperationError{Op: op, Message: FixFieldsMessage, Fields: fe}
}

// Login signs the student in and stores the session. Cached resources of a
// previous session are dropped.
func (p *Portal) Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error) {
	req = req.Normalize()
	if err := validate.Login(req); err != nil {
		return types.LoginResponse{}, fieldsError("login", err)
	}
	resp, err := p.api.Login(ctx, req)
	if err != nil {
		p.log.Info().Str("email", req.Email).Int("status", apiclient.StatusCode(err)).Err(err).Msg("login rejected")
		return types.LoginResponse{}, loginError(err)
	}
	if err := p.sess.Login(resp); err != nil {
		if errors.Is(err, session.ErrNoToken) {
			return types.LoginResponse{}, &OperationError{Op: "login", Message: LoginFailed, Err: err}
		}
		// the session is held in memory even when it could not be persisted
		p.log.Error().Err(err).Msg("persist session")
	}
	p.resetState()
	p.log.Info().Str("email", req.Email).Msg("signed in")
	return resp, nil
}

// loginError maps a failed login to the message and field hints shown to the
// student.
func loginError(err error) *OperationError {
	oe := &OperationError{Op: "login", Status: apiclient.StatusCode(err), Err: err}
	if apiclient.IsTransport(err) || oe.Status == 0 {
		oe.Message = apiclient.ConnectionMessage
		return oe
	}
	msg := serverField(err, func(e *apiclient.Error) string { return e.ServerMessage })
	switch oe.Status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		oe.Message = InvalidCredentials
		if oe.Status == http.StatusUnauthorized {
			oe.Fields = map[string]string{"password": "Invalid email or password"}
		}
	case http.StatusForbidden:
		if apiclient.Code(err) == CodeEmailVerificationRequired {
			oe.Message = VerifyBeforeSignIn
			oe.Fields = map[string]string{"email": "Email verification pending"}
		} else {
			oe.Message = orDefault(msg, AccessDenied)
		}
	case http.StatusLocked:
		oe.Message = orDefault(msg, AccountLocked)
		oe.Fields = map[string]string{"password": oe.Message}
	case http.StatusTooManyRequests:
		oe.Message = orDefault(serverMessage(err), TooManyAttempts)
		oe.Fields = map[string]string{"password": oe.Message}
	default:
		if oe.Status >= 500 {
			oe.Message = LoginServerIssue
		} else {
			oe.Message = orDefault(serverMessage(err), LoginFailed)
		}
	}
	return oe
}

// Logout clears the session and every cached resource.
func (p *Portal) Logout() error {
	err := p.sess.Logout()
	p.resetState()
	p.log.Info().Msg("signed out")
	return err
}

func (p *Portal) resetState() {
	p.store.Reset()
	p.mu.Lock()
	clear(p.forms)
	p.mu.Unlock()
}

// Signup registers a new student and returns the confirmation message.
func (p *Portal) Signup(ctx context.Context, form types.SignupForm) (string, error) {
	if err := validate.Signup(form); err != nil {
		return "", fieldsError("signup", err)
	}
	resp, err := p.api.Signup(ctx, form.Request())
	if err != nil {
		p.log.Info().Int("status", apiclient.StatusCode(err)).Err(err).Msg("signup rejected")
		return "", signupError(err)
	}
	return orDefault(resp.Message, SignupSucceeded), nil
}

func signupError(err error) *OperationError {
	oe := &OperationError{Op: "signup", Status: apiclient.StatusCode(err), Fields: apiclient.FieldErrors(err), Err: err}
	generic := strings.Join(apiclient.Details(err), " · ")
	if generic == "" {
		generic = serverMessage(err)
	}
	switch oe.Status {
	case http.StatusInternalServerError:
		oe.Message = SignupServerIssue
	case http.StatusConflict:
		oe.Message = orDefault(generic, SignupEmailTaken)
	default:
		oe.Message = orDefault(generic, SignupFailed)
	}
	return oe
}

// ConfirmEmail completes email verification with the id from the emailed link.
func (p *Portal) ConfirmEmail(ctx context.Context, verificationID string) (string, error) {
	verificationID = strings.TrimSpace(verificationID)
	if verificationID == "" {
		return "", &OperationError{Op: "verify", Message: VerificationLinkNeeded, Fields: map[string]string{"verificationId": "This field is required"}}
	}
	resp, err := p.api.ConfirmEmail(ctx, verificationID)
	if err != nil {
		oe := &OperationError{Op: "verify", Status: apiclient.StatusCode(err), Err: err}
		oe.Message = serverMessage(err)
		if oe.Message == "" {
			switch oe.Status {
			case http.StatusUnauthorized:
				oe.Message = VerificationExpired
			case http.StatusInternalServerError:
				oe.Message = VerificationServer
			default:
				oe.Message = VerificationFailed
			}
		}
		return "", oe
	}
	return orDefault(resp.Message, EmailVerified), nil
}

// RequestVerification asks the backend to send a fresh verification email.
func (p *Portal) RequestVerification(ctx context.Context, email string) (string, error) {
	req := types.VerifyEmailRequest{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := validate.Struct(req); err != nil {
		oe := fieldsError("verify", err)
		if m := oe.Fields["email"]; m != "" {
			oe.Message = m
		}
		return "", oe
	}
	resp, err := p.api.RequestVerification(ctx, req.Email)
	if err != nil {
		return "", &OperationError{
			Op:      "verify",
			Status:  apiclient.StatusCode(err),
			Message: orDefault(serverMessage(err), VerificationResendFail),
			Err:     err,
		}
	}
	return orDefault(resp.Message, VerificationSent), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
