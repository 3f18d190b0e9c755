package types

import "strings"

// User is the authenticated student as returned by login and profile endpoints.
type User struct {
	ID           string `json:"_id,omitempty"`
	LegacyID     string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	Bio          string `json:"bio,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
}

// Identifier returns the backend id, accepting either id field.
func (u User) Identifier() string { return firstNonEmpty(u.ID, u.LegacyID) }

// DisplayName prefers the full name field and falls back to first/last.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Course is an enrollment as listed under /student/courses.
type Course struct {
	ID               string    `json:"_id,omitempty"`
	Title            string    `json:"title,omitempty"`
	CourseSubheading string    `json:"courseSubheading,omitempty"`
	BatchName        string    `json:"batchName,omitempty"`
	BatchStartDate   Timestamp `json:"batchStartDate"`
	BatchEndDate     Timestamp `json:"batchEndDate"`
	HasOpenModules   bool      `json:"hasOpenModules"`
	MentorName       string    `json:"mentorName,omitempty"`
	Mentor           Mentor    `json:"mentor"`
}

// CatalogCourse is a public learning track offered at signup.
type CatalogCourse struct {
	ID    string `json:"_id,omitempty"`
	Title string `json:"title,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// CourseOutline groups the modules of a course by batch.
type CourseOutline struct {
	Course  *Course `json:"course,omitempty"`
	Batches []Batch `json:"batches"`
}

// Empty reports whether no batch carries any module.
func (o CourseOutline) Empty() bool {
	for _, b := range o.Batches {
		if len(b.Modules) > 0 {
			return false
		}
	}
	return true
}

// Batch is a cohort running a course.
type Batch struct {
	ID      string   `json:"_id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Mentor  Mentor   `json:"mentor"`
	Modules []Module `json:"modules"`
}

// Module is a unit of a course containing lectures.
type Module struct {
	ID             string    `json:"_id,omitempty"`
	LegacyID       string    `json:"id,omitempty"`
	Title          string    `json:"title,omitempty"`
	Description    string    `json:"description,omitempty"`
	IsOpen         bool      `json:"isOpen"`
	Accessible     bool      `json:"accessible"`
	CompletedCount int       `json:"completedCount"`
	UpcomingCount  int       `json:"upcomingCount"`
	Lectures       []Lecture `json:"lectures"`
}

// Identifier returns the first usable id, falling back to the title.
func (m Module) Identifier() string { return firstNonEmpty(m.ID, m.LegacyID, m.Title) }

// Open reports whether the module can be entered.
func (m Module) Open() bool { return m.IsOpen || m.Accessible }

// ModuleRef is the populated module reference on a lecture.
type ModuleRef struct {
	ID    string `json:"_id,omitempty"`
	Title string `json:"title,omitempty"`
}

// LectureResource is supplementary material attached to a lecture.
type LectureResource struct {
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Lecture is a live or recorded session.
type Lecture struct {
	ID            string            `json:"_id,omitempty"`
	LegacyID      string            `json:"id,omitempty"`
	Title         string            `json:"title,omitempty"`
	Topic         string            `json:"topic,omitempty"`
	Description   string            `json:"description,omitempty"`
	ModuleID      string            `json:"moduleId,omitempty"`
	Module        *ModuleRef        `json:"module,omitempty"`
	Mentor        Mentor            `json:"mentor"`
	Teacher       *Teacher          `json:"teacher,omitempty"`
	StartTime     Timestamp         `json:"startTime"`
	EndTime       Timestamp         `json:"endTime"`
	Duration      int               `json:"duration,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	MeetingLink   string            `json:"meetingLink,omitempty"`
	RecordingLink string            `json:"recordingLink,omitempty"`
	SessionID     string            `json:"sessionId,omitempty"`
	Resources     []LectureResource `json:"resources,omitempty"`
}

// Identifier returns the backend id, accepting either id field.
func (l Lecture) Identifier() string { return firstNonEmpty(l.ID, l.LegacyID) }

// Heading is the topic when present, else the title.
func (l Lecture) Heading() string { return firstNonEmpty(l.Topic, l.Title) }

// MentorName resolves the teacher's full name, then the mentor reference.
func (l Lecture) MentorName() string {
	if l.Teacher != nil && l.Teacher.User != nil {
		if n := strings.TrimSpace(l.Teacher.User.FirstName + " " + l.Teacher.User.LastName); n != "" {
			return n
		}
	}
	return l.Mentor.Name
}

// Query is a recent doubt/question raised by the student.
type Query struct {
	ID     string `json:"_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

// Dashboard is the payload of /student/dashboard.
type Dashboard struct {
	Greeting         string    `json:"greeting,omitempty"`
	Message          string    `json:"message,omitempty"`
	Courses          []Course  `json:"courses"`
	Batches          []Batch   `json:"batches"`
	UpcomingLectures []Lecture `json:"upcomingLectures"`
	RecentQueries    []Query   `json:"recentQueries"`
}

// Education is the education section of a profile.
type Education struct {
	Institution    string `json:"institution,omitempty" yaml:"institution" validate:"omitempty,max=200"`
	Degree         string `json:"degree,omitempty" yaml:"degree" validate:"omitempty,max=120"`
	FieldOfStudy   string `json:"fieldOfStudy,omitempty" yaml:"field_of_study" validate:"omitempty,max=120"`
	GraduationYear int    `json:"graduationYear,omitempty" yaml:"graduation_year" validate:"omitempty,gte=1950,lte=2100"`
	CurrentStatus  string `json:"currentStatus,omitempty" yaml:"current_status" validate:"omitempty,oneof=student graduate working"`
}

// ProfileLinks are the student's public profile links.
type ProfileLinks struct {
	LinkedIn  string `json:"linkedin,omitempty" yaml:"linkedin" validate:"omitempty,url"`
	GitHub    string `json:"github,omitempty" yaml:"github" validate:"omitempty,url"`
	Portfolio string `json:"portfolio,omitempty" yaml:"portfolio" validate:"omitempty,url"`
	Twitter   string `json:"twitter,omitempty" yaml:"twitter" validate:"omitempty,url"`
}

// Notifications toggles delivery channels. Nil means "not set by the server".
type Notifications struct {
	Email *bool `json:"email,omitempty" yaml:"email"`
	SMS   *bool `json:"sms,omitempty" yaml:"sms"`
	InApp *bool `json:"inApp,omitempty" yaml:"in_app"`
}

// Preferences is the preferences section of a profile.
type Preferences struct {
	Notifications Notifications `json:"notifications" yaml:"notifications"`
	Timezone      string        `json:"timezone,omitempty" yaml:"timezone" validate:"omitempty,timezone"`
	Communication string        `json:"communication,omitempty" yaml:"communication" validate:"omitempty,oneof=slack email whatsapp discord"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultPreferences are applied where the server leaves a preference unset.
func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: Notifications{Email: boolPtr(true), SMS: boolPtr(false), InApp: boolPtr(true)},
		Timezone:      "Asia/Kolkata",
		Communication: "slack",
	}
}

// Merge overlays the set fields of o onto p.
func (p Preferences) Merge(o Preferences) Preferences {
	if o.Notifications.Email != nil {
		p.Notifications.Email = o.Notifications.Email
	}
	if o.Notifications.SMS != nil {
		p.Notifications.SMS = o.Notifications.SMS
	}
	if o.Notifications.InApp != nil {
		p.Notifications.InApp = o.Notifications.InApp
	}
	if o.Timezone != "" {
		p.Timezone = o.Timezone
	}
	if o.Communication != "" {
		p.Communication = o.Communication
	}
	return p
}

// ProgressSnapshot is the summary block shown on the profile page.
type ProgressSnapshot struct {
	Completion int       `json:"completion"`
	Streak     int       `json:"streak"`
	Mentor     Mentor    `json:"mentor"`
	LastLogin  Timestamp `json:"lastLogin"`
}

// Achievement is a badge earned by the student.
type Achievement struct {
	ID          string    `json:"_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	EarnedAt    Timestamp `json:"earnedAt"`
}

// Profile is the payload of /student/profile.
type Profile struct {
	User
	Education    *Education       `json:"education,omitempty"`
	ProfileLinks *ProfileLinks    `json:"profileLinks,omitempty"`
	Snapshot     ProgressSnapshot `json:"snapshot"`
	Achievements []Achievement    `json:"achievements"`
	Preferences  Preferences      `json:"preferences"`
}

// EffectivePreferences merges server preferences over the defaults.
func (p Profile) EffectivePreferences() Preferences {
	return DefaultPreferences().Merge(p.Preferences)
}

// LiveSessionStatus reports the state of a live video session.
type LiveSessionStatus struct {
	SessionID string    `json:"sessionId,omitempty"`
	Status    string    `json:"status,omitempty"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
	Viewers   int       `json:"viewers,omitempty"`
}

// LiveSession is returned by the start/end/create live session endpoints.
type LiveSession struct {
	LectureID  string    `json:"lectureId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	EventTitle string    `json:"eventTitle,omitempty"`
	Status     string    `json:"status,omitempty"`
	StartTime  Timestamp `json:"startTime"`
	EndTime    Timestamp `json:"endTime"`
}
