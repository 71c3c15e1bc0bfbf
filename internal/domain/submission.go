package domain

// Submission 投稿请求，受理后不可变。
//
// SubmitterId 与 BirthDate 来自认证信息，视为已校验。
type Submission struct {
	RequestId       string
	Channel         Channel
	SubmitterId     string
	DurationMinutes int
	BirthDate       *BirthDate
}

// Submitter 投稿人
type Submitter struct {
	Id        string
	BirthDate *BirthDate
	Role      Role
}

// Role 调用方角色
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleAdmin     Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
