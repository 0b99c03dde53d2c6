package model

import (
	"sort"
	"time"
)

// SubjectType identifies what kind of resource a notification thread is about.
type SubjectType string

const (
	SubjectIssue         SubjectType = "Issue"
	SubjectPullRequest   SubjectType = "PullRequest"
	SubjectCommit        SubjectType = "Commit"
	SubjectRelease       SubjectType = "Release"
	SubjectDiscussion    SubjectType = "Discussion"
	SubjectSecurityAlert SubjectType = "SecurityAlert"
	SubjectCheckSuite    SubjectType = "CheckSuite"
	SubjectUnknown       SubjectType = "Unknown"
)

// subjectTypeAliases maps remote subject type strings to SubjectType.
// GitHub reports security alerts under several names.
var subjectTypeAliases = map[string]SubjectType{
	"Issue":                            SubjectIssue,
	"PullRequest":                      SubjectPullRequest,
	"Commit":                           SubjectCommit,
	"Release":                          SubjectRelease,
	"Discussion":                       SubjectDiscussion,
	"SecurityAlert":                    SubjectSecurityAlert,
	"RepositoryVulnerabilityAlert":     SubjectSecurityAlert,
	"RepositoryDependabotAlertsThread": SubjectSecurityAlert,
	"RepositoryAdvisory":               SubjectSecurityAlert,
	"CheckSuite":                       SubjectCheckSuite,
}

// ParseSubjectType converts a remote subject type. Unrecognized values
// map to SubjectUnknown.
func ParseSubjectType(s string) SubjectType {
	if st, ok := subjectTypeAliases[s]; ok {
		return st
	}
	return SubjectUnknown
}

// Reason explains why the user received a notification.
type Reason string

const (
	ReasonApprovalRequested      Reason = "approval_requested"
	ReasonAssign                 Reason = "assign"
	ReasonAuthor                 Reason = "author"
	ReasonCIActivity             Reason = "ci_activity"
	ReasonComment                Reason = "comment"
	ReasonInvitation             Reason = "invitation"
	ReasonManual                 Reason = "manual"
	ReasonMemberFeatureRequested Reason = "member_feature_requested"
	ReasonMention                Reason = "mention"
	ReasonReviewRequested        Reason = "review_requested"
	ReasonSecurityAlert          Reason = "security_alert"
	ReasonSecurityAdvisoryCredit Reason = "security_advisory_credit"
	ReasonStateChange            Reason = "state_change"
	ReasonSubscribed             Reason = "subscribed"
	ReasonTeamMention            Reason = "team_mention"
	ReasonUnknown                Reason = "unknown"
)

var knownReasons = map[Reason]bool{
	ReasonApprovalRequested:      true,
	ReasonAssign:                 true,
	ReasonAuthor:                 true,
	ReasonCIActivity:             true,
	ReasonComment:                true,
	ReasonInvitation:             true,
	ReasonManual:                 true,
	ReasonMemberFeatureRequested: true,
	ReasonMention:                true,
	ReasonReviewRequested:        true,
	ReasonSecurityAlert:          true,
	ReasonSecurityAdvisoryCredit: true,
	ReasonStateChange:            true,
	ReasonSubscribed:             true,
	ReasonTeamMention:            true,
}

// ParseReason converts a remote reason string. Unrecognized values map
// to ReasonUnknown.
func ParseReason(s string) Reason {
	r := Reason(s)
	if knownReasons[r] {
		return r
	}
	return ReasonUnknown
}

// Label returns a short human-readable description of the reason.
func (r Reason) Label() string {
	switch r {
	case ReasonApprovalRequested:
		return "Approval requested"
	case ReasonAssign:
		return "Assigned"
	case ReasonAuthor:
		return "Author"
	case ReasonCIActivity:
		return "CI activity"
	case ReasonComment:
		return "Comment"
	case ReasonInvitation:
		return "Invitation"
	case ReasonManual:
		return "Subscribed manually"
	case ReasonMemberFeatureRequested:
		return "Feature requested"
	case ReasonMention:
		return "Mentioned"
	case ReasonReviewRequested:
		return "Review requested"
	case ReasonSecurityAlert:
		return "Security alert"
	case ReasonSecurityAdvisoryCredit:
		return "Advisory credit"
	case ReasonStateChange:
		return "State changed"
	case ReasonSubscribed:
		return "Watching"
	case ReasonTeamMention:
		return "Team mentioned"
	default:
		return "Notification"
	}
}

// NotificationRecord is one remote notification thread as cached locally.
type NotificationRecord struct {
	// ID is the remote-assigned thread identifier. It is never generated locally.
	ID string `json:"id"`

	// ContainerName is the owning repository, e.g. "octo-org/octo-repo".
	ContainerName string `json:"container_name"`

	// ContainerAvatarURL is the repository owner's avatar, if known.
	ContainerAvatarURL *string `json:"container_avatar_url,omitempty"`

	SubjectTitle string      `json:"subject_title"`
	SubjectType  SubjectType `json:"subject_type"`

	// SubjectURL is the API locator of the subject resource, if any.
	SubjectURL *string `json:"subject_url,omitempty"`

	Reason Reason `json:"reason"`

	// Unread is the only field mutated locally ahead of remote confirmation.
	Unread bool `json:"unread"`

	UpdatedAt  time.Time  `json:"updated_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

// Category returns the category derived from the record's reason.
func (n NotificationRecord) Category() Category {
	return CategoryOf(n.Reason)
}

// SortByUpdatedDesc orders records newest first, breaking ties by ID so
// the order is stable across passes.
func SortByUpdatedDesc(records []NotificationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}

// Category groups notifications for filtering in the inbox.
type Category string

const (
	CategoryAll          Category = "all"
	CategoryMentioned    Category = "mentioned"
	CategoryAssignedTask Category = "assigned"
	CategoryComments     Category = "comments"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryAll,
	CategoryMentioned,
	CategoryAssignedTask,
	CategoryComments,
}

// Title returns the tab label for the category.
func (c Category) Title() string {
	switch c {
	case CategoryMentioned:
		return "Mentioned"
	case CategoryAssignedTask:
		return "Assigned"
	case CategoryComments:
		return "Comments"
	default:
		return "All"
	}
}

// CategoryOf classifies a reason. Reasons outside the table, including
// ReasonUnknown, belong only to CategoryAll.
func CategoryOf(r Reason) Category {
	switch r {
	case ReasonMention, ReasonTeamMention:
		return CategoryMentioned
	case ReasonAssign, ReasonReviewRequested, ReasonApprovalRequested:
		return CategoryAssignedTask
	case ReasonComment, ReasonAuthor:
		return CategoryComments
	default:
		return CategoryAll
	}
}

// Matches reports whether a record falls under the category.
func (c Category) Matches(n NotificationRecord) bool {
	if c == CategoryAll {
		return true
	}
	return CategoryOf(n.Reason) == c
}

// ReasonsFor returns the reasons that classify into c. It returns nil for
// CategoryAll, which matches every reason.
func ReasonsFor(c Category) []Reason {
	if c == CategoryAll {
		return nil
	}
	var reasons []Reason
	for r := range knownReasons {
		if CategoryOf(r) == c {
			reasons = append(reasons, r)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// FilterByCategory returns the records that fall under c, preserving order.
func FilterByCategory(records []NotificationRecord, c Category) []NotificationRecord {
	out := make([]NotificationRecord, 0, len(records))
	for _, n := range records {
		if c.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}
