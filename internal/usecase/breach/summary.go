package breach

import (
	"regexp"
	"strconv"
	"strings"
)

// Summary is the cross-jurisdiction view of a report.
type Summary struct {
	TotalJurisdictions    int      `json:"total_jurisdictions"`
	NotificationsRequired int      `json:"notifications_required"`
	AGNotifications       []string `json:"ag_notifications_required"`
	EarliestDeadline      string   `json:"earliest_deadline"`
	EarliestDeadlineState string   `json:"earliest_deadline_state,omitempty"`
	SafeHarborApplies     bool     `json:"safe_harbor_applies"`
	SafeHarborReason      string   `json:"safe_harbor_reason,omitempty"`
	DataTypes             []string `json:"data_types_compromised"`
	EncryptionStatus      string   `json:"encryption_status"`
	// Unavailable lists states without indexed statutes.
	Unavailable []string `json:"unavailable"`
}

const noDeadline = "See individual state analyses"

// deadlinePattern finds the first "<n> days" or "<n> hours" in a deadline.
var deadlinePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:calendar\s+|business\s+)?(hour|day)s?\b`)

// deadlineHours converts a deadline to hours. Deadlines without a count,
// such as "without unreasonable delay", report false.
func deadlineHours(deadline string) (int, bool) {
	m := deadlinePattern.FindStringSubmatch(deadline)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "day") {
		n *= 24
	}
	return n, true
}

func summarize(p Params, states []StateAnalysis) Summary {
	s := Summary{
		TotalJurisdictions: len(states),
		AGNotifications:    []string{},
		EarliestDeadline:   noDeadline,
		DataTypes:          p.DataTypes,
		EncryptionStatus:   p.Encryption,
		Unavailable:        []string{},
	}
	earliest := -1
	for i := range states {
		sa := &states[i]
		if sa.Error != "" {
			s.Unavailable = append(s.Unavailable, sa.Jurisdiction)
			continue
		}
		if sa.NotificationRequired {
			s.NotificationsRequired++
		}
		if sa.NotifyAG {
			s.AGNotifications = append(s.AGNotifications, sa.Jurisdiction+": "+sa.AGNotificationDetails)
		}
		if h, ok := deadlineHours(sa.Deadline); ok && (earliest < 0 || h < earliest) {
			earliest = h
			s.EarliestDeadline = sa.Deadline
			s.EarliestDeadlineState = sa.Jurisdiction
		}
		if sa.SafeHarborApplies {
			if !s.SafeHarborApplies {
				s.SafeHarborReason = sa.SafeHarborDetails
			}
			s.SafeHarborApplies = true
		}
	}
	return s
}
