package task

// Urgency classifies how close a deadline is.
type Urgency int

// Urgency levels, from least to most pressing.
const (
	Normal Urgency = iota
	Pressing
	Urgent
	Overdue
)

// UrgencyFor maps days left to an urgency level: past deadlines are
// Overdue, 0 or 1 day Urgent, up to 3 days Pressing.
func UrgencyFor(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return Overdue
	case daysLeft <= 1:
		return Urgent
	case daysLeft <= 3:
		return Pressing
	default:
		return Normal
	}
}

// Icon returns the status marker shown in task listings.
func (u Urgency) Icon() string {
	switch u {
	case Overdue:
		return "❌"
	case Urgent:
		return "🔴"
	case Pressing:
		return "🟡"
	default:
		return "🟢"
	}
}

// Label returns the Indonesian status label.
func (u Urgency) Label() string {
	switch u {
	case Overdue:
		return "Terlewat"
	case Urgent:
		return "Urgent"
	case Pressing:
		return "Mendesak"
	default:
		return "Normal"
	}
}
