package events

import (
	"errors"
	"fmt"
)

// NotificationPayload asks the notification service to deliver a message to a
// recipient. TemplateName selects the rendered template; TemplateData fills
// it. Priority is one of "low", "normal", "high".
type NotificationPayload struct {
	RecipientEmail string         `json:"recipient_email"`
	RecipientName  string         `json:"recipient_name,omitempty"`
	Subject        string         `json:"subject"`
	TemplateName   string         `json:"template_name"`
	TemplateData   map[string]any `json:"template_data,omitempty"`
	Priority       string         `json:"priority,omitempty"`
}

func (NotificationPayload) Family() Family { return FamilyNotification }

func (p NotificationPayload) Validate() error {
	if p.RecipientEmail == "" {
		return errors.New("recipient_email is required")
	}
	if p.Subject == "" {
		return errors.New("subject is required")
	}
	if p.TemplateName == "" {
		return errors.New("template_name is required")
	}
	switch p.Priority {
	case "", "low", "normal", "high":
	default:
		return fmt.Errorf("invalid priority %q", p.Priority)
	}
	return nil
}

// AuditPayload records who did what to which resource. OldValue/NewValue hold
// compact before/after snapshots for update actions.
type AuditPayload struct {
	UserID       int64          `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   int64          `json:"resource_id"`
	Description  string         `json:"description,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	OldValue     string         `json:"old_value,omitempty"`
	NewValue     string         `json:"new_value,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
}

func (AuditPayload) Family() Family { return FamilyAudit }

func (p AuditPayload) Validate() error {
	if p.Action == "" {
		return errors.New("action is required")
	}
	if p.ResourceType == "" {
		return errors.New("resource_type is required")
	}
	return nil
}

// UserPayload describes a user lifecycle change.
type UserPayload struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"` // for suspension/deletion
}

func (UserPayload) Family() Family { return FamilyUser }

func (p UserPayload) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// EmployeePayload describes an employee lifecycle change.
type EmployeePayload struct {
	EmployeeID      int64  `json:"employee_id"`
	UserID          int64  `json:"user_id,omitempty"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Department      string `json:"department,omitempty"`
	Position        string `json:"position,omitempty"`
	Status          string `json:"status,omitempty"`
	HireDate        string `json:"hire_date,omitempty"`
	TerminationDate string `json:"termination_date,omitempty"`
}

func (EmployeePayload) Family() Family { return FamilyEmployee }

func (p EmployeePayload) Validate() error {
	if p.EmployeeID == 0 {
		return errors.New("employee_id is required")
	}
	if p.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// LeavePayload describes a leave request state change.
type LeavePayload struct {
	LeaveID         int64  `json:"leave_id"`
	EmployeeID      int64  `json:"employee_id"`
	EmployeeEmail   string `json:"employee_email"`
	EmployeeName    string `json:"employee_name,omitempty"`
	LeaveType       string `json:"leave_type"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	Days            int    `json:"days"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	ApprovedBy      string `json:"approved_by,omitempty"`
	ApprovedByName  string `json:"approved_by_name,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func (LeavePayload) Family() Family { return FamilyLeave }

func (p LeavePayload) Validate() error {
	if p.LeaveID == 0 {
		return errors.New("leave_id is required")
	}
	if p.EmployeeID == 0 {
		return errors.New("employee_id is required")
	}
	if p.LeaveType == "" {
		return errors.New("leave_type is required")
	}
	return nil
}

// AttendancePayload describes an attendance record change.
type AttendancePayload struct {
	AttendanceID  int64   `json:"attendance_id"`
	EmployeeID    int64   `json:"employee_id"`
	EmployeeEmail string  `json:"employee_email"`
	EmployeeName  string  `json:"employee_name,omitempty"`
	Date          string  `json:"date"`
	CheckIn       string  `json:"check_in,omitempty"`
	CheckOut      string  `json:"check_out,omitempty"`
	Status        string  `json:"status"` // present, absent, late, half_day
	HoursWorked   float64 `json:"hours_worked,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

func (AttendancePayload) Family() Family { return FamilyAttendance }

func (p AttendancePayload) Validate() error {
	if p.AttendanceID == 0 {
		return errors.New("attendance_id is required")
	}
	if p.EmployeeID == 0 {
		return errors.New("employee_id is required")
	}
	if p.Date == "" {
		return errors.New("date is required")
	}
	return nil
}

// CompliancePayload describes a compliance check result.
type CompliancePayload struct {
	ComplianceCheckID int64    `json:"compliance_check_id,omitempty"`
	CheckType         string   `json:"check_type"`
	ResourceType      string   `json:"resource_type"`
	ResourceID        int64    `json:"resource_id"`
	Status            string   `json:"status"` // passed, failed, warning
	Violations        []string `json:"violations,omitempty"`
	Recommendations   []string `json:"recommendations,omitempty"`
	Severity          string   `json:"severity,omitempty"` // low, medium, high, critical
}

func (CompliancePayload) Family() Family { return FamilyCompliance }

func (p CompliancePayload) Validate() error {
	if p.CheckType == "" {
		return errors.New("check_type is required")
	}
	if p.ResourceType == "" {
		return errors.New("resource_type is required")
	}
	return nil
}
