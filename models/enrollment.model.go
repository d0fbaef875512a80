package models

import (
	"time"

	"gorm.io/gorm"
)

// EnrollmentStatus values. PENDING means enrolled and learning,
// COMPLETED means the course was finished, REFUNDED is terminal for
// the automated paths.
const (
	EnrollmentStatusPending   = "PENDING"
	EnrollmentStatusCompleted = "COMPLETED"
	EnrollmentStatusRefunded  = "REFUNDED"
)

// Payment method tags on an enrollment.
const (
	PaymentMethodFree    = "free"
	PaymentMethodGateway = "gateway"
)

// Enrollment links one user to one course with payment and progress
// state. The composite unique index on (user_id, course_id) and the
// unique indexes on the gateway identifiers are what make concurrent
// enrollment paths safe: the database rejects the loser of any race the
// pre-insert checks miss. Gateway ids are pointers so nulls never
// collide in the unique indexes.
type Enrollment struct {
	gorm.Model
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	CourseID         uint       `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	Price            float64    `json:"price" gorm:"not null;default:0"` // amount actually charged
	Status           string     `json:"status" gorm:"type:varchar(20);default:'PENDING'"`
	Progress         int        `json:"progress" gorm:"default:0"` // completion percentage (0-100)
	PaymentMethod    string     `json:"payment_method" gorm:"type:varchar(20);default:''"`
	GatewaySessionID *string    `json:"gateway_session_id" gorm:"type:varchar(120);uniqueIndex"`
	GatewayPaymentID *string    `json:"gateway_payment_id" gorm:"type:varchar(120);uniqueIndex"`
	EnrolledAt       time.Time  `json:"enrolled_at"`
	CompletedAt      *time.Time `json:"completed_at"`

	User   User   `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Course Course `json:"course" gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
}
