package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/contactly/contactly/internal/models"
	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/logger"
)

// Pagination bounds for contact listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Birthday lookahead bounds, in days.
const (
	MinBirthdayDays = 1
	MaxBirthdayDays = 366
)

// CreateContactRequest carries the fields accepted when creating a contact.
type CreateContactRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,max=32"`
	Birthday  string `json:"birthday" validate:"required,datetime=2006-01-02"`
	Note      string `json:"note" validate:"max=500"`
}

// UpdateContactRequest carries a partial update. Nil fields are left as-is.
type UpdateContactRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Birthday  *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Note      *string `json:"note" validate:"omitempty,max=500"`
}

// ListContactsQuery captures the supported list filters. Q searches across
// first name, last name, and email; when it is set the individual field
// filters are ignored.
type ListContactsQuery struct {
	Q         string
	FirstName string
	LastName  string
	Email     string
	Limit     int
	Offset    int
}

// ContactService owns contact CRUD and the birthday lookahead. Every
// operation is scoped to the owning user; a contact outside that scope is
// indistinguishable from one that does not exist.
type ContactService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewContactService builds a ContactService using the wall clock.
func NewContactService(db *gorm.DB) *ContactService {
	return NewContactServiceWithClock(db, time.Now)
}

// NewContactServiceWithClock builds a ContactService with an injected clock.
func NewContactServiceWithClock(db *gorm.DB, now func() time.Time) *ContactService {
	return &ContactService{
		db:  db,
		now: now,
		log: logger.WithModule("services.contact"),
	}
}

// Create stores a new contact for the owner. The email must be unused by any
// contact of any user.
func (s *ContactService) Create(ctx context.Context, ownerID string, req CreateContactRequest) (*models.Contact, error) {
	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return nil, err
	}

	contact := &models.Contact{
		OwnerID:   ownerID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Birthday:  birthday,
		Note:      req.Note,
	}

	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.NewConflict("a contact with this email already exists")
		}
		return nil, appErrors.Wrap(err, "failed to create contact")
	}

	s.log.Debug("contact created",
		zap.String("owner_id", ownerID),
		zap.String("contact_id", contact.ID))

	return contact, nil
}

// Get loads one contact owned by ownerID.
func (s *ContactService) Get(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).
		First(&contact, "id = ? AND owner_id = ?", contactID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load contact")
	}
	return &contact, nil
}

// List returns a page of the owner's contacts together with the total number
// of matches before pagination.
func (s *ContactService) List(ctx context.Context, ownerID string, query ListContactsQuery) ([]models.Contact, int64, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Contact{}).Where("owner_id = ?", ownerID)

	// LOWER on both sides keeps matching case-insensitive on every backend;
	// postgres LIKE alone would not be.
	if query.Q != "" {
		pattern := searchPattern(query.Q)
		tx = tx.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern,
		)
	} else {
		if query.FirstName != "" {
			tx = tx.Where("LOWER(first_name) LIKE ?", searchPattern(query.FirstName))
		}
		if query.LastName != "" {
			tx = tx.Where("LOWER(last_name) LIKE ?", searchPattern(query.LastName))
		}
		if query.Email != "" {
			tx = tx.Where("LOWER(email) LIKE ?", searchPattern(query.Email))
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, appErrors.Wrap(err, "failed to count contacts")
	}

	var contacts []models.Contact
	err := tx.Order("created_at, id").
		Limit(limit).
		Offset(offset).
		Find(&contacts).Error
	if err != nil {
		return nil, 0, appErrors.Wrap(err, "failed to list contacts")
	}

	return contacts, total, nil
}

// Update applies the non-nil fields of req to the contact. Changing the email
// is subject to the same global uniqueness rule as creation.
func (s *ContactService) Update(ctx context.Context, ownerID, contactID string, req UpdateContactRequest) (*models.Contact, error) {
	contact, err := s.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Birthday != nil {
		birthday, err := parseBirthday(*req.Birthday)
		if err != nil {
			return nil, err
		}
		updates["birthday"] = birthday
	}
	if req.Note != nil {
		updates["note"] = *req.Note
	}

	if len(updates) == 0 {
		return contact, nil
	}

	if err := s.db.WithContext(ctx).Model(contact).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.NewConflict("a contact with this email already exists")
		}
		return nil, appErrors.Wrap(err, "failed to update contact")
	}

	return s.Get(ctx, ownerID, contactID)
}

// Delete removes one contact owned by ownerID.
func (s *ContactService) Delete(ctx context.Context, ownerID, contactID string) error {
	res := s.db.WithContext(ctx).
		Delete(&models.Contact{}, "id = ? AND owner_id = ?", contactID, ownerID)
	if res.Error != nil {
		return appErrors.Wrap(res.Error, "failed to delete contact")
	}
	if res.RowsAffected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls within
// the next `days` days, today included. Birthdays are compared by calendar
// day only, so the window wraps across the year boundary.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID string, days int) ([]models.Contact, error) {
	if days < MinBirthdayDays || days > MaxBirthdayDays {
		return nil, appErrors.NewBadRequest("days must be between 1 and 366")
	}

	var contacts []models.Contact
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Find(&contacts).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load contacts")
	}

	today := s.now()
	startOrd := dayOrdinal(today)
	endOrd := dayOrdinal(today.AddDate(0, 0, days))

	matched := contacts[:0]
	for _, contact := range contacts {
		ord := dayOrdinal(time.Time(contact.Birthday))
		if inWindow(ord, startOrd, endOrd) {
			matched = append(matched, contact)
		}
	}

	sortByCalendarDay(matched)

	return matched, nil
}

// dayOrdinal maps a date to month*100+day, which orders calendar days within
// a year without caring about the year itself.
func dayOrdinal(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}

// inWindow tests ord against the closed window [start, end]. When the window
// wraps past December the two halves are checked separately.
func inWindow(ord, start, end int) bool {
	if start <= end {
		return ord >= start && ord <= end
	}
	return ord >= start || ord <= end
}

// sortByCalendarDay orders contacts by ordinal ascending, breaking ties on
// last then first name, so results stay deterministic.
func sortByCalendarDay(contacts []models.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		oi := dayOrdinal(time.Time(contacts[i].Birthday))
		oj := dayOrdinal(time.Time(contacts[j].Birthday))
		if oi != oj {
			return oi < oj
		}
		if contacts[i].LastName != contacts[j].LastName {
			return contacts[i].LastName < contacts[j].LastName
		}
		return contacts[i].FirstName < contacts[j].FirstName
	})
}

func searchPattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

func parseBirthday(value string) (datatypes.Date, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return datatypes.Date{}, appErrors.NewBadRequest("birthday must use the YYYY-MM-DD format")
	}
	return datatypes.Date(parsed), nil
}
