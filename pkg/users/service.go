package users

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/errs"
	"github.com/afritokeni/platform/pkg/ledger"
)

// Service wires C2's validation rules to C1's Store.
type Service struct {
	store *ledger.Store
	cfg   *config.Config
}

// NewService constructs a user service bound to store and cfg.
func NewService(store *ledger.Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// RegisterInput carries the fields needed to create a new user account.
type RegisterInput struct {
	Phone     string
	Principal string
	FirstName string
	LastName  string
	Email     string
	Language  string
	UserType  ledger.UserType
	Pin       string
	Now       int64
}

// Register validates input, infers a preferred currency from the phone's
// dialing prefix when possible, and creates the user plus its PIN record.
func (s *Service) Register(callerToken string, in RegisterInput) (*ledger.User, error) {
	if err := ValidateIdentifierRequired(in.Phone, in.Principal); err != nil {
		return nil, err
	}
	if in.Phone != "" {
		if err := ValidatePhoneFormat(in.Phone); err != nil {
			return nil, err
		}
	}
	if in.Email != "" {
		if err := ValidateEmailFormat(in.Email); err != nil {
			return nil, err
		}
	}
	if err := ValidateName(in.FirstName, "first name"); err != nil {
		return nil, err
	}
	if err := ValidateName(in.LastName, "last name"); err != nil {
		return nil, err
	}
	if err := ValidatePINFormat(in.Pin); err != nil {
		return nil, err
	}

	preferredCurrency := "UGX"
	if in.Phone != "" {
		digits := in.Phone[1:]
		if p, ok := config.LookupPhonePrefix(digits); ok {
			preferredCurrency = p.Currency
		}
	}

	userType := in.UserType
	if userType == "" {
		userType = ledger.UserTypeUser
	}

	u := &ledger.User{
		ID:                uuid.New().String(),
		Phone:             in.Phone,
		Principal:         in.Principal,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		Email:             in.Email,
		PreferredCurrency: preferredCurrency,
		UserType:          userType,
		KycStatus:         ledger.KycNotStarted,
		Language:          in.Language,
		CreatedAt:         in.Now,
	}

	if err := s.store.CreateUser(callerToken, u); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to hash pin")
	}
	if err := s.store.SetupPin(callerToken, u.ID, string(hash)); err != nil {
		return nil, err
	}

	return u, nil
}

// VerifyPin checks pin against the stored bcrypt hash, applying the
// lockout policy from cfg.Pin on failure (spec §4.2 "five wrong PINs
// locks the account for the cooldown window").
func (s *Service) VerifyPin(callerToken, userID, pin string, now int64) error {
	record, err := s.store.GetPinRecord(callerToken, userID)
	if err != nil {
		return err
	}
	if record.LockedUntil != nil && now < *record.LockedUntil {
		return errs.New(errs.PinLocked, "pin is locked, try again later")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PinHash), []byte(pin)); err != nil {
		if recErr := s.store.RecordPinFailure(callerToken, userID, now,
			s.cfg.Pin.MaxAttempts, int64(s.cfg.Pin.Cooldown.Seconds())); recErr != nil {
			return recErr
		}
		return errs.New(errs.InvalidPin, "incorrect pin")
	}

	return s.store.ResetPinFailures(callerToken, userID)
}

// ChangePin re-validates the new PIN's format and replaces its hash.
func (s *Service) ChangePin(callerToken, userID, newPin string) error {
	if err := ValidatePINFormat(newPin); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcrypt.DefaultCost)
	if err != nil {
		return errs.New(errs.Internal, "failed to hash pin")
	}
	return s.store.SetupPin(callerToken, userID, string(hash))
}

// UpdateKyc transitions a user's KYC status through the state machine
// (spec §4.2); adminOverride permits the NotStarted -> Approved shortcut.
func (s *Service) UpdateKyc(callerToken, userID string, next ledger.KycStatus, adminOverride bool) error {
	return s.store.UpdateKycStatus(callerToken, userID, next, adminOverride)
}

// RequireKycApproved is a guard used by C3-C6 before allowing an operation
// that spec §4 gates on KYC approval.
func (s *Service) RequireKycApproved(callerToken, userID string) error {
	u, err := s.store.GetUserByID(callerToken, userID)
	if err != nil {
		return err
	}
	if u.KycStatus != ledger.KycApproved {
		return errs.New(errs.KycRequired, "kyc approval required for this operation")
	}
	return nil
}
